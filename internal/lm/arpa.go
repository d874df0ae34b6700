package lm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// ReadARPAVocabulary returns the sorted words of the unigram section of an
// ARPA model, excluding sentence markers and <unk>.
func ReadARPAVocabulary(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	inUnigrams := false
	words := make(map[string]bool)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "\\") {
			if inUnigrams {
				break
			}
			inUnigrams = line == "\\1-grams:"
			continue
		}
		if !inUnigrams {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("lm: malformed unigram %q", line)
		}
		switch w := fields[1]; w {
		case sentenceStart, sentenceEnd, "<unk>":
		default:
			words[w] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("lm: reading ARPA: %w", err)
	}
	return sortedKeys(words), nil
}

// ReadARPAVocabularyFile reads the vocabulary of the ARPA model at path.
func ReadARPAVocabularyFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("lm: %w", err)
	}
	defer f.Close()
	return ReadARPAVocabulary(f)
}

// writeVocabulary writes one word per line, sorted.
func writeVocabulary(path string, words []string) error {
	sorted := append([]string(nil), words...)
	sort.Strings(sorted)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("lm: vocabulary: %w", err)
	}
	bw := bufio.NewWriter(f)
	for _, w := range sorted {
		fmt.Fprintln(bw, w)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("lm: vocabulary: %w", err)
	}
	return f.Close()
}
