// Package dictionary reads and writes Sphinx pronunciation dictionaries.
//
// The format is one pronunciation per line: a word followed by its phonemes,
// separated by whitespace. Alternate pronunciations repeat the word with a
// "(N)" suffix, e.g. "read(2) R EH D".
package dictionary

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
)

// Pronunciations maps a word to its phoneme sequences, in the order they
// were read.
type Pronunciations map[string][][]string

// Add appends a pronunciation unless the word already has an identical one.
func (p Pronunciations) Add(word string, phonemes []string) {
	for _, existing := range p[word] {
		if slices.Equal(existing, phonemes) {
			return
		}
	}
	p[word] = append(p[word], phonemes)
}

// Read parses a dictionary from r into p. Later entries for a word add
// alternates; they never replace what is already there. Words without
// phonemes are skipped with a warning.
func Read(r io.Reader, p Pronunciations) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ";;;") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			slog.Warn("skipping dictionary entry without phonemes", "line", lineNum, "word", fields[0])
			continue
		}

		p.Add(baseWord(fields[0]), fields[1:])
	}

	return scanner.Err()
}

// ReadFile merges the dictionary at path into p.
func ReadFile(path string, p Pronunciations) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("dictionary: %w", err)
	}
	defer f.Close()

	if err := Read(f, p); err != nil {
		return fmt.Errorf("dictionary: %s: %w", path, err)
	}
	return nil
}

// LoadFiles merges every dictionary in paths, in order. Paths that do not
// exist are skipped.
func LoadFiles(paths []string) (Pronunciations, error) {
	p := make(Pronunciations)
	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		if err := ReadFile(path, p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// baseWord strips an alternate-pronunciation suffix: "word(2)" -> "word".
func baseWord(word string) string {
	if !strings.HasSuffix(word, ")") {
		return word
	}
	open := strings.LastIndex(word, "(")
	if open <= 0 {
		return word
	}
	for _, r := range word[open+1 : len(word)-1] {
		if r < '0' || r > '9' {
			return word
		}
	}
	if open+1 == len(word)-1 {
		return word
	}
	return word[:open]
}

// writeEntries writes all pronunciations of word, numbering alternates.
func writeEntries(w io.Writer, word string, prons [][]string) error {
	for i, phonemes := range prons {
		key := word
		if i > 0 {
			key = fmt.Sprintf("%s(%d)", word, i+1)
		}
		if _, err := fmt.Fprintln(w, key, strings.Join(phonemes, " ")); err != nil {
			return err
		}
	}
	return nil
}
