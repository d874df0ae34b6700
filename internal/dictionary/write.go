package dictionary

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sort"
)

// Guesser produces pronunciations for words that are not in any dictionary.
type Guesser interface {
	Guess(ctx context.Context, words []string) (Pronunciations, error)
}

// WriteOptions controls how vocabulary words are resolved to pronunciations.
type WriteOptions struct {
	// DictionaryCasing is applied to a word before the base dictionary lookup.
	DictionaryCasing Casing
	// G2PCasing is applied before the fallback lookup and before guessing.
	G2PCasing Casing
	// Guesser is consulted for words with no pronunciation. Nil disables it.
	Guesser Guesser
	// MissingWordsPath receives words that could not be resolved, one per line.
	MissingWordsPath string
}

// WriteResult reports how the vocabulary was resolved.
type WriteResult struct {
	Words   int      // words written to the dictionary
	Guessed []string // words whose pronunciation came from the guesser
	Missing []string // words left out of the dictionary
}

// Write writes a dictionary entry for every vocabulary word to w, sorted by
// word. The written word is always the vocabulary word itself, whatever key
// its pronunciation was found under.
func Write(ctx context.Context, w io.Writer, vocabulary []string, prons Pronunciations, opts WriteOptions) (*WriteResult, error) {
	words := slices.Clone(vocabulary)
	sort.Strings(words)
	words = slices.Compact(words)

	resolved := make(map[string][][]string, len(words))
	var missing []string
	for _, word := range words {
		if p := lookup(prons, word, opts); len(p) > 0 {
			resolved[word] = p
			continue
		}
		missing = append(missing, word)
	}

	result := &WriteResult{}
	if len(missing) > 0 && opts.Guesser != nil {
		guessed, stillMissing, err := guess(ctx, missing, opts)
		if err != nil {
			return nil, err
		}
		for word, p := range guessed {
			resolved[word] = p
			result.Guessed = append(result.Guessed, word)
		}
		sort.Strings(result.Guessed)
		missing = stillMissing
	}
	result.Missing = missing

	bw := bufio.NewWriter(w)
	for _, word := range words {
		p, ok := resolved[word]
		if !ok {
			continue
		}
		if err := writeEntries(bw, word, p); err != nil {
			return nil, fmt.Errorf("dictionary: write %q: %w", word, err)
		}
		result.Words++
	}
	if err := bw.Flush(); err != nil {
		return nil, fmt.Errorf("dictionary: flush: %w", err)
	}

	if len(missing) > 0 {
		slog.Warn("words missing from dictionary", "count", len(missing), "words", missing)
	}
	if opts.MissingWordsPath != "" {
		if err := writeLines(opts.MissingWordsPath, missing); err != nil {
			return nil, fmt.Errorf("dictionary: missing words: %w", err)
		}
	}

	return result, nil
}

// lookup tries the dictionary casing first, then the g2p casing.
func lookup(prons Pronunciations, word string, opts WriteOptions) [][]string {
	if p := prons[opts.DictionaryCasing.Apply(word)]; len(p) > 0 {
		return p
	}
	return prons[opts.G2PCasing.Apply(word)]
}

// guess sends the g2p-cased form of every missing word to the guesser.
func guess(ctx context.Context, missing []string, opts WriteOptions) (map[string][][]string, []string, error) {
	byKey := make(map[string][]string)
	for _, word := range missing {
		key := opts.G2PCasing.Apply(word)
		byKey[key] = append(byKey[key], word)
	}
	keys := make([]string, 0, len(byKey))
	for key := range byKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	slog.Debug("guessing pronunciations", "count", len(keys))
	guesses, err := opts.Guesser.Guess(ctx, keys)
	if err != nil {
		return nil, nil, fmt.Errorf("dictionary: guess pronunciations: %w", err)
	}

	guessed := make(map[string][][]string)
	var stillMissing []string
	for _, word := range missing {
		if p := guesses[opts.G2PCasing.Apply(word)]; len(p) > 0 {
			guessed[word] = p
			continue
		}
		stillMissing = append(stillMissing, word)
	}
	return guessed, stillMissing, nil
}

// writeLines writes one line per entry to path.
func writeLines(path string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	for _, line := range lines {
		fmt.Fprintln(bw, line)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
