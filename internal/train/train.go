// Package train regenerates the Pocketsphinx dictionary and language model
// from an intent graph.
package train

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/chaz8081/sphinxasr/internal/dictionary"
	"github.com/chaz8081/sphinxasr/internal/g2p"
	"github.com/chaz8081/sphinxasr/internal/lm"
)

// ErrEmptyVocabulary is returned when the intent graph yields no words.
var ErrEmptyVocabulary = errors.New("train: no words in vocabulary")

// BaseModelWords decides what happens to words that only the base language
// model knows when language models are mixed.
type BaseModelWords string

const (
	// BaseWordsDrop leaves base-model-only words out of the dictionary
	// unless a base dictionary already has them.
	BaseWordsDrop BaseModelWords = "drop"
	// BaseWordsGuess adds every unigram of the mixed model to the
	// vocabulary, so unknown words go through G2P.
	BaseWordsGuess BaseModelWords = "guess"
)

// ParseBaseModelWords accepts "drop" or "guess". Empty means drop.
func ParseBaseModelWords(s string) (BaseModelWords, error) {
	switch BaseModelWords(s) {
	case "", BaseWordsDrop:
		return BaseWordsDrop, nil
	case BaseWordsGuess:
		return BaseWordsGuess, nil
	default:
		return "", fmt.Errorf("base model words must be drop or guess, got %q", s)
	}
}

// Options configures one training run.
type Options struct {
	// DictionaryPath and LanguageModelPath are the two artifacts written.
	DictionaryPath    string
	LanguageModelPath string

	// Pronunciations are the merged base dictionaries.
	Pronunciations   dictionary.Pronunciations
	DictionaryCasing dictionary.Casing

	G2PModelPath     string
	G2PCasing        dictionary.Casing
	MissingWordsPath string

	VocabPath                 string
	LanguageModelFSTPath      string
	BaseLanguageModelFSTPath  string
	BaseLanguageModelWeight   float64
	MixedLanguageModelFSTPath string
	BaseModelWords            BaseModelWords

	// Converter builds the ARPA model. Defaults to lm.NativeConverter.
	Converter lm.Converter
	// Guesser overrides the Phonetisaurus guesser built from G2PModelPath.
	Guesser dictionary.Guesser
}

// Result summarizes a successful run.
type Result struct {
	RunID   string
	Words   int
	Guessed []string
	Missing []string
}

// Train converts the graph to a language model, writes a dictionary for its
// vocabulary, and replaces DictionaryPath and LanguageModelPath. Neither
// destination is touched unless both artifacts were built.
func Train(ctx context.Context, graph *lm.Graph, opts Options) (*Result, error) {
	if opts.DictionaryPath == "" || opts.LanguageModelPath == "" {
		return nil, errors.New("train: dictionary and language model paths are required")
	}

	runID := uuid.NewString()
	log := slog.With("run", runID)

	converter := opts.Converter
	if converter == nil {
		converter = lm.NativeConverter{}
	}
	guesser := opts.Guesser
	if guesser == nil && opts.G2PModelPath != "" {
		guesser = g2p.New(opts.G2PModelPath)
	}

	staging, err := os.MkdirTemp("", "sphinxasr-train-*")
	if err != nil {
		return nil, fmt.Errorf("train: creating staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	vocabPath := opts.VocabPath
	if vocabPath == "" {
		vocabPath = filepath.Join(staging, "vocab.txt")
	}
	lmPath := filepath.Join(staging, "language_model.arpa")

	convertOpts := lm.ConvertOptions{
		VocabPath:     vocabPath,
		ModelFSTPath:  opts.LanguageModelFSTPath,
		BaseFSTPath:   opts.BaseLanguageModelFSTPath,
		BaseFSTWeight: opts.BaseLanguageModelWeight,
		MergeFSTPath:  opts.MixedLanguageModelFSTPath,
	}

	log.Debug("converting intent graph to ARPA language model", "mixing", convertOpts.Mixing())
	if err := converter.GraphToARPA(ctx, graph, lmPath, convertOpts); err != nil {
		return nil, fmt.Errorf("train: converting graph: %w", err)
	}

	vocabulary, err := readVocabulary(vocabPath)
	if err != nil {
		return nil, err
	}

	if convertOpts.Mixing() {
		for word := range opts.Pronunciations {
			vocabulary[word] = true
		}
		if opts.BaseModelWords == BaseWordsGuess {
			words, err := lm.ReadARPAVocabularyFile(lmPath)
			if err != nil {
				return nil, fmt.Errorf("train: reading mixed model: %w", err)
			}
			for _, w := range words {
				vocabulary[w] = true
			}
		}
	}

	if len(vocabulary) == 0 {
		return nil, ErrEmptyVocabulary
	}

	words := make([]string, 0, len(vocabulary))
	for w := range vocabulary {
		words = append(words, w)
	}

	dictPath := filepath.Join(staging, "dictionary.txt")
	f, err := os.Create(dictPath)
	if err != nil {
		return nil, fmt.Errorf("train: creating dictionary: %w", err)
	}
	log.Debug("writing pronunciation dictionary", "words", len(words))
	written, err := dictionary.Write(ctx, f, words, opts.Pronunciations, dictionary.WriteOptions{
		DictionaryCasing: opts.DictionaryCasing,
		G2PCasing:        opts.G2PCasing,
		Guesser:          guesser,
		MissingWordsPath: opts.MissingWordsPath,
	})
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	if err := promote(
		artifact{src: dictPath, dest: opts.DictionaryPath},
		artifact{src: lmPath, dest: opts.LanguageModelPath},
	); err != nil {
		return nil, err
	}
	log.Debug("wrote artifacts", "dictionary", opts.DictionaryPath, "language_model", opts.LanguageModelPath)

	log.Info("training complete",
		"words", written.Words,
		"guessed", len(written.Guessed),
		"missing", len(written.Missing))

	return &Result{
		RunID:   runID,
		Words:   written.Words,
		Guessed: written.Guessed,
		Missing: written.Missing,
	}, nil
}

// readVocabulary loads one word per line, ignoring blank lines.
func readVocabulary(path string) (map[string]bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("train: vocabulary: %w", err)
	}
	defer f.Close()

	vocabulary := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if w := strings.TrimSpace(scanner.Text()); w != "" {
			vocabulary[w] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("train: vocabulary: %w", err)
	}
	return vocabulary, nil
}

// artifact is a staged file and the path it replaces.
type artifact struct {
	src, dest string
}

func (a artifact) tmp() string    { return a.dest + ".tmp" }
func (a artifact) backup() string { return a.dest + ".bak" }

// promote replaces every dest with its src, or none of them. All sources are
// first copied next to their destinations; only then are they renamed into
// place, and a failed rename restores the destinations already replaced.
func promote(artifacts ...artifact) error {
	removeTmps := func() {
		for _, a := range artifacts {
			os.Remove(a.tmp())
		}
	}

	for _, a := range artifacts {
		if err := os.MkdirAll(filepath.Dir(a.dest), 0o755); err != nil {
			removeTmps()
			return fmt.Errorf("train: creating %s: %w", filepath.Dir(a.dest), err)
		}
		if info, err := os.Stat(a.dest); err == nil && !info.Mode().IsRegular() {
			removeTmps()
			return fmt.Errorf("train: replacing %s: not a regular file", a.dest)
		}
		if err := copyFile(a.src, a.tmp()); err != nil {
			removeTmps()
			return fmt.Errorf("train: staging %s: %w", a.dest, err)
		}
	}

	// backedUp[i] is true when artifacts[i] had a previous version moved
	// aside to its backup path.
	backedUp := make([]bool, len(artifacts))
	rollback := func(n int) {
		for i := n - 1; i >= 0; i-- {
			a := artifacts[i]
			os.Remove(a.dest)
			if backedUp[i] {
				os.Rename(a.backup(), a.dest)
			}
		}
		removeTmps()
	}

	for i, a := range artifacts {
		if _, err := os.Stat(a.dest); err == nil {
			if err := os.Rename(a.dest, a.backup()); err != nil {
				rollback(i)
				return fmt.Errorf("train: replacing %s: %w", a.dest, err)
			}
			backedUp[i] = true
		}
		if err := os.Rename(a.tmp(), a.dest); err != nil {
			if backedUp[i] {
				os.Rename(a.backup(), a.dest)
				backedUp[i] = false
			}
			rollback(i)
			return fmt.Errorf("train: replacing %s: %w", a.dest, err)
		}
	}

	for i, a := range artifacts {
		if backedUp[i] {
			os.Remove(a.backup())
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
