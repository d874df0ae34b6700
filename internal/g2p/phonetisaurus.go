// Package g2p guesses word pronunciations with a Phonetisaurus
// grapheme-to-phoneme model.
package g2p

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/chaz8081/sphinxasr/internal/dictionary"
)

// DefaultCommand is the Phonetisaurus binary looked up in PATH.
const DefaultCommand = "phonetisaurus-apply"

// Phonetisaurus runs phonetisaurus-apply over a word list.
type Phonetisaurus struct {
	ModelPath  string
	Command    string // defaults to DefaultCommand
	NumGuesses int    // pronunciations per word, defaults to 1
}

// New returns a guesser for the FST model at modelPath.
func New(modelPath string) *Phonetisaurus {
	return &Phonetisaurus{ModelPath: modelPath}
}

// Guess returns up to NumGuesses pronunciations for each word. Words the
// model produced nothing for are absent from the result.
func (p *Phonetisaurus) Guess(ctx context.Context, words []string) (dictionary.Pronunciations, error) {
	if len(words) == 0 {
		return dictionary.Pronunciations{}, nil
	}

	command := p.Command
	if command == "" {
		command = DefaultCommand
	}
	if _, err := exec.LookPath(command); err != nil {
		return nil, fmt.Errorf("g2p: %s not found in PATH: %w", command, err)
	}
	if _, err := os.Stat(p.ModelPath); err != nil {
		return nil, fmt.Errorf("g2p: model: %w", err)
	}

	wordList, err := os.CreateTemp("", "g2p-words-*.txt")
	if err != nil {
		return nil, fmt.Errorf("g2p: creating word list: %w", err)
	}
	defer os.Remove(wordList.Name())

	for _, w := range words {
		fmt.Fprintln(wordList, w)
	}
	if err := wordList.Close(); err != nil {
		return nil, fmt.Errorf("g2p: writing word list: %w", err)
	}

	nbest := p.NumGuesses
	if nbest <= 0 {
		nbest = 1
	}
	args := []string{
		"--model", p.ModelPath,
		"--word_list", wordList.Name(),
		"--nbest", strconv.Itoa(nbest),
	}

	slog.Debug("running g2p", "command", command, "words", len(words), "nbest", nbest)
	cmd := exec.CommandContext(ctx, command, args...) //nolint:gosec // command comes from configuration
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("g2p: %s: %w: %s", command, err, strings.TrimSpace(stderr.String()))
	}

	return parseOutput(&stdout)
}

// parseOutput reads "word<TAB>phonemes" lines. Output that includes a score
// column ("word<TAB>score<TAB>phonemes") is accepted too.
func parseOutput(r io.Reader) (dictionary.Pronunciations, error) {
	prons := make(dictionary.Pronunciations)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			continue
		}
		phonemes := strings.Fields(parts[len(parts)-1])
		if len(phonemes) == 0 {
			continue
		}
		prons.Add(strings.TrimSpace(parts[0]), phonemes)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("g2p: reading output: %w", err)
	}
	return prons, nil
}
