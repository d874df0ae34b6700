package lm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// Defaults for the built-in converter.
const (
	DefaultOrder        = 3
	DefaultMaxSentences = 100000
)

// ErrMixingUnsupported is returned by converters that cannot mix in a base
// language model.
var ErrMixingUnsupported = errors.New("lm: language model mixing is not supported by this converter")

// ConvertOptions are the optional outputs and inputs of a conversion.
type ConvertOptions struct {
	// VocabPath receives the model's words, one per line, sorted.
	VocabPath string
	// ModelFSTPath receives the intermediate model FST, if the converter has one.
	ModelFSTPath string
	// BaseFSTPath is a base language model FST to mix in.
	BaseFSTPath string
	// BaseFSTWeight is the weight of the base model. Mixing happens only
	// when BaseFSTPath is set and the weight is positive.
	BaseFSTWeight float64
	// MergeFSTPath receives the mixed model FST.
	MergeFSTPath string
}

// Mixing reports whether a base model is mixed in.
func (o ConvertOptions) Mixing() bool {
	return o.BaseFSTPath != "" && o.BaseFSTWeight > 0
}

// Converter turns an intent graph into an ARPA language model file.
type Converter interface {
	GraphToARPA(ctx context.Context, g *Graph, arpaPath string, opts ConvertOptions) error
}

// NativeConverter builds a Witten-Bell N-gram model from the sentences of
// the graph without external tools. It cannot mix language models.
type NativeConverter struct {
	Order        int // defaults to DefaultOrder
	MaxSentences int // 0 uses DefaultMaxSentences; negative means no limit
}

func (c NativeConverter) sentenceLimit() int {
	switch {
	case c.MaxSentences == 0:
		return DefaultMaxSentences
	case c.MaxSentences < 0:
		return 0
	default:
		return c.MaxSentences
	}
}

// GraphToARPA implements Converter.
func (c NativeConverter) GraphToARPA(ctx context.Context, g *Graph, arpaPath string, opts ConvertOptions) error {
	if opts.Mixing() {
		return ErrMixingUnsupported
	}
	if opts.ModelFSTPath != "" {
		slog.Warn("native converter does not produce a model FST", "path", opts.ModelFSTPath)
	}

	order := c.Order
	if order <= 0 {
		order = DefaultOrder
	}
	sentences, err := g.Sentences(ctx, c.sentenceLimit())
	if err != nil {
		return err
	}

	b := NewBuilder(order)
	for _, s := range sentences {
		b.AddSentence(s)
	}
	slog.Debug("built language model", "sentences", len(sentences), "order", b.Order(), "words", len(b.Words()))

	f, err := os.Create(arpaPath)
	if err != nil {
		return fmt.Errorf("lm: creating ARPA file: %w", err)
	}
	if err := b.WriteARPA(f); err != nil {
		f.Close()
		return fmt.Errorf("lm: writing ARPA file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("lm: writing ARPA file: %w", err)
	}

	if opts.VocabPath != "" {
		if err := writeVocabulary(opts.VocabPath, b.Words()); err != nil {
			return err
		}
	}
	return nil
}
