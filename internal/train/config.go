package train

import (
	"fmt"

	"github.com/chaz8081/sphinxasr/internal/config"
	"github.com/chaz8081/sphinxasr/internal/dictionary"
	"github.com/chaz8081/sphinxasr/internal/lm"
)

// FromConfig builds Options for the configured decoder artifacts. Base
// dictionaries that do not exist are skipped.
func FromConfig(cfg *config.Config) (Options, error) {
	tc := cfg.Train

	dictCasing, err := dictionary.ParseCasing(tc.DictionaryCasing)
	if err != nil {
		return Options{}, fmt.Errorf("train: dictionary casing: %w", err)
	}
	g2pCasing, err := dictionary.ParseCasing(tc.G2PCasing)
	if err != nil {
		return Options{}, fmt.Errorf("train: g2p casing: %w", err)
	}
	baseWords, err := ParseBaseModelWords(tc.BaseModelWords)
	if err != nil {
		return Options{}, fmt.Errorf("train: %w", err)
	}

	prons, err := dictionary.LoadFiles(tc.BaseDictionaries)
	if err != nil {
		return Options{}, fmt.Errorf("train: base dictionaries: %w", err)
	}

	var converter lm.Converter
	switch tc.Converter {
	case "", "native":
		// max_sentences 0 turns the limit off.
		maxSentences := tc.MaxSentences
		if maxSentences == 0 {
			maxSentences = -1
		}
		converter = lm.NativeConverter{Order: tc.NgramOrder, MaxSentences: maxSentences}
	case "opengrm":
		converter = &lm.OpengrmConverter{Order: tc.NgramOrder}
	default:
		return Options{}, fmt.Errorf("train: unknown converter %q (supported: native, opengrm)", tc.Converter)
	}

	return Options{
		DictionaryPath:            cfg.Decoder.Dictionary,
		LanguageModelPath:         cfg.Decoder.LanguageModel,
		Pronunciations:            prons,
		DictionaryCasing:          dictCasing,
		G2PModelPath:              tc.G2PModel,
		G2PCasing:                 g2pCasing,
		MissingWordsPath:          tc.MissingWords,
		VocabPath:                 tc.Vocab,
		LanguageModelFSTPath:      tc.LanguageModelFST,
		BaseLanguageModelFSTPath:  tc.BaseLanguageModelFST,
		BaseLanguageModelWeight:   tc.BaseLanguageModelWeight,
		MixedLanguageModelFSTPath: tc.MixedLanguageModelFST,
		BaseModelWords:            baseWords,
		Converter:                 converter,
	}, nil
}
