package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	LogLevel string        `yaml:"log_level"`
	Debug    bool          `yaml:"debug"` // decoder logging
	Decoder  DecoderConfig `yaml:"decoder"`
	Audio    AudioConfig   `yaml:"audio"`
	Train    TrainConfig   `yaml:"train"`
	Server   ServerConfig  `yaml:"server"`
}

// DecoderConfig locates the Pocketsphinx models.
type DecoderConfig struct {
	AcousticModel string `yaml:"acoustic_model"`
	Dictionary    string `yaml:"dictionary"`
	LanguageModel string `yaml:"language_model"`
	MLLRMatrix    string `yaml:"mllr_matrix"`
}

// AudioConfig holds capture and streaming settings.
type AudioConfig struct {
	SampleRate  uint32 `yaml:"sample_rate"`
	ChunkFrames int    `yaml:"chunk_frames"` // frames per streamed chunk
}

// TrainConfig holds dictionary and language model generation settings.
type TrainConfig struct {
	IntentGraph      string   `yaml:"intent_graph"`
	BaseDictionaries []string `yaml:"base_dictionaries"`
	DictionaryCasing string   `yaml:"dictionary_casing"` // "ignore", "upper" or "lower"
	G2PModel         string   `yaml:"g2p_model"`
	G2PCasing        string   `yaml:"g2p_casing"`
	MissingWords     string   `yaml:"missing_words"`
	Vocab            string   `yaml:"vocab"`

	LanguageModelFST        string  `yaml:"language_model_fst"`
	BaseLanguageModelFST    string  `yaml:"base_language_model_fst"`
	BaseLanguageModelWeight float64 `yaml:"base_language_model_weight"`
	MixedLanguageModelFST   string  `yaml:"mixed_language_model_fst"`
	BaseModelWords          string  `yaml:"base_model_words"` // "drop" or "guess"

	Converter    string `yaml:"converter"` // "native" or "opengrm"
	NgramOrder   int    `yaml:"ngram_order"`
	MaxSentences int    `yaml:"max_sentences"` // 0 means no limit
}

// ServerConfig holds HTTP service settings.
type ServerConfig struct {
	Addr  string `yaml:"addr"`
	Watch bool   `yaml:"watch"` // reload the decoder when model files change
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "sphinxasr")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultDataDir returns where trained models live by default.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "sphinxasr")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	data := DefaultDataDir()

	return &Config{
		LogLevel: "info",
		Decoder: DecoderConfig{
			AcousticModel: filepath.Join(data, "acoustic_model"),
			Dictionary:    filepath.Join(data, "dictionary.txt"),
			LanguageModel: filepath.Join(data, "language_model.txt"),
			MLLRMatrix:    filepath.Join(data, "mllr_matrix"),
		},
		Audio: AudioConfig{
			SampleRate:  16000,
			ChunkFrames: 1024,
		},
		Train: TrainConfig{
			IntentGraph:      filepath.Join(data, "intent_graph.json"),
			BaseDictionaries: []string{filepath.Join(data, "base_dictionary.txt")},
			DictionaryCasing: "ignore",
			G2PCasing:        "ignore",
			BaseModelWords:   "drop",
			Converter:        "native",
			NgramOrder:       3,
			MaxSentences:     100000,
		},
		Server: ServerConfig{
			Addr:  "127.0.0.1:12101",
			Watch: true,
		},
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. A leading tilde (~) in any path is expanded to the user's
// home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.ExpandPaths()
	return cfg, nil
}

// ExpandPaths expands a leading tilde in every path setting.
func (c *Config) ExpandPaths() {
	for _, p := range []*string{
		&c.Decoder.AcousticModel,
		&c.Decoder.Dictionary,
		&c.Decoder.LanguageModel,
		&c.Decoder.MLLRMatrix,
		&c.Train.IntentGraph,
		&c.Train.G2PModel,
		&c.Train.MissingWords,
		&c.Train.Vocab,
		&c.Train.LanguageModelFST,
		&c.Train.BaseLanguageModelFST,
		&c.Train.MixedLanguageModelFST,
	} {
		*p = expandTilde(*p)
	}
	for i, p := range c.Train.BaseDictionaries {
		c.Train.BaseDictionaries[i] = expandTilde(p)
	}
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Decoder.AcousticModel == "" {
		return fmt.Errorf("decoder.acoustic_model must not be empty")
	}
	if c.Decoder.Dictionary == "" {
		return fmt.Errorf("decoder.dictionary must not be empty")
	}
	if c.Decoder.LanguageModel == "" {
		return fmt.Errorf("decoder.language_model must not be empty")
	}

	if c.Audio.SampleRate == 0 {
		return fmt.Errorf("audio.sample_rate must be > 0")
	}
	if c.Audio.ChunkFrames <= 0 {
		return fmt.Errorf("audio.chunk_frames must be > 0")
	}

	for name, casing := range map[string]string{
		"train.dictionary_casing": c.Train.DictionaryCasing,
		"train.g2p_casing":        c.Train.G2PCasing,
	} {
		switch casing {
		case "", "ignore", "upper", "lower":
		default:
			return fmt.Errorf("%s must be ignore, upper, or lower, got %q", name, casing)
		}
	}

	switch c.Train.BaseModelWords {
	case "", "drop", "guess":
	default:
		return fmt.Errorf("train.base_model_words must be \"drop\" or \"guess\", got %q", c.Train.BaseModelWords)
	}

	if c.Train.BaseLanguageModelWeight < 0 || c.Train.BaseLanguageModelWeight > 1 {
		return fmt.Errorf("train.base_language_model_weight must be between 0 and 1, got %v", c.Train.BaseLanguageModelWeight)
	}

	switch c.Train.Converter {
	case "native":
		if c.Train.BaseLanguageModelFST != "" && c.Train.BaseLanguageModelWeight > 0 {
			return fmt.Errorf("train.converter \"native\" cannot mix language models; use \"opengrm\"")
		}
	case "opengrm":
	default:
		return fmt.Errorf("train.converter must be \"native\" or \"opengrm\", got %q", c.Train.Converter)
	}

	if c.Train.NgramOrder < 1 || c.Train.NgramOrder > 3 {
		return fmt.Errorf("train.ngram_order must be 1, 2, or 3, got %d", c.Train.NgramOrder)
	}
	if c.Train.MaxSentences < 0 {
		return fmt.Errorf("train.max_sentences must be >= 0")
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// ParseLogLevel maps a log_level value to a slog level, defaulting to info.
func ParseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WriteDefault writes the default config to DefaultConfigPath and returns
// the path written. If a config file already exists it is left alone and
// WriteDefault returns "".
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}

	header := "# sphinxasr configuration\n# See `sphinxasr init-config -h` for details.\n\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0o644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
