// Package transcribe turns audio into text with a Pocketsphinx decoder.
//
// A Transcriber owns one decoder. The decoder is loaded on Open or on the
// first transcription and reused until Stop or Reload. Calls on a
// Transcriber are serialized.
package transcribe

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/chaz8081/sphinxasr/internal/audio"
	"github.com/chaz8081/sphinxasr/internal/config"
	"github.com/chaz8081/sphinxasr/internal/sphinx"
)

var (
	// ErrInvalidWAV is returned when whole-buffer input is not a PCM WAV file.
	ErrInvalidWAV = audio.ErrInvalidWAV
	// ErrNotMono is returned when streamed audio has more than one channel.
	ErrNotMono = errors.New("transcribe: only mono audio is supported")
	// ErrSampleWidth is returned when streamed audio is not 16-bit.
	ErrSampleWidth = errors.New("transcribe: only 16-bit audio is supported")
	// ErrStopped is returned by every operation after Stop.
	ErrStopped = errors.New("transcribe: transcriber is stopped")
)

// Config locates the decoder models. It is fixed for the life of a
// Transcriber.
type Config struct {
	AcousticModel string // directory
	Dictionary    string
	LanguageModel string
	MLLRMatrix    string // optional; ignored when the file does not exist
	SampleRate    int    // Hz of the audio fed to the decoder; 0 keeps the decoder default
	Debug         bool   // keep decoder logging on stderr
}

// Transcription is the best hypothesis for one utterance.
type Transcription struct {
	Text              string  `json:"text"`
	Likelihood        float64 `json:"likelihood"`
	TranscribeSeconds float64 `json:"transcribe_seconds"`
	WAVSeconds        float64 `json:"wav_seconds"`
	Tokens            []Token `json:"tokens"`
}

// Token is one recognized word with its time span in seconds.
type Token struct {
	Token      string  `json:"token"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Likelihood float64 `json:"likelihood"`
}

// engine is the part of sphinx.Decoder the transcriber drives.
type engine interface {
	StartUtt() error
	ProcessRaw(samples []int16, fullUtt bool) error
	EndUtt() error
	Hypothesis() (text string, logProb int32, ok bool)
	Segments() []sphinx.Segment
	Exp(logProb int32) float64
	Close() error
}

type openFunc func(sphinx.Config) (engine, error)

func openSphinx(cfg sphinx.Config) (engine, error) {
	d, err := sphinx.Open(cfg)
	if err != nil {
		return nil, err
	}
	return d, nil
}

type state int

const (
	stateUninitialized state = iota
	stateReady
	stateStopped
)

func (s state) String() string {
	switch s {
	case stateUninitialized:
		return "uninitialized"
	case stateReady:
		return "ready"
	case stateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Option customizes a Transcriber.
type Option func(*Transcriber)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(t *Transcriber) { t.log = l }
}

func withOpener(open openFunc) Option {
	return func(t *Transcriber) { t.open = open }
}

// Transcriber recognizes speech with a lazily loaded decoder.
type Transcriber struct {
	cfg  Config
	open openFunc
	log  *slog.Logger

	mu      sync.Mutex
	state   state
	decoder engine
}

// New creates a Transcriber. No model is loaded until Open or the first
// transcription.
func New(cfg Config, opts ...Option) *Transcriber {
	t := &Transcriber{
		cfg:  cfg,
		open: openSphinx,
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Open loads the decoder if it is not loaded yet.
func (t *Transcriber) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := t.decoderLocked()
	return err
}

// Stop releases the decoder. Later calls fail with ErrStopped. Stop is safe
// to call more than once and before Open.
func (t *Transcriber) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	err := t.closeLocked()
	t.state = stateStopped
	return err
}

// Reload releases the decoder so the next call loads the models again,
// picking up a retrained dictionary or language model. It does nothing
// after Stop.
func (t *Transcriber) Reload() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == stateStopped {
		return nil
	}
	err := t.closeLocked()
	t.state = stateUninitialized
	t.log.Debug("decoder released for reload")
	return err
}

func (t *Transcriber) closeLocked() error {
	if t.decoder == nil {
		return nil
	}
	err := t.decoder.Close()
	t.decoder = nil
	if err != nil {
		return fmt.Errorf("transcribe: closing decoder: %w", err)
	}
	return nil
}

// decoderLocked returns the loaded decoder, loading it first if needed.
func (t *Transcriber) decoderLocked() (engine, error) {
	switch t.state {
	case stateStopped:
		return nil, ErrStopped
	case stateReady:
		return t.decoder, nil
	}

	cfg := t.decoderConfig()
	t.log.Debug("loading decoder",
		"acoustic_model", cfg.AcousticModel,
		"dictionary", cfg.Dictionary,
		"language_model", cfg.LanguageModel,
		"mllr", cfg.MLLRMatrix,
		"sample_rate", cfg.SampleRate)

	dec, err := t.open(cfg)
	if err != nil {
		return nil, fmt.Errorf("transcribe: loading decoder: %w", err)
	}
	t.decoder = dec
	t.state = stateReady
	return dec, nil
}

// decoderConfig maps the configuration onto decoder options.
func (t *Transcriber) decoderConfig() sphinx.Config {
	cfg := sphinx.Config{
		AcousticModel: t.cfg.AcousticModel,
		Dictionary:    t.cfg.Dictionary,
		LanguageModel: t.cfg.LanguageModel,
	}
	if t.cfg.SampleRate > 0 {
		cfg.SampleRate = float64(t.cfg.SampleRate)
	}
	if t.cfg.MLLRMatrix != "" {
		if _, err := os.Stat(t.cfg.MLLRMatrix); err == nil {
			cfg.MLLRMatrix = t.cfg.MLLRMatrix
		} else {
			t.log.Debug("MLLR matrix not found, skipping", "path", t.cfg.MLLRMatrix)
		}
	}
	if !t.cfg.Debug {
		cfg.LogFile = os.DevNull
	}
	return cfg
}

// FromConfig creates a Transcriber for the configured decoder models.
func FromConfig(cfg *config.Config, opts ...Option) *Transcriber {
	return New(Config{
		AcousticModel: cfg.Decoder.AcousticModel,
		Dictionary:    cfg.Decoder.Dictionary,
		LanguageModel: cfg.Decoder.LanguageModel,
		MLLRMatrix:    cfg.Decoder.MLLRMatrix,
		SampleRate:    int(cfg.Audio.SampleRate),
		Debug:         cfg.Debug,
	}, opts...)
}
