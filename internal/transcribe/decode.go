package transcribe

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/chaz8081/sphinxasr/internal/audio"
	"github.com/chaz8081/sphinxasr/internal/sphinx"
)

// TranscribeWAV recognizes a complete in-memory WAV file. Multi-channel
// audio is down-mixed and other bit depths are rescaled to 16 bits. A nil
// Transcription with a nil error means nothing was recognized.
func (t *Transcriber) TranscribeWAV(wav []byte) (*Transcription, error) {
	start := time.Now()

	pcm, err := audio.DecodeWAV(wav)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	dec, err := t.decoderLocked()
	if err != nil {
		return nil, err
	}

	if err := dec.StartUtt(); err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	if err := dec.ProcessRaw(pcm.Samples, true); err != nil {
		_ = dec.EndUtt()
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	if err := dec.EndUtt(); err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}

	return t.result(dec, start, pcm.Seconds()), nil
}

// TranscribeStream recognizes raw 16-bit mono PCM read from chunks until the
// channel is closed. Chunks may split samples; a trailing odd byte is carried
// into the next chunk. If an error is returned before the channel closes, the
// rest of the channel is drained in the background.
func (t *Transcriber) TranscribeStream(chunks <-chan []byte, format audio.Format) (*Transcription, error) {
	start := time.Now()

	fail := func(err error) (*Transcription, error) {
		go func() {
			for range chunks {
			}
		}()
		return nil, err
	}

	if format.Channels != 1 {
		return fail(fmt.Errorf("%w: got %d channels", ErrNotMono, format.Channels))
	}
	if format.SampleWidth != audio.SampleWidth {
		return fail(fmt.Errorf("%w: got %d-byte samples", ErrSampleWidth, format.SampleWidth))
	}
	if format.SampleRate <= 0 {
		return fail(fmt.Errorf("transcribe: invalid sample rate %d", format.SampleRate))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	dec, err := t.decoderLocked()
	if err != nil {
		return fail(err)
	}
	if err := dec.StartUtt(); err != nil {
		return fail(fmt.Errorf("transcribe: %w", err))
	}

	var (
		carry   []byte
		samples int
	)
	for chunk := range chunks {
		if len(carry) > 0 {
			chunk = append(carry, chunk...)
			carry = nil
		}
		n := len(chunk) &^ 1
		if n < len(chunk) {
			carry = []byte{chunk[n]}
		}
		if n == 0 {
			continue
		}

		pcm := audio.BytesToInt16(chunk[:n])
		if err := dec.ProcessRaw(pcm, false); err != nil {
			_ = dec.EndUtt()
			return fail(fmt.Errorf("transcribe: %w", err))
		}
		samples += len(pcm)
	}
	if len(carry) > 0 {
		t.log.Debug("dropping incomplete trailing sample")
	}

	if err := dec.EndUtt(); err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}

	seconds := float64(samples) / float64(format.SampleRate)
	return t.result(dec, start, seconds), nil
}

// result reads the hypothesis of the utterance that just ended.
func (t *Transcriber) result(dec engine, start time.Time, wavSeconds float64) *Transcription {
	text, logProb, ok := dec.Hypothesis()
	text = strings.TrimSpace(text)
	if !ok || text == "" {
		t.log.Debug("no hypothesis", "wav_seconds", wavSeconds)
		return nil
	}

	segments := dec.Segments()
	tokens := make([]Token, 0, len(segments))
	for _, seg := range segments {
		tokens = append(tokens, Token{
			Token:      seg.Word,
			StartTime:  float64(seg.StartFrame) / sphinx.FramesPerSecond,
			EndTime:    float64(seg.EndFrame) / sphinx.FramesPerSecond,
			Likelihood: clamp(dec.Exp(seg.LogProb)),
		})
	}

	tr := &Transcription{
		Text:              text,
		Likelihood:        clamp(dec.Exp(logProb)),
		TranscribeSeconds: time.Since(start).Seconds(),
		WAVSeconds:        wavSeconds,
		Tokens:            tokens,
	}
	t.log.Debug("transcribed", "text", tr.Text, "likelihood", tr.Likelihood, "wav_seconds", wavSeconds)
	return tr
}

// clamp limits a probability to [0, 1].
func clamp(p float64) float64 {
	switch {
	case math.IsNaN(p) || p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}
