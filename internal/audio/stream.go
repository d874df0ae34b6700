package audio

import (
	"context"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVStream reads a WAV file incrementally as fixed-size PCM16 chunks.
type WAVStream struct {
	dec      *wav.Decoder
	buf      *goaudio.IntBuffer
	bitDepth int
	format   Format
}

// NewWAVStream positions r at the start of the PCM data. Each chunk holds
// framesPerChunk frames (all channels interleaved).
func NewWAVStream(r io.ReadSeeker, framesPerChunk int) (*WAVStream, error) {
	if framesPerChunk <= 0 {
		return nil, fmt.Errorf("frames per chunk must be > 0, got %d", framesPerChunk)
	}

	// FwdToPCM reads the headers as it goes, so no seeking back is needed.
	dec := wav.NewDecoder(r)
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}
	if err := checkPCM(dec.WavAudioFormat); err != nil {
		return nil, err
	}
	if dec.BitDepth < 8 {
		return nil, fmt.Errorf("%w: bit depth %d", ErrInvalidWAV, dec.BitDepth)
	}

	channels := int(dec.NumChans)
	if channels <= 0 {
		channels = 1
	}
	rate := int(dec.SampleRate)
	if rate <= 0 {
		return nil, fmt.Errorf("%w: sample rate is zero", ErrInvalidWAV)
	}

	return &WAVStream{
		dec: dec,
		buf: &goaudio.IntBuffer{
			Format: &goaudio.Format{NumChannels: channels, SampleRate: rate},
			Data:   make([]int, framesPerChunk*channels),
		},
		bitDepth: int(dec.BitDepth),
		format: Format{
			SampleRate:  rate,
			SampleWidth: SampleWidth,
			Channels:    channels,
		},
	}, nil
}

// Format is the format of the chunks produced by Next. Samples are always
// rescaled to 16 bits; channels are left interleaved.
func (s *WAVStream) Format() Format {
	return s.format
}

// Next returns the next chunk, or io.EOF once the PCM data is exhausted.
func (s *WAVStream) Next() ([]byte, error) {
	n, err := s.dec.PCMBuffer(s.buf)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading pcm: %w", err)
	}
	if n == 0 {
		return nil, io.EOF
	}

	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = toInt16(s.buf.Data[i], s.bitDepth)
	}
	return Int16ToBytes(samples), nil
}

// Pump sends every chunk to out and closes it. Cancelling ctx stops reading
// early, which ends the utterance with whatever was sent so far.
func (s *WAVStream) Pump(ctx context.Context, out chan<- []byte) error {
	defer close(out)
	for {
		chunk, err := s.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		select {
		case out <- chunk:
		case <-ctx.Done():
			return nil
		}
	}
}
