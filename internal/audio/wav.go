// Package audio decodes WAV input and captures microphone audio as 16-bit
// PCM, the only sample format the decoder accepts.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// SampleWidth is the byte width of one PCM16 sample.
const SampleWidth = 2

// ErrInvalidWAV is returned for input that is not a readable PCM WAV file.
var ErrInvalidWAV = errors.New("invalid wav data")

// Format describes raw PCM audio.
type Format struct {
	SampleRate  int `json:"sample_rate"`
	SampleWidth int `json:"sample_width"` // bytes per sample
	Channels    int `json:"channels"`
}

// PCM is decoded WAV audio down-mixed to mono 16-bit samples.
type PCM struct {
	Samples    []int16
	SampleRate int
	Channels   int // channel count of the source file
	Frames     int
}

// Seconds is the duration of the source audio: frames / rate.
func (p *PCM) Seconds() float64 {
	if p.SampleRate <= 0 {
		return 0
	}
	return float64(p.Frames) / float64(p.SampleRate)
}

// DecodeWAV decodes an in-memory WAV file.
func DecodeWAV(b []byte) (*PCM, error) {
	dec := wav.NewDecoder(bytes.NewReader(b))
	if !dec.IsValidFile() {
		return nil, ErrInvalidWAV
	}
	if err := checkPCM(dec.WavAudioFormat); err != nil {
		return nil, err
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}
	if buf == nil {
		return nil, fmt.Errorf("%w: no pcm data", ErrInvalidWAV)
	}

	rate := int(dec.SampleRate)
	if rate == 0 && buf.Format != nil {
		rate = buf.Format.SampleRate
	}
	if rate <= 0 {
		return nil, fmt.Errorf("%w: sample rate is zero", ErrInvalidWAV)
	}

	channels := int(dec.NumChans)
	if channels <= 0 {
		channels = 1
	}
	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = int(dec.BitDepth)
	}

	frames := len(buf.Data) / channels
	return &PCM{
		Samples:    downmix(buf.Data, channels, bitDepth),
		SampleRate: rate,
		Channels:   channels,
		Frames:     frames,
	}, nil
}

// WAV format tags accepted as integer PCM.
const (
	formatPCM        = 1
	formatExtensible = 0xFFFE
)

// checkPCM rejects compressed and floating point WAV data.
func checkPCM(format uint16) error {
	if format != formatPCM && format != formatExtensible {
		return fmt.Errorf("%w: audio format %d is not integer PCM", ErrInvalidWAV, format)
	}
	return nil
}

// downmix averages interleaved channels into one and rescales to 16 bits.
func downmix(data []int, channels, bitDepth int) []int16 {
	frames := len(data) / channels
	out := make([]int16, frames)
	for i := 0; i < frames; i++ {
		sum := 0
		for c := 0; c < channels; c++ {
			sum += data[i*channels+c]
		}
		out[i] = toInt16(sum/channels, bitDepth)
	}
	return out
}

// toInt16 rescales a sample of the given bit depth to 16 bits.
// 8-bit WAV is unsigned, everything else is signed.
func toInt16(v, bitDepth int) int16 {
	switch {
	case bitDepth == 8:
		return int16((v - 128) << 8)
	case bitDepth > 16:
		return int16(v >> (bitDepth - 16))
	default:
		return int16(v)
	}
}

// Int16ToBytes encodes samples as little-endian PCM16.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*SampleWidth)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*SampleWidth:], uint16(s))
	}
	return out
}

// BytesToInt16 decodes little-endian PCM16. A trailing odd byte is ignored.
func BytesToInt16(b []byte) []int16 {
	out := make([]int16, len(b)/SampleWidth)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*SampleWidth:]))
	}
	return out
}

// EncodeWAV writes mono PCM16 samples as a WAV file to w.
func EncodeWAV(w io.WriteSeeker, samples []int16, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, 16, 1, 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("writing wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("closing wav: %w", err)
	}
	return nil
}
