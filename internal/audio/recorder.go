package audio

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"
)

// chunkBacklog is how many captured chunks may queue before capture drops audio.
const chunkBacklog = 256

// Recorder captures mono PCM16 audio from the default microphone and
// delivers it as raw chunks, ready for streaming transcription.
type Recorder struct {
	ctx        *malgo.AllocatedContext
	device     *malgo.Device
	sampleRate uint32

	mu        sync.Mutex
	chunks    chan []byte
	recording bool
	dropped   int
}

// NewRecorder creates a new audio recorder. Call Close() when done.
func NewRecorder(sampleRate uint32) (*Recorder, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing audio context: %w", err)
	}

	return &Recorder{
		ctx:        ctx,
		sampleRate: sampleRate,
	}, nil
}

// Format is the format of the chunks produced by the recorder.
func (r *Recorder) Format() Format {
	return Format{
		SampleRate:  int(r.sampleRate),
		SampleWidth: SampleWidth,
		Channels:    1,
	}
}

// Start begins capturing audio. The returned channel receives chunks until
// Stop or Close is called, then it is closed.
func (r *Recorder) Start() (<-chan []byte, error) {
	r.mu.Lock()
	if r.recording {
		r.mu.Unlock()
		return nil, fmt.Errorf("already recording")
	}
	chunks := make(chan []byte, chunkBacklog)
	r.chunks = chunks
	r.dropped = 0
	r.recording = true
	r.mu.Unlock()

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatS16
	deviceCfg.Capture.Channels = 1
	deviceCfg.SampleRate = r.sampleRate

	callbacks := malgo.DeviceCallbacks{
		Data: r.onData,
	}

	device, err := malgo.InitDevice(r.ctx.Context, deviceCfg, callbacks)
	if err != nil {
		r.abort()
		return nil, fmt.Errorf("initializing capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		r.abort()
		return nil, fmt.Errorf("starting capture device: %w", err)
	}

	r.mu.Lock()
	r.device = device
	r.mu.Unlock()

	return chunks, nil
}

// Stop ends the capture and closes the chunk channel.
func (r *Recorder) Stop() {
	r.mu.Lock()
	device := r.device
	r.device = nil
	r.mu.Unlock()

	// Uninit waits for in-flight callbacks, so it must run without the lock.
	if device != nil {
		device.Uninit()
	}
	r.abort()
}

// IsRecording returns whether the recorder is currently capturing audio.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Close releases all audio resources.
func (r *Recorder) Close() error {
	r.Stop()

	if r.ctx != nil {
		if err := r.ctx.Uninit(); err != nil {
			return fmt.Errorf("uninitializing audio context: %w", err)
		}
		r.ctx.Free()
		r.ctx = nil
	}

	return nil
}

// abort marks the recorder idle and closes the chunk channel once.
func (r *Recorder) abort() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return
	}
	r.recording = false
	close(r.chunks)
	if r.dropped > 0 {
		slog.Warn("audio chunks dropped during capture", "count", r.dropped)
	}
}

// onData is the malgo callback invoked when audio data is available.
// pSample holds frameCount little-endian int16 frames.
func (r *Recorder) onData(_, pSample []byte, frameCount uint32) {
	n := int(frameCount) * SampleWidth
	if n > len(pSample) {
		n = len(pSample)
	}
	chunk := make([]byte, n)
	copy(chunk, pSample[:n])

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return
	}
	select {
	case r.chunks <- chunk:
	default:
		r.dropped++
	}
}
