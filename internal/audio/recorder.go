package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

// Recorder captures audio from the default microphone into a float32 buffer.
// Stop finalizes the capture into an immutable Buffer; Discard throws the
// partial capture away.
type Recorder struct {
	ctx        *malgo.AllocatedContext
	device     *malgo.Device
	sampleRate uint32
	channels   uint32
	maxSamples int

	mu        sync.Mutex
	buf       []float32
	recording bool
	truncated bool
}

// NewRecorder creates a new audio recorder. maxSeconds bounds the capture
// length (0 means unbounded). Call Close() when done.
func NewRecorder(sampleRate, channels uint32, maxSeconds float64) (*Recorder, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing audio context: %w", err)
	}

	maxSamples := 0
	if maxSeconds > 0 {
		maxSamples = int(maxSeconds * float64(sampleRate) * float64(channels))
	}

	return &Recorder{
		ctx:        ctx,
		sampleRate: sampleRate,
		channels:   channels,
		maxSamples: maxSamples,
	}, nil
}

// Start begins capturing audio from the default microphone.
func (r *Recorder) Start() error {
	r.mu.Lock()
	if r.recording {
		r.mu.Unlock()
		return fmt.Errorf("already recording")
	}
	r.buf = r.buf[:0] // reset buffer but keep capacity
	r.recording = true
	r.truncated = false
	r.mu.Unlock()

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatF32
	deviceCfg.Capture.Channels = r.channels
	deviceCfg.SampleRate = r.sampleRate

	callbacks := malgo.DeviceCallbacks{
		Data: r.onData,
	}

	device, err := malgo.InitDevice(r.ctx.Context, deviceCfg, callbacks)
	if err != nil {
		r.mu.Lock()
		r.recording = false
		r.mu.Unlock()
		return fmt.Errorf("initializing capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		r.mu.Lock()
		r.recording = false
		r.mu.Unlock()
		return fmt.Errorf("starting capture device: %w", err)
	}

	r.mu.Lock()
	r.device = device
	r.mu.Unlock()

	return nil
}

// Stop ends the capture and finalizes it into a Buffer with source
// SourceRecorded. Returns ErrEmptyAudio if nothing was captured, and
// reports whether the capture was truncated at the length limit.
func (r *Recorder) Stop() (*Buffer, bool, error) {
	samples, truncated := r.stopCapture()
	if len(samples) == 0 {
		return nil, truncated, fmt.Errorf("%w (source %q)", ErrEmptyAudio, SourceRecorded)
	}
	buf, err := NewBuffer(int(r.sampleRate), int(r.channels), samples, SourceRecorded)
	if err != nil {
		return nil, truncated, err
	}
	return buf, truncated, nil
}

// Discard ends the capture and drops any recorded samples.
func (r *Recorder) Discard() {
	r.stopCapture()
}

func (r *Recorder) stopCapture() ([]float32, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return nil, false
	}

	if r.device != nil {
		r.device.Uninit()
		r.device = nil
	}
	r.recording = false

	result := make([]float32, len(r.buf))
	copy(result, r.buf)
	return result, r.truncated
}

// IsRecording returns whether the recorder is currently capturing audio.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Close releases all audio resources.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.device != nil {
		r.device.Uninit()
		r.device = nil
	}
	r.recording = false
	r.mu.Unlock()

	if r.ctx != nil {
		if err := r.ctx.Uninit(); err != nil {
			return fmt.Errorf("uninitializing audio context: %w", err)
		}
		r.ctx.Free()
	}

	return nil
}

// onData is the malgo callback invoked when audio data is available.
// pSample contains the captured audio frames as raw bytes (float32 format).
func (r *Recorder) onData(_, pSample []byte, frameCount uint32) {
	sampleCount := frameCount * r.channels
	samples := bytesToFloat32(pSample, sampleCount)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.maxSamples > 0 && len(r.buf)+len(samples) > r.maxSamples {
		keep := r.maxSamples - len(r.buf)
		if keep < 0 {
			keep = 0
		}
		// Truncate on a frame boundary so interleaving stays valid.
		keep -= keep % int(r.channels)
		samples = samples[:keep]
		r.truncated = true
	}
	r.buf = append(r.buf, samples...)
}

// bytesToFloat32 converts raw bytes (little-endian float32) to a float32 slice.
func bytesToFloat32(data []byte, sampleCount uint32) []float32 {
	samples := make([]float32, 0, sampleCount)
	for i := uint32(0); i < sampleCount; i++ {
		offset := i * 4
		if offset+4 > uint32(len(data)) {
			break
		}
		bits := binary.LittleEndian.Uint32(data[offset : offset+4])
		samples = append(samples, math.Float32frombits(bits))
	}
	return samples
}
