// Package audio provides immutable PCM clips, WAV decode/encode, and
// microphone capture.
//
// A Buffer is created by decoding a file or finalizing a recording and is
// never mutated afterwards, so it can be shared freely between the
// interactive loop and worker goroutines without locking. Derivations
// (downmix, resample, normalize) always return a new Buffer.
package audio

import (
	"errors"
	"fmt"
	"time"
)

// SourceRecorded is the source descriptor for buffers produced by the Recorder.
const SourceRecorded = "recorded"

var (
	// ErrDecode indicates the source format is unsupported or corrupt.
	ErrDecode = errors.New("audio: decode failed")

	// ErrEmptyAudio indicates the decoded clip contains zero samples.
	ErrEmptyAudio = errors.New("audio: empty audio")
)

// Buffer holds one decoded clip: channel-interleaved float32 samples plus
// format metadata. Immutable once created.
type Buffer struct {
	sampleRate int
	channels   int
	samples    []float32
	source     string
}

// NewBuffer validates and copies the given interleaved samples into a Buffer.
// The sample count must be a positive multiple of the channel count.
func NewBuffer(sampleRate, channels int, samples []float32, source string) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("audio: sample rate must be > 0, got %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("audio: channel count must be > 0, got %d", channels)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w (source %q)", ErrEmptyAudio, source)
	}
	if len(samples)%channels != 0 {
		return nil, fmt.Errorf("audio: %d samples not a multiple of %d channels", len(samples), channels)
	}
	data := make([]float32, len(samples))
	copy(data, samples)
	return &Buffer{
		sampleRate: sampleRate,
		channels:   channels,
		samples:    data,
		source:     source,
	}, nil
}

// SampleRate returns the clip's sample rate in Hz.
func (b *Buffer) SampleRate() int { return b.sampleRate }

// Channels returns the clip's channel count.
func (b *Buffer) Channels() int { return b.channels }

// Source returns the source descriptor: a file path or SourceRecorded.
func (b *Buffer) Source() string { return b.source }

// Frames returns the number of sample frames (samples per channel).
func (b *Buffer) Frames() int { return len(b.samples) / b.channels }

// Duration returns the clip length.
func (b *Buffer) Duration() time.Duration {
	secs := float64(b.Frames()) / float64(b.sampleRate)
	return time.Duration(secs * float64(time.Second))
}

// Samples returns a copy of the full interleaved sample data.
func (b *Buffer) Samples() []float32 {
	out := make([]float32, len(b.samples))
	copy(out, b.samples)
	return out
}

// Range returns a copy of the interleaved samples for frames [from, to).
// Out-of-range endpoints are clamped.
func (b *Buffer) Range(from, to int) []float32 {
	frames := b.Frames()
	if from < 0 {
		from = 0
	}
	if to > frames {
		to = frames
	}
	if from >= to {
		return nil
	}
	out := make([]float32, (to-from)*b.channels)
	copy(out, b.samples[from*b.channels:to*b.channels])
	return out
}

// Mono returns a single-channel buffer, averaging across channels.
// A buffer that is already mono is returned as-is.
func (b *Buffer) Mono() *Buffer {
	if b.channels == 1 {
		return b
	}
	frames := b.Frames()
	out := make([]float32, frames)
	for f := 0; f < frames; f++ {
		var sum float32
		base := f * b.channels
		for c := 0; c < b.channels; c++ {
			sum += b.samples[base+c]
		}
		out[f] = sum / float32(b.channels)
	}
	return &Buffer{sampleRate: b.sampleRate, channels: 1, samples: out, source: b.source}
}

// Resample returns a buffer converted to the target rate using linear
// interpolation per channel. A buffer already at the target rate is
// returned as-is.
func (b *Buffer) Resample(rate int) *Buffer {
	if rate <= 0 || rate == b.sampleRate {
		return b
	}
	inFrames := b.Frames()
	outFrames := int(float64(inFrames) * float64(rate) / float64(b.sampleRate))
	if outFrames < 1 {
		outFrames = 1
	}
	out := make([]float32, outFrames*b.channels)
	step := float64(b.sampleRate) / float64(rate)
	for f := 0; f < outFrames; f++ {
		pos := float64(f) * step
		i0 := int(pos)
		if i0 >= inFrames-1 {
			i0 = inFrames - 1
		}
		i1 := i0 + 1
		if i1 >= inFrames {
			i1 = inFrames - 1
		}
		frac := float32(pos - float64(i0))
		for c := 0; c < b.channels; c++ {
			s0 := b.samples[i0*b.channels+c]
			s1 := b.samples[i1*b.channels+c]
			out[f*b.channels+c] = s0 + (s1-s0)*frac
		}
	}
	return &Buffer{sampleRate: rate, channels: b.channels, samples: out, source: b.source}
}

// Normalize returns a buffer with zero mean and peak amplitude 1.0.
// Digital silence is returned unchanged to avoid dividing by zero.
func (b *Buffer) Normalize() *Buffer {
	var mean float64
	for _, s := range b.samples {
		mean += float64(s)
	}
	mean /= float64(len(b.samples))

	var peak float64
	for _, s := range b.samples {
		v := float64(s) - mean
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	if peak == 0 {
		return b
	}
	out := make([]float32, len(b.samples))
	for i, s := range b.samples {
		out[i] = float32((float64(s) - mean) / peak)
	}
	return &Buffer{sampleRate: b.sampleRate, channels: b.channels, samples: out, source: b.source}
}

// Scale returns a buffer with every sample multiplied by factor.
func (b *Buffer) Scale(factor float32) *Buffer {
	if factor == 1 {
		return b
	}
	out := make([]float32, len(b.samples))
	for i, s := range b.samples {
		out[i] = s * factor
	}
	return &Buffer{sampleRate: b.sampleRate, channels: b.channels, samples: out, source: b.source}
}
