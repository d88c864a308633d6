package audio

import (
	"fmt"
	"io"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Decode reads a WAV stream into a Buffer. The source string is recorded
// as the buffer's source descriptor.
func Decode(r io.ReadSeeker, source string) (*Buffer, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: %s is not a valid WAV file", ErrDecode, source)
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrDecode, source, err)
	}
	if len(pcm.Data) == 0 {
		return nil, fmt.Errorf("%w (source %q)", ErrEmptyAudio, source)
	}

	bitDepth := pcm.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(dec.BitDepth)
	}
	if bitDepth == 0 {
		bitDepth = 16
	}
	scale := float32(int64(1) << (bitDepth - 1))

	samples := make([]float32, len(pcm.Data))
	for i, s := range pcm.Data {
		samples[i] = float32(s) / scale
	}

	buf, err := NewBuffer(pcm.Format.SampleRate, pcm.Format.NumChannels, samples, source)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// DecodeFile reads a WAV file from disk into a Buffer.
func DecodeFile(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrDecode, path, err)
	}
	defer f.Close()
	return Decode(f, path)
}

// Encode writes the buffer as 16-bit PCM WAV.
func Encode(b *Buffer, w io.WriteSeeker) error {
	enc := wav.NewEncoder(w, b.sampleRate, 16, b.channels, 1)

	data := make([]int, len(b.samples))
	for i, s := range b.samples {
		v := math.Round(float64(s) * 32767)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		data[i] = int(v)
	}

	pcm := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: b.channels, SampleRate: b.sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(pcm); err != nil {
		return fmt.Errorf("audio: encoding WAV: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("audio: finalizing WAV: %w", err)
	}
	return nil
}

// EncodeFile writes the buffer to a WAV file at path.
func EncodeFile(b *Buffer, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audio: creating %s: %w", path, err)
	}
	defer f.Close()
	return Encode(b, f)
}
