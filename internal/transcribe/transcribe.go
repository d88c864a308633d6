// Package transcribe provides speech-to-text runners.
//
// A Model is the opaque pretrained speech-to-text collaborator: mono
// float32 samples at ModelSampleRate in, UTF-8 text out. A Runner wraps a
// Model with the execution contract the job pipeline needs: bounded
// cancellation checkpoints, monotone progress reporting, and panic
// containment.
package transcribe

import (
	"context"
	"errors"
	"time"

	"github.com/scribepipe/scribepipe/internal/audio"
)

// ModelSampleRate is the fixed input rate every Model expects.
const ModelSampleRate = 16000

// ErrNoSpeech indicates the model produced an empty transcript.
var ErrNoSpeech = errors.New("transcribe: no speech recognized")

// Model converts audio samples to text.
type Model interface {
	// Process transcribes mono 16kHz float32 audio samples to text.
	Process(samples []float32) (string, error)
	// Close releases backend resources.
	Close() error
}

// Runner executes one transcription backend against a clip.
//
// Run must observe ctx at least once per processed audio window and return
// ctx.Err() promptly when cancelled. Progress values passed to the callback
// are monotonically non-decreasing and stay below 1.0; completion is
// signalled by returning, not by the callback. Run never panics across the
// boundary: internal faults come back as errors.
type Runner interface {
	// EstimateDuration predicts how long Run will take for the clip.
	EstimateDuration(buf *audio.Buffer) time.Duration
	// Run transcribes the clip, reporting progress through the callback.
	Run(ctx context.Context, buf *audio.Buffer, progress func(float64)) (string, error)
	// Close releases the runner's model handle.
	Close() error
}
