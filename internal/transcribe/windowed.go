package transcribe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/scribepipe/scribepipe/internal/audio"
)

// Stitching constants for windowed transcripts.
const (
	overlapMergeThreshold = 0.9
	maxOverlapChars       = 1000
)

// realtimeFactor is a rough model-speed guess used for duration estimates:
// transcription takes about a third of the audio length.
const realtimeFactor = 0.35

// WindowedConfig holds the tunable parameters of a WindowedRunner.
type WindowedConfig struct {
	// MaxWindowSeconds caps how much audio is fed to the model per call.
	MaxWindowSeconds float64
	// OverlapRatio is the overlap between consecutive windows, in [0, 0.99].
	OverlapRatio float64
	// AmplitudeRatio scales the normalized audio before inference.
	AmplitudeRatio float64
}

// DefaultWindowedConfig returns the stock windowing parameters.
func DefaultWindowedConfig() WindowedConfig {
	return WindowedConfig{
		MaxWindowSeconds: 60,
		OverlapRatio:     0.05,
		AmplitudeRatio:   1,
	}
}

// WindowedRunner runs a Model over a clip in overlapping windows, observing
// cancellation between windows and stitching the window transcripts with
// fuzzy overlap merging.
type WindowedRunner struct {
	model Model
	cfg   WindowedConfig
}

// NewWindowedRunner wraps model with the given windowing parameters.
// The runner owns the model handle and closes it with Close.
func NewWindowedRunner(model Model, cfg WindowedConfig) (*WindowedRunner, error) {
	if model == nil {
		return nil, fmt.Errorf("transcribe: nil model")
	}
	if cfg.MaxWindowSeconds <= 0 {
		return nil, fmt.Errorf("transcribe: max window seconds must be > 0, got %g", cfg.MaxWindowSeconds)
	}
	if cfg.OverlapRatio < 0 || cfg.OverlapRatio > 0.99 {
		return nil, fmt.Errorf("transcribe: overlap ratio must be in [0, 0.99], got %g", cfg.OverlapRatio)
	}
	if cfg.AmplitudeRatio <= 0 {
		return nil, fmt.Errorf("transcribe: amplitude ratio must be > 0, got %g", cfg.AmplitudeRatio)
	}
	return &WindowedRunner{model: model, cfg: cfg}, nil
}

// EstimateDuration predicts the wall time of Run from the clip length.
func (r *WindowedRunner) EstimateDuration(buf *audio.Buffer) time.Duration {
	if buf == nil {
		return 0
	}
	return time.Duration(float64(buf.Duration()) * realtimeFactor)
}

// Close releases the model handle.
func (r *WindowedRunner) Close() error {
	return r.model.Close()
}

// Run transcribes the clip. The audio is downmixed to mono, resampled to
// the model rate, normalized, and amplitude-scaled, then processed one
// window at a time. Cancellation is checked before each window; progress
// is reported per completed window and stays below 1.0.
func (r *WindowedRunner) Run(ctx context.Context, buf *audio.Buffer, progress func(float64)) (text string, err error) {
	// The model is a black box; contain its faults instead of letting a
	// panic cross the pipeline boundary.
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = fmt.Errorf("transcribe: model panicked: %v", rec)
		}
	}()

	if buf == nil || buf.Frames() == 0 {
		return "", audio.ErrEmptyAudio
	}
	if progress == nil {
		progress = func(float64) {}
	}

	prepared := buf.Mono().
		Resample(ModelSampleRate).
		Normalize().
		Scale(float32(r.cfg.AmplitudeRatio))

	frames := prepared.Frames()
	winsize := int(r.cfg.MaxWindowSeconds * ModelSampleRate)
	if winsize > frames {
		winsize = frames
	}
	overlap := int(r.cfg.OverlapRatio * float64(winsize))
	stride := winsize - overlap
	if stride < 1 {
		stride = 1
	}

	numWindows := 0
	for beg := 0; beg < frames; beg += stride {
		numWindows++
	}

	var merged string
	window := 0
	for beg := 0; beg < frames; beg += stride {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		chunk := prepared.Range(beg, beg+winsize)
		out, err := r.model.Process(chunk)
		if err != nil {
			return "", fmt.Errorf("transcribe: window %d/%d: %w", window+1, numWindows, err)
		}

		out = strings.TrimSpace(out)
		switch {
		case merged == "":
			merged = out
		case out != "":
			joined, match, _ := mergeOverlappingStrings(merged, out, overlapMergeThreshold, maxOverlapChars)
			if match == 0 {
				// No shared boundary text. Disjoint windows are joined
				// with a space, not concatenated, so the word split at
				// the window edge is not fused.
				joined = merged + " " + out
			}
			merged = joined
		}

		window++
		// The final tick is owned by the job, not the runner.
		progress(float64(window) / float64(numWindows+1))
	}

	merged = strings.TrimSpace(merged)
	if merged == "" {
		return "", ErrNoSpeech
	}
	return merged, nil
}
