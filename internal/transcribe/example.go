package transcribe

import (
	"context"
	"time"

	"github.com/scribepipe/scribepipe/internal/audio"
)

// ExampleRunner is a dummy runner that emits a fixed text after a number of
// delayed steps. It exercises the full job pipeline (progress reporting,
// cancellation checkpoints, delivery) without loading a model, which makes
// it useful for demos and smoke tests.
type ExampleRunner struct {
	// Steps is the number of progress ticks before the result is returned.
	Steps int
	// StepDelay is the pause between ticks.
	StepDelay time.Duration
	// Text is the result handed to the sink.
	Text string
}

// EstimateDuration predicts the wall time of Run.
func (r *ExampleRunner) EstimateDuration(*audio.Buffer) time.Duration {
	return time.Duration(r.Steps) * r.StepDelay
}

// Run waits out the configured steps, checking cancellation at each one.
func (r *ExampleRunner) Run(ctx context.Context, _ *audio.Buffer, progress func(float64)) (string, error) {
	if progress == nil {
		progress = func(float64) {}
	}
	steps := r.Steps
	if steps < 1 {
		steps = 1
	}
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if r.StepDelay > 0 {
			timer := time.NewTimer(r.StepDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", ctx.Err()
			case <-timer.C:
			}
		}
		progress(float64(i+1) / float64(steps+1))
	}
	return r.Text, nil
}

// Close is a no-op; the example runner holds no resources.
func (r *ExampleRunner) Close() error { return nil }
