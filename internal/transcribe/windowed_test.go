package transcribe

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/scribepipe/scribepipe/internal/audio"
)

// fakeModel returns scripted transcripts per window and records the
// windows it was given.
type fakeModel struct {
	outputs []string
	err     error
	panics  bool
	calls   int
	windows [][]float32
	closed  bool
}

func (m *fakeModel) Process(samples []float32) (string, error) {
	if m.panics {
		panic("model blew up")
	}
	if m.err != nil {
		return "", m.err
	}
	m.windows = append(m.windows, samples)
	out := ""
	if m.calls < len(m.outputs) {
		out = m.outputs[m.calls]
	}
	m.calls++
	return out, nil
}

func (m *fakeModel) Close() error {
	m.closed = true
	return nil
}

func toneBuffer(t *testing.T, rate, channels, frames int) *audio.Buffer {
	t.Helper()
	samples := make([]float32, frames*channels)
	for i := range samples {
		samples[i] = float32(i%7) * 0.1
	}
	b, err := audio.NewBuffer(rate, channels, samples, "test")
	if err != nil {
		t.Fatalf("NewBuffer() error = %v", err)
	}
	return b
}

func newTestRunner(t *testing.T, m Model, cfg WindowedConfig) *WindowedRunner {
	t.Helper()
	r, err := NewWindowedRunner(m, cfg)
	if err != nil {
		t.Fatalf("NewWindowedRunner() error = %v", err)
	}
	return r
}

func TestNewWindowedRunnerValidation(t *testing.T) {
	tests := []struct {
		name string
		m    Model
		cfg  WindowedConfig
	}{
		{"nil model", nil, DefaultWindowedConfig()},
		{"zero window", &fakeModel{}, WindowedConfig{MaxWindowSeconds: 0, OverlapRatio: 0.05, AmplitudeRatio: 1}},
		{"overlap too big", &fakeModel{}, WindowedConfig{MaxWindowSeconds: 60, OverlapRatio: 1, AmplitudeRatio: 1}},
		{"zero amplitude", &fakeModel{}, WindowedConfig{MaxWindowSeconds: 60, OverlapRatio: 0.05, AmplitudeRatio: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewWindowedRunner(tt.m, tt.cfg); err == nil {
				t.Error("NewWindowedRunner should return error")
			}
		})
	}
}

func TestRunSingleWindow(t *testing.T) {
	m := &fakeModel{outputs: []string{"hello world"}}
	r := newTestRunner(t, m, DefaultWindowedConfig())

	buf := toneBuffer(t, ModelSampleRate, 1, ModelSampleRate) // 1s
	text, err := r.Run(context.Background(), buf, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if text != "hello world" {
		t.Errorf("Run() = %q, want %q", text, "hello world")
	}
	if m.calls != 1 {
		t.Errorf("model called %d times, want 1", m.calls)
	}
}

func TestRunPreparesAudio(t *testing.T) {
	// Stereo 32kHz input must reach the model as mono 16kHz.
	m := &fakeModel{outputs: []string{"ok"}}
	r := newTestRunner(t, m, DefaultWindowedConfig())

	buf := toneBuffer(t, 2*ModelSampleRate, 2, 2*ModelSampleRate) // 1s stereo 32k
	if _, err := r.Run(context.Background(), buf, nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(m.windows) != 1 {
		t.Fatalf("model saw %d windows, want 1", len(m.windows))
	}
	if got := len(m.windows[0]); got != ModelSampleRate {
		t.Errorf("model window has %d samples, want %d (mono 16kHz)", got, ModelSampleRate)
	}
}

func TestRunWindowingAndMerge(t *testing.T) {
	cfg := WindowedConfig{MaxWindowSeconds: 1, OverlapRatio: 0.5, AmplitudeRatio: 1}
	m := &fakeModel{outputs: []string{
		"the quick brown",
		"brown fox jumps",
		"jumps over it",
	}}
	r := newTestRunner(t, m, cfg)

	// 2s of audio, 1s windows, 0.5 overlap -> stride 0.5s -> 4 windows,
	// the last two being partial tails.
	buf := toneBuffer(t, ModelSampleRate, 1, 2*ModelSampleRate)
	text, err := r.Run(context.Background(), buf, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if want := "the quick brown fox jumps over it"; text != want {
		t.Errorf("Run() = %q, want %q", text, want)
	}
	if m.calls != 4 {
		t.Errorf("model called %d times, want 4", m.calls)
	}
}

func TestRunProgressMonotoneBelowOne(t *testing.T) {
	cfg := WindowedConfig{MaxWindowSeconds: 1, OverlapRatio: 0, AmplitudeRatio: 1}
	m := &fakeModel{outputs: []string{"a", "b", "c", "d", "e"}}
	r := newTestRunner(t, m, cfg)

	var seen []float64
	buf := toneBuffer(t, ModelSampleRate, 1, 5*ModelSampleRate)
	if _, err := r.Run(context.Background(), buf, func(p float64) {
		seen = append(seen, p)
	}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(seen) != 5 {
		t.Fatalf("got %d progress reports, want 5", len(seen))
	}
	prev := 0.0
	for i, p := range seen {
		if p < prev {
			t.Errorf("progress[%d] = %f decreased from %f", i, p, prev)
		}
		if p >= 1 {
			t.Errorf("progress[%d] = %f, runner must stay below 1.0", i, p)
		}
		prev = p
	}
}

func TestRunCancelledBeforeFirstWindow(t *testing.T) {
	m := &fakeModel{outputs: []string{"never"}}
	r := newTestRunner(t, m, DefaultWindowedConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	buf := toneBuffer(t, ModelSampleRate, 1, ModelSampleRate)
	start := time.Now()
	_, err := r.Run(ctx, buf, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("cancelled Run took %v, want prompt return", elapsed)
	}
	if m.calls != 0 {
		t.Errorf("model called %d times after pre-cancellation, want 0", m.calls)
	}
}

func TestRunCancelledBetweenWindows(t *testing.T) {
	cfg := WindowedConfig{MaxWindowSeconds: 1, OverlapRatio: 0, AmplitudeRatio: 1}
	m := &fakeModel{outputs: []string{"a", "b", "c"}}
	r := newTestRunner(t, m, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	buf := toneBuffer(t, ModelSampleRate, 1, 3*ModelSampleRate)
	_, err := r.Run(ctx, buf, func(p float64) {
		cancel() // fires after the first window completes
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if m.calls >= 3 {
		t.Errorf("model called %d times, cancellation should have cut the run short", m.calls)
	}
}

func TestRunModelError(t *testing.T) {
	m := &fakeModel{err: fmt.Errorf("weights corrupted")}
	r := newTestRunner(t, m, DefaultWindowedConfig())

	buf := toneBuffer(t, ModelSampleRate, 1, ModelSampleRate)
	_, err := r.Run(context.Background(), buf, nil)
	if err == nil || !errors.Is(err, m.err) {
		t.Errorf("Run() error = %v, want wrapped model error", err)
	}
}

func TestRunModelPanicContained(t *testing.T) {
	m := &fakeModel{panics: true}
	r := newTestRunner(t, m, DefaultWindowedConfig())

	buf := toneBuffer(t, ModelSampleRate, 1, ModelSampleRate)
	_, err := r.Run(context.Background(), buf, nil) // must not panic
	if err == nil {
		t.Fatal("Run() should surface the model panic as an error")
	}
}

func TestRunEmptyTranscript(t *testing.T) {
	m := &fakeModel{outputs: []string{"", ""}}
	r := newTestRunner(t, m, DefaultWindowedConfig())

	buf := toneBuffer(t, ModelSampleRate, 1, ModelSampleRate)
	_, err := r.Run(context.Background(), buf, nil)
	if !errors.Is(err, ErrNoSpeech) {
		t.Errorf("Run() error = %v, want ErrNoSpeech", err)
	}
}

func TestRunNilBuffer(t *testing.T) {
	r := newTestRunner(t, &fakeModel{}, DefaultWindowedConfig())
	_, err := r.Run(context.Background(), nil, nil)
	if !errors.Is(err, audio.ErrEmptyAudio) {
		t.Errorf("Run(nil) error = %v, want ErrEmptyAudio", err)
	}
}

func TestEstimateDuration(t *testing.T) {
	r := newTestRunner(t, &fakeModel{}, DefaultWindowedConfig())
	buf := toneBuffer(t, ModelSampleRate, 1, 10*ModelSampleRate) // 10s clip

	est := r.EstimateDuration(buf)
	if est <= 0 || est >= 10*time.Second {
		t.Errorf("EstimateDuration() = %v, want a positive fraction of the clip length", est)
	}
	if r.EstimateDuration(nil) != 0 {
		t.Error("EstimateDuration(nil) should be 0")
	}
}

func TestRunnerClosePropagates(t *testing.T) {
	m := &fakeModel{}
	r := newTestRunner(t, m, DefaultWindowedConfig())
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !m.closed {
		t.Error("Close() should close the model handle")
	}
}
