package job

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/scribepipe/scribepipe/internal/audio"
	"github.com/scribepipe/scribepipe/internal/transcribe"
)

// stubRunner is a controllable transcribe.Runner for pool tests.
type stubRunner struct {
	text    string
	err     error
	steps   int
	delay   time.Duration
	release chan struct{} // when non-nil, Run blocks until closed
}

func (r *stubRunner) EstimateDuration(*audio.Buffer) time.Duration { return 0 }

func (r *stubRunner) Run(ctx context.Context, buf *audio.Buffer, progress func(float64)) (string, error) {
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	steps := r.steps
	if steps == 0 {
		steps = 1
	}
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if r.delay > 0 {
			select {
			case <-time.After(r.delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		progress(float64(i+1) / float64(steps+1))
	}
	if r.err != nil {
		return "", r.err
	}
	return r.text, nil
}

func (r *stubRunner) Close() error { return nil }

// recordingNotifier captures callbacks for assertions.
type recordingNotifier struct {
	mu        sync.Mutex
	fractions []float64
	finished  []*Job
}

func (n *recordingNotifier) Progress(j *Job, fraction float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fractions = append(n.fractions, fraction)
}

func (n *recordingNotifier) Finished(j *Job) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.finished = append(n.finished, j)
}

func (n *recordingNotifier) snapshot() ([]float64, []*Job) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]float64(nil), n.fractions...), append([]*Job(nil), n.finished...)
}

// countingSink records every delivery.
type countingSink struct {
	mu   sync.Mutex
	jobs []*Job
}

func (s *countingSink) Deliver(j *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, j)
}

func (s *countingSink) delivered() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Job(nil), s.jobs...)
}

func TestPoolRunsJobToSuccess(t *testing.T) {
	notifier := &recordingNotifier{}
	sink := &countingSink{}
	p := NewPool(2, notifier, sink, nil)

	j := New("silero-en", "clip.wav", 7)
	runner := &stubRunner{text: "hello world", steps: 4}
	if err := p.Submit(j, runner, testBuffer(t, 1)); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitDone(t, j)
	p.Wait()

	if j.State() != StateSucceeded {
		t.Fatalf("State() = %s, want succeeded (err: %v)", j.State(), j.Err())
	}
	if text, ok := j.Result(); !ok || text != "hello world" {
		t.Errorf("Result() = %q, %v", text, ok)
	}
	if j.Progress() != 1 {
		t.Errorf("Progress() = %g, want 1", j.Progress())
	}

	fractions, finished := notifier.snapshot()
	if len(finished) != 1 || finished[0] != j {
		t.Errorf("Finished callbacks = %d, want exactly 1 for the job", len(finished))
	}
	for i := 1; i < len(fractions); i++ {
		if fractions[i] < fractions[i-1] {
			t.Errorf("progress regressed: %v", fractions)
			break
		}
	}
	for _, f := range fractions {
		if f >= 1 {
			t.Errorf("progress %g reported before terminal state", f)
		}
	}

	if got := sink.delivered(); len(got) != 1 || got[0] != j {
		t.Errorf("sink deliveries = %d, want 1", len(got))
	}
}

func TestPoolRunnerBusy(t *testing.T) {
	p := NewPool(2, nil, nil, nil)
	runner := &stubRunner{text: "first", release: make(chan struct{})}

	first := New("silero-en", "a.wav", 0)
	if err := p.Submit(first, runner, testBuffer(t, 1)); err != nil {
		t.Fatalf("Submit(first) error = %v", err)
	}

	second := New("silero-en", "b.wav", 0)
	err := p.Submit(second, runner, testBuffer(t, 1))
	if !errors.Is(err, ErrRunnerBusy) {
		t.Fatalf("Submit(second) error = %v, want ErrRunnerBusy", err)
	}
	if second.State() != StatePending {
		t.Errorf("rejected job state = %s, want pending", second.State())
	}

	close(runner.release)
	waitDone(t, first)
	p.Wait()

	// Same job, same runner, retried after the runner freed up.
	if err := p.Submit(second, runner, testBuffer(t, 1)); err != nil {
		t.Fatalf("retry Submit(second) error = %v", err)
	}
	waitDone(t, second)
	p.Wait()
	if second.State() != StateSucceeded {
		t.Errorf("retried job state = %s, want succeeded", second.State())
	}
}

func TestPoolEmptyBufferFailsBeforeRunning(t *testing.T) {
	sink := &countingSink{}
	p := NewPool(1, nil, sink, nil)

	j := New("silero-en", "empty.wav", 0)
	err := p.Submit(j, &stubRunner{}, nil)
	if !errors.Is(err, audio.ErrEmptyAudio) {
		t.Fatalf("Submit(nil buffer) error = %v, want ErrEmptyAudio", err)
	}
	if j.State() != StateFailed {
		t.Errorf("State() = %s, want failed without ever running", j.State())
	}
	if !errors.Is(j.Err(), audio.ErrEmptyAudio) {
		t.Errorf("Err() = %v, want ErrEmptyAudio", j.Err())
	}
	if got := sink.delivered(); len(got) != 1 {
		t.Errorf("sink deliveries = %d, want 1", len(got))
	}
}

func TestPoolCancelBeforeFirstCheckpoint(t *testing.T) {
	p := NewPool(1, nil, nil, nil)
	runner := &stubRunner{text: "never", release: make(chan struct{})}

	j := New("silero-en", "clip.wav", 0)
	if err := p.Submit(j, runner, testBuffer(t, 1)); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	j.Cancel()
	waitDone(t, j)
	p.Wait()

	if j.State() != StateCancelled {
		t.Errorf("State() = %s, want cancelled", j.State())
	}
	if _, ok := j.Result(); ok {
		t.Error("cancelled job should not expose a result")
	}
}

func TestPoolCancelAfterCompletionKeepsResult(t *testing.T) {
	p := NewPool(1, nil, nil, nil)
	j := New("silero-en", "clip.wav", 0)
	if err := p.Submit(j, &stubRunner{text: "kept"}, testBuffer(t, 1)); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitDone(t, j)
	p.Wait()

	j.Cancel()
	if j.State() != StateSucceeded {
		t.Errorf("State() = %s, want succeeded despite late cancel", j.State())
	}
	if text, ok := j.Result(); !ok || text != "kept" {
		t.Errorf("Result() = %q, %v, want kept result", text, ok)
	}
}

func TestPoolEmptyTranscriptFailsJob(t *testing.T) {
	p := NewPool(1, nil, nil, nil)

	for _, text := range []string{"", "   \n\t"} {
		j := New("example", "clip.wav", 0)
		if err := p.Submit(j, &stubRunner{text: text}, testBuffer(t, 1)); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		waitDone(t, j)
		p.Wait()

		if j.State() != StateFailed {
			t.Errorf("text %q: State() = %s, want failed", text, j.State())
		}
		if !errors.Is(j.Err(), transcribe.ErrNoSpeech) {
			t.Errorf("text %q: Err() = %v, want ErrNoSpeech", text, j.Err())
		}
		if _, ok := j.Result(); ok {
			t.Errorf("text %q: Result() should not be available", text)
		}
		if j.Progress() >= 1 {
			t.Errorf("text %q: Progress() = %g, want < 1 for a failed job", text, j.Progress())
		}
	}
}

func TestPoolRunnerErrorFailsJob(t *testing.T) {
	cause := errors.New("inference backend crashed")
	p := NewPool(1, nil, nil, nil)
	j := New("silero-en", "clip.wav", 0)
	if err := p.Submit(j, &stubRunner{err: cause}, testBuffer(t, 1)); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitDone(t, j)
	p.Wait()

	if j.State() != StateFailed {
		t.Errorf("State() = %s, want failed", j.State())
	}
	if !errors.Is(j.Err(), cause) {
		t.Errorf("Err() = %v, want the runner error", j.Err())
	}
}

func TestPoolResubmitTerminalJob(t *testing.T) {
	p := NewPool(1, nil, nil, nil)
	j := New("silero-en", "clip.wav", 0)
	if err := p.Submit(j, &stubRunner{text: "once"}, testBuffer(t, 1)); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitDone(t, j)
	p.Wait()

	err := p.Submit(j, &stubRunner{text: "twice"}, testBuffer(t, 1))
	if !errors.Is(err, ErrNotPending) {
		t.Errorf("resubmit error = %v, want ErrNotPending", err)
	}
}

func TestPoolDistinctRunnersRunConcurrently(t *testing.T) {
	p := NewPool(2, nil, nil, nil)
	r1 := &stubRunner{text: "one", release: make(chan struct{})}
	r2 := &stubRunner{text: "two"}

	j1 := New("silero-en", "a.wav", 0)
	if err := p.Submit(j1, r1, testBuffer(t, 1)); err != nil {
		t.Fatalf("Submit(j1) error = %v", err)
	}
	j2 := New("example", "b.wav", 0)
	if err := p.Submit(j2, r2, testBuffer(t, 1)); err != nil {
		t.Fatalf("Submit(j2) error = %v", err)
	}

	// The second runner completes while the first is still held open.
	waitDone(t, j2)
	if j1.State() != StateRunning {
		t.Errorf("j1 state = %s, want still running", j1.State())
	}
	close(r1.release)
	waitDone(t, j1)
	p.Wait()
}
