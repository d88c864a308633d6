package job

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	"github.com/scribepipe/scribepipe/internal/audio"
	"github.com/scribepipe/scribepipe/internal/transcribe"
)

// Notifier receives job lifecycle callbacks. Callbacks arrive from worker
// goroutines; implementations marshal onto their own loop if they need to.
type Notifier interface {
	// Progress reports a new progress fraction for a running job.
	Progress(j *Job, fraction float64)
	// Finished fires exactly once when a job reaches a terminal state.
	Finished(j *Job)
}

// Sink consumes terminal jobs, typically inserting the transcript into a
// document. Deliver is called once per job, after Notifier.Finished.
type Sink interface {
	Deliver(j *Job)
}

// Pool runs transcription jobs on a bounded set of worker goroutines so
// the interactive loop never blocks on inference.
type Pool struct {
	sem      chan struct{}
	notifier Notifier
	sink     Sink
	log      *slog.Logger

	mu   sync.Mutex
	busy map[transcribe.Runner]struct{}

	wg sync.WaitGroup
}

// NewPool creates a pool with the given number of workers. size <= 0
// selects one worker per CPU.
func NewPool(size int, notifier Notifier, sink Sink, log *slog.Logger) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	if size < 1 {
		size = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pool{
		sem:      make(chan struct{}, size),
		notifier: notifier,
		sink:     sink,
		log:      log,
		busy:     make(map[transcribe.Runner]struct{}),
	}
}

// Submit dispatches a Pending job to run buf through runner on a worker
// goroutine. It returns immediately.
//
// A runner instance runs at most one job at a time; submitting to a busy
// runner fails with ErrRunnerBusy and leaves the job Pending, so the
// caller can retry on the same job once the runner frees up. An empty
// buffer fails the job before it ever runs.
func (p *Pool) Submit(j *Job, runner transcribe.Runner, buf *audio.Buffer) error {
	if buf == nil || buf.Frames() == 0 {
		j.fail(audio.ErrEmptyAudio)
		p.finish(j)
		return audio.ErrEmptyAudio
	}

	p.mu.Lock()
	if _, taken := p.busy[runner]; taken {
		p.mu.Unlock()
		return ErrRunnerBusy
	}
	if err := j.start(); err != nil {
		p.mu.Unlock()
		return err
	}
	p.busy[runner] = struct{}{}
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run(j, runner, buf)
	return nil
}

// Wait blocks until every dispatched job has finished.
func (p *Pool) Wait() { p.wg.Wait() }

func (p *Pool) run(j *Job, runner transcribe.Runner, buf *audio.Buffer) {
	defer p.wg.Done()

	p.sem <- struct{}{}
	defer func() { <-p.sem }()

	defer func() {
		p.mu.Lock()
		delete(p.busy, runner)
		p.mu.Unlock()
	}()

	p.log.Debug("job started",
		"job", j.ID(), "profile", j.ProfileID(), "source", j.Source(),
		"duration", buf.Duration(), "estimate", runner.EstimateDuration(buf))

	text, err := runner.Run(j.ctx, buf, func(fraction float64) {
		j.setProgress(fraction)
		if p.notifier != nil {
			p.notifier.Progress(j, j.Progress())
		}
	})

	switch {
	case err == nil && strings.TrimSpace(text) == "":
		// Success requires insertable text, whatever the runner thinks.
		j.fail(transcribe.ErrNoSpeech)
	case err == nil:
		j.succeed(text)
	case errors.Is(err, context.Canceled):
		j.cancelled()
	default:
		j.fail(err)
	}
	p.finish(j)
}

// finish fans out the terminal job to the notifier and the sink.
func (p *Pool) finish(j *Job) {
	p.log.Debug("job finished", "job", j.ID(), "state", j.State())
	if p.notifier != nil {
		p.notifier.Finished(j)
	}
	if p.sink != nil {
		p.sink.Deliver(j)
	}
}
