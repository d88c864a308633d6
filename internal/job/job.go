// Package job implements the transcription job pipeline: a state machine
// per job plus a bounded worker pool that runs profile runners off the
// interactive loop.
//
// Job states move Pending -> Running -> {Succeeded, Failed, Cancelled};
// the terminal states are absorbing. A terminal job cannot be reused;
// retries create a fresh job. Cancellation is cooperative: it only
// guarantees the runner observes the signal at its next checkpoint, and a
// job past its last checkpoint finishes with its natural outcome.
package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle stage of a transcription job.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether the state is absorbing.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCancelled:
		return true
	}
	return false
}

var (
	// ErrRunnerBusy indicates the runner instance already has a running job.
	ErrRunnerBusy = errors.New("job: runner busy")

	// ErrNotPending indicates a job was submitted twice or after discard.
	ErrNotPending = errors.New("job: not pending")
)

// Job is one run of a runner against one audio buffer. Create it with New,
// hand it to a Pool, and observe it through Done/State/Result.
type Job struct {
	id          string
	profileID   string
	source      string
	caretOffset int
	created     time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	state     State
	progress  float64
	result    string
	err       error
	delivered bool
	finished  time.Time
}

// New creates a Pending job. caretOffset is the document insertion point,
// captured now so a cursor moved during the run does not relocate the
// result. source describes the audio clip for logging and history.
func New(profileID, source string, caretOffset int) *Job {
	ctx, cancel := context.WithCancel(context.Background())
	return &Job{
		id:          uuid.NewString(),
		profileID:   profileID,
		source:      source,
		caretOffset: caretOffset,
		created:     time.Now(),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
		state:       StatePending,
	}
}

// ID returns the job's unique identifier.
func (j *Job) ID() string { return j.id }

// ProfileID returns the profile the job runs.
func (j *Job) ProfileID() string { return j.profileID }

// Source returns the audio source descriptor.
func (j *Job) Source() string { return j.source }

// CaretOffset returns the insertion point captured at creation.
func (j *Job) CaretOffset() int { return j.caretOffset }

// CreatedAt returns the job creation time.
func (j *Job) CreatedAt() time.Time { return j.created }

// FinishedAt returns when the job reached a terminal state (zero before).
func (j *Job) FinishedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.finished
}

// State returns the current lifecycle state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Progress returns the current progress fraction in [0, 1].
func (j *Job) Progress() float64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progress
}

// Result returns the transcript; ok is true only for Succeeded jobs.
func (j *Job) Result() (text string, ok bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result, j.state == StateSucceeded
}

// Err returns the failure cause; non-nil only for Failed jobs.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Done is closed once the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} { return j.done }

// Cancel requests cancellation. A Pending job is discarded immediately
// (terminal Cancelled without ever running); a Running job is signalled
// through its cancel token and finishes at the runner's next checkpoint.
// Cancelling a terminal job is a no-op.
func (j *Job) Cancel() {
	j.mu.Lock()
	if j.state == StatePending {
		j.terminate(StateCancelled)
		j.mu.Unlock()
		j.cancel()
		return
	}
	j.mu.Unlock()
	j.cancel()
}

// MarkDelivered flips the one-shot delivered flag, returning false if the
// job was already delivered.
func (j *Job) MarkDelivered() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.delivered {
		return false
	}
	j.delivered = true
	return true
}

// start moves Pending -> Running. Fails if the job is no longer Pending
// (already dispatched, or discarded before dispatch).
func (j *Job) start() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != StatePending {
		return fmt.Errorf("%w: %s", ErrNotPending, j.state)
	}
	j.state = StateRunning
	return nil
}

// setProgress records a runner progress report. Values never decrease and
// stay below 1 until the job succeeds.
func (j *Job) setProgress(p float64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != StateRunning {
		return
	}
	if p < 0 {
		p = 0
	}
	if p >= 1 {
		p = 0.999
	}
	if p > j.progress {
		j.progress = p
	}
}

// succeed moves Running -> Succeeded and pins progress at 1.
func (j *Job) succeed(text string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != StateRunning {
		return
	}
	j.result = text
	j.progress = 1
	j.terminate(StateSucceeded)
}

// fail moves the job to Failed with the given cause. Permitted from
// Pending (pre-dispatch validation) as well as Running.
func (j *Job) fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return
	}
	j.err = err
	j.terminate(StateFailed)
}

// cancelled moves Running -> Cancelled after the runner observed the token.
func (j *Job) cancelled() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != StateRunning {
		return
	}
	j.terminate(StateCancelled)
}

// terminate must be called with j.mu held and a non-terminal state.
func (j *Job) terminate(s State) {
	j.state = s
	j.finished = time.Now()
	close(j.done)
}
