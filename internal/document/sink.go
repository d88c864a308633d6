package document

import (
	"log/slog"

	"github.com/atotto/clipboard"

	"github.com/scribepipe/scribepipe/internal/job"
)

// Sink lands finished transcription jobs in a document. Successful
// transcripts are inserted at the caret offset the job captured when it
// was created, so edits made while the job ran do not relocate the
// result. Failed and cancelled jobs only log.
type Sink struct {
	doc      *Document
	dispatch Dispatcher
	log      *slog.Logger

	// CopyToClipboard also places successful transcripts on the system
	// clipboard when set.
	CopyToClipboard bool
}

// NewSink creates a sink inserting into doc via dispatch.
func NewSink(doc *Document, dispatch Dispatcher, log *slog.Logger) *Sink {
	if log == nil {
		log = slog.Default()
	}
	return &Sink{doc: doc, dispatch: dispatch, log: log}
}

// Deliver consumes a terminal job. Delivery is exactly-once per job: a
// second call for the same job is a no-op, as is a call for a job that
// has not reached a terminal state.
func (s *Sink) Deliver(j *job.Job) {
	if !j.State().Terminal() {
		s.log.Warn("dropping delivery of non-terminal job", "job", j.ID(), "state", j.State())
		return
	}
	if !j.MarkDelivered() {
		return
	}

	text, ok := j.Result()
	if !ok {
		switch j.State() {
		case job.StateFailed:
			s.log.Error("transcription failed", "job", j.ID(), "source", j.Source(), "error", j.Err())
		case job.StateCancelled:
			s.log.Info("transcription cancelled", "job", j.ID(), "source", j.Source())
		}
		return
	}

	at := j.CaretOffset()
	s.dispatch.Dispatch(func() {
		s.doc.InsertAt(at, text)
		s.log.Info("transcript inserted",
			"job", j.ID(), "offset", at, "chars", len([]rune(text)))
	})

	if s.CopyToClipboard {
		if err := clipboard.WriteAll(text); err != nil {
			s.log.Warn("clipboard copy failed", "error", err)
		}
	}
}
