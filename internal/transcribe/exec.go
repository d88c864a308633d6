package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/scribepipe/scribepipe/internal/audio"
)

// ExecModel invokes an external recognizer process per window: the audio is
// written to a temporary WAV file whose path is appended to the configured
// command, and the transcript is read from the process's stdout. This keeps
// the pretrained model an opaque collaborator with its own runtime.
type ExecModel struct {
	argv    []string
	timeout time.Duration
}

// NewExecModel creates a model backed by the given command. timeout bounds
// a single Process call (0 means no limit).
func NewExecModel(argv []string, timeout time.Duration) (*ExecModel, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("transcribe: recognizer command not configured")
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return nil, fmt.Errorf("transcribe: recognizer %q: %w", argv[0], err)
	}
	return &ExecModel{argv: argv, timeout: timeout}, nil
}

// Process transcribes mono 16kHz float32 audio samples to text.
func (m *ExecModel) Process(samples []float32) (string, error) {
	buf, err := audio.NewBuffer(ModelSampleRate, 1, samples, "window")
	if err != nil {
		return "", fmt.Errorf("transcribe: preparing window: %w", err)
	}

	f, err := os.CreateTemp("", "scribepipe-*.wav")
	if err != nil {
		return "", fmt.Errorf("transcribe: temp file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if err := audio.Encode(buf, f); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("transcribe: closing temp file: %w", err)
	}

	ctx := context.Background()
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	args := append(append([]string(nil), m.argv[1:]...), path)
	cmd := exec.CommandContext(ctx, m.argv[0], args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return "", fmt.Errorf("transcribe: recognizer: %w: %s", err, detail)
		}
		return "", fmt.Errorf("transcribe: recognizer: %w", err)
	}

	return strings.TrimSpace(stdout.String()), nil
}

// Close releases backend resources. The recognizer is a per-call
// subprocess, so there is nothing to release.
func (m *ExecModel) Close() error { return nil }
