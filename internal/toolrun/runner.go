package toolrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"

	"mediacompress/internal/services"
)

// DefaultStderrTail bounds how much stderr a Result keeps.
const DefaultStderrTail = 4096

// Result captures one external tool invocation.
type Result struct {
	ExitCode   int
	Stdout     []byte
	StderrTail string
	Err        error
}

// OK reports whether the tool ran and exited zero.
func (r Result) OK() bool {
	return r.Err == nil
}

// Missing reports whether the tool could not be started at all, as opposed to
// starting and failing.
func (r Result) Missing() bool {
	return errors.Is(r.Err, services.ErrToolMissing)
}

// Runner executes external tools. Implementations must not kill a tool that
// has already started when ctx is cancelled.
type Runner interface {
	Run(ctx context.Context, binary string, args ...string) Result
}

// ExecRunner runs tools with os/exec.
type ExecRunner struct {
	// StderrLimit caps the retained stderr tail; zero means DefaultStderrTail.
	StderrLimit int
}

// Run starts binary and waits for it. Cancellation of ctx does not interrupt a
// running tool; the daemon only stops between files.
func (r ExecRunner) Run(ctx context.Context, binary string, args ...string) Result {
	limit := r.StderrLimit
	if limit <= 0 {
		limit = DefaultStderrTail
	}

	cmd := exec.CommandContext(context.WithoutCancel(ctx), binary, args...)
	var stdout bytes.Buffer
	stderr := &tailWriter{limit: limit}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	result := Result{
		Stdout:     stdout.Bytes(),
		StderrTail: strings.TrimSpace(stderr.String()),
	}
	if err == nil {
		return result
	}

	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		result.Err = services.Wrap(services.ErrExternalTool, "", binary, fmt.Sprintf("exit status %d", result.ExitCode), nil)
	case isStartFailure(err):
		result.ExitCode = -1
		result.Err = services.Wrap(services.ErrToolMissing, "", binary, "cannot be started", err)
	default:
		result.ExitCode = -1
		result.Err = services.Wrap(services.ErrExternalTool, "", binary, "run failed", err)
	}
	return result
}

func isStartFailure(err error) bool {
	return errors.Is(err, exec.ErrNotFound) ||
		errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission)
}

// tailWriter keeps the last limit bytes written to it.
type tailWriter struct {
	limit int
	buf   []byte
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	if len(w.buf) > 2*w.limit {
		w.buf = append(w.buf[:0], w.buf[len(w.buf)-w.limit:]...)
	}
	return len(p), nil
}

func (w *tailWriter) String() string {
	if len(w.buf) > w.limit {
		return string(w.buf[len(w.buf)-w.limit:])
	}
	return string(w.buf)
}
