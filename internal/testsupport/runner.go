package testsupport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"mediacompress/internal/services"
	"mediacompress/internal/toolrun"
)

// ToolCall records one invocation seen by FakeRunner.
type ToolCall struct {
	Binary string
	Args   []string
}

// Output returns the last argument, which is the output or target file for
// every ffmpeg and exiftool invocation the pipeline makes.
func (c ToolCall) Output() string {
	if len(c.Args) == 0 {
		return ""
	}
	return c.Args[len(c.Args)-1]
}

// HasArg reports whether arg appears in the argument vector.
func (c ToolCall) HasArg(arg string) bool {
	return slices.Contains(c.Args, arg)
}

// FakeRunner is an in-memory toolrun.Runner. By default ffprobe reports
// ProbeBitRate, ffmpeg writes its output file, and exiftool succeeds.
type FakeRunner struct {
	// ProbeBitRate is the stream bit_rate ffprobe reports in bits per second,
	// e.g. "5000000" or "N/A".
	ProbeBitRate string
	// Missing lists binaries that cannot be started.
	Missing map[string]bool
	// Hook may intercept a call; returning handled=false falls through to the
	// default behaviour.
	Hook func(call ToolCall) (result toolrun.Result, handled bool)

	mu    sync.Mutex
	calls []ToolCall
}

// Run implements toolrun.Runner.
func (f *FakeRunner) Run(_ context.Context, binary string, args ...string) toolrun.Result {
	call := ToolCall{Binary: binary, Args: append([]string(nil), args...)}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	if f.Missing[binary] {
		return MissingResult(binary)
	}
	if f.Hook != nil {
		if result, handled := f.Hook(call); handled {
			return result
		}
	}

	switch filepath.Base(binary) {
	case "ffprobe":
		rate := f.ProbeBitRate
		if rate == "" {
			rate = "N/A"
		}
		return toolrun.Result{Stdout: fmt.Appendf(nil, `{"streams":[{"bit_rate":%q}]}`, rate)}
	case "ffmpeg":
		if out := call.Output(); out != os.DevNull {
			if err := os.WriteFile(out, []byte("encoded"), 0o644); err != nil {
				return FailResult(binary, 1, err.Error())
			}
		}
		return toolrun.Result{}
	default:
		return toolrun.Result{}
	}
}

// Calls returns a copy of every recorded call.
func (f *FakeRunner) Calls() []ToolCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ToolCall(nil), f.calls...)
}

// CallsTo returns recorded calls for one binary.
func (f *FakeRunner) CallsTo(binary string) []ToolCall {
	var out []ToolCall
	for _, call := range f.Calls() {
		if call.Binary == binary {
			out = append(out, call)
		}
	}
	return out
}

// Reset forgets recorded calls.
func (f *FakeRunner) Reset() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}

// MissingResult is what a runner returns when binary cannot be started.
func MissingResult(binary string) toolrun.Result {
	return toolrun.Result{
		ExitCode: -1,
		Err:      services.Wrap(services.ErrToolMissing, "", binary, "cannot be started", os.ErrNotExist),
	}
}

// FailResult is what a runner returns when binary exits non-zero.
func FailResult(binary string, code int, stderr string) toolrun.Result {
	return toolrun.Result{
		ExitCode:   code,
		StderrTail: stderr,
		Err:        services.Wrap(services.ErrExternalTool, "", binary, fmt.Sprintf("exit status %d", code), nil),
	}
}
