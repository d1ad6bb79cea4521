package toolrun_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"mediacompress/internal/services"
	"mediacompress/internal/testsupport"
	"mediacompress/internal/toolrun"
)

func TestExecRunnerCapturesOutput(t *testing.T) {
	dir := t.TempDir()
	ok := filepath.Join(dir, "ok")
	testsupport.WriteScript(t, ok, "echo \"$@\"\necho warning >&2\nexit 0\n")

	result := toolrun.ExecRunner{}.Run(context.Background(), ok, "-v", "error")
	if !result.OK() || result.Missing() {
		t.Fatalf("expected success, got %+v", result)
	}
	if strings.TrimSpace(string(result.Stdout)) != "-v error" {
		t.Fatalf("unexpected stdout %q", result.Stdout)
	}
	if result.StderrTail != "warning" {
		t.Fatalf("unexpected stderr %q", result.StderrTail)
	}
}

func TestExecRunnerClassifiesFailures(t *testing.T) {
	dir := t.TempDir()
	failing := filepath.Join(dir, "failing")
	testsupport.WriteScript(t, failing, "echo 'Invalid data found' >&2\nexit 3\n")
	notExecutable := filepath.Join(dir, "plain")
	if err := os.WriteFile(notExecutable, []byte("data"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tests := []struct {
		name     string
		binary   string
		missing  bool
		exitCode int
		stderr   string
	}{
		{name: "non-zero exit", binary: failing, exitCode: 3, stderr: "Invalid data found"},
		{name: "absent path", binary: filepath.Join(dir, "nope"), missing: true, exitCode: -1},
		{name: "absent on PATH", binary: "mediacompress-no-such-tool", missing: true, exitCode: -1},
		{name: "not executable", binary: notExecutable, missing: true, exitCode: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := toolrun.ExecRunner{}.Run(context.Background(), tt.binary)
			if result.OK() {
				t.Fatal("expected failure")
			}
			if result.Missing() != tt.missing {
				t.Fatalf("Missing() = %v, want %v (err %v)", result.Missing(), tt.missing, result.Err)
			}
			if !tt.missing && !errors.Is(result.Err, services.ErrExternalTool) {
				t.Fatalf("expected external tool marker, got %v", result.Err)
			}
			if result.ExitCode != tt.exitCode {
				t.Fatalf("exit code = %d, want %d", result.ExitCode, tt.exitCode)
			}
			if result.StderrTail != tt.stderr {
				t.Fatalf("stderr = %q, want %q", result.StderrTail, tt.stderr)
			}
		})
	}
}

func TestExecRunnerKeepsStderrTail(t *testing.T) {
	dir := t.TempDir()
	noisy := filepath.Join(dir, "noisy")
	testsupport.WriteScript(t, noisy, "i=0\nwhile [ $i -lt 200 ]; do echo \"frame=$i\" >&2; i=$((i+1)); done\necho final >&2\nexit 1\n")

	result := toolrun.ExecRunner{StderrLimit: 64}.Run(context.Background(), noisy)
	if len(result.StderrTail) > 64 {
		t.Fatalf("expected tail bounded to 64 bytes, got %d", len(result.StderrTail))
	}
	if !strings.HasSuffix(result.StderrTail, "final") {
		t.Fatalf("expected tail to end with last line, got %q", result.StderrTail)
	}
}

func TestExecRunnerIgnoresCancellation(t *testing.T) {
	dir := t.TempDir()
	tool := filepath.Join(dir, "tool")
	marker := filepath.Join(dir, "ran")
	testsupport.WriteScript(t, tool, "touch \""+marker+"\"\nexit 0\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := toolrun.ExecRunner{}.Run(ctx, tool)
	if !result.OK() {
		t.Fatalf("expected tool to run despite cancelled context, got %v", result.Err)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Fatalf("expected marker file: %v", err)
	}
}

func TestInvokeSuppressesMissingTool(t *testing.T) {
	runner := &testsupport.FakeRunner{Missing: map[string]bool{"ffprobe": true}}
	avail := toolrun.NewAvailability()

	first := toolrun.Invoke(context.Background(), runner, avail, toolrun.FFprobe, "ffprobe", "a.mp4")
	second := toolrun.Invoke(context.Background(), runner, avail, toolrun.FFprobe, "ffprobe", "b.mp4")
	if !first.Missing() || !second.Missing() {
		t.Fatalf("expected both results missing: %+v %+v", first, second)
	}
	if calls := runner.CallsTo("ffprobe"); len(calls) != 1 {
		t.Fatalf("expected a single ffprobe call, got %d", len(calls))
	}
	if diff := cmp.Diff([]toolrun.Tool{toolrun.FFprobe}, avail.MissingTools()); diff != "" {
		t.Fatalf("missing tools mismatch (-want +got):\n%s", diff)
	}

	ok := toolrun.Invoke(context.Background(), runner, avail, toolrun.FFmpeg, "ffmpeg", "-i", "a.jpg", os.DevNull)
	if !ok.OK() {
		t.Fatalf("expected ffmpeg to be unaffected, got %v", ok.Err)
	}
}

func TestAvailabilityConcurrentMarks(t *testing.T) {
	avail := toolrun.NewAvailability()
	var wg sync.WaitGroup
	newly := make(chan bool, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			newly <- avail.MarkMissing(toolrun.ExifTool)
		}()
	}
	wg.Wait()
	close(newly)
	count := 0
	for first := range newly {
		if first {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one first mark, got %d", count)
	}
	if !avail.Missing(toolrun.ExifTool) || avail.Missing(toolrun.FFmpeg) {
		t.Fatalf("unexpected availability state %v", avail.MissingTools())
	}
}
