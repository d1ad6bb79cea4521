package daemon_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"mediacompress/internal/config"
	"mediacompress/internal/daemon"
	"mediacompress/internal/logging"
	"mediacompress/internal/outcome"
	"mediacompress/internal/services"
	"mediacompress/internal/testsupport"
	"mediacompress/internal/toolrun"
)

type recordingObserver struct {
	mu      sync.Mutex
	files   []outcome.Record
	cycles  []outcome.Summary
	onFile  func(outcome.Record)
	onCycle func(outcome.Summary)
}

func (o *recordingObserver) ObserveFile(_ context.Context, rec outcome.Record) error {
	o.mu.Lock()
	o.files = append(o.files, rec)
	o.mu.Unlock()
	if o.onFile != nil {
		o.onFile(rec)
	}
	return nil
}

func (o *recordingObserver) ObserveCycle(_ context.Context, sum outcome.Summary) error {
	o.mu.Lock()
	o.cycles = append(o.cycles, sum)
	o.mu.Unlock()
	if o.onCycle != nil {
		o.onCycle(sum)
	}
	return nil
}

func (o *recordingObserver) fileCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.files)
}

func newDaemon(t *testing.T, cfg *config.Config, opts daemon.Options) *daemon.Daemon {
	t.Helper()
	if opts.Runner == nil {
		opts.Runner = &testsupport.FakeRunner{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	d, err := daemon.New(cfg, opts)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func at(hour int) func() time.Time {
	return func() time.Time {
		return time.Date(2026, 3, 14, hour, 0, 0, 0, time.Local)
	}
}

func TestNewRequiresRunner(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := daemon.New(cfg, daemon.Options{}); err == nil {
		t.Fatal("expected error without runner")
	}
}

func TestStartRejectsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := newDaemon(t, cfg, daemon.Options{})
	second := newDaemon(t, cfg, daemon.Options{})

	if err := first.Start(); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	err := second.Start()
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock contention error, got %v", err)
	}

	first.Stop()
	if err := second.Start(); err != nil {
		t.Fatalf("Start after release: %v", err)
	}
	second.Stop()

	if _, err := os.Stat(cfg.LockPath()); err != nil {
		t.Fatalf("expected lock file under state dir: %v", err)
	}
}

func TestRunCycleRespectsScheduleGate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Schedule.StartHour = 22
	cfg.Schedule.EndHour = 6
	testsupport.WriteFile(t, filepath.Join(testsupport.InputDir(cfg), "clip.mp4"), []byte("video"))

	runner := &testsupport.FakeRunner{ProbeBitRate: "5000000"}
	d := newDaemon(t, cfg, daemon.Options{Runner: runner, Now: at(12)})

	result, err := d.RunCycle(context.Background(), daemon.CycleOptions{})
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if !result.GateClosed {
		t.Fatal("expected gate closed at noon")
	}
	want := time.Date(2026, 3, 14, 22, 0, 0, 0, time.Local)
	if !result.NextOpen.Equal(want) {
		t.Fatalf("next open = %s, want %s", result.NextOpen, want)
	}
	if result.Summary != nil {
		t.Fatalf("expected no summary, got %+v", result.Summary)
	}
	if calls := runner.Calls(); len(calls) != 0 {
		t.Fatalf("expected no tool calls while closed, got %d", len(calls))
	}
	if _, err := os.Stat(cfg.Paths.OutputDir); !os.IsNotExist(err) {
		t.Fatalf("output dir should not be created while closed, stat err=%v", err)
	}

	result, err = d.RunCycle(context.Background(), daemon.CycleOptions{IgnoreSchedule: true})
	if err != nil {
		t.Fatalf("RunCycle ignoring schedule: %v", err)
	}
	if result.GateClosed || result.Summary == nil {
		t.Fatalf("expected processed cycle, got %+v", result)
	}
	if result.Summary.Processed != 1 || result.Summary.Counts[outcome.StatusCompleted] != 1 {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.OutputDir, "clip.mp4")); err != nil {
		t.Fatalf("expected output: %v", err)
	}
}

func TestRunCycleEmptyInputStillCreatesOutputDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg, daemon.Options{})

	result, err := d.RunCycle(context.Background(), daemon.CycleOptions{})
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if result.Summary == nil || result.Summary.Total != 0 || result.Summary.Interrupted {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
	if info, err := os.Stat(cfg.Paths.OutputDir); err != nil || !info.IsDir() {
		t.Fatalf("expected output dir to exist, err=%v", err)
	}
}

func TestRunCycleKeepsLastGoodConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	input := testsupport.InputDir(cfg)

	var (
		calls   int
		nextErr error
		nextOut string
	)
	reload := func() (*config.Config, error) {
		calls++
		if nextErr != nil {
			return nil, nextErr
		}
		clone := *cfg
		clone.Paths.OutputDir = nextOut
		return &clone, nil
	}
	d := newDaemon(t, cfg, daemon.Options{Reload: reload})

	nextOut = filepath.Join(base, "published")
	testsupport.WriteFile(t, filepath.Join(input, "a.txt"), []byte("a"))
	if _, err := d.RunCycle(context.Background(), daemon.CycleOptions{}); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	if _, err := os.Stat(filepath.Join(nextOut, "a.txt")); err != nil {
		t.Fatalf("expected reloaded output dir to be used: %v", err)
	}

	nextErr = errors.New("toml: line 3: expected value")
	testsupport.WriteFile(t, filepath.Join(input, "b.txt"), []byte("b"))
	if _, err := d.RunCycle(context.Background(), daemon.CycleOptions{}); err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if _, err := os.Stat(filepath.Join(nextOut, "b.txt")); err != nil {
		t.Fatalf("expected last good config to be kept: %v", err)
	}
	if got := d.Config().Paths.OutputDir; got != nextOut {
		t.Fatalf("config output dir = %q, want %q", got, nextOut)
	}
	if calls != 2 {
		t.Fatalf("expected reload every cycle, got %d calls", calls)
	}
}

func TestRunCycleRecoversPanic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteFile(t, filepath.Join(testsupport.InputDir(cfg), "clip.mp4"), []byte("video"))
	runner := &testsupport.FakeRunner{
		Hook: func(testsupport.ToolCall) (toolrun.Result, bool) {
			panic("probe exploded")
		},
	}
	d := newDaemon(t, cfg, daemon.Options{Runner: runner})

	result, err := d.RunCycle(context.Background(), daemon.CycleOptions{})
	var panicErr *daemon.PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("expected PanicError, got %v", err)
	}
	if panicErr.Value != "probe exploded" || len(panicErr.Stack) == 0 {
		t.Fatalf("unexpected panic error: %+v", panicErr)
	}
	if result.ID == "" {
		t.Fatal("expected cycle id on panic")
	}
}

func TestRunCycleSweepsArtifactsOfInterruptedAttempt(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithTwoPass())
	testsupport.WriteFile(t, filepath.Join(testsupport.InputDir(cfg), "clip.mp4"), []byte("video"))
	crash := true
	runner := &testsupport.FakeRunner{
		ProbeBitRate: "9000000",
		Hook: func(call testsupport.ToolCall) (toolrun.Result, bool) {
			if !crash || filepath.Base(call.Binary) != "ffmpeg" {
				return toolrun.Result{}, false
			}
			testsupport.WriteFile(t, filepath.Join(cfg.Paths.OutputDir, ".passlog-clip-crashed.log"), []byte("stats"))
			testsupport.WriteFile(t, filepath.Join(cfg.Paths.OutputDir, ".clip.tmp-crashed.mp4"), []byte("partial"))
			panic("killed mid-encode")
		},
	}
	d := newDaemon(t, cfg, daemon.Options{Runner: runner})

	var panicErr *daemon.PanicError
	if _, err := d.RunCycle(context.Background(), daemon.CycleOptions{}); !errors.As(err, &panicErr) {
		t.Fatalf("expected PanicError, got %v", err)
	}

	crash = false
	result, err := d.RunCycle(context.Background(), daemon.CycleOptions{})
	if err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if result.Summary == nil || result.Summary.Counts[outcome.StatusCompleted] != 1 {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
	entries, err := os.ReadDir(cfg.Paths.OutputDir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	if len(names) != 1 || names[0] != "clip.mp4" {
		t.Fatalf("output dir should only hold the published file, got %v", names)
	}
}

func TestRunCycleConfigReloadFailureIsConfigurationError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	logPath := filepath.Join(t.TempDir(), "daemon.jsonl")
	logger, err := logging.New(logging.Options{Level: "warn", Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatal(err)
	}
	reload := func() (*config.Config, error) { return nil, errors.New("toml: bad value") }
	d := newDaemon(t, cfg, daemon.Options{Reload: reload, Logger: logger})

	if _, err := d.RunCycle(context.Background(), daemon.CycleOptions{}); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	logs, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(logs), `"event_type":"configuration_error"`) {
		t.Fatalf("expected configuration_error event, got %s", logs)
	}
}

func TestRunCycleOutputDirFailureIsFilesystemError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	blocker := filepath.Join(testsupport.BaseDir(cfg), "blocker")
	testsupport.WriteFile(t, blocker, []byte("not a dir"))
	cfg.Paths.OutputDir = filepath.Join(blocker, "out")
	testsupport.WriteFile(t, filepath.Join(testsupport.InputDir(cfg), "a.txt"), []byte("a"))

	runner := &testsupport.FakeRunner{}
	d := newDaemon(t, cfg, daemon.Options{Runner: runner})
	_, err := d.RunCycle(context.Background(), daemon.CycleOptions{})
	if !errors.Is(err, services.ErrFilesystem) {
		t.Fatalf("expected filesystem error, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(testsupport.InputDir(cfg), "a.txt")); statErr != nil {
		t.Fatalf("input must be untouched: %v", statErr)
	}
}

func TestRunCycleStopsBetweenFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	input := testsupport.InputDir(cfg)
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		testsupport.WriteFile(t, filepath.Join(input, name), []byte(name))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	observer := &recordingObserver{onFile: func(outcome.Record) { cancel() }}
	d := newDaemon(t, cfg, daemon.Options{Observers: []outcome.Observer{observer}})

	result, err := d.RunCycle(ctx, daemon.CycleOptions{})
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if result.Summary == nil {
		t.Fatal("expected summary")
	}
	if result.Summary.Total != 3 || result.Summary.Processed != 1 || !result.Summary.Interrupted {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
	if observer.fileCount() != 1 {
		t.Fatalf("expected one observed file, got %d", observer.fileCount())
	}
	for _, name := range []string{"b.txt", "c.txt"} {
		if _, err := os.Stat(filepath.Join(input, name)); err != nil {
			t.Fatalf("expected %s left in place: %v", name, err)
		}
	}
}

func TestRunCycleReportsMissingTools(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	input := testsupport.InputDir(cfg)
	testsupport.WriteFile(t, filepath.Join(input, "a.mp4"), []byte("video"))
	testsupport.WriteFile(t, filepath.Join(input, "b.mp4"), []byte("video"))
	runner := &testsupport.FakeRunner{Missing: map[string]bool{"ffprobe": true}}
	d := newDaemon(t, cfg, daemon.Options{Runner: runner})

	result, err := d.RunCycle(context.Background(), daemon.CycleOptions{})
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if got := result.Summary.MissingTools; len(got) != 1 || got[0] != "ffprobe" {
		t.Fatalf("missing tools = %v", got)
	}
	if result.Summary.Counts[outcome.StatusFailed] != 2 {
		t.Fatalf("expected both videos failed, got %+v", result.Summary.Counts)
	}
	if calls := runner.CallsTo("ffprobe"); len(calls) != 1 {
		t.Fatalf("expected prober tried once per cycle, got %d", len(calls))
	}
}

func TestRunProcessesUntilCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testsupport.NewConfig(t)
	testsupport.WriteFile(t, filepath.Join(testsupport.InputDir(cfg), "a.txt"), []byte("a"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	observer := &recordingObserver{onCycle: func(outcome.Summary) { cancel() }}
	d := newDaemon(t, cfg, daemon.Options{Observers: []outcome.Observer{observer}})

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.OutputDir, "a.txt")); err != nil {
		t.Fatalf("expected output after first cycle: %v", err)
	}

	// The lock is released once Run returns.
	again := newDaemon(t, cfg, daemon.Options{})
	if err := again.Start(); err != nil {
		t.Fatalf("Start after Run: %v", err)
	}
	again.Stop()
}

func TestRunWakesEarly(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testsupport.NewConfig(t)
	cfg.Schedule.PollInterval = 3600
	input := testsupport.InputDir(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cycles := make(chan outcome.Summary, 4)
	observer := &recordingObserver{onCycle: func(sum outcome.Summary) { cycles <- sum }}
	wake := make(chan struct{}, 1)
	d := newDaemon(t, cfg, daemon.Options{Observers: []outcome.Observer{observer}, Wake: wake})

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	select {
	case sum := <-cycles:
		if sum.Total != 0 {
			t.Fatalf("expected empty first cycle, got %+v", sum)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("first cycle did not finish")
	}

	testsupport.WriteFile(t, filepath.Join(input, "late.txt"), []byte("late"))
	wake <- struct{}{}

	select {
	case sum := <-cycles:
		if sum.Processed != 1 {
			t.Fatalf("expected woken cycle to process the new file, got %+v", sum)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("wake did not trigger a cycle")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
