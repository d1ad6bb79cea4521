package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"mediacompress/internal/config"
	"mediacompress/internal/logging"
	"mediacompress/internal/media"
	"mediacompress/internal/metrics"
	"mediacompress/internal/outcome"
	"mediacompress/internal/pipeline"
	"mediacompress/internal/scanner"
	"mediacompress/internal/schedule"
	"mediacompress/internal/services"
	"mediacompress/internal/toolrun"
)

// ConfigSource re-reads configuration at the start of every cycle.
type ConfigSource func() (*config.Config, error)

// Options carries the daemon's collaborators.
type Options struct {
	Runner toolrun.Runner
	Logger *slog.Logger
	// Reload is consulted every cycle; nil keeps the initial config.
	Reload    ConfigSource
	Observers []outcome.Observer
	// Recorder receives schedule and skipped-cycle updates when set.
	Recorder *metrics.Recorder
	// Wake ends the sleep between cycles early, e.g. on new input files.
	Wake <-chan struct{}
	Now  func() time.Time
}

// CycleOptions adjusts a single cycle.
type CycleOptions struct {
	IgnoreSchedule bool
}

// CycleResult describes one finished cycle.
type CycleResult struct {
	ID string
	// GateClosed is set when the cycle ended at the schedule gate.
	GateClosed bool
	NextOpen   time.Time
	// Summary is nil unless files were scanned.
	Summary *outcome.Summary
}

// Daemon runs processing cycles and enforces single-instance execution per
// state directory.
type Daemon struct {
	cfg       *config.Config
	reload    ConfigSource
	runner    toolrun.Runner
	logger    *slog.Logger
	observers []outcome.Observer
	recorder  *metrics.Recorder
	wake      <-chan struct{}
	now       func() time.Time

	lockPath string
	lock     *flock.Flock
	running  atomic.Bool
}

// PanicError is returned by RunCycle when a cycle panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("cycle panic: %v", e.Value)
}

// New constructs a daemon from the initial configuration.
func New(cfg *config.Config, opts Options) (*Daemon, error) {
	if cfg == nil || opts.Runner == nil {
		return nil, errors.New("daemon requires config and tool runner")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:       cfg,
		reload:    opts.Reload,
		runner:    opts.Runner,
		logger:    logging.NewComponentLogger(opts.Logger, "daemon"),
		observers: opts.Observers,
		recorder:  opts.Recorder,
		wake:      opts.Wake,
		now:       now,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}, nil
}

// Config returns the configuration the last cycle ran with.
func (d *Daemon) Config() *config.Config {
	return d.cfg
}

// LockPath returns the single-instance lock file.
func (d *Daemon) LockPath() string {
	return d.lockPath
}

// Start acquires the daemon lock.
func (d *Daemon) Start() error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another mediacompress daemon instance is already running")
	}

	d.running.Store(true)
	d.logger.Info("mediacompress daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "next start may report another instance running"),
		)
	}
	d.running.Store(false)
	d.logger.Info("mediacompress daemon stopped")
}

// Run runs cycles until ctx is cancelled, acquiring the lock first unless
// Start was already called. Failed cycles are logged and followed by the
// recovery sleep; nothing short of cancellation ends the loop.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.running.Load() {
		if err := d.Start(); err != nil {
			return err
		}
		defer d.Stop()
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		result, err := d.RunCycle(ctx, CycleOptions{})
		delay := d.cfg.PollInterval()
		switch {
		case err == nil:
			if result.GateClosed {
				d.logger.Debug("outside processing window; sleeping",
					logging.Duration("poll_interval", delay),
					logging.String("next_open", result.NextOpen.Format(time.RFC3339)),
				)
			}
		case ctx.Err() != nil:
			return nil
		default:
			delay = d.logCycleFailure(ctx, result.ID, err)
		}
		if !d.wait(ctx, delay) {
			d.logger.Info("shutdown requested; leaving processing loop")
			return nil
		}
	}
}

func (d *Daemon) logCycleFailure(ctx context.Context, cycleID string, err error) time.Duration {
	logger := logging.WithContext(services.WithCycleID(ctx, cycleID), d.logger)
	attrs := []logging.Attr{
		logging.Error(err),
		logging.String(logging.FieldErrorHint, services.Hint(err)),
	}
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		attrs = append(attrs, logging.String("stack", string(panicErr.Stack)))
	}
	if errors.Is(err, services.ErrFilesystem) {
		logging.ErrorWithContext(logger, "cycle abandoned", services.EventType(err), attrs...)
		return d.cfg.PollInterval()
	}
	delay := d.cfg.RecoverySleep()
	attrs = append(attrs, logging.Duration("recovery_sleep", delay))
	logging.ErrorWithContext(logger, "cycle failed unexpectedly", "cycle_failed", attrs...)
	return delay
}

// wait sleeps for delay and reports false when ctx was cancelled first.
func (d *Daemon) wait(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	case <-d.wake:
		d.logger.Debug("woken early by new input")
		return true
	}
}

// RunCycle performs exactly one cycle. A panic inside the cycle is returned as
// a *PanicError.
func (d *Daemon) RunCycle(ctx context.Context, opts CycleOptions) (result CycleResult, err error) {
	result.ID = uuid.NewString()
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return d.cycle(services.WithCycleID(ctx, result.ID), result, opts)
}

func (d *Daemon) cycle(ctx context.Context, result CycleResult, opts CycleOptions) (CycleResult, error) {
	logger := logging.WithContext(ctx, d.logger)
	cfg := d.resolveConfig(logger)

	now := d.now()
	window := schedule.Window{Start: cfg.Schedule.StartHour, End: cfg.Schedule.EndHour}
	open := window.Allowed(now)
	if d.recorder != nil {
		d.recorder.SetScheduleOpen(open)
	}
	if !open && !opts.IgnoreSchedule {
		result.GateClosed = true
		result.NextOpen = window.NextOpen(now)
		if d.recorder != nil {
			d.recorder.CycleSkipped("outside_window")
		}
		return result, nil
	}

	if err := os.MkdirAll(cfg.Paths.OutputDir, 0o755); err != nil {
		if d.recorder != nil {
			d.recorder.CycleSkipped("aborted")
		}
		return result, services.Wrap(services.ErrFilesystem, "daemon", "ensure output directory",
			"Output directory could not be created", err)
	}

	// The lock guarantees no other task writes here, so leftovers of an
	// interrupted attempt can go.
	if removed, err := pipeline.SweepStale(cfg.Paths.OutputDir); err != nil {
		logging.WarnWithContext(logger, "failed to remove stale artifacts", "cleanup_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "hidden temporary files may remain in the output directory"),
		)
	} else if removed > 0 {
		logger.Info("removed stale artifacts",
			logging.String(logging.FieldEventType, "stale_artifacts_removed"),
			logging.Int("removed", removed),
		)
	}

	entries := scanner.Scan(cfg.Paths.InputDirs, scanner.Options{MinAge: cfg.MinFileAge(), Now: d.now}, d.logger)
	logger.Debug("scan finished", logging.Int("files_total", len(entries)))

	tools := toolrun.NewAvailability()
	executor := pipeline.NewExecutor(d.runner, pipeline.Cycle{
		ID:     result.ID,
		Config: cfg,
		Tools:  tools,
		Logger: d.logger,
	})
	tracker := outcome.NewTracker(result.ID, len(entries), d.logger, d.observers...)
	classifier := media.NewClassifier(cfg)

	for _, entry := range entries {
		if ctx.Err() != nil {
			logger.Info("shutdown requested; stopping before next file")
			break
		}
		task := media.NewTask(entry.Path, cfg.Paths.OutputDir, classifier)
		started := d.now()
		tracker.Record(ctx, task, executor.Execute(ctx, task), d.now().Sub(started))
	}

	missing := missingToolNames(tools)
	if len(missing) > 0 {
		logging.WarnWithContext(logger, "external tools missing this cycle", "tool_missing",
			logging.Any("missing_tools", missing),
			logging.String(logging.FieldErrorHint, "install the tools or set their paths in [tools]; they are retried next cycle"),
			logging.String(logging.FieldImpact, "files needing these tools were left in place"),
		)
	}
	summary := tracker.Finish(ctx, missing)
	result.Summary = &summary
	return result, nil
}

// resolveConfig reloads configuration, keeping the last good value on failure.
func (d *Daemon) resolveConfig(logger *slog.Logger) *config.Config {
	if d.reload == nil {
		return d.cfg
	}
	cfg, err := d.reload()
	if err != nil || cfg == nil {
		if err == nil {
			err = errors.New("config source returned nil")
		}
		err = services.Wrap(services.ErrConfiguration, "daemon", "reload config",
			"Configuration could not be reloaded", err)
		logging.WarnWithContext(logger, "config reload failed; keeping previous configuration", services.EventType(err),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "fix the config file; changes apply on the next cycle"),
			logging.String(logging.FieldImpact, "this cycle runs with the last valid configuration"),
		)
		return d.cfg
	}
	d.cfg = cfg
	return cfg
}

func missingToolNames(tools *toolrun.Availability) []string {
	missing := tools.MissingTools()
	if len(missing) == 0 {
		return nil
	}
	names := make([]string, len(missing))
	for i, tool := range missing {
		names[i] = string(tool)
	}
	return names
}
