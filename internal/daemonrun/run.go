package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"mediacompress/internal/config"
	"mediacompress/internal/daemon"
	"mediacompress/internal/deps"
	"mediacompress/internal/history"
	"mediacompress/internal/logging"
	"mediacompress/internal/metrics"
	"mediacompress/internal/outcome"
	"mediacompress/internal/preflight"
	"mediacompress/internal/scanner"
	"mediacompress/internal/toolrun"
)

const (
	logPattern    = "mediacompress-*.log"
	eventsPattern = "mediacompress-*.events"
	currentLog    = "mediacompress.log"
	pidFile       = "mediacompress.pid"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// ConfigPath is re-read at the start of every cycle. Empty keeps the
	// configuration passed to Run for the whole process lifetime.
	ConfigPath  string
	LogLevel    string
	Development bool
	// Runner overrides the external tool runner; nil uses os/exec.
	Runner toolrun.Runner
}

// Run starts the mediacompress daemon and blocks until SIGINT, SIGTERM or
// cmdCtx cancellation.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("mediacompress-%s.log", runID))
	eventsPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("mediacompress-%s.events", runID))

	logger, err := newRunLogger(cfg, opts, logPath, eventsPath)
	if err != nil {
		return err
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", currentLog, err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: logPattern, Exclude: []string{logPath}},
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: eventsPattern, Exclude: []string{eventsPath}},
	)
	logDependencySnapshot(logger, cfg)
	logPreflight(logger, cfg)

	store, err := history.Open(cfg)
	if err != nil {
		logger.Error("open history store", logging.Error(err))
		return err
	}
	defer store.Close()

	recorder := metrics.NewRecorder()

	var watcher *scanner.Watcher
	if cfg.Watch.Enabled {
		watcher, err = scanner.NewWatcher(cfg.Paths.InputDirs, scanner.DefaultSettleDelay, logger)
		if err != nil {
			logging.WarnWithContext(logger, "input watcher unavailable; relying on polling", "watcher_unavailable",
				logging.Error(err),
				logging.String(logging.FieldImpact, "new files wait for the next poll"),
			)
			watcher = nil
		}
	}

	d, err := daemon.New(cfg, daemon.Options{
		Runner:    runnerOrDefault(opts.Runner),
		Logger:    logger,
		Reload:    Reloader(opts.ConfigPath),
		Observers: []outcome.Observer{store, recorder},
		Recorder:  recorder,
		Wake:      watcher.Wake(),
	})
	if err != nil {
		watcher.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	// Lock before the pid file and the metrics port.
	if err := d.Start(); err != nil {
		watcher.Close()
		return err
	}
	defer d.Stop()

	pidPath := filepath.Join(cfg.Paths.StateDir, pidFile)
	if err := writePIDFile(pidPath); err != nil {
		watcher.Close()
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	group, groupCtx := errgroup.WithContext(signalCtx)
	if cfg.Metrics.Enabled {
		server := metrics.NewServer(cfg.Metrics.Bind, recorder, logger)
		if _, err := server.Listen(); err != nil {
			logging.WarnWithContext(logger, "metrics endpoint unavailable", "metrics_listen_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "free the port or change [metrics] bind"),
				logging.String(logging.FieldImpact, "metrics and status are unavailable; processing continues"),
			)
		} else {
			group.Go(func() error { return server.Serve(groupCtx) })
		}
	}
	if watcher != nil {
		group.Go(func() error { return watcher.Run(groupCtx) })
	}
	group.Go(func() error {
		err := d.Run(groupCtx)
		// The daemon leaving its loop ends the process; stop the helpers too.
		cancel()
		return err
	})

	err = group.Wait()
	logger.Info("mediacompress daemon shutting down")
	return err
}

// OnceOptions configures a single foreground cycle.
type OnceOptions struct {
	IgnoreSchedule bool
	Logger         *slog.Logger
	Runner         toolrun.Runner
}

// RunOnce executes exactly one cycle in the foreground, recording outcomes in
// the history store. It holds the daemon lock for the duration of the cycle.
func RunOnce(ctx context.Context, cfg *config.Config, opts OnceOptions) (daemon.CycleResult, error) {
	if cfg == nil {
		return daemon.CycleResult{}, fmt.Errorf("config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	store, err := history.Open(cfg)
	if err != nil {
		return daemon.CycleResult{}, err
	}
	defer store.Close()

	d, err := daemon.New(cfg, daemon.Options{
		Runner:    runnerOrDefault(opts.Runner),
		Logger:    logger,
		Observers: []outcome.Observer{store},
	})
	if err != nil {
		return daemon.CycleResult{}, fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(); err != nil {
		return daemon.CycleResult{}, err
	}
	defer d.Stop()
	return d.RunCycle(ctx, daemon.CycleOptions{IgnoreSchedule: opts.IgnoreSchedule})
}

// Reloader returns a config source that re-reads path. An empty path yields
// nil, which keeps the initial configuration.
func Reloader(path string) daemon.ConfigSource {
	if path == "" {
		return nil
	}
	return func() (*config.Config, error) {
		cfg, _, exists, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, errors.New("config file disappeared: " + path)
		}
		return cfg, nil
	}
}

func newRunLogger(cfg *config.Config, opts Options, logPath, eventsPath string) (*slog.Logger, error) {
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	events, err := logging.New(logging.Options{
		Level:            level,
		Format:           "json",
		OutputPaths:      []string{eventsPath},
		ErrorOutputPaths: []string{eventsPath},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to initialize event log: %v\n", err)
		return logger, nil
	}
	return logging.TeeLogger(logger, events.Handler()), nil
}

func runnerOrDefault(runner toolrun.Runner) toolrun.Runner {
	if runner != nil {
		return runner
	}
	return toolrun.ExecRunner{}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, currentLog)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	statuses := preflight.CheckSystemDeps(cfg)
	attrs := []logging.Attr{logging.String(logging.FieldEventType, "dependency_snapshot")}
	for _, status := range statuses {
		attrs = append(attrs,
			logging.Bool(strings.ToLower(status.Name)+"_available", status.Available),
			logging.String(strings.ToLower(status.Name)+"_binary", status.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
	if missing := deps.Missing(statuses); len(missing) > 0 {
		logging.WarnWithContext(logger, "external tools not found at startup", "dependency_missing",
			logging.Any("missing_tools", missing),
			logging.String(logging.FieldErrorHint, "install the tools or set their paths in [tools]"),
			logging.String(logging.FieldImpact, "files needing them are left in place until they appear"),
		)
	}
}

func logPreflight(logger *slog.Logger, cfg *config.Config) {
	for _, result := range preflight.Failed(preflight.RunAll(cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String(logging.FieldReason, result.Detail),
			logging.String(logging.FieldImpact, "cycles may fail until the directory is fixed"),
		)
	}
}
