package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"mediacompress/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	// OutputPaths and ErrorOutputPaths accept "stdout", "stderr" or file
	// paths. Both lists share one writer; duplicates are opened once.
	OutputPaths      []string
	ErrorOutputPaths []string
	// Development adds source locations to every record.
	Development bool
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	levelVar := new(slog.LevelVar)
	levelVar.Set(parseLevel(opts.Level))

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}
	if format != "console" && format != "json" {
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	writer, err := openSinks(sinkNames(opts.OutputPaths, opts.ErrorOutputPaths))
	if err != nil {
		return nil, err
	}

	addSource := opts.Development || levelVar.Level() <= slog.LevelDebug
	if format == "json" {
		return slog.New(newJSONHandler(writer, levelVar, addSource)), nil
	}
	return slog.New(newPrettyHandler(writer, levelVar, addSource)), nil
}

// NewFromConfig creates a console/stdout logger using the configured level
// and format. Daemon runs add a per-run file through daemonrun instead.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console"})
	}
	return New(Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// sinkNames merges output and error destinations in order, dropping blanks
// and duplicates. stderr is dropped when stdout is present since the console
// already receives every record.
func sinkNames(outputs, errors []string) []string {
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}
	if len(errors) == 0 {
		errors = []string{"stderr"}
	}
	var names []string
	for _, name := range slices.Concat(outputs, errors) {
		name = strings.TrimSpace(name)
		if name == "" || slices.Contains(names, name) {
			continue
		}
		names = append(names, name)
	}
	if slices.Contains(names, "stdout") {
		names = slices.DeleteFunc(names, func(n string) bool { return n == "stderr" })
	}
	return names
}

func openSinks(names []string) (io.Writer, error) {
	writers := make([]io.Writer, 0, len(names))
	for _, name := range names {
		switch name {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
				return nil, fmt.Errorf("create log directory for %s: %w", name, err)
			}
			file, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
			if err != nil {
				return nil, fmt.Errorf("open log file %s: %w", name, err)
			}
			writers = append(writers, file)
		}
	}
	switch len(writers) {
	case 0:
		return os.Stdout, nil
	case 1:
		return writers[0], nil
	default:
		return io.MultiWriter(writers...), nil
	}
}
