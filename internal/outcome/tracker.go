package outcome

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mediacompress/internal/logging"
	"mediacompress/internal/media"
)

// Record is one file's outcome as delivered to observers.
type Record struct {
	CycleID    string
	Ordinal    int
	Total      int
	Name       string
	InputPath  string
	OutputPath string
	Kind       media.Kind
	Outcome    Outcome
	Elapsed    time.Duration
	At         time.Time
}

// Summary aggregates one cycle.
type Summary struct {
	CycleID   string
	Started   time.Time
	Duration  time.Duration
	Total     int
	Processed int
	Counts    map[Status]int
	// Interrupted is set when the cycle stopped before every file ran.
	Interrupted  bool
	MissingTools []string
}

// Observer receives every file record and the cycle summary. Errors are
// logged by the tracker and never change what the pipeline does.
type Observer interface {
	ObserveFile(ctx context.Context, rec Record) error
	ObserveCycle(ctx context.Context, sum Summary) error
}

// Tracker logs per-file outcomes for one cycle and keeps the counters.
type Tracker struct {
	cycleID   string
	total     int
	ordinal   int
	logger    *slog.Logger
	observers []Observer
	counts    map[Status]int
	started   time.Time
	now       func() time.Time
}

// NewTracker starts tracking a cycle of total files.
func NewTracker(cycleID string, total int, logger *slog.Logger, observers ...Observer) *Tracker {
	return &Tracker{
		cycleID:   cycleID,
		total:     total,
		logger:    logging.NewComponentLogger(logger, "outcome"),
		observers: observers,
		counts:    make(map[Status]int, len(Statuses)),
		started:   time.Now(),
		now:       time.Now,
	}
}

// Record logs "ordinal/total: name -> Status [Reason: detail]" and notifies observers.
func (t *Tracker) Record(ctx context.Context, task media.Task, o Outcome, elapsed time.Duration) {
	t.ordinal++
	t.counts[o.Status]++

	line := fmt.Sprintf("%d/%d: %s -> %s", t.ordinal, t.total, task.Name, o)
	attrs := []logging.Attr{
		logging.String(logging.FieldStatus, string(o.Status)),
		logging.String("kind", task.Kind.String()),
		logging.Duration("elapsed", elapsed),
	}
	if o.Reason != "" {
		attrs = append(attrs, logging.String(logging.FieldReason, o.Reason))
	}
	if o.Detail != "" {
		attrs = append(attrs, logging.String("detail", o.Detail))
	}
	logger := logging.WithContext(ctx, t.logger)
	if o.Succeeded() {
		logger.Info(line, logging.Args(append(attrs, logging.String(logging.FieldEventType, "file_processed"))...)...)
	} else {
		logging.WarnWithContext(logger, line, "file_failed", append(attrs,
			logging.String(logging.FieldImpact, FailureImpact(o)),
		)...)
	}

	rec := Record{
		CycleID:    t.cycleID,
		Ordinal:    t.ordinal,
		Total:      t.total,
		Name:       task.Name,
		InputPath:  task.InputPath,
		OutputPath: task.OutputPath,
		Kind:       task.Kind,
		Outcome:    o,
		Elapsed:    elapsed,
		At:         t.now(),
	}
	for _, obs := range t.observers {
		if err := obs.ObserveFile(ctx, rec); err != nil {
			logging.WarnWithContext(logger, "outcome observer failed", "observer_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "history or metrics miss this file"),
			)
		}
	}
}

// Summary returns the counters so far.
func (t *Tracker) Summary() Summary {
	counts := make(map[Status]int, len(t.counts))
	processed := 0
	for status, n := range t.counts {
		counts[status] = n
		if status != StatusFailed {
			processed += n
		}
	}
	return Summary{
		CycleID:     t.cycleID,
		Started:     t.started,
		Duration:    t.now().Sub(t.started),
		Total:       t.total,
		Processed:   processed,
		Counts:      counts,
		Interrupted: t.ordinal < t.total,
	}
}

// Finish logs the cycle summary and notifies observers.
func (t *Tracker) Finish(ctx context.Context, missingTools []string) Summary {
	sum := t.Summary()
	sum.MissingTools = missingTools

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "cycle_summary"),
		logging.Int("files_total", sum.Total),
		logging.Int("processed", sum.Processed),
		logging.Duration("cycle_duration", sum.Duration),
	}
	for _, status := range Statuses {
		if n := sum.Counts[status]; n > 0 {
			attrs = append(attrs, logging.Int(statusKey(status), n))
		}
	}
	if len(missingTools) > 0 {
		attrs = append(attrs, logging.Any("missing_tools", missingTools))
	}
	if sum.Interrupted {
		attrs = append(attrs, logging.Bool("interrupted", true))
	}
	logger := logging.WithContext(ctx, t.logger)
	logger.Info(fmt.Sprintf("cycle finished: %d/%d files processed", sum.Processed, sum.Total), logging.Args(attrs...)...)

	for _, obs := range t.observers {
		if err := obs.ObserveCycle(ctx, sum); err != nil {
			logging.WarnWithContext(logger, "outcome observer failed", "observer_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "history or metrics miss this cycle"),
			)
		}
	}
	return sum
}

func statusKey(s Status) string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusMoved:
		return "moved"
	case StatusCopied:
		return "copied"
	case StatusSkippedExists:
		return "skipped_exists"
	case StatusSkippedUnsupportedMoved:
		return "skipped_unsupported_moved"
	case StatusSkippedCopied:
		return "skipped_copied"
	default:
		return "failed"
	}
}
