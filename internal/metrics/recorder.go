package metrics

import (
	"context"
	"slices"
	"sync"
	"time"

	"mediacompress/internal/outcome"
	"mediacompress/internal/toolrun"
)

// CycleStatus is the last finished cycle as reported by /status.
type CycleStatus struct {
	ID           string         `json:"id"`
	FinishedAt   time.Time      `json:"finished_at"`
	Duration     string         `json:"duration"`
	Total        int            `json:"total"`
	Processed    int            `json:"processed"`
	Counts       map[string]int `json:"counts"`
	Interrupted  bool           `json:"interrupted"`
	MissingTools []string       `json:"missing_tools,omitempty"`
}

// Snapshot is the /status payload.
type Snapshot struct {
	StartedAt     time.Time    `json:"started_at"`
	ScheduleOpen  bool         `json:"schedule_open"`
	FilesRecorded int          `json:"files_recorded"`
	LastCycle     *CycleStatus `json:"last_cycle,omitempty"`
}

// Recorder feeds outcome records into the Prometheus collectors and keeps a
// snapshot for the status endpoint. It implements outcome.Observer.
type Recorder struct {
	mu       sync.Mutex
	snapshot Snapshot
}

// NewRecorder returns a recorder whose uptime starts now.
func NewRecorder() *Recorder {
	return &Recorder{snapshot: Snapshot{StartedAt: time.Now().UTC()}}
}

// ObserveFile implements outcome.Observer.
func (r *Recorder) ObserveFile(_ context.Context, rec outcome.Record) error {
	kind := rec.Kind.String()
	FilesProcessedTotal.WithLabelValues(string(rec.Outcome.Status), kind).Inc()
	FileDuration.WithLabelValues(kind).Observe(rec.Elapsed.Seconds())

	r.mu.Lock()
	r.snapshot.FilesRecorded++
	r.mu.Unlock()
	return nil
}

// ObserveCycle implements outcome.Observer.
func (r *Recorder) ObserveCycle(_ context.Context, sum outcome.Summary) error {
	result := "completed"
	if sum.Interrupted {
		result = "interrupted"
	}
	CyclesTotal.WithLabelValues(result).Inc()
	finished := sum.Started.Add(sum.Duration)
	LastCycleTimestamp.Set(float64(finished.Unix()))
	LastCycleFiles.WithLabelValues("total").Set(float64(sum.Total))
	LastCycleFiles.WithLabelValues("processed").Set(float64(sum.Processed))
	for _, tool := range []toolrun.Tool{toolrun.FFmpeg, toolrun.FFprobe, toolrun.ExifTool} {
		value := 0.0
		if slices.Contains(sum.MissingTools, string(tool)) {
			value = 1
		}
		ToolMissing.WithLabelValues(string(tool)).Set(value)
	}

	counts := make(map[string]int, len(sum.Counts))
	for status, n := range sum.Counts {
		counts[string(status)] = n
	}
	r.mu.Lock()
	r.snapshot.LastCycle = &CycleStatus{
		ID:           sum.CycleID,
		FinishedAt:   finished.UTC(),
		Duration:     sum.Duration.Round(time.Millisecond).String(),
		Total:        sum.Total,
		Processed:    sum.Processed,
		Counts:       counts,
		Interrupted:  sum.Interrupted,
		MissingTools: slices.Clone(sum.MissingTools),
	}
	r.mu.Unlock()
	return nil
}

// CycleSkipped counts a cycle that ended before scanning, e.g. outside the
// processing window or when the output directory could not be created.
func (r *Recorder) CycleSkipped(reason string) {
	CyclesTotal.WithLabelValues(reason).Inc()
}

// SetScheduleOpen records the latest schedule gate decision.
func (r *Recorder) SetScheduleOpen(open bool) {
	value := 0.0
	if open {
		value = 1
	}
	ScheduleOpen.Set(value)

	r.mu.Lock()
	r.snapshot.ScheduleOpen = open
	r.mu.Unlock()
}

// Snapshot returns a copy of the current status.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := r.snapshot
	if snap.LastCycle != nil {
		last := *snap.LastCycle
		snap.LastCycle = &last
	}
	return snap
}
