package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// File metrics
var (
	FilesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediacompress_files_processed_total",
			Help: "Files that reached a terminal outcome, by status and media kind",
		},
		[]string{"status", "kind"},
	)

	FileDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediacompress_file_duration_seconds",
			Help:    "Wall time spent on one file, probe through publish",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"kind"},
	)
)

// Cycle metrics
var (
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediacompress_cycles_total",
			Help: "Processing cycles by result (completed, interrupted, skipped, aborted)",
		},
		[]string{"result"},
	)

	LastCycleTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediacompress_last_cycle_timestamp_seconds",
			Help: "Unix timestamp of the last finished cycle",
		},
	)

	LastCycleFiles = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mediacompress_last_cycle_files",
			Help: "Files seen by the last cycle, total and processed",
		},
		[]string{"count"},
	)

	ScheduleOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediacompress_schedule_open",
			Help: "1 when the processing window is open",
		},
	)

	ToolMissing = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mediacompress_tool_missing",
			Help: "1 when the tool could not be started during the last cycle",
		},
		[]string{"tool"},
	)
)
