package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the parse pipeline.
type Metrics struct {
	// Line metrics
	LinesScanned   prometheus.Counter
	StartEvents    prometheus.Counter
	EndEvents      prometheus.Counter
	UnmatchedLines prometheus.Counter

	// Error metrics
	ParseErrors *prometheus.CounterVec

	// File metrics
	FilesProcessed prometheus.Counter
	FilesSkipped   prometheus.Counter

	// Task metrics
	TasksTracked   prometheus.Gauge
	TasksCompleted prometheus.Gauge
}

// New creates and registers all pipeline metrics on the given registerer.
// Tests pass a fresh registry to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		LinesScanned: factory.NewCounter(prometheus.CounterOpts{
			Name: "compactlog_lines_scanned_total",
			Help: "Total log lines scanned",
		}),
		StartEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "compactlog_start_events_total",
			Help: "Lines matching the compaction-start grammar",
		}),
		EndEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "compactlog_end_events_total",
			Help: "Lines matching the compaction-end grammar",
		}),
		UnmatchedLines: factory.NewCounter(prometheus.CounterOpts{
			Name: "compactlog_unmatched_lines_total",
			Help: "Lines matching neither grammar",
		}),
		ParseErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "compactlog_parse_errors_total",
			Help: "Per-event parse failures by kind",
		}, []string{"kind"}),
		FilesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "compactlog_files_processed_total",
			Help: "Input files read to completion",
		}),
		FilesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "compactlog_files_skipped_total",
			Help: "Input files skipped because they do not exist",
		}),
		TasksTracked: factory.NewGauge(prometheus.GaugeOpts{
			Name: "compactlog_tasks_tracked",
			Help: "Distinct compaction task identifiers observed",
		}),
		TasksCompleted: factory.NewGauge(prometheus.GaugeOpts{
			Name: "compactlog_tasks_completed",
			Help: "Tasks with both a start and an end event",
		}),
	}
}
