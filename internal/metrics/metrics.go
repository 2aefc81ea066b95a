// Package metrics exposes Prometheus instruments for task execution.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "audiotoolbox"

// Metrics holds all application metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// TasksTotal counts finished tasks by kind and status (success|failure).
	TasksTotal *prometheus.CounterVec
	// TaskDurationSeconds observes wall time per task kind.
	TaskDurationSeconds *prometheus.HistogramVec
	// FilesTotal counts targeted files by kind and outcome (processed|failed).
	FilesTotal *prometheus.CounterVec
	// BusyRejectionsTotal counts submissions refused while another task ran.
	BusyRejectionsTotal prometheus.Counter
	// RegistryFiles is the number of files in the current scan generation.
	RegistryFiles prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TasksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_total",
				Help:      "Total number of finished tasks",
			},
			[]string{"kind", "status"},
		),
		TaskDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_duration_seconds",
				Help:      "Duration of tasks in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
			},
			[]string{"kind"},
		),
		FilesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_total",
				Help:      "Total number of files targeted by tasks",
			},
			[]string{"kind", "outcome"},
		),
		BusyRejectionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "busy_rejections_total",
				Help:      "Total number of submissions refused because a task was running",
			},
		),
		RegistryFiles: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "registry_files",
				Help:      "Number of files in the current scan",
			},
		),
	}
}

// ObserveTask records one finished task.
func (m *Metrics) ObserveTask(kind string, success bool, processed, failed int, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "failure"
	if success {
		status = "success"
	}
	m.TasksTotal.WithLabelValues(kind, status).Inc()
	m.TaskDurationSeconds.WithLabelValues(kind).Observe(elapsed.Seconds())
	m.FilesTotal.WithLabelValues(kind, "processed").Add(float64(processed))
	m.FilesTotal.WithLabelValues(kind, "failed").Add(float64(failed))
}

// ObserveBusy records a rejected submission.
func (m *Metrics) ObserveBusy() {
	if m == nil {
		return
	}
	m.BusyRejectionsTotal.Inc()
}

// SetRegistrySize records the size of the current scan generation.
func (m *Metrics) SetRegistrySize(n int) {
	if m == nil {
		return
	}
	m.RegistryFiles.Set(float64(n))
}
