package workerpool

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	JobsSubmitted prometheus.Counter
	JobsCompleted prometheus.Counter
	JobsFailed    prometheus.Counter
	ActiveWorkers prometheus.Gauge
	QueueDepth    prometheus.Gauge
	JobLatency    prometheus.Histogram
}

// NewMetrics creates the pool collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer, namespace, subsystem string) *Metrics {
	m := &Metrics{
		JobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "jobs_submitted_total",
			Help:      "Total number of jobs accepted by the pool",
		}),
		JobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "jobs_completed_total",
			Help:      "Total number of jobs that ran to completion",
		}),
		JobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "jobs_failed_total",
			Help:      "Total number of jobs whose callable panicked",
		}),
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active_workers",
			Help:      "Number of workers currently executing a job",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queue_depth",
			Help:      "Number of jobs waiting in the queue",
		}),
		JobLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "job_duration_seconds",
			Help:      "Histogram of job execution time",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.JobsSubmitted,
			m.JobsCompleted,
			m.JobsFailed,
			m.ActiveWorkers,
			m.QueueDepth,
			m.JobLatency,
		)
	}
	return m
}
