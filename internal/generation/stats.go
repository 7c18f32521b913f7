package generation

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type StatsSnapshot struct {
	TotalGenerated        int64   `json:"total_generated"`
	Successful            int64   `json:"successful"`
	Timeout               int64   `json:"timeout"`
	Failed                int64   `json:"failed"`
	AverageGenerationTime float64 `json:"average_generation_time"`
}

// Stats counts outcomes and keeps a running mean of successful generation time.
type Stats struct {
	mu      sync.Mutex
	current StatsSnapshot
	metrics *Metrics
}

func NewStats(metrics *Metrics) *Stats {
	return &Stats{metrics: metrics}
}

func (s *Stats) Record(o Outcome) {
	switch v := o.(type) {
	case Success:
		s.RecordSuccess(v.GenerationTime)
	case Timeout:
		s.RecordTimeout()
	case Failure:
		s.RecordFailure()
	}
}

// RecordSuccess folds d into the mean incrementally: avg = (avg*(n-1) + d) / n.
func (s *Stats) RecordSuccess(d time.Duration) {
	s.mu.Lock()
	s.current.TotalGenerated++
	s.current.Successful++
	n := float64(s.current.Successful)
	s.current.AverageGenerationTime = (s.current.AverageGenerationTime*(n-1) + d.Seconds()) / n
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.Outcomes.WithLabelValues(string(StatusSuccess)).Inc()
		s.metrics.Duration.Observe(d.Seconds())
	}
}

func (s *Stats) RecordTimeout() {
	s.mu.Lock()
	s.current.TotalGenerated++
	s.current.Timeout++
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.Outcomes.WithLabelValues(string(StatusTimeout)).Inc()
	}
}

func (s *Stats) RecordFailure() {
	s.mu.Lock()
	s.current.TotalGenerated++
	s.current.Failed++
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.Outcomes.WithLabelValues(string(StatusFailed)).Inc()
	}
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

type Metrics struct {
	Outcomes *prometheus.CounterVec
	Duration prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "outcomes_total",
			Help:      "Generation attempts by outcome",
		}, []string{"outcome"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "duration_seconds",
			Help:      "Wall-clock time of successful generations",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Outcomes, m.Duration)
	}
	return m
}
