package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SweeperMetrics records metadata for reservation sweep runs.
type SweeperMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	released *prometheus.CounterVec
}

// NewSweeperMetrics registers the sweeper metrics on the provided registerer.
func NewSweeperMetrics(reg prometheus.Registerer) *SweeperMetrics {
	if reg == nil {
		return &SweeperMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sweep_duration_seconds",
		Help:    "Duration of sweep jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sweep_success",
		Help: "Successful sweep executions.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sweep_failure",
		Help: "Failed sweep executions.",
	}, []string{"job"})
	released := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sweep_reservations_released",
		Help: "Reservations released by sweep executions.",
	}, []string{"job"})
	reg.MustRegister(duration, success, failure, released)
	return &SweeperMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		released: released,
	}
}

// ObserveDuration records the duration for the named job.
func (s *SweeperMetrics) ObserveDuration(job string, duration time.Duration) {
	if s == nil || s.duration == nil {
		return
	}
	s.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named job.
func (s *SweeperMetrics) IncSuccess(job string) {
	if s == nil || s.success == nil {
		return
	}
	s.success.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncFailure increments the failure counter for the named job.
func (s *SweeperMetrics) IncFailure(job string) {
	if s == nil || s.failure == nil {
		return
	}
	s.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

// AddReleased records how many reservations a run released.
func (s *SweeperMetrics) AddReleased(job string, count int) {
	if s == nil || s.released == nil || count <= 0 {
		return
	}
	s.released.WithLabelValues(normalizeLabel(job)).Add(float64(count))
}

func normalizeLabel(job string) string {
	if job == "" {
		return "unknown"
	}
	return job
}
