// Package jobmetrics instruments asynq task handlers.
package jobmetrics

import (
	"errors"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeSkipped = "skipped"
	OutcomeFailure = "failure"
)

// Metrics holds the collectors shared by every job in a process.
type Metrics struct {
	runs     *prometheus.CounterVec
	failures *prometheus.CounterVec
	inFlight *prometheus.GaugeVec
	duration *prometheus.HistogramVec
}

var (
	processOnce    sync.Once
	processMetrics *Metrics
)

// NewMetrics registers the collectors with registerer. A nil registerer
// means the process-wide default, registered once however often this is
// called.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer != nil {
		return register(registerer)
	}
	processOnce.Do(func() {
		processMetrics = register(prometheus.DefaultRegisterer)
	})
	return processMetrics
}

// Attempt measures a single handler invocation.
type Attempt struct {
	m       *Metrics
	job     string
	started time.Time
}

// Track opens an attempt for job. A nil receiver yields a no-op attempt.
func (m *Metrics) Track(job string) *Attempt {
	if m != nil {
		m.inFlight.WithLabelValues(job).Inc()
	}
	return &Attempt{m: m, job: job, started: time.Now()}
}

// End closes the attempt and returns err unchanged so handlers can write
// `return m.Track(name).End(run())`.
func (a *Attempt) End(err error) error {
	if a == nil || a.m == nil {
		return err
	}
	outcome := Outcome(err)
	a.m.inFlight.WithLabelValues(a.job).Dec()
	a.m.runs.WithLabelValues(a.job, outcome).Inc()
	if outcome == OutcomeFailure {
		a.m.failures.WithLabelValues(a.job).Inc()
	}
	a.m.duration.WithLabelValues(a.job).Observe(time.Since(a.started).Seconds())
	return err
}

// Outcome classifies a handler result. Errors wrapping asynq.SkipRetry are
// dropped tasks, not failures.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, asynq.SkipRetry):
		return OutcomeSkipped
	default:
		return OutcomeFailure
	}
}

func register(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studio_jobs_total",
			Help: "Job handler invocations by job and outcome.",
		}, []string{"job", "outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studio_jobs_failures_total",
			Help: "Job handler invocations that returned a retryable error.",
		}, []string{"job"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "studio_jobs_in_flight",
			Help: "Job handler invocations currently running.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "studio_job_duration_seconds",
			Help:    "Job handler duration.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"job"}),
	}
	registerer.MustRegister(m.runs, m.failures, m.inFlight, m.duration)
	return m
}
