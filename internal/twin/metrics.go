package twin

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for simulation runs.
type Metrics struct {
	active    prometheus.Gauge
	frames    prometheus.Counter
	recovered prometheus.Counter
	runs      *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the twin metrics. A nil registerer uses the Prometheus
// default registerer once per process.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

func (m *Metrics) runStarted() {
	if m != nil {
		m.active.Inc()
	}
}

func (m *Metrics) runFinished(status Status) {
	if m != nil {
		m.active.Dec()
		m.runs.WithLabelValues(string(status)).Inc()
	}
}

func (m *Metrics) frameRendered() {
	if m != nil {
		m.frames.Inc()
	}
}

func (m *Metrics) panicRecovered() {
	if m != nil {
		m.recovered.Inc()
	}
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	active := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "studio_twin_active_runs",
		Help: "Simulation runs currently rendering frames.",
	})
	frames := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "studio_twin_frames_total",
		Help: "Frames rendered across all simulation runs.",
	})
	recovered := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "studio_twin_frame_panics_total",
		Help: "Frame renders that panicked and were recovered.",
	})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "studio_twin_runs_total",
		Help: "Finished simulation runs partitioned by final status.",
	}, []string{"status"})
	registerer.MustRegister(active, frames, recovered, runs)
	return &Metrics{active: active, frames: frames, recovered: recovered, runs: runs}
}
