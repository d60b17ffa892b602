package cost

import "github.com/prometheus/client_golang/prometheus"

// Metrics exports sampler self-telemetry. A nil *Metrics is a no-op.
type Metrics struct {
	Ticks            prometheus.Counter
	SnapshotFailures prometheus.Counter
	TickDuration     prometheus.Histogram
	SamplerCPU       prometheus.Counter
	Threads          prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "threadtop_ticks_total",
			Help: "Sampling iterations run.",
		}),
		SnapshotFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "threadtop_snapshot_failures_total",
			Help: "Iterations aborted by a transient telemetry error.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "threadtop_tick_duration_seconds",
			Help:    "Wall time of one sampling iteration.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		SamplerCPU: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "threadtop_sampler_cpu_seconds_total",
			Help: "CPU time consumed by the sampler inside iterations.",
		}),
		Threads: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "threadtop_threads",
			Help: "Live threads seen in the last snapshot.",
		}),
	}
	reg.MustRegister(m.Ticks, m.SnapshotFailures, m.TickDuration, m.SamplerCPU, m.Threads)
	return m
}

func (m *Metrics) observeCost(s Sample) {
	if m == nil {
		return
	}
	m.Ticks.Inc()
	m.TickDuration.Observe(s.Wall.Seconds())
	if s.CPU > 0 {
		m.SamplerCPU.Add(s.CPU.Seconds())
	}
}

// SnapshotFailed counts one aborted iteration.
func (m *Metrics) SnapshotFailed() {
	if m == nil {
		return
	}
	m.SnapshotFailures.Inc()
}

// SetThreads records the number of live threads.
func (m *Metrics) SetThreads(n int) {
	if m == nil {
		return
	}
	m.Threads.Set(float64(n))
}
