package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the detection loop.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Loop
	Cycles        *prometheus.CounterVec
	CycleDuration prometheus.Histogram
	CaptureErrors prometheus.Counter
	Running       prometheus.Gauge

	// Signal
	Entropy    *prometheus.GaugeVec
	Samples    prometheus.Gauge
	StatsValue *prometheus.GaugeVec
	StatsDrops prometheus.Counter
}

// New creates the instruments and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Cycles: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entropycam_cycles_total",
				Help: "Detection cycles by outcome",
			},
			[]string{"result"}, // result: ok, capture_error, analysis_error, panic
		),
		CycleDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "entropycam_cycle_duration_seconds",
				Help:    "Time spent capturing and analysing one cycle, excluding the settle wait",
				Buckets: prometheus.DefBuckets,
			},
		),
		CaptureErrors: f.NewCounter(
			prometheus.CounterOpts{
				Name: "entropycam_capture_errors_total",
				Help: "Failed captures",
			},
		),
		Running: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "entropycam_detector_running",
				Help: "1 while detection is enabled",
			},
		),
		Entropy: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "entropycam_entropy",
				Help: "Entropy of the last difference image",
			},
			[]string{"band"}, // band: total, r, g, b
		),
		Samples: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "entropycam_entropy_samples",
				Help: "Samples in the current entropy series",
			},
		),
		StatsValue: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "entropycam_entropy_stats",
				Help: "Running statistics of the entropy series",
			},
			[]string{"stat"}, // stat: mean, sample_variance, sample_std_dev
		),
		StatsDrops: f.NewCounter(
			prometheus.CounterOpts{
				Name: "entropycam_stats_dropped_total",
				Help: "Statistics tasks skipped because the worker pool was saturated",
			},
		),
	}
}

func (m *Metrics) Cycle(result string, seconds float64) {
	if m == nil {
		return
	}
	m.Cycles.WithLabelValues(result).Inc()
	m.CycleDuration.Observe(seconds)
}

func (m *Metrics) CaptureFailed() {
	if m == nil {
		return
	}
	m.CaptureErrors.Inc()
}

func (m *Metrics) SetRunning(on bool) {
	if m == nil {
		return
	}
	if on {
		m.Running.Set(1)
		return
	}
	m.Running.Set(0)
}

func (m *Metrics) ObserveEntropy(total, r, g, b float64, samples int) {
	if m == nil {
		return
	}
	m.Entropy.WithLabelValues("total").Set(total)
	m.Entropy.WithLabelValues("r").Set(r)
	m.Entropy.WithLabelValues("g").Set(g)
	m.Entropy.WithLabelValues("b").Set(b)
	m.Samples.Set(float64(samples))
}

func (m *Metrics) ObserveStats(mean, variance, stddev float64) {
	if m == nil {
		return
	}
	m.StatsValue.WithLabelValues("mean").Set(mean)
	m.StatsValue.WithLabelValues("sample_variance").Set(variance)
	m.StatsValue.WithLabelValues("sample_std_dev").Set(stddev)
}

func (m *Metrics) StatsDropped() {
	if m == nil {
		return
	}
	m.StatsDrops.Inc()
}
