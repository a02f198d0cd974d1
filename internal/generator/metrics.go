package generator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lewisedginton/gemini_relay/pkg/metrics"
)

const outcomeSuccess = "success"

type generatorMetrics struct {
	outcomes *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// newGeneratorMetrics builds the generation collectors and registers them on reg when non-nil.
func newGeneratorMetrics(reg prometheus.Registerer) *generatorMetrics {
	m := &generatorMetrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: metrics.Subsystem,
			Name:      "generations_total",
			Help:      "Generation requests by outcome",
		}, []string{"model", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Subsystem: metrics.Subsystem,
			Name:      "generation_duration_seconds",
			Help:      "Provider call latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		}, []string{"model"}),
	}
	if reg != nil {
		reg.MustRegister(m.outcomes, m.latency)
	}
	return m
}

func (m *generatorMetrics) observe(model string, started time.Time, err error) {
	m.latency.WithLabelValues(model).Observe(time.Since(started).Seconds())

	outcome := outcomeSuccess
	if err != nil {
		outcome = KindOf(err).String()
	}
	m.outcomes.WithLabelValues(model, outcome).Inc()
}
