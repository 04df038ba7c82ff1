package relay

import (
	"TradeTalk/internal/generation"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const resultSuccess = "success"

// Metrics счётчики релея. nil *Metrics допустим и ничего не делает.
type Metrics struct {
	results          *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	rejectedTurns    *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradetalk_relay_results_total",
			Help: "Generation results by outcome.",
		}, []string{"reason"}),
		providerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tradetalk_provider_duration_seconds",
			Help:    "Duration of outbound provider calls.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		}, []string{"provider"}),
		rejectedTurns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradetalk_session_rejected_turns_total",
			Help: "Websocket session turns rejected before reaching the provider.",
		}, []string{"cause"}),
	}
	reg.MustRegister(m.results, m.providerDuration, m.rejectedTurns)
	return m
}

func (m *Metrics) observe(provider string, reason generation.Reason, took time.Duration) {
	if m == nil {
		return
	}
	label := string(reason)
	if reason == "" {
		label = resultSuccess
	}
	m.results.WithLabelValues(label).Inc()
	m.providerDuration.WithLabelValues(provider).Observe(took.Seconds())
}

func (m *Metrics) rejected(cause string) {
	if m == nil {
		return
	}
	m.rejectedTurns.WithLabelValues(cause).Inc()
}
