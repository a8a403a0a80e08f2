package ai

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts provider attempts made by a Chain.
type Metrics struct {
	CallsTotal   *prometheus.CounterVec
	CallDuration *prometheus.HistogramVec
	Exhausted    *prometheus.CounterVec
}

// NewMetrics registers the chain metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		CallsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ideabot_provider_calls_total",
				Help: "Provider calls by provider, operation and result",
			},
			[]string{"provider", "op", "result"},
		),
		CallDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ideabot_provider_call_duration_seconds",
				Help:    "Duration of provider calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "op"},
		),
		Exhausted: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ideabot_provider_chain_exhausted_total",
				Help: "Operations where every provider failed",
			},
			[]string{"op"},
		),
	}
}
