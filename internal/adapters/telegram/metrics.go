package telegram

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts handled updates and captured ideas. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	UpdatesTotal  *prometheus.CounterVec
	IdeasCaptured *prometheus.CounterVec
}

// NewMetrics registers the bot metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		UpdatesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ideabot_telegram_updates_total",
				Help: "Telegram updates by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		IdeasCaptured: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ideabot_ideas_captured_total",
				Help: "Ideas saved, by input kind",
			},
			[]string{"input"},
		),
	}
}

func (m *Metrics) observeUpdate(kind, outcome string) {
	if m == nil {
		return
	}
	m.UpdatesTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) observeCapture(input string) {
	if m == nil {
		return
	}
	m.IdeasCaptured.WithLabelValues(input).Inc()
}
