package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics records state-machine transitions and webhook outcomes.
type OrderMetrics struct {
	transitions *prometheus.CounterVec
	webhooks    *prometheus.CounterVec
}

// NewOrderMetrics registers the order metrics on the provided registerer.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Order state machine transitions by resulting status.",
	}, []string{"status"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "provider_webhooks_total",
		Help: "Inbound provider webhook deliveries by provider and outcome.",
	}, []string{"provider", "outcome"})
	reg.MustRegister(transitions, webhooks)
	return &OrderMetrics{
		transitions: transitions,
		webhooks:    webhooks,
	}
}

// IncTransition counts a completed transition into the named status.
func (m *OrderMetrics) IncTransition(status string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncWebhook counts a webhook delivery outcome (applied, ignored, rejected).
func (m *OrderMetrics) IncWebhook(provider, outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return strings.ReplaceAll(value, " ", "_")
}
