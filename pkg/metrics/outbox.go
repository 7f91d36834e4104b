package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics records outbox dispatch results.
type OutboxMetrics struct {
	dispatched *prometheus.CounterVec
}

// NewOutboxMetrics registers the outbox metrics on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	dispatched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storepos_outbox_dispatched_total",
		Help: "Outbox events handled by event type and result.",
	}, []string{"event_type", "result"})
	reg.MustRegister(dispatched)
	return &OutboxMetrics{dispatched: dispatched}
}

// IncDispatched counts one handled event; result is published, failed or terminal.
func (m *OutboxMetrics) IncDispatched(eventType, result string) {
	if m == nil || m.dispatched == nil {
		return
	}
	m.dispatched.WithLabelValues(normalizeLabel(eventType), normalizeLabel(result)).Inc()
}
