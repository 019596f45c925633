// Package metrics exposes counter and sync outcomes to Prometheus
package metrics

import (
	"shopify-entity-sync/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "entity_sync"

// Prometheus implements ports.SyncMetrics and the webhook ingress metrics
type Prometheus struct {
	transitions *prometheus.CounterVec
	anomalies   *prometheus.CounterVec
	syncResults *prometheus.CounterVec
	webhooks    *prometheus.CounterVec
}

// NewPrometheus registers the collectors on reg
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	factory := promauto.With(reg)
	return &Prometheus{
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "counter_transitions_total",
				Help:      "Committed reference-counter transitions.",
			},
			[]string{"entity_type", "transition"},
		),
		anomalies: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "usage_anomalies_total",
				Help:      "Decrements that found no counter record.",
			},
			[]string{"entity_type"},
		),
		syncResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dialogflow_sync_total",
				Help:      "Dialogflow entity type updates by operation and outcome.",
			},
			[]string{"op", "entity_type", "outcome"},
		),
		webhooks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhooks_total",
				Help:      "Shopify webhook deliveries by topic and outcome.",
			},
			[]string{"topic", "outcome"},
		),
	}
}

func (m *Prometheus) CounterTransition(kind domain.EntityKind, transition domain.EntityUsageEventKind) {
	m.transitions.WithLabelValues(string(kind), string(transition)).Inc()
}

func (m *Prometheus) UsageAnomaly(kind domain.EntityKind) {
	m.anomalies.WithLabelValues(string(kind)).Inc()
}

func (m *Prometheus) SyncResult(op domain.SyncOp, kind domain.EntityKind, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.syncResults.WithLabelValues(string(op), string(kind), outcome).Inc()
}

// WebhookReceived counts one webhook delivery. outcome is one of processed, duplicate,
// rejected or failed.
func (m *Prometheus) WebhookReceived(topic, outcome string) {
	m.webhooks.WithLabelValues(topic, outcome).Inc()
}
