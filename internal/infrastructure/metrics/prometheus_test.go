package metrics

import (
	"errors"
	"testing"

	"shopify-entity-sync/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheus(reg)

	m.CounterTransition(domain.KindBrand, domain.UsageCreated)
	m.CounterTransition(domain.KindBrand, domain.UsageCreated)
	m.UsageAnomaly(domain.KindProduct)
	m.SyncResult(domain.SyncOpPush, domain.KindBrand, nil)
	m.SyncResult(domain.SyncOpRemove, domain.KindBrand, errors.New("unavailable"))
	m.WebhookReceived("products/create", "duplicate")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("Brand", "created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.anomalies.WithLabelValues("Product")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.syncResults.WithLabelValues("push", "Brand", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.syncResults.WithLabelValues("remove", "Brand", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.webhooks.WithLabelValues("products/create", "duplicate")))
}
