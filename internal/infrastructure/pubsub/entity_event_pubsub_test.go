package pubsub

import (
	"context"
	"testing"
	"time"

	"shopify-entity-sync/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usageEvent(kind domain.EntityKind, value string, shops ...string) *domain.EntityUsageEvent {
	return &domain.EntityUsageEvent{
		Kind:  domain.UsageUpdated,
		Usage: &domain.EntityUsage{EntityType: kind, EntityValue: value, ShopDomains: shops},
	}
}

func TestEntityEventPubSub_Filters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ps := NewEntityEventPubSub(zerolog.Nop(), 4)

	brands := ps.Subscribe(ctx, &EntityEventFilter{EntityTypes: []domain.EntityKind{domain.KindBrand}})
	shopB := ps.Subscribe(ctx, &EntityEventFilter{Shop: "b.myshopify.com"})
	all := ps.Subscribe(ctx, nil)

	ps.Publish(usageEvent(domain.KindBrand, "Acme", "a.myshopify.com"))
	ps.Publish(usageEvent(domain.KindProduct, "Shirt", "b.myshopify.com"))

	assert.Len(t, brands.Events, 1)
	assert.Len(t, shopB.Events, 1)
	assert.Len(t, all.Events, 2)

	got := <-shopB.Events
	assert.Equal(t, "Shirt", got.Usage.EntityValue)
}

func TestEntityEventPubSub_DropsWhenFull(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ps := NewEntityEventPubSub(zerolog.Nop(), 1)

	sub := ps.Subscribe(ctx, nil)
	ps.Publish(usageEvent(domain.KindBrand, "Acme"))
	ps.Publish(usageEvent(domain.KindBrand, "Globex"))

	require.Len(t, sub.Events, 1)
	assert.Equal(t, "Acme", (<-sub.Events).Usage.EntityValue)
}

func TestEntityEventPubSub_UnsubscribeOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ps := NewEntityEventPubSub(zerolog.Nop(), 1)

	sub := ps.Subscribe(ctx, nil)
	cancel()

	select {
	case <-sub.Done:
	case <-time.After(time.Second):
		t.Fatal("subscription was not removed")
	}
	assert.Equal(t, 0, ps.Stats()["active_subscriptions"])
}
