package application

import (
	"context"
	"errors"
	"testing"

	"shopify-entity-sync/internal/domain"
	"shopify-entity-sync/internal/infrastructure/memory"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAgent = "projects/p/locations/global/agents/a"

func TestEntitySyncService_EnsureEntityType(t *testing.T) {
	ctx := context.Background()
	agent := memory.NewAgent(testAgent)
	svc := NewEntitySyncService(agent, nil, zerolog.Nop())

	first, err := svc.EnsureEntityType(ctx, "Brand")
	require.NoError(t, err)
	second, err := svc.EnsureEntityType(ctx, "Brand")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, agent.Creates)
}

func TestEntitySyncService_CreateOrUpdateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	agent := memory.NewAgent(testAgent)
	svc := NewEntitySyncService(agent, nil, zerolog.Nop())

	incoming := []domain.Entity{
		{Value: "Color", Synonyms: []string{"Color", "Red"}},
		{Value: "Size", Synonyms: []string{"Size"}},
	}
	require.NoError(t, svc.CreateOrUpdateEntityType(ctx, "ProductOptions", incoming))
	once := agent.Entities("ProductOptions")

	require.NoError(t, svc.CreateOrUpdateEntityType(ctx, "ProductOptions", incoming))
	assert.Equal(t, once, agent.Entities("ProductOptions"))

	require.NoError(t, svc.CreateOrUpdateEntityType(ctx, "ProductOptions", []domain.Entity{{Value: "Color", Synonyms: []string{"Blue"}}}))
	got := agent.Entities("ProductOptions")
	require.Len(t, got, 2)
	assert.ElementsMatch(t, []string{"Color", "Red", "Blue"}, got[0].Synonyms)
}

func TestEntitySyncService_RemoveValue(t *testing.T) {
	ctx := context.Background()
	agent := memory.NewAgent(testAgent)
	svc := NewEntitySyncService(agent, nil, zerolog.Nop())

	t.Run("missing entity type is a no-op", func(t *testing.T) {
		require.NoError(t, svc.RemoveValue(ctx, domain.KindBrand, "Acme"))
		assert.Zero(t, agent.Creates)
	})

	require.NoError(t, svc.Push(ctx, domain.KindBrand, []domain.Entity{
		{Value: "Acme", Synonyms: []string{"Acme"}},
		{Value: "Globex", Synonyms: []string{"Globex"}},
	}))

	t.Run("filters the value", func(t *testing.T) {
		require.NoError(t, svc.RemoveValue(ctx, domain.KindBrand, "Acme"))
		assert.Equal(t, []string{"Globex"}, agent.Values("Brand"))
	})

	t.Run("absent value is a no-op", func(t *testing.T) {
		updates := agent.Updates
		require.NoError(t, svc.RemoveValue(ctx, domain.KindBrand, "Acme"))
		assert.Equal(t, updates, agent.Updates)
		assert.Equal(t, []string{"Globex"}, agent.Values("Brand"))
	})
}

func TestEntitySyncService_PropagatesRPCFailure(t *testing.T) {
	ctx := context.Background()
	agent := memory.NewAgent(testAgent)
	svc := NewEntitySyncService(agent, nil, zerolog.Nop())

	rpcErr := errors.New("unavailable")
	agent.FailNext(rpcErr)

	err := svc.Push(ctx, domain.KindProduct, []domain.Entity{{Value: "Shirt", Synonyms: []string{"Shirt"}}})
	assert.ErrorIs(t, err, rpcErr)
	assert.Empty(t, agent.Values("Product"))
}

func TestInlineSync_EndToEnd(t *testing.T) {
	ctx := context.Background()
	agent := memory.NewAgent(testAgent)
	logger := zerolog.Nop()
	syncSvc := NewEntitySyncService(agent, nil, logger)
	usageRepo := memory.NewEntityUsageStore()
	products := memory.NewProductStore()
	usage := NewEntityUsageService(usageRepo, syncSvc, nil, nil, logger)
	reconciler := NewReconciler(usage, syncSvc, products, usageRepo, logger)

	p := &domain.Product{
		ProductID:  1,
		ShopDomain: shopA,
		Title:      "Shirt",
		Vendor:     "Acme",
		Options:    []domain.ProductOption{{Name: "Color", Values: []string{"Red", "Blue"}}},
		Variants:   []domain.ProductVariant{{Title: "Red"}, {Title: "Blue"}},
	}
	require.NoError(t, reconciler.UpdateDialogflowEntities(ctx, shopA, []*domain.Product{p}))

	assert.Equal(t, []string{"Shirt"}, agent.Values("Product"))
	assert.Equal(t, []string{"Acme"}, agent.Values("Brand"))
	assert.Equal(t, []string{"Shirt Red", "Shirt Blue"}, agent.Values("ProductVariants"))
	assert.ElementsMatch(t, []string{"Color", "Red", "Blue"}, agent.Entities("ProductOptions")[0].Synonyms)

	require.NoError(t, reconciler.CleanUpEntities(ctx, []*domain.Product{p}))

	for _, kind := range domain.EntityKinds {
		assert.Empty(t, agent.Values(string(kind)), kind)
	}
}
