package graph

import (
	"context"
	"testing"
	"time"

	"shopify-entity-sync/internal/application"
	"shopify-entity-sync/internal/domain"
	"shopify-entity-sync/internal/infrastructure/memory"
	"shopify-entity-sync/internal/infrastructure/pubsub"

	"github.com/99designs/gqlgen/client"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shopA = "shop-a.myshopify.com"

type graphFixture struct {
	client   *client.Client
	usage    *application.EntityUsageService
	catalog  *application.CatalogService
	events   *pubsub.EntityEventPubSub
	jobs     *memory.SyncJobStore
	shops    *memory.Repository
	usageRep *memory.EntityUsageStore
}

func newGraphFixture(t *testing.T) *graphFixture {
	t.Helper()
	logger := zerolog.Nop()

	f := &graphFixture{
		events:   pubsub.NewEntityEventPubSub(logger, 8),
		jobs:     memory.NewSyncJobStore(),
		shops:    memory.NewRepository(),
		usageRep: memory.NewEntityUsageStore(),
	}
	products := memory.NewProductStore()
	syncer := application.NewEntitySyncService(memory.NewAgent("projects/p/locations/global/agents/a"), nil, logger)
	f.usage = application.NewEntityUsageService(f.usageRep, syncer, f.events, nil, logger)
	reconciler := application.NewReconciler(f.usage, syncer, products, f.usageRep, logger)
	f.catalog = application.NewCatalogService(products, reconciler, logger)
	shopify := application.NewShopifyService(f.shops, nil, nil, f.catalog, logger, "https://sync.example.com", nil)

	f.client = client.New(NewHandler(NewResolver(f.usage, reconciler, f.catalog, shopify, f.events, f.jobs, logger)))

	require.NoError(t, f.catalog.ImportShop(context.Background(), shopA, []*domain.Product{
		{ProductID: 1, Title: "Shirt", Vendor: "Acme", Variants: []domain.ProductVariant{{Title: "Red / S"}}},
	}))
	return f
}

func TestQuery_Entities(t *testing.T) {
	f := newGraphFixture(t)

	var resp struct {
		Entities []struct {
			EntityValue string   `json:"entityValue"`
			UsageCount  int      `json:"usageCount"`
			ShopDomains []string `json:"shopDomains"`
		} `json:"entities"`
	}
	err := f.client.Post(`query($type: EntityType!) { entities(entityType: $type) { entityValue usageCount shopDomains } }`,
		&resp, client.Var("type", "Brand"))
	require.NoError(t, err)
	require.Len(t, resp.Entities, 1)
	assert.Equal(t, "Acme", resp.Entities[0].EntityValue)
	assert.Equal(t, 1, resp.Entities[0].UsageCount)
	assert.Equal(t, []string{shopA}, resp.Entities[0].ShopDomains)

	t.Run("empty type is an empty list", func(t *testing.T) {
		var resp struct {
			Entities []struct {
				EntityValue string `json:"entityValue"`
			} `json:"entities"`
		}
		require.NoError(t, f.client.Post(`{ entities(entityType: ProductOptions) { entityValue } }`, &resp))
		assert.Empty(t, resp.Entities)
	})

	t.Run("unknown entity type is rejected", func(t *testing.T) {
		var resp map[string]any
		assert.Error(t, f.client.Post(`{ entities(entityType: Colour) { entityValue } }`, &resp))
	})
}

func TestQuery_Entity(t *testing.T) {
	f := newGraphFixture(t)

	var resp struct {
		Variant *struct {
			Typename    string `json:"__typename"`
			EntityValue string `json:"entityValue"`
			UsageCount  int    `json:"usageCount"`
		} `json:"variant"`
		Missing *struct {
			EntityValue string `json:"entityValue"`
		} `json:"missing"`
	}
	err := f.client.Post(`query($value: String!) {
		variant: entity(entityType: ProductVariants, value: $value) { __typename entityValue usageCount }
		missing: entity(entityType: Brand, value: "Globex") { entityValue }
	}`, &resp, client.Var("value", "Shirt Red / S"))
	require.NoError(t, err)

	require.NotNil(t, resp.Variant)
	assert.Equal(t, "EntityUsage", resp.Variant.Typename)
	assert.Equal(t, "Shirt Red / S", resp.Variant.EntityValue)
	assert.Equal(t, 1, resp.Variant.UsageCount)
	assert.Nil(t, resp.Missing)
}

func TestQuery_ShopsAndProducts(t *testing.T) {
	f := newGraphFixture(t)
	ctx := context.Background()
	require.NoError(t, f.shops.SaveShop(ctx, &domain.Shop{
		Domain:      shopA,
		Name:        "Shop A",
		AccessToken: "encrypted",
		InstalledAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}))

	var resp struct {
		Shops []struct {
			Domain        string  `json:"domain"`
			Name          string  `json:"name"`
			InstalledAt   string  `json:"installedAt"`
			UninstalledAt *string `json:"uninstalledAt"`
		} `json:"shops"`
		Products []struct {
			ProductID int    `json:"productId"`
			Title     string `json:"title"`
			Vendor    string `json:"vendor"`
			Variants  []struct {
				Title string `json:"title"`
			} `json:"variants"`
		} `json:"products"`
	}
	err := f.client.Post(`query($shop: String!) {
		shops { domain name installedAt uninstalledAt }
		products(shop: $shop) { productId title vendor variants { title } }
	}`, &resp, client.Var("shop", shopA))
	require.NoError(t, err)

	require.Len(t, resp.Shops, 1)
	assert.Equal(t, "Shop A", resp.Shops[0].Name)
	assert.Equal(t, "2024-03-01T12:00:00Z", resp.Shops[0].InstalledAt)
	assert.Nil(t, resp.Shops[0].UninstalledAt)

	require.Len(t, resp.Products, 1)
	assert.Equal(t, 1, resp.Products[0].ProductID)
	assert.Equal(t, "Acme", resp.Products[0].Vendor)
	require.Len(t, resp.Products[0].Variants, 1)
	assert.Equal(t, "Red / S", resp.Products[0].Variants[0].Title)
}

func TestQuery_SyncStatus(t *testing.T) {
	f := newGraphFixture(t)
	require.NoError(t, f.jobs.Enqueue(context.Background(), &domain.SyncJob{
		ID:            "job-1",
		Op:            domain.SyncOpRemove,
		EntityType:    domain.KindBrand,
		Value:         "Acme",
		Status:        domain.SyncJobPending,
		NextAttemptAt: time.Now(),
	}))

	var resp struct {
		SyncStatus struct {
			Mode    string `json:"mode"`
			Pending int    `json:"pending"`
			Dead    int    `json:"dead"`
		} `json:"syncStatus"`
	}
	require.NoError(t, f.client.Post(`{ syncStatus { mode pending dead } }`, &resp))
	assert.Equal(t, "outbox", resp.SyncStatus.Mode)
	assert.Equal(t, 1, resp.SyncStatus.Pending)
	assert.Zero(t, resp.SyncStatus.Dead)
}

func TestMutation_RebuildCounters(t *testing.T) {
	f := newGraphFixture(t)
	require.NoError(t, f.usageRep.Put(context.Background(), domain.NewEntityUsage(domain.KindBrand, "Stale", shopA, 2, time.Now())))

	var resp struct {
		RebuildCounters struct {
			Shops    int `json:"shops"`
			Products int `json:"products"`
			Removed  int `json:"removed"`
		} `json:"rebuildCounters"`
	}
	require.NoError(t, f.client.Post(`mutation { rebuildCounters { shops products removed } }`, &resp))
	assert.Equal(t, 1, resp.RebuildCounters.Shops)
	assert.Equal(t, 1, resp.RebuildCounters.Products)
	assert.Equal(t, 1, resp.RebuildCounters.Removed)

	u, err := f.usageRep.Get(context.Background(), domain.KindBrand, "Stale")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestMutation_ResyncUnknownShop(t *testing.T) {
	f := newGraphFixture(t)

	var resp map[string]any
	err := f.client.Post(`mutation { resyncShop(shop: "other.myshopify.com") { shop products } }`, &resp)
	assert.Error(t, err)
}

func TestSubscription_EntityUsageChanged(t *testing.T) {
	f := newGraphFixture(t)
	ctx := context.Background()

	sub := f.client.Websocket(`subscription {
		entityUsageChanged(entityTypes: [Brand]) { kind usage { entityType entityValue usageCount } }
	}`)
	defer sub.Close()

	require.Eventually(t, func() bool {
		return f.events.Stats()["active_subscriptions"] == 1
	}, 2*time.Second, 10*time.Millisecond)

	// filtered out by entity type
	require.NoError(t, f.usage.Increment(ctx, shopA, domain.KindProduct, "Hat", 1))
	require.NoError(t, f.usage.Increment(ctx, shopA, domain.KindBrand, "Globex", 1))

	var resp struct {
		EntityUsageChanged struct {
			Kind  string `json:"kind"`
			Usage struct {
				EntityType  string `json:"entityType"`
				EntityValue string `json:"entityValue"`
				UsageCount  int    `json:"usageCount"`
			} `json:"usage"`
		} `json:"entityUsageChanged"`
	}
	require.NoError(t, sub.Next(&resp))
	assert.Equal(t, "created", resp.EntityUsageChanged.Kind)
	assert.Equal(t, "Brand", resp.EntityUsageChanged.Usage.EntityType)
	assert.Equal(t, "Globex", resp.EntityUsageChanged.Usage.EntityValue)
	assert.Equal(t, 1, resp.EntityUsageChanged.Usage.UsageCount)
}
