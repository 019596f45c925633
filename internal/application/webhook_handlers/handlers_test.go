package webhook_handlers

import (
	"context"
	"testing"

	"shopify-entity-sync/internal/application"
	"shopify-entity-sync/internal/domain"
	"shopify-entity-sync/internal/infrastructure/memory"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shop = "shop-a.myshopify.com"

type handlerFixture struct {
	usage      *memory.EntityUsageStore
	products   *memory.ProductStore
	repo       *memory.Repository
	agent      *memory.Agent
	dispatcher *application.WebhookDispatcher
}

type plainCipher struct{}

func (plainCipher) Encrypt(s string) (string, error) { return s, nil }
func (plainCipher) Decrypt(s string) (string, error) { return s, nil }

func newHandlerFixture() *handlerFixture {
	logger := zerolog.Nop()
	f := &handlerFixture{
		usage:    memory.NewEntityUsageStore(),
		products: memory.NewProductStore(),
		repo:     memory.NewRepository(),
		agent:    memory.NewAgent("projects/p/locations/global/agents/a"),
	}
	syncer := application.NewEntitySyncService(f.agent, nil, logger)
	usageSvc := application.NewEntityUsageService(f.usage, syncer, nil, nil, logger)
	reconciler := application.NewReconciler(usageSvc, syncer, f.products, f.usage, logger)
	catalog := application.NewCatalogService(f.products, reconciler, logger)
	shopify := application.NewShopifyService(f.repo, plainCipher{}, nil, catalog, logger, "https://sync.example.com", nil)

	f.dispatcher = application.NewWebhookDispatcher(logger)
	f.dispatcher.RegisterHandler(NewProductHandler(catalog, logger))
	f.dispatcher.RegisterHandler(NewAppUninstalledHandler(shopify, logger))
	return f
}

func event(topic, payload string) *domain.WebhookEvent {
	return &domain.WebhookEvent{Topic: topic, Shop: shop, Payload: []byte(payload)}
}

const hatPayload = `{"id": 7, "title": "Hat", "vendor": "Acme", "product_type": "Accessories",
	"variants": [{"title": "Default Title", "price": "9.50"}]}`

func TestProductHandler_CanHandle(t *testing.T) {
	h := NewProductHandler(nil, zerolog.Nop())
	assert.True(t, h.CanHandle(domain.TopicProductsCreate))
	assert.True(t, h.CanHandle(domain.TopicProductsUpdate))
	assert.True(t, h.CanHandle(domain.TopicProductsDelete))
	assert.False(t, h.CanHandle(domain.TopicAppUninstalled))
	assert.False(t, h.CanHandle("orders/create"))
}

func TestProductHandler_CreateAndDelete(t *testing.T) {
	ctx := context.Background()
	f := newHandlerFixture()

	require.NoError(t, f.dispatcher.Dispatch(ctx, event(domain.TopicProductsCreate, hatPayload)))
	assert.Equal(t, []string{"Hat"}, f.agent.Values("Product"))
	assert.Equal(t, []string{"Acme"}, f.agent.Values("Brand"))
	assert.Empty(t, f.agent.Values("ProductVariants"))

	require.NoError(t, f.dispatcher.Dispatch(ctx, event(domain.TopicProductsDelete, `{"id": 7}`)))
	assert.Zero(t, f.usage.Len())
	assert.Empty(t, f.agent.Values("Product"))
}

func TestProductHandler_AcknowledgesUnprocessableEvents(t *testing.T) {
	ctx := context.Background()
	f := newHandlerFixture()

	t.Run("delete of unknown product", func(t *testing.T) {
		assert.NoError(t, f.dispatcher.Dispatch(ctx, event(domain.TopicProductsDelete, `{"id": 99}`)))
	})

	t.Run("payload without id", func(t *testing.T) {
		assert.NoError(t, f.dispatcher.Dispatch(ctx, event(domain.TopicProductsCreate, `{"title": "x"}`)))
		assert.Zero(t, f.usage.Len())
	})

	t.Run("malformed json is an error", func(t *testing.T) {
		assert.Error(t, f.dispatcher.Dispatch(ctx, event(domain.TopicProductsCreate, `{`)))
	})

	t.Run("unhandled topic", func(t *testing.T) {
		assert.NoError(t, f.dispatcher.Dispatch(ctx, event("orders/create", `{}`)))
	})
}

func TestAppUninstalledHandler_ReleasesShop(t *testing.T) {
	ctx := context.Background()
	f := newHandlerFixture()

	require.NoError(t, f.repo.SaveShop(ctx, &domain.Shop{Domain: shop, AccessToken: "token"}))
	require.NoError(t, f.dispatcher.Dispatch(ctx, event(domain.TopicProductsCreate, hatPayload)))

	uninstall := &domain.WebhookEvent{
		Topic:   domain.TopicAppUninstalled,
		Payload: []byte(`{"myshopify_domain": "` + shop + `"}`),
	}
	require.NoError(t, f.dispatcher.Dispatch(ctx, uninstall))

	assert.Zero(t, f.usage.Len())
	products, err := f.products.ListByShop(ctx, shop)
	require.NoError(t, err)
	assert.Empty(t, products)

	stored, err := f.repo.GetShop(ctx, shop)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.Installed())
	assert.Empty(t, stored.AccessToken)
}
