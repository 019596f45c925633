package application

import (
	"context"
	"encoding/json"
	"testing"

	"shopify-entity-sync/internal/domain"
	"shopify-entity-sync/internal/infrastructure/memory"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func productPayload(t *testing.T, raw string) *domain.ShopifyProductPayload {
	t.Helper()
	var p domain.ShopifyProductPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	return &p
}

const shirtPayload = `{
	"id": 101,
	"title": "Shirt",
	"vendor": "Acme",
	"product_type": "Apparel",
	"options": [{"name": "Color", "values": ["Red"]}],
	"variants": [{"title": "Red", "price": "19.99"}]
}`

func TestCatalogService_ProductLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	require.NoError(t, h.catalog.HandleProductCreate(ctx, shopA, productPayload(t, shirtPayload)))

	stored, err := h.products.GetByProductID(ctx, shopA, 101)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "19.99", stored.Price)
	assert.Equal(t, 1, h.count(domain.KindProductVariants, "Shirt Red"))

	t.Run("redelivered create is ignored", func(t *testing.T) {
		require.NoError(t, h.catalog.HandleProductCreate(ctx, shopA, productPayload(t, shirtPayload)))
		assert.Equal(t, 1, h.count(domain.KindProduct, "Shirt"))
	})

	t.Run("update diffs against stored product", func(t *testing.T) {
		updated := `{"id": 101, "title": "Shirt", "vendor": "Acme", "product_type": "Apparel",
			"options": [{"name": "Size", "values": ["M"]}],
			"variants": [{"title": "M", "price": "19.99"}]}`
		require.NoError(t, h.catalog.HandleProductUpdate(ctx, shopA, productPayload(t, updated)))

		assert.False(t, h.exists(domain.KindProductOptions, "Color"))
		assert.Equal(t, 1, h.count(domain.KindProductOptions, "Size"))
		assert.Equal(t, 1, h.count(domain.KindProduct, "Shirt"))

		stored, err := h.products.GetByProductID(ctx, shopA, 101)
		require.NoError(t, err)
		assert.Equal(t, []string{"Size"}, stored.OptionNames())
	})

	t.Run("delete releases every entity", func(t *testing.T) {
		require.NoError(t, h.catalog.HandleProductDelete(ctx, shopA, 101))
		assert.Zero(t, h.usageRepo.Len())

		stored, err := h.products.GetByProductID(ctx, shopA, 101)
		require.NoError(t, err)
		assert.Nil(t, stored)
	})

	t.Run("delete of unknown product", func(t *testing.T) {
		assert.ErrorIs(t, h.catalog.HandleProductDelete(ctx, shopA, 101), domain.ErrNotFound)
	})
}

func TestCatalogService_UpdateOfUnknownProductImports(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	require.NoError(t, h.catalog.HandleProductUpdate(ctx, shopA, productPayload(t, shirtPayload)))
	assert.Equal(t, 1, h.count(domain.KindBrand, "Acme"))

	stored, err := h.products.GetByProductID(ctx, shopA, 101)
	require.NoError(t, err)
	assert.NotNil(t, stored)
}

func TestCatalogService_EntitySyncFailureDoesNotBlockSave(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.syncer.err = assert.AnError

	require.NoError(t, h.catalog.HandleProductCreate(ctx, shopA, productPayload(t, shirtPayload)))

	stored, err := h.products.GetByProductID(ctx, shopA, 101)
	require.NoError(t, err)
	assert.NotNil(t, stored)
}

func TestCatalogService_RejectsInvalidPayload(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	assert.ErrorIs(t, h.catalog.HandleProductCreate(ctx, shopA, productPayload(t, `{"title": "No id"}`)), domain.ErrInvalidInput)
	assert.ErrorIs(t, h.catalog.HandleProductCreate(ctx, "", productPayload(t, shirtPayload)), domain.ErrInvalidInput)
	assert.ErrorIs(t, h.catalog.HandleProductDelete(ctx, shopA, 0), domain.ErrInvalidInput)
	assert.Zero(t, h.usageRepo.Len())
}

func TestCatalogService_ImportAndRemoveShop(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	catalogue := func() []*domain.Product {
		return []*domain.Product{
			{ProductID: 1, Title: "Shirt", Vendor: "Acme"},
			{ProductID: 2, Title: "Hat", Vendor: "Acme"},
		}
	}

	require.NoError(t, h.catalog.ImportShop(ctx, shopA, catalogue()))
	require.NoError(t, h.catalog.ImportShop(ctx, shopB, catalogue()))
	assert.Equal(t, 4, h.count(domain.KindBrand, "Acme"))

	t.Run("reimport does not double count", func(t *testing.T) {
		require.NoError(t, h.catalog.ImportShop(ctx, shopA, catalogue()))
		assert.Equal(t, 4, h.count(domain.KindBrand, "Acme"))
	})

	require.NoError(t, h.catalog.RemoveShop(ctx, shopA))

	products, err := h.catalog.ListProducts(ctx, shopA)
	require.NoError(t, err)
	assert.Empty(t, products)

	u, err := h.usageRepo.Get(ctx, domain.KindBrand, "Acme")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, 2, u.UsageCount)
	assert.Equal(t, []string{shopB}, u.ShopDomains)

	require.NoError(t, h.catalog.RemoveShop(ctx, shopB))
	assert.Zero(t, h.usageRepo.Len())
}

// flakyProductStore fails the next write once
type flakyProductStore struct {
	*memory.ProductStore
	failSave   bool
	failDelete bool
}

func (s *flakyProductStore) Save(ctx context.Context, product *domain.Product) error {
	if s.failSave {
		s.failSave = false
		return assert.AnError
	}
	return s.ProductStore.Save(ctx, product)
}

func (s *flakyProductStore) Delete(ctx context.Context, shopDomain string, productID int64) error {
	if s.failDelete {
		s.failDelete = false
		return assert.AnError
	}
	return s.ProductStore.Delete(ctx, shopDomain, productID)
}

func TestCatalogService_FailedWriteLeavesCountersUntouched(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	store := &flakyProductStore{ProductStore: h.products}
	catalog := NewCatalogService(store, h.reconciler, zerolog.Nop())

	require.NoError(t, catalog.HandleProductCreate(ctx, shopA, productPayload(t, shirtPayload)))

	updated := `{"id": 101, "title": "Shirt", "vendor": "Acme", "product_type": "Apparel",
		"options": [{"name": "Size", "values": ["M"]}],
		"variants": [{"title": "M", "price": "19.99"}]}`

	t.Run("update is retried after a failed save", func(t *testing.T) {
		store.failSave = true
		require.Error(t, catalog.HandleProductUpdate(ctx, shopA, productPayload(t, updated)))
		assert.Equal(t, 1, h.count(domain.KindProductOptions, "Color"))
		assert.False(t, h.exists(domain.KindProductOptions, "Size"))

		require.NoError(t, catalog.HandleProductUpdate(ctx, shopA, productPayload(t, updated)))
		assert.False(t, h.exists(domain.KindProductOptions, "Color"))
		assert.Equal(t, 1, h.count(domain.KindProductOptions, "Size"))
		assert.Equal(t, 1, h.count(domain.KindProductVariants, "Shirt M"))
		assert.Equal(t, 1, h.count(domain.KindProduct, "Shirt"))
	})

	t.Run("delete is retried after a failed delete", func(t *testing.T) {
		store.failDelete = true
		require.Error(t, catalog.HandleProductDelete(ctx, shopA, 101))
		assert.Equal(t, 1, h.count(domain.KindProduct, "Shirt"))

		require.NoError(t, catalog.HandleProductDelete(ctx, shopA, 101))
		assert.Zero(t, h.usageRepo.Len())
	})
}
