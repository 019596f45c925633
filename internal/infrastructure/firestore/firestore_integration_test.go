package firestore

import (
	"context"
	"os"
	"testing"

	"shopify-entity-sync/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloud.google.com/go/firestore"
)

func emulatorClient(t *testing.T) *firestore.Client {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	ctx := context.Background()
	client, err := NewClient(ctx, "entity-sync-"+uuid.NewString()[:8], "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestEntityUsageStore_Emulator(t *testing.T) {
	client := emulatorClient(t)
	ctx := context.Background()
	store := NewEntityUsageStore(client)

	_, created, err := store.Increment(ctx, "a.myshopify.com", domain.KindProductOptions, "Size/Fit", 1)
	require.NoError(t, err)
	assert.True(t, created)

	u, created, err := store.Increment(ctx, "b.myshopify.com", domain.KindProductOptions, "Size/Fit", 1)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 2, u.UsageCount)

	usages, err := store.ListByType(ctx, domain.KindProductOptions)
	require.NoError(t, err)
	require.Len(t, usages, 1)
	assert.Equal(t, "Size/Fit", usages[0].EntityValue)

	res, err := store.Decrement(ctx, "a.myshopify.com", domain.KindProductOptions, "Size/Fit", 1)
	require.NoError(t, err)
	assert.False(t, res.Deleted)
	res, err = store.Decrement(ctx, "b.myshopify.com", domain.KindProductOptions, "Size/Fit", 1)
	require.NoError(t, err)
	assert.True(t, res.Deleted)

	got, err := store.Get(ctx, domain.KindProductOptions, "Size/Fit")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestProductStore_Emulator(t *testing.T) {
	client := emulatorClient(t)
	ctx := context.Background()
	store := NewProductStore(client)

	require.NoError(t, store.SaveAll(ctx, []*domain.Product{
		{ProductID: 2, ShopDomain: "a.myshopify.com", Title: "Hat"},
		{ProductID: 1, ShopDomain: "a.myshopify.com", Title: "Shirt", Options: []domain.ProductOption{{Name: "Color", Values: []string{"Red"}}}},
		{ProductID: 3, ShopDomain: "b.myshopify.com", Title: "Shoe"},
	}))

	products, err := store.ListByShop(ctx, "a.myshopify.com")
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, int64(1), products[0].ProductID)
	assert.Equal(t, []string{"Color"}, products[0].OptionNames())

	domains, err := store.ListShopDomains(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.myshopify.com", "b.myshopify.com"}, domains)

	n, err := store.DeleteByShop(ctx, "a.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	missing, err := store.GetByProductID(ctx, "a.myshopify.com", 1)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
