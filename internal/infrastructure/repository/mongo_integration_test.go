package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"shopify-entity-sync/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

// testDatabase connects to the replica set named by ENTITY_SYNC_TEST_MONGO_URI and
// returns a throwaway database
func testDatabase(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("ENTITY_SYNC_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("ENTITY_SYNC_TEST_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := Connect(ctx, uri)
	require.NoError(t, err)

	db := client.Database(fmt.Sprintf("entity_sync_test_%s", uuid.NewString()[:8]))
	require.NoError(t, EnsureIndexes(ctx, db))
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return db
}

func TestMongoEntityUsageRepository(t *testing.T) {
	db := testDatabase(t)
	ctx := context.Background()
	repo := NewMongoEntityUsageRepository(db)

	u, created, err := repo.Increment(ctx, "a.myshopify.com", domain.KindBrand, "Acme", 2)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 2, u.UsageCount)

	u, created, err = repo.Increment(ctx, "b.myshopify.com", domain.KindBrand, "Acme", 1)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 3, u.UsageCount)
	assert.Equal(t, []string{"a.myshopify.com", "b.myshopify.com"}, u.ShopDomains)

	res, err := repo.Decrement(ctx, "a.myshopify.com", domain.KindBrand, "Acme", 2)
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.False(t, res.Deleted)

	res, err = repo.Decrement(ctx, "b.myshopify.com", domain.KindBrand, "Acme", 1)
	require.NoError(t, err)
	assert.True(t, res.Deleted)

	got, err := repo.Get(ctx, domain.KindBrand, "Acme")
	require.NoError(t, err)
	assert.Nil(t, got)

	res, err = repo.Decrement(ctx, "b.myshopify.com", domain.KindBrand, "Acme", 1)
	require.NoError(t, err)
	assert.False(t, res.Found)
}

func TestMongoProductRepository(t *testing.T) {
	db := testDatabase(t)
	ctx := context.Background()
	repo := NewMongoProductRepository(db)

	p := &domain.Product{ProductID: 7, ShopDomain: "a.myshopify.com", Title: "Hat", ProductType: "Accessories"}
	require.NoError(t, repo.Save(ctx, p))
	assert.NotEmpty(t, p.ID)

	p.Title = "Cap"
	require.NoError(t, repo.Save(ctx, p))

	got, err := repo.GetByProductID(ctx, "a.myshopify.com", 7)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Cap", got.Title)
	assert.Equal(t, p.ID, got.ID)

	require.NoError(t, repo.SaveAll(ctx, []*domain.Product{{ProductID: 8, ShopDomain: "b.myshopify.com", Title: "Shoe"}}))
	domains, err := repo.ListShopDomains(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.myshopify.com", "b.myshopify.com"}, domains)

	_, err = db.Collection("products").InsertOne(ctx, map[string]interface{}{
		"productId": 9, "shopDomain": "a.myshopify.com", "title": "Old", "product_type": "Legacy",
	})
	require.NoError(t, err)
	migrated, err := repo.MigrateLegacyFields(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), migrated)

	old, err := repo.GetByProductID(ctx, "a.myshopify.com", 9)
	require.NoError(t, err)
	assert.Equal(t, "Legacy", old.ProductType)

	n, err := repo.DeleteByShop(ctx, "a.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestMongoSyncJobRepository(t *testing.T) {
	db := testDatabase(t)
	ctx := context.Background()
	repo := NewMongoSyncJobRepository(db)
	now := time.Now().UTC().Truncate(time.Millisecond)
	repo.now = func() time.Time { return now }

	job := &domain.SyncJob{
		ID:            uuid.NewString(),
		Op:            domain.SyncOpRemove,
		EntityType:    domain.KindBrand,
		Value:         "Acme",
		Status:        domain.SyncJobPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
	require.NoError(t, repo.Enqueue(ctx, job))

	jobs, err := repo.ListReady(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	require.NoError(t, repo.MarkFailed(ctx, job.ID, assert.AnError, false))
	jobs, err = repo.ListReady(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	now = now.Add(domain.SyncBackoff(0))
	jobs, err = repo.ListReady(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, 1, jobs[0].Attempts)

	require.NoError(t, repo.MarkDone(ctx, job.ID))
	done, err := repo.CountByStatus(ctx, domain.SyncJobDone)
	require.NoError(t, err)
	assert.Equal(t, int64(1), done)
}

func TestMongoSyncJobRepository_Lease(t *testing.T) {
	db := testDatabase(t)
	ctx := context.Background()
	repo := NewMongoSyncJobRepository(db)
	now := time.Now().UTC().Truncate(time.Millisecond)
	repo.now = func() time.Time { return now }

	ok, err := repo.AcquireLease(ctx, "server", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.AcquireLease(ctx, "server", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "owner renews its own lease")

	ok, err = repo.AcquireLease(ctx, "cli", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	ok, err = repo.AcquireLease(ctx, "cli", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired lease is taken over")

	require.NoError(t, repo.ReleaseLease(ctx, "server"))
	ok, err = repo.AcquireLease(ctx, "server", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "releasing a lost lease keeps the new owner")

	require.NoError(t, repo.ReleaseLease(ctx, "cli"))
	ok, err = repo.AcquireLease(ctx, "server", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMongoRepository_ShopLifecycle(t *testing.T) {
	db := testDatabase(t)
	ctx := context.Background()
	repo := NewMongoRepository(db)

	require.NoError(t, repo.SaveShop(ctx, &domain.Shop{Domain: "a.myshopify.com", AccessToken: "enc"}))
	require.NoError(t, repo.MarkShopUninstalled(ctx, "a.myshopify.com"))

	shop, err := repo.GetShop(ctx, "a.myshopify.com")
	require.NoError(t, err)
	assert.False(t, shop.Installed())
	assert.Empty(t, shop.AccessToken)

	require.NoError(t, repo.SaveShop(ctx, &domain.Shop{Domain: "a.myshopify.com", AccessToken: "enc2"}))
	shop, err = repo.GetShop(ctx, "a.myshopify.com")
	require.NoError(t, err)
	assert.True(t, shop.Installed())

	require.NoError(t, repo.CreateSession(ctx, &domain.Session{Shop: "a.myshopify.com", State: "s1"}))
	session, err := repo.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, session)
	require.NoError(t, repo.DeleteSession(ctx, "s1"))
	session, err = repo.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, session)
}
