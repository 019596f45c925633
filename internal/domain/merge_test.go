package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeEntities(t *testing.T) {
	existing := []Entity{
		{Value: "Shirt", Synonyms: []string{"Shirt", "Tee"}},
		{Value: "Hat", Synonyms: []string{"Hat"}},
	}
	incoming := []Entity{
		{Value: "Shirt", Synonyms: []string{"Shirt", "T-Shirt"}},
		{Value: "Scarf", Synonyms: []string{"Scarf"}},
	}

	merged := MergeEntities(existing, incoming)

	t.Run("appends unknown values", func(t *testing.T) {
		require.Len(t, merged, 3)
		assert.Equal(t, "Scarf", merged[2].Value)
	})

	t.Run("unions synonyms without duplicates", func(t *testing.T) {
		assert.ElementsMatch(t, []string{"Shirt", "Tee", "T-Shirt"}, merged[0].Synonyms)
	})

	t.Run("idempotent", func(t *testing.T) {
		again := MergeEntities(merged, incoming)
		assert.Equal(t, merged, again)
	})

	t.Run("does not modify inputs", func(t *testing.T) {
		assert.Equal(t, []string{"Shirt", "Tee"}, existing[0].Synonyms)
		assert.Len(t, existing, 2)
	})

	t.Run("never removes", func(t *testing.T) {
		assert.Len(t, MergeEntities(existing, nil), len(existing))
	})
}

func TestRemoveEntity(t *testing.T) {
	entities := []Entity{{Value: "A"}, {Value: "B"}}

	out, removed := RemoveEntity(entities, "A")
	assert.True(t, removed)
	assert.Equal(t, []Entity{{Value: "B"}}, out)

	out, removed = RemoveEntity(out, "A")
	assert.False(t, removed)
	assert.Equal(t, []Entity{{Value: "B"}}, out)
}

func TestStringSetDifference(t *testing.T) {
	assert.Equal(t, []string{"Color"}, StringSetDifference([]string{"Color", "Size"}, []string{"Size"}))
	assert.Nil(t, StringSetDifference([]string{"Size", "Color"}, []string{"Color", "Size"}))
	assert.Equal(t, []string{"A"}, StringSetDifference([]string{"A", "A"}, nil))
}

func TestEntityUsageLifecycle(t *testing.T) {
	now := time.Now()
	u := NewEntityUsage(KindBrand, "Acme", "shop-a.myshopify.com", 1, now)
	assert.Equal(t, "Brand-Acme", u.Key())

	u.Increment("shop-b.myshopify.com", 1, now)
	u.Increment("shop-a.myshopify.com", 1, now)
	assert.Equal(t, 3, u.UsageCount)
	assert.Equal(t, []string{"shop-a.myshopify.com", "shop-b.myshopify.com"}, u.ShopDomains)

	assert.False(t, u.Decrement("shop-a.myshopify.com", 2, now))
	assert.Equal(t, []string{"shop-b.myshopify.com"}, u.ShopDomains)

	assert.True(t, u.Decrement("shop-b.myshopify.com", 1, now))
	assert.Equal(t, 0, u.UsageCount)
	assert.Empty(t, u.ShopDomains)
}

func TestEntityUsage_NotDeletedWhileDomainsRemain(t *testing.T) {
	u := NewEntityUsage(KindProduct, "Shirt", "shop-a.myshopify.com", 1, time.Now())
	u.AddDomain("shop-b.myshopify.com")

	assert.False(t, u.Decrement("shop-a.myshopify.com", 1, time.Now()))
	assert.Equal(t, 0, u.UsageCount)
	assert.Equal(t, []string{"shop-b.myshopify.com"}, u.ShopDomains)
}

func TestSyncBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, SyncBackoff(0))
	assert.Equal(t, 4*time.Second, SyncBackoff(1))
	assert.Equal(t, 256*time.Second, SyncBackoff(7))
	assert.Equal(t, MaxSyncBackoff, SyncBackoff(8))
	assert.Equal(t, MaxSyncBackoff, SyncBackoff(100))
}

func TestParseEntityKind(t *testing.T) {
	k, err := ParseEntityKind("ProductVariants")
	require.NoError(t, err)
	assert.Equal(t, KindProductVariants, k)

	_, err = ParseEntityKind("Color")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
