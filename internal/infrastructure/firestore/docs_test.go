package firestore

import (
	"testing"

	"shopify-entity-sync/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestDocID(t *testing.T) {
	assert.Equal(t, "ProductVariants-Shirt S%2FM", docID(domain.UsageKey(domain.KindProductVariants, "Shirt S/M")))
	assert.Equal(t, "Brand-100%25 Cotton", docID(domain.UsageKey(domain.KindBrand, "100% Cotton")))
	assert.Equal(t, "a.myshopify.com-42", productDocID("a.myshopify.com", 42))
}

func TestDocID_DistinctKeysDoNotCollide(t *testing.T) {
	slash := docID(domain.UsageKey(domain.KindBrand, "a/b"))
	escaped := docID(domain.UsageKey(domain.KindBrand, "a%2Fb"))

	assert.NotEqual(t, slash, escaped)
	assert.Equal(t, "Brand-a%2Fb", slash)
	assert.Equal(t, "Brand-a%252Fb", escaped)
}
