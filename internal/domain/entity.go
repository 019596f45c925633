package domain

import (
	"fmt"
	"sort"
	"time"
)

// EntityKind identifies one Dialogflow entity type maintained by the service
type EntityKind string

const (
	KindProduct         EntityKind = "Product"
	KindBrand           EntityKind = "Brand"
	KindProductType     EntityKind = "ProductType"
	KindProductOptions  EntityKind = "ProductOptions"
	KindProductVariants EntityKind = "ProductVariants"
)

// EntityKinds lists every kind in the order they are synchronized
var EntityKinds = []EntityKind{
	KindProduct,
	KindBrand,
	KindProductType,
	KindProductOptions,
	KindProductVariants,
}

// ParseEntityKind validates a kind coming from an external caller
func ParseEntityKind(s string) (EntityKind, error) {
	for _, k := range EntityKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown entity type %q", ErrInvalidInput, s)
}

// UsageKey returns the storage key of an entity usage record
func UsageKey(kind EntityKind, value string) string {
	return fmt.Sprintf("%s-%s", kind, value)
}

// EntityUsage is the reference counter of one (entityType, entityValue) pair
type EntityUsage struct {
	EntityType  EntityKind `json:"entityType" bson:"entityType"`
	EntityValue string     `json:"entityValue" bson:"entityValue"`
	UsageCount  int        `json:"usageCount" bson:"usageCount"`   // Live product references
	ShopDomains []string   `json:"shopDomains" bson:"shopDomains"` // Shops contributing at least one reference
	CreatedAt   time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// Key returns the record's storage key
func (u *EntityUsage) Key() string {
	return UsageKey(u.EntityType, u.EntityValue)
}

// NewEntityUsage creates the record for a first reference
func NewEntityUsage(kind EntityKind, value, shopDomain string, by int, now time.Time) *EntityUsage {
	return &EntityUsage{
		EntityType:  kind,
		EntityValue: value,
		UsageCount:  by,
		ShopDomains: []string{shopDomain},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Increment adds by references for shopDomain. Domains are a set: a shop is listed once
// no matter how many of its products reference the value.
func (u *EntityUsage) Increment(shopDomain string, by int, now time.Time) {
	u.UsageCount += by
	u.AddDomain(shopDomain)
	u.UpdatedAt = now
}

// Decrement removes by references and the shop domain. It reports whether the record
// reached the terminal state and must be deleted.
func (u *EntityUsage) Decrement(shopDomain string, by int, now time.Time) bool {
	u.UsageCount -= by
	u.RemoveDomain(shopDomain)
	u.UpdatedAt = now
	return u.Unreferenced()
}

// Unreferenced is true only when no product and no shop reference the value
func (u *EntityUsage) Unreferenced() bool {
	return u.UsageCount <= 0 && len(u.ShopDomains) == 0
}

// AddDomain inserts shopDomain keeping the slice sorted and unique
func (u *EntityUsage) AddDomain(shopDomain string) {
	if shopDomain == "" {
		return
	}
	i := sort.SearchStrings(u.ShopDomains, shopDomain)
	if i < len(u.ShopDomains) && u.ShopDomains[i] == shopDomain {
		return
	}
	u.ShopDomains = append(u.ShopDomains, "")
	copy(u.ShopDomains[i+1:], u.ShopDomains[i:])
	u.ShopDomains[i] = shopDomain
}

// RemoveDomain drops shopDomain if present
func (u *EntityUsage) RemoveDomain(shopDomain string) {
	out := u.ShopDomains[:0]
	for _, d := range u.ShopDomains {
		if d != shopDomain {
			out = append(out, d)
		}
	}
	u.ShopDomains = out
}

// DecrementResult describes the outcome of a decrement transaction
type DecrementResult struct {
	Found   bool         // False when no record existed for the key
	Deleted bool         // True when the record reached zero references and was removed
	Usage   *EntityUsage // State after the decrement (last known state when deleted)
}

// EntityUsageEventKind describes a committed counter transition
type EntityUsageEventKind string

const (
	UsageCreated EntityUsageEventKind = "created"
	UsageUpdated EntityUsageEventKind = "updated"
	UsageDeleted EntityUsageEventKind = "deleted"
)

// EntityUsageEvent is broadcast after each committed counter transaction
type EntityUsageEvent struct {
	Kind       EntityUsageEventKind `json:"kind"`
	Usage      *EntityUsage         `json:"usage"`
	OccurredAt time.Time            `json:"occurredAt"`
}
