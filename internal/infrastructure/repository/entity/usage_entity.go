package entity

import (
	"time"

	"shopify-entity-sync/internal/domain"
)

// MongoEntityUsageDoc represents a reference counter in MongoDB, keyed by
// "{entityType}-{entityValue}"
type MongoEntityUsageDoc struct {
	Key         string    `bson:"_id"`
	EntityType  string    `bson:"entityType"`
	EntityValue string    `bson:"entityValue"`
	UsageCount  int       `bson:"usageCount"`
	ShopDomains []string  `bson:"shopDomains"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoEntityUsageDoc) ToDomain() *domain.EntityUsage {
	domains := d.ShopDomains
	if domains == nil {
		domains = []string{}
	}
	return &domain.EntityUsage{
		EntityType:  domain.EntityKind(d.EntityType),
		EntityValue: d.EntityValue,
		UsageCount:  d.UsageCount,
		ShopDomains: domains,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// MongoEntityUsageDocFromDomain converts a domain entity to a MongoDB document
func MongoEntityUsageDocFromDomain(usage *domain.EntityUsage) *MongoEntityUsageDoc {
	domains := usage.ShopDomains
	if domains == nil {
		domains = []string{}
	}
	return &MongoEntityUsageDoc{
		Key:         usage.Key(),
		EntityType:  string(usage.EntityType),
		EntityValue: usage.EntityValue,
		UsageCount:  usage.UsageCount,
		ShopDomains: domains,
		CreatedAt:   usage.CreatedAt,
		UpdatedAt:   usage.UpdatedAt,
	}
}
