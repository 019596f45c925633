package ports

import (
	"context"

	"shopify-entity-sync/internal/domain"
)

// EntityTypeRef identifies a remote entity type
type EntityTypeRef struct {
	Name        string // Full resource name
	DisplayName string
}

// EntityTypeClient is the conversational-agent entity-type RPC surface
type EntityTypeClient interface {
	ListEntityTypes(ctx context.Context) ([]EntityTypeRef, error)
	// CreateEntityType creates a map-kind entity type and returns its resource name
	CreateEntityType(ctx context.Context, displayName string) (string, error)
	GetEntityType(ctx context.Context, name string) ([]domain.Entity, error)
	// UpdateEntityTypeEntities overwrites the entities field only
	UpdateEntityTypeEntities(ctx context.Context, name string, entities []domain.Entity) error
}

// EntitySyncer propagates locally decided membership to the remote entity types
type EntitySyncer interface {
	Push(ctx context.Context, kind domain.EntityKind, entities []domain.Entity) error
	RemoveValue(ctx context.Context, kind domain.EntityKind, value string) error
}

// EntityEventPublisher broadcasts committed counter transitions
type EntityEventPublisher interface {
	Publish(event *domain.EntityUsageEvent)
}

// IdempotencyStore remembers processed keys for a limited time
type IdempotencyStore interface {
	// Claim returns true the first time key is seen within its retention window
	Claim(ctx context.Context, key string) (bool, error)
	// Release forgets key so a failed delivery can be retried
	Release(ctx context.Context, key string) error
}

// SyncMetrics records counter and sync outcomes
type SyncMetrics interface {
	CounterTransition(kind domain.EntityKind, transition domain.EntityUsageEventKind)
	UsageAnomaly(kind domain.EntityKind)
	SyncResult(op domain.SyncOp, kind domain.EntityKind, err error)
}
