package ports

import (
	"context"
	"time"

	"shopify-entity-sync/internal/domain"
)

// Repository defines the interface for shop, session and webhook log persistence
type Repository interface {
	// Shop operations
	SaveShop(ctx context.Context, shop *domain.Shop) error
	GetShop(ctx context.Context, domain string) (*domain.Shop, error)
	ListShops(ctx context.Context) ([]*domain.Shop, error)
	MarkShopUninstalled(ctx context.Context, domain string) error

	// OAuth session operations
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, state string) (*domain.Session, error)
	DeleteSession(ctx context.Context, state string) error

	// Webhook operations
	LogWebhook(ctx context.Context, event *domain.WebhookEvent) error
}

// ProductRepository defines the interface for the product store. Lookups return
// nil, nil when nothing matches.
type ProductRepository interface {
	Save(ctx context.Context, product *domain.Product) error
	SaveAll(ctx context.Context, products []*domain.Product) error
	GetByProductID(ctx context.Context, shopDomain string, productID int64) (*domain.Product, error)
	ListByShop(ctx context.Context, shopDomain string) ([]*domain.Product, error)
	ListShopDomains(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, shopDomain string, productID int64) error
	DeleteByShop(ctx context.Context, shopDomain string) (int64, error)
}

// EntityUsageRepository defines the reference-count store. Increment and Decrement each
// run as one atomic transaction scoped to a single record.
type EntityUsageRepository interface {
	// Increment reports whether the record was created by this call
	Increment(ctx context.Context, shopDomain string, kind domain.EntityKind, value string, by int) (*domain.EntityUsage, bool, error)
	Decrement(ctx context.Context, shopDomain string, kind domain.EntityKind, value string, by int) (*domain.DecrementResult, error)
	Get(ctx context.Context, kind domain.EntityKind, value string) (*domain.EntityUsage, error)
	ListByType(ctx context.Context, kind domain.EntityKind) ([]*domain.EntityUsage, error)

	// Put overwrites a record and DeleteAll empties the store; both are only used when
	// counters are rebuilt from the product store
	Put(ctx context.Context, usage *domain.EntityUsage) error
	DeleteAll(ctx context.Context) error
}

// SyncJobRepository defines the outbox of pending Dialogflow changes
type SyncJobRepository interface {
	Enqueue(ctx context.Context, job *domain.SyncJob) error
	// ListReady returns up to limit pending jobs whose next attempt is due, oldest first.
	// Callers must hold the outbox lease.
	ListReady(ctx context.Context, limit int) ([]*domain.SyncJob, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, cause error, dead bool) error
	CountByStatus(ctx context.Context, status domain.SyncJobStatus) (int64, error)

	// AcquireLease grants owner exclusive use of the outbox for ttl. It renews a lease
	// owner already holds and returns false while another owner's lease is live.
	AcquireLease(ctx context.Context, owner string, ttl time.Duration) (bool, error)
	// ReleaseLease gives up the lease if owner holds it
	ReleaseLease(ctx context.Context, owner string) error
}
