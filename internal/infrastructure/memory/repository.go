package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"shopify-entity-sync/internal/domain"

	"github.com/google/uuid"
)

// Repository keeps shops, OAuth sessions and the webhook log in memory
type Repository struct {
	mu       sync.RWMutex
	shops    map[string]*domain.Shop
	sessions map[string]*domain.Session
	webhooks []*domain.WebhookEvent
}

// NewRepository creates an empty repository
func NewRepository() *Repository {
	return &Repository{
		shops:    make(map[string]*domain.Shop),
		sessions: make(map[string]*domain.Session),
	}
}

func (r *Repository) SaveShop(ctx context.Context, shop *domain.Shop) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *shop
	c.UninstalledAt = nil
	r.shops[shop.Domain] = &c
	return nil
}

func (r *Repository) GetShop(ctx context.Context, shopDomain string) (*domain.Shop, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.shops[shopDomain]
	if !ok {
		return nil, nil
	}
	c := *s
	return &c, nil
}

func (r *Repository) ListShops(ctx context.Context) ([]*domain.Shop, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Shop, 0, len(r.shops))
	for _, s := range r.shops {
		c := *s
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out, nil
}

func (r *Repository) MarkShopUninstalled(ctx context.Context, shopDomain string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.shops[shopDomain]
	if !ok {
		return nil
	}
	now := time.Now()
	s.UninstalledAt = &now
	s.AccessToken = ""
	s.UpdatedAt = now
	return nil
}

func (r *Repository) CreateSession(ctx context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *session
	if c.ID == "" {
		c.ID = uuid.NewString()
		session.ID = c.ID
	}
	r.sessions[session.State] = &c
	return nil
}

func (r *Repository) GetSession(ctx context.Context, state string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[state]
	if !ok {
		return nil, nil
	}
	c := *s
	return &c, nil
}

func (r *Repository) DeleteSession(ctx context.Context, state string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, state)
	return nil
}

func (r *Repository) LogWebhook(ctx context.Context, event *domain.WebhookEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *event
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	r.webhooks = append(r.webhooks, &c)
	return nil
}

// Webhooks returns the logged webhook events
func (r *Repository) Webhooks() []*domain.WebhookEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*domain.WebhookEvent(nil), r.webhooks...)
}
