package application

import (
	"context"
	"sync"
	"time"

	"shopify-entity-sync/internal/domain"
	"shopify-entity-sync/internal/infrastructure/memory"

	"github.com/rs/zerolog"
)

const (
	shopA = "shop-a.myshopify.com"
	shopB = "shop-b.myshopify.com"
)

var seedTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type pushCall struct {
	Kind     domain.EntityKind
	Entities []domain.Entity
}

type removeCall struct {
	Kind  domain.EntityKind
	Value string
}

// recordingSyncer captures what would be sent to the agent
type recordingSyncer struct {
	mu      sync.Mutex
	pushes  []pushCall
	removes []removeCall
	err     error
}

func (s *recordingSyncer) Push(ctx context.Context, kind domain.EntityKind, entities []domain.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushes = append(s.pushes, pushCall{Kind: kind, Entities: entities})
	return s.err
}

func (s *recordingSyncer) RemoveValue(ctx context.Context, kind domain.EntityKind, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removes = append(s.removes, removeCall{Kind: kind, Value: value})
	return s.err
}

func (s *recordingSyncer) pushedKinds() []domain.EntityKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kinds []domain.EntityKind
	for _, p := range s.pushes {
		kinds = append(kinds, p.Kind)
	}
	return kinds
}

func (s *recordingSyncer) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushes = nil
	s.removes = nil
}

type usageCall struct {
	Op    string
	Shop  string
	Kind  domain.EntityKind
	Value string
	By    int
}

// spyUsageRepo records every counter transaction before delegating to the memory store
type spyUsageRepo struct {
	*memory.EntityUsageStore
	mu    sync.Mutex
	calls []usageCall
}

func newSpyUsageRepo() *spyUsageRepo {
	return &spyUsageRepo{EntityUsageStore: memory.NewEntityUsageStore()}
}

func (r *spyUsageRepo) Increment(ctx context.Context, shopDomain string, kind domain.EntityKind, value string, by int) (*domain.EntityUsage, bool, error) {
	r.record("increment", shopDomain, kind, value, by)
	return r.EntityUsageStore.Increment(ctx, shopDomain, kind, value, by)
}

func (r *spyUsageRepo) Decrement(ctx context.Context, shopDomain string, kind domain.EntityKind, value string, by int) (*domain.DecrementResult, error) {
	r.record("decrement", shopDomain, kind, value, by)
	return r.EntityUsageStore.Decrement(ctx, shopDomain, kind, value, by)
}

func (r *spyUsageRepo) record(op, shop string, kind domain.EntityKind, value string, by int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, usageCall{Op: op, Shop: shop, Kind: kind, Value: value, By: by})
}

func (r *spyUsageRepo) callsFor(op string, kind domain.EntityKind) []usageCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []usageCall
	for _, c := range r.calls {
		if c.Op == op && c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func (r *spyUsageRepo) resetCalls() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// recordingPublisher collects published events
type recordingPublisher struct {
	mu     sync.Mutex
	events []*domain.EntityUsageEvent
}

func (p *recordingPublisher) Publish(event *domain.EntityUsageEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

type harness struct {
	usageRepo  *spyUsageRepo
	products   *memory.ProductStore
	syncer     *recordingSyncer
	publisher  *recordingPublisher
	usage      *EntityUsageService
	reconciler *Reconciler
	catalog    *CatalogService
}

func newHarness() *harness {
	h := &harness{
		usageRepo: newSpyUsageRepo(),
		products:  memory.NewProductStore(),
		syncer:    &recordingSyncer{},
		publisher: &recordingPublisher{},
	}
	logger := zerolog.Nop()
	h.usage = NewEntityUsageService(h.usageRepo, h.syncer, h.publisher, nil, logger)
	h.reconciler = NewReconciler(h.usage, h.syncer, h.products, h.usageRepo, logger)
	h.catalog = NewCatalogService(h.products, h.reconciler, logger)
	return h
}

func (h *harness) count(kind domain.EntityKind, value string) int {
	u, _ := h.usageRepo.Get(context.Background(), kind, value)
	if u == nil {
		return 0
	}
	return u.UsageCount
}

func (h *harness) exists(kind domain.EntityKind, value string) bool {
	u, _ := h.usageRepo.Get(context.Background(), kind, value)
	return u != nil
}

func shirt(shop string, options []string, variants []string) *domain.Product {
	p := &domain.Product{
		ProductID:  1,
		ShopDomain: shop,
		Title:      "Shirt",
		Vendor:     "Acme",
	}
	for _, o := range options {
		p.Options = append(p.Options, domain.ProductOption{Name: o})
	}
	for _, v := range variants {
		p.Variants = append(p.Variants, domain.ProductVariant{Title: v})
	}
	return p
}
