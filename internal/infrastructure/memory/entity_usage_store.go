// Package memory provides mutex-guarded in-process adapters for local runs and tests
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"shopify-entity-sync/internal/domain"
)

// EntityUsageStore keeps usage records in a map. The mutex serializes transactions on
// all records, which is stricter than the per-record contract.
type EntityUsageStore struct {
	mu      sync.Mutex
	records map[string]*domain.EntityUsage
	now     func() time.Time
}

// NewEntityUsageStore creates an empty store
func NewEntityUsageStore() *EntityUsageStore {
	return &EntityUsageStore{
		records: make(map[string]*domain.EntityUsage),
		now:     time.Now,
	}
}

func (s *EntityUsageStore) Increment(ctx context.Context, shopDomain string, kind domain.EntityKind, value string, by int) (*domain.EntityUsage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.UsageKey(kind, value)
	now := s.now()
	u, ok := s.records[key]
	if !ok {
		u = domain.NewEntityUsage(kind, value, shopDomain, by, now)
		s.records[key] = u
		return cloneUsage(u), true, nil
	}
	u.Increment(shopDomain, by, now)
	return cloneUsage(u), false, nil
}

func (s *EntityUsageStore) Decrement(ctx context.Context, shopDomain string, kind domain.EntityKind, value string, by int) (*domain.DecrementResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.UsageKey(kind, value)
	u, ok := s.records[key]
	if !ok {
		return &domain.DecrementResult{}, nil
	}
	if u.Decrement(shopDomain, by, s.now()) {
		delete(s.records, key)
		return &domain.DecrementResult{Found: true, Deleted: true, Usage: cloneUsage(u)}, nil
	}
	return &domain.DecrementResult{Found: true, Usage: cloneUsage(u)}, nil
}

func (s *EntityUsageStore) Get(ctx context.Context, kind domain.EntityKind, value string) (*domain.EntityUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.records[domain.UsageKey(kind, value)]
	if !ok {
		return nil, nil
	}
	return cloneUsage(u), nil
}

func (s *EntityUsageStore) ListByType(ctx context.Context, kind domain.EntityKind) ([]*domain.EntityUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.EntityUsage
	for _, u := range s.records {
		if u.EntityType == kind {
			out = append(out, cloneUsage(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityValue < out[j].EntityValue })
	return out, nil
}

func (s *EntityUsageStore) Put(ctx context.Context, usage *domain.EntityUsage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[usage.Key()] = cloneUsage(usage)
	return nil
}

func (s *EntityUsageStore) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*domain.EntityUsage)
	return nil
}

// Len returns the number of stored records
func (s *EntityUsageStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func cloneUsage(u *domain.EntityUsage) *domain.EntityUsage {
	c := *u
	c.ShopDomains = append([]string(nil), u.ShopDomains...)
	return &c
}
