package memory

import (
	"context"
	"fmt"
	"sync"

	"shopify-entity-sync/internal/domain"
	"shopify-entity-sync/internal/ports"
)

// Agent is an in-memory stand-in for the conversational agent's entity types
type Agent struct {
	mu       sync.Mutex
	parent   string
	types    map[string]*agentEntityType // by resource name
	order    []string
	next     int
	failNext error

	// call counters
	Creates int
	Updates int
}

type agentEntityType struct {
	displayName string
	entities    []domain.Entity
}

// NewAgent creates an agent without entity types
func NewAgent(parent string) *Agent {
	return &Agent{parent: parent, types: make(map[string]*agentEntityType)}
}

// FailNext makes the next RPC return err
func (a *Agent) FailNext(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failNext = err
}

func (a *Agent) takeFailure() error {
	err := a.failNext
	a.failNext = nil
	return err
}

func (a *Agent) ListEntityTypes(ctx context.Context) ([]ports.EntityTypeRef, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.takeFailure(); err != nil {
		return nil, err
	}

	refs := make([]ports.EntityTypeRef, 0, len(a.order))
	for _, name := range a.order {
		refs = append(refs, ports.EntityTypeRef{Name: name, DisplayName: a.types[name].displayName})
	}
	return refs, nil
}

func (a *Agent) CreateEntityType(ctx context.Context, displayName string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.takeFailure(); err != nil {
		return "", err
	}

	a.next++
	name := fmt.Sprintf("%s/entityTypes/%d", a.parent, a.next)
	a.types[name] = &agentEntityType{displayName: displayName}
	a.order = append(a.order, name)
	a.Creates++
	return name, nil
}

func (a *Agent) GetEntityType(ctx context.Context, name string) ([]domain.Entity, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.takeFailure(); err != nil {
		return nil, err
	}

	et, ok := a.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: entity type %s", domain.ErrNotFound, name)
	}
	return cloneEntities(et.entities), nil
}

func (a *Agent) UpdateEntityTypeEntities(ctx context.Context, name string, entities []domain.Entity) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.takeFailure(); err != nil {
		return err
	}

	et, ok := a.types[name]
	if !ok {
		return fmt.Errorf("%w: entity type %s", domain.ErrNotFound, name)
	}
	et.entities = cloneEntities(entities)
	a.Updates++
	return nil
}

// Entities returns the entities of the entity type with displayName
func (a *Agent) Entities(displayName string) []domain.Entity {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, name := range a.order {
		if a.types[name].displayName == displayName {
			return cloneEntities(a.types[name].entities)
		}
	}
	return nil
}

// Values returns the entity values of displayName in order
func (a *Agent) Values(displayName string) []string {
	var values []string
	for _, e := range a.Entities(displayName) {
		values = append(values, e.Value)
	}
	return values
}

func cloneEntities(entities []domain.Entity) []domain.Entity {
	out := make([]domain.Entity, len(entities))
	for i, e := range entities {
		out[i] = domain.Entity{Value: e.Value, Synonyms: append([]string(nil), e.Synonyms...)}
	}
	return out
}
