package application

import (
	"context"
	"fmt"

	"shopify-entity-sync/internal/domain"
	"shopify-entity-sync/internal/ports"

	"github.com/rs/zerolog"
)

// EntitySyncService keeps remote entity types consistent with locally decided membership.
// It calls the agent directly and implements ports.EntitySyncer for inline sync mode.
type EntitySyncService struct {
	client  ports.EntityTypeClient
	metrics ports.SyncMetrics
	logger  zerolog.Logger
}

// NewEntitySyncService creates a new entity sync service. metrics may be nil.
func NewEntitySyncService(client ports.EntityTypeClient, metrics ports.SyncMetrics, logger zerolog.Logger) *EntitySyncService {
	return &EntitySyncService{
		client:  client,
		metrics: metrics,
		logger:  logger,
	}
}

// Push merges entities into the entity type named after kind
func (s *EntitySyncService) Push(ctx context.Context, kind domain.EntityKind, entities []domain.Entity) error {
	err := s.CreateOrUpdateEntityType(ctx, string(kind), entities)
	s.record(domain.SyncOpPush, kind, err)
	return err
}

// RemoveValue removes value from the entity type named after kind
func (s *EntitySyncService) RemoveValue(ctx context.Context, kind domain.EntityKind, value string) error {
	err := s.RemoveEntityValue(ctx, string(kind), value)
	s.record(domain.SyncOpRemove, kind, err)
	return err
}

// FindEntityType returns the resource name of the entity type with displayName, or ""
func (s *EntitySyncService) FindEntityType(ctx context.Context, displayName string) (string, error) {
	refs, err := s.client.ListEntityTypes(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list entity types: %w", err)
	}
	for _, ref := range refs {
		if ref.DisplayName == displayName {
			return ref.Name, nil
		}
	}
	return "", nil
}

// EnsureEntityType returns the entity type with displayName, creating a map entity type
// when none exists
func (s *EntitySyncService) EnsureEntityType(ctx context.Context, displayName string) (string, error) {
	name, err := s.FindEntityType(ctx, displayName)
	if err != nil {
		return "", err
	}
	if name != "" {
		return name, nil
	}

	name, err = s.client.CreateEntityType(ctx, displayName)
	if err != nil {
		s.logger.Error().Err(err).Str("entityType", displayName).Msg("Failed to create entity type")
		return "", fmt.Errorf("failed to create entity type %s: %w", displayName, err)
	}

	s.logger.Info().Str("entityType", displayName).Str("name", name).Msg("Created entity type")
	return name, nil
}

// PushFullList overwrites the entities of the entity type
func (s *EntitySyncService) PushFullList(ctx context.Context, name string, entities []domain.Entity) error {
	if err := s.client.UpdateEntityTypeEntities(ctx, name, entities); err != nil {
		return fmt.Errorf("failed to update entity type %s: %w", name, err)
	}
	return nil
}

// CreateOrUpdateEntityType merges incoming into the remote list of displayName and pushes
// the result. Existing values are never removed.
func (s *EntitySyncService) CreateOrUpdateEntityType(ctx context.Context, displayName string, incoming []domain.Entity) error {
	if len(incoming) == 0 {
		return nil
	}

	name, err := s.EnsureEntityType(ctx, displayName)
	if err != nil {
		return err
	}

	existing, err := s.client.GetEntityType(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to get entity type %s: %w", displayName, err)
	}

	merged := domain.MergeEntities(existing, incoming)
	if err := s.PushFullList(ctx, name, merged); err != nil {
		s.logger.Error().Err(err).Str("entityType", displayName).Msg("Failed to push entity list")
		return err
	}

	s.logger.Info().
		Str("entityType", displayName).
		Int("incoming", len(incoming)).
		Int("total", len(merged)).
		Msg("Entity type updated")
	return nil
}

// RemoveEntityValue filters value out of the remote list of displayName. A missing entity
// type or value is a no-op.
func (s *EntitySyncService) RemoveEntityValue(ctx context.Context, displayName string, value string) error {
	name, err := s.FindEntityType(ctx, displayName)
	if err != nil {
		return err
	}
	if name == "" {
		s.logger.Warn().Str("entityType", displayName).Str("entityValue", value).Msg("Entity type not found, nothing to remove")
		return nil
	}

	existing, err := s.client.GetEntityType(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to get entity type %s: %w", displayName, err)
	}

	filtered, removed := domain.RemoveEntity(existing, value)
	if !removed {
		s.logger.Debug().Str("entityType", displayName).Str("entityValue", value).Msg("Entity value already absent")
		return nil
	}

	if err := s.PushFullList(ctx, name, filtered); err != nil {
		s.logger.Error().Err(err).Str("entityType", displayName).Str("entityValue", value).Msg("Failed to push filtered entity list")
		return err
	}

	s.logger.Info().Str("entityType", displayName).Str("entityValue", value).Msg("Entity value removed")
	return nil
}

func (s *EntitySyncService) record(op domain.SyncOp, kind domain.EntityKind, err error) {
	if s.metrics != nil {
		s.metrics.SyncResult(op, kind, err)
	}
}
