package application

import (
	"context"
	"fmt"
	"time"

	"shopify-entity-sync/internal/domain"
	"shopify-entity-sync/internal/ports"

	"github.com/rs/zerolog"
)

// EntityUsageService applies reference-count changes and reacts to committed transitions.
// Every call is one atomic transaction on one record; callers looping over several values
// get no cross-record atomicity.
type EntityUsageService struct {
	repo      ports.EntityUsageRepository
	syncer    ports.EntitySyncer
	publisher ports.EntityEventPublisher
	metrics   ports.SyncMetrics
	logger    zerolog.Logger
	now       func() time.Time
}

// NewEntityUsageService creates a new entity usage service. publisher and metrics may be nil.
func NewEntityUsageService(
	repo ports.EntityUsageRepository,
	syncer ports.EntitySyncer,
	publisher ports.EntityEventPublisher,
	metrics ports.SyncMetrics,
	logger zerolog.Logger,
) *EntityUsageService {
	return &EntityUsageService{
		repo:      repo,
		syncer:    syncer,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Increment adds by references of value for shopDomain
func (s *EntityUsageService) Increment(ctx context.Context, shopDomain string, kind domain.EntityKind, value string, by int) error {
	if err := validateUsageInput(shopDomain, value, by); err != nil {
		s.logger.Error().Err(err).Str("entityType", string(kind)).Str("entityValue", value).Msg("Rejected entity increment")
		return err
	}

	usage, created, err := s.repo.Increment(ctx, shopDomain, kind, value, by)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("shop", shopDomain).
			Str("entityType", string(kind)).
			Str("entityValue", value).
			Msg("Failed to increment entity usage")
		return fmt.Errorf("failed to increment %s: %w", domain.UsageKey(kind, value), err)
	}

	transition := domain.UsageUpdated
	if created {
		transition = domain.UsageCreated
	}
	s.committed(kind, transition, usage)

	s.logger.Debug().
		Str("shop", shopDomain).
		Str("entityType", string(kind)).
		Str("entityValue", value).
		Int("usageCount", usage.UsageCount).
		Msg("Entity usage incremented")
	return nil
}

// Decrement removes by references of value for shopDomain. A missing record is logged
// as an anomaly and ignored. When the record reaches zero references it is deleted and
// the value is removed from the remote entity type after the transaction committed.
func (s *EntityUsageService) Decrement(ctx context.Context, shopDomain string, kind domain.EntityKind, value string, by int) error {
	if err := validateUsageInput(shopDomain, value, by); err != nil {
		s.logger.Error().Err(err).Str("entityType", string(kind)).Str("entityValue", value).Msg("Rejected entity decrement")
		return err
	}

	result, err := s.repo.Decrement(ctx, shopDomain, kind, value, by)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("shop", shopDomain).
			Str("entityType", string(kind)).
			Str("entityValue", value).
			Msg("Failed to decrement entity usage")
		return fmt.Errorf("failed to decrement %s: %w", domain.UsageKey(kind, value), err)
	}

	if !result.Found {
		s.logger.Warn().
			Str("shop", shopDomain).
			Str("entityType", string(kind)).
			Str("entityValue", value).
			Int("by", by).
			Msg("Decrement of unknown entity usage record ignored")
		if s.metrics != nil {
			s.metrics.UsageAnomaly(kind)
		}
		return nil
	}

	if !result.Deleted {
		s.committed(kind, domain.UsageUpdated, result.Usage)
		return nil
	}

	s.committed(kind, domain.UsageDeleted, result.Usage)
	s.logger.Info().
		Str("shop", shopDomain).
		Str("entityType", string(kind)).
		Str("entityValue", value).
		Msg("Entity value no longer referenced, removing from entity type")

	if err := s.syncer.RemoveValue(ctx, kind, value); err != nil {
		s.logger.Error().
			Err(err).
			Str("entityType", string(kind)).
			Str("entityValue", value).
			Msg("Failed to remove entity value from entity type")
	}
	return nil
}

// Get returns one usage record or nil
func (s *EntityUsageService) Get(ctx context.Context, kind domain.EntityKind, value string) (*domain.EntityUsage, error) {
	usage, err := s.repo.Get(ctx, kind, value)
	if err != nil {
		return nil, fmt.Errorf("failed to get entity usage: %w", err)
	}
	return usage, nil
}

// ListByType returns every usage record of kind
func (s *EntityUsageService) ListByType(ctx context.Context, kind domain.EntityKind) ([]*domain.EntityUsage, error) {
	usages, err := s.repo.ListByType(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list entity usage: %w", err)
	}
	return usages, nil
}

func (s *EntityUsageService) committed(kind domain.EntityKind, transition domain.EntityUsageEventKind, usage *domain.EntityUsage) {
	if s.metrics != nil {
		s.metrics.CounterTransition(kind, transition)
	}
	if s.publisher != nil && usage != nil {
		s.publisher.Publish(&domain.EntityUsageEvent{
			Kind:       transition,
			Usage:      usage,
			OccurredAt: s.now(),
		})
	}
}

func validateUsageInput(shopDomain, value string, by int) error {
	if shopDomain == "" {
		return fmt.Errorf("%w: shop domain is required", domain.ErrInvalidInput)
	}
	if value == "" {
		return fmt.Errorf("%w: entity value is required", domain.ErrInvalidInput)
	}
	if by <= 0 {
		return fmt.Errorf("%w: count must be positive, got %d", domain.ErrInvalidInput, by)
	}
	return nil
}
