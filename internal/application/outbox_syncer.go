package application

import (
	"context"
	"fmt"
	"time"

	"shopify-entity-sync/internal/domain"
	"shopify-entity-sync/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// OutboxSyncer records entity type changes as sync jobs instead of calling the agent.
// SyncWorker applies them later with retries.
type OutboxSyncer struct {
	jobs   ports.SyncJobRepository
	logger zerolog.Logger
	now    func() time.Time
}

// NewOutboxSyncer creates a new outbox syncer
func NewOutboxSyncer(jobs ports.SyncJobRepository, logger zerolog.Logger) *OutboxSyncer {
	return &OutboxSyncer{jobs: jobs, logger: logger, now: time.Now}
}

// Push enqueues a merge of entities into kind
func (o *OutboxSyncer) Push(ctx context.Context, kind domain.EntityKind, entities []domain.Entity) error {
	if len(entities) == 0 {
		return nil
	}
	return o.enqueue(ctx, &domain.SyncJob{
		Op:         domain.SyncOpPush,
		EntityType: kind,
		Entities:   entities,
	})
}

// RemoveValue enqueues the removal of value from kind
func (o *OutboxSyncer) RemoveValue(ctx context.Context, kind domain.EntityKind, value string) error {
	return o.enqueue(ctx, &domain.SyncJob{
		Op:         domain.SyncOpRemove,
		EntityType: kind,
		Value:      value,
	})
}

func (o *OutboxSyncer) enqueue(ctx context.Context, job *domain.SyncJob) error {
	now := o.now()
	job.ID = uuid.NewString()
	job.Status = domain.SyncJobPending
	job.NextAttemptAt = now
	job.CreatedAt = now
	job.UpdatedAt = now

	if err := o.jobs.Enqueue(ctx, job); err != nil {
		o.logger.Error().
			Err(err).
			Str("op", string(job.Op)).
			Str("entityType", string(job.EntityType)).
			Msg("Failed to enqueue sync job")
		return fmt.Errorf("failed to enqueue sync job: %w", err)
	}

	o.logger.Debug().
		Str("job_id", job.ID).
		Str("op", string(job.Op)).
		Str("entityType", string(job.EntityType)).
		Msg("Sync job enqueued")
	return nil
}
