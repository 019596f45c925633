package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shopify-entity-sync/internal/domain"
	"shopify-entity-sync/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrOutboxLeased is returned while another worker holds the outbox lease
var ErrOutboxLeased = errors.New("sync outbox is leased by another worker")

// SyncWorkerConfig controls batch size, polling cadence and dead-lettering
type SyncWorkerConfig struct {
	BatchSize   int           // jobs applied per cycle
	Interval    time.Duration // poll interval
	MaxAttempts int           // failed attempts before a job is marked dead
	LeaseTTL    time.Duration // outbox lease duration, renewed before every job
}

// SyncWorker drains the sync job outbox into the agent. Only the holder of the outbox
// lease applies jobs, so one entity type is never rewritten by two workers at once.
type SyncWorker struct {
	jobs   ports.SyncJobRepository
	usage  ports.EntityUsageRepository
	syncer ports.EntitySyncer
	cfg    SyncWorkerConfig
	owner  string
	logger zerolog.Logger
}

// NewSyncWorker creates a worker applying jobs through syncer. usage is consulted before
// a retried job runs.
func NewSyncWorker(jobs ports.SyncJobRepository, usage ports.EntityUsageRepository, syncer ports.EntitySyncer, cfg SyncWorkerConfig, logger zerolog.Logger) *SyncWorker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 8
	}
	if cfg.LeaseTTL < 3*cfg.Interval {
		cfg.LeaseTTL = max(30*time.Second, 3*cfg.Interval)
	}
	owner := uuid.NewString()
	return &SyncWorker{
		jobs:   jobs,
		usage:  usage,
		syncer: syncer,
		cfg:    cfg,
		owner:  owner,
		logger: logger.With().Str("worker", owner).Logger(),
	}
}

// Run polls the outbox until ctx is canceled
func (w *SyncWorker) Run(ctx context.Context) error {
	w.logger.Info().
		Int("batch", w.cfg.BatchSize).
		Dur("interval", w.cfg.Interval).
		Int("max_attempts", w.cfg.MaxAttempts).
		Msg("Sync worker starting")

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()
	defer w.release()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Sync worker stopping")
			return ctx.Err()
		case <-ticker.C:
			_, err := w.ProcessOnce(ctx)
			switch {
			case err == nil:
			case errors.Is(err, ErrOutboxLeased):
				w.logger.Debug().Msg("Outbox leased by another worker, waiting")
			default:
				// per-job backoff prevents hot-looping
				w.logger.Error().Err(err).Msg("Sync worker cycle failed")
			}
		}
	}
}

// ProcessOnce applies one batch of ready jobs and returns how many succeeded. It returns
// ErrOutboxLeased when another worker holds the outbox.
func (w *SyncWorker) ProcessOnce(ctx context.Context) (int, error) {
	if err := w.acquire(ctx); err != nil {
		return 0, err
	}

	jobs, err := w.jobs.ListReady(ctx, w.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list sync jobs: %w", err)
	}

	done := 0
	for i, job := range jobs {
		if i > 0 {
			if err := w.acquire(ctx); err != nil {
				return done, err
			}
		}
		if err := w.handle(ctx, job); err != nil {
			dead := job.Attempts+1 >= w.cfg.MaxAttempts
			logEvent := w.logger.Warn()
			if dead {
				logEvent = w.logger.Error()
			}
			logEvent.
				Err(err).
				Str("job_id", job.ID).
				Str("op", string(job.Op)).
				Str("entityType", string(job.EntityType)).
				Int("attempts", job.Attempts+1).
				Bool("dead", dead).
				Msg("Sync job failed")

			if e := w.jobs.MarkFailed(ctx, job.ID, err, dead); e != nil {
				w.logger.Error().Err(e).Str("job_id", job.ID).Msg("Failed to mark sync job failed")
			}
			continue
		}

		if e := w.jobs.MarkDone(ctx, job.ID); e != nil {
			w.logger.Error().Err(e).Str("job_id", job.ID).Msg("Failed to mark sync job done")
			continue
		}
		done++
	}

	if len(jobs) > 0 {
		w.logger.Info().Int("ready", len(jobs)).Int("done", done).Msg("Sync worker cycle complete")
	}
	return done, nil
}

// Drain processes batches until a cycle makes no progress, then releases the outbox.
// Failed jobs are rescheduled into the future, so Drain terminates even when the agent
// is unavailable.
func (w *SyncWorker) Drain(ctx context.Context) (int, error) {
	defer w.release()
	total := 0
	for {
		n, err := w.ProcessOnce(ctx)
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, nil
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}
}

func (w *SyncWorker) acquire(ctx context.Context) error {
	ok, err := w.jobs.AcquireLease(ctx, w.owner, w.cfg.LeaseTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire outbox lease: %w", err)
	}
	if !ok {
		return ErrOutboxLeased
	}
	return nil
}

func (w *SyncWorker) release() {
	if err := w.jobs.ReleaseLease(context.Background(), w.owner); err != nil {
		w.logger.Error().Err(err).Msg("Failed to release outbox lease")
	}
}

// handle applies one job. Jobs run in enqueue order on their first attempt, but a retried
// job may run after newer jobs for the same values, so it is checked against the counters
// first: a push keeps only values that are still referenced and a removal is skipped for
// a value that is referenced again.
func (w *SyncWorker) handle(ctx context.Context, job *domain.SyncJob) error {
	retry := job.Attempts > 0
	switch job.Op {
	case domain.SyncOpPush:
		entities := job.Entities
		if retry {
			var err error
			if entities, err = w.referenced(ctx, job.EntityType, entities); err != nil {
				return err
			}
			if len(entities) == 0 {
				w.logger.Info().Str("job_id", job.ID).Str("entityType", string(job.EntityType)).Msg("Retried push has no referenced values left, skipping")
				return nil
			}
		}
		return w.syncer.Push(ctx, job.EntityType, entities)
	case domain.SyncOpRemove:
		if retry {
			usage, err := w.usage.Get(ctx, job.EntityType, job.Value)
			if err != nil {
				return fmt.Errorf("failed to check entity usage: %w", err)
			}
			if usage != nil {
				w.logger.Info().
					Str("job_id", job.ID).
					Str("entityType", string(job.EntityType)).
					Str("entityValue", job.Value).
					Msg("Value referenced again, skipping retried removal")
				return nil
			}
		}
		return w.syncer.RemoveValue(ctx, job.EntityType, job.Value)
	default:
		return fmt.Errorf("unknown sync op: %s", job.Op)
	}
}

// referenced filters entities down to the values that still have a usage record
func (w *SyncWorker) referenced(ctx context.Context, kind domain.EntityKind, entities []domain.Entity) ([]domain.Entity, error) {
	live := make([]domain.Entity, 0, len(entities))
	for _, e := range entities {
		usage, err := w.usage.Get(ctx, kind, e.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to check entity usage: %w", err)
		}
		if usage != nil {
			live = append(live, e)
		}
	}
	return live, nil
}
