package firestore

import (
	"context"
	"fmt"
	"time"

	"shopify-entity-sync/internal/domain"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// EntityUsageStore implements EntityUsageRepository on Firestore. Increment and
// Decrement each run in a transaction that reads and writes a single document.
type EntityUsageStore struct {
	client *firestore.Client
	now    func() time.Time
}

// NewEntityUsageStore creates a Firestore-backed reference-count store
func NewEntityUsageStore(client *firestore.Client) *EntityUsageStore {
	return &EntityUsageStore{client: client, now: time.Now}
}

func (s *EntityUsageStore) ref(kind domain.EntityKind, value string) *firestore.DocumentRef {
	return s.client.Collection(entityUsageCollection).Doc(docID(domain.UsageKey(kind, value)))
}

// load reads the record inside tx, nil when absent
func load(tx *firestore.Transaction, ref *firestore.DocumentRef) (*domain.EntityUsage, error) {
	snap, err := tx.Get(ref)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var doc usageDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode entity usage: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *EntityUsageStore) Increment(ctx context.Context, shopDomain string, kind domain.EntityKind, value string, by int) (*domain.EntityUsage, bool, error) {
	ref := s.ref(kind, value)

	var (
		usage   *domain.EntityUsage
		created bool
	)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		now := s.now()
		current, err := load(tx, ref)
		if err != nil {
			return err
		}

		if current == nil {
			usage, created = domain.NewEntityUsage(kind, value, shopDomain, by, now), true
			return tx.Create(ref, usageDocFromDomain(usage))
		}

		current.Increment(shopDomain, by, now)
		usage, created = current, false
		return tx.Set(ref, usageDocFromDomain(current))
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to increment entity usage %s: %w", ref.ID, err)
	}

	return usage, created, nil
}

func (s *EntityUsageStore) Decrement(ctx context.Context, shopDomain string, kind domain.EntityKind, value string, by int) (*domain.DecrementResult, error) {
	ref := s.ref(kind, value)

	var result *domain.DecrementResult
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		current, err := load(tx, ref)
		if err != nil {
			return err
		}
		if current == nil {
			result = &domain.DecrementResult{}
			return nil
		}

		if current.Decrement(shopDomain, by, s.now()) {
			result = &domain.DecrementResult{Found: true, Deleted: true, Usage: current}
			return tx.Delete(ref)
		}

		result = &domain.DecrementResult{Found: true, Usage: current}
		return tx.Set(ref, usageDocFromDomain(current))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decrement entity usage %s: %w", ref.ID, err)
	}

	return result, nil
}

func (s *EntityUsageStore) Get(ctx context.Context, kind domain.EntityKind, value string) (*domain.EntityUsage, error) {
	snap, err := s.ref(kind, value).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get entity usage: %w", err)
	}

	var doc usageDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode entity usage: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *EntityUsageStore) ListByType(ctx context.Context, kind domain.EntityKind) ([]*domain.EntityUsage, error) {
	iter := s.client.Collection(entityUsageCollection).
		Where("entityType", "==", string(kind)).
		OrderBy("entityValue", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var usages []*domain.EntityUsage
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list entity usage: %w", err)
		}
		var doc usageDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode entity usage: %w", err)
		}
		usages = append(usages, doc.toDomain())
	}
	return usages, nil
}

func (s *EntityUsageStore) Put(ctx context.Context, usage *domain.EntityUsage) error {
	if _, err := s.ref(usage.EntityType, usage.EntityValue).Set(ctx, usageDocFromDomain(usage)); err != nil {
		return fmt.Errorf("failed to put entity usage: %w", err)
	}
	return nil
}

func (s *EntityUsageStore) DeleteAll(ctx context.Context) error {
	if _, err := deleteQuery(ctx, s.client, s.client.Collection(entityUsageCollection).Query); err != nil {
		return fmt.Errorf("failed to delete entity usage: %w", err)
	}
	return nil
}

// deleteQuery removes every document matched by q with a bulk writer. It returns the
// number of deleted documents once all deletes were flushed.
func deleteQuery(ctx context.Context, client *firestore.Client, q firestore.Query) (int64, error) {
	iter := q.Select().Documents(ctx)
	defer iter.Stop()

	bw := client.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			bw.End()
			return 0, fmt.Errorf("failed to list documents: %w", err)
		}
		job, err := bw.Delete(snap.Ref)
		if err != nil {
			bw.End()
			return 0, fmt.Errorf("failed to delete document: %w", err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return 0, fmt.Errorf("failed to delete document: %w", err)
		}
	}
	return int64(len(jobs)), nil
}
