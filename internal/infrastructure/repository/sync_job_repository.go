package repository

import (
	"context"
	"fmt"
	"time"

	"shopify-entity-sync/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// outboxLeaseID is the lease document guarding the sync_jobs collection
const outboxLeaseID = "sync_jobs"

// MongoSyncJobRepository implements SyncJobRepository using MongoDB
type MongoSyncJobRepository struct {
	collection *mongo.Collection
	leases     *mongo.Collection
	now        func() time.Time
}

// NewMongoSyncJobRepository creates a new MongoDB outbox
func NewMongoSyncJobRepository(db *mongo.Database) *MongoSyncJobRepository {
	return &MongoSyncJobRepository{
		collection: db.Collection("sync_jobs"),
		leases:     db.Collection("leases"),
		now:        time.Now,
	}
}

func (r *MongoSyncJobRepository) Enqueue(ctx context.Context, job *domain.SyncJob) error {
	_, err := r.collection.InsertOne(ctx, job)
	if err != nil {
		return fmt.Errorf("failed to enqueue sync job: %w", err)
	}
	return nil
}

// ListReady returns due pending jobs oldest first. The caller holds the outbox lease, so
// the jobs themselves are not locked.
func (r *MongoSyncJobRepository) ListReady(ctx context.Context, limit int) ([]*domain.SyncJob, error) {
	filter := bson.M{
		"status":        domain.SyncJobPending,
		"nextAttemptAt": bson.M{"$lte": r.now()},
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync jobs: %w", err)
	}
	defer cursor.Close(ctx)

	var jobs []*domain.SyncJob
	if err := cursor.All(ctx, &jobs); err != nil {
		return nil, fmt.Errorf("failed to decode sync jobs: %w", err)
	}
	return jobs, nil
}

func (r *MongoSyncJobRepository) MarkDone(ctx context.Context, id string) error {
	update := bson.M{"$set": bson.M{
		"status":    domain.SyncJobDone,
		"updatedAt": r.now(),
	}}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to mark sync job done: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("sync job %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// MarkFailed records a failed attempt and schedules the next one after the backoff for
// the attempts made so far
func (r *MongoSyncJobRepository) MarkFailed(ctx context.Context, id string, cause error, dead bool) error {
	var job domain.SyncJob
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&job)
	if err == mongo.ErrNoDocuments {
		return fmt.Errorf("sync job %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to get sync job: %w", err)
	}

	now := r.now()
	set := bson.M{
		"nextAttemptAt": now.Add(domain.SyncBackoff(job.Attempts)),
		"updatedAt":     now,
	}
	if cause != nil {
		set["lastError"] = cause.Error()
	}
	if dead {
		set["status"] = domain.SyncJobDead
	}

	_, err = r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": set,
		"$inc": bson.M{"attempts": 1},
	})
	if err != nil {
		return fmt.Errorf("failed to mark sync job failed: %w", err)
	}
	return nil
}

func (r *MongoSyncJobRepository) CountByStatus(ctx context.Context, status domain.SyncJobStatus) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"status": status})
	if err != nil {
		return 0, fmt.Errorf("failed to count sync jobs: %w", err)
	}
	return n, nil
}

// AcquireLease upserts the lease document when it is free, expired or already owned.
// A live lease of another owner makes the upsert collide on _id.
func (r *MongoSyncJobRepository) AcquireLease(ctx context.Context, owner string, ttl time.Duration) (bool, error) {
	now := r.now()
	filter := bson.M{
		"_id": outboxLeaseID,
		"$or": bson.A{
			bson.M{"owner": owner},
			bson.M{"expiresAt": bson.M{"$lte": now}},
		},
	}
	update := bson.M{"$set": bson.M{
		"owner":     owner,
		"expiresAt": now.Add(ttl),
	}}

	_, err := r.leases.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to acquire outbox lease: %w", err)
	}
	return true, nil
}

func (r *MongoSyncJobRepository) ReleaseLease(ctx context.Context, owner string) error {
	_, err := r.leases.DeleteOne(ctx, bson.M{"_id": outboxLeaseID, "owner": owner})
	if err != nil {
		return fmt.Errorf("failed to release outbox lease: %w", err)
	}
	return nil
}
