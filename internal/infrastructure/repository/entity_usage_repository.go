package repository

import (
	"context"
	"fmt"
	"time"

	"shopify-entity-sync/internal/domain"
	"shopify-entity-sync/internal/infrastructure/repository/entity"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoEntityUsageRepository implements EntityUsageRepository using MongoDB. Increment
// and Decrement each read and write one document inside a transaction, so the deployment
// must be a replica set.
type MongoEntityUsageRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
	now        func() time.Time
}

// NewMongoEntityUsageRepository creates a new MongoDB reference-count repository
func NewMongoEntityUsageRepository(db *mongo.Database) *MongoEntityUsageRepository {
	return &MongoEntityUsageRepository{
		client:     db.Client(),
		collection: db.Collection("entity_usage"),
		now:        time.Now,
	}
}

// withTransaction runs fn in a transaction. fn may be called again on transient errors.
func (r *MongoEntityUsageRepository) withTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// load returns the record for key, nil when absent
func (r *MongoEntityUsageRepository) load(ctx context.Context, key string) (*domain.EntityUsage, error) {
	var doc entity.MongoEntityUsageDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.ToDomain(), nil
}

func (r *MongoEntityUsageRepository) Increment(ctx context.Context, shopDomain string, kind domain.EntityKind, value string, by int) (*domain.EntityUsage, bool, error) {
	key := domain.UsageKey(kind, value)

	var (
		usage   *domain.EntityUsage
		created bool
	)
	err := r.withTransaction(ctx, func(sc mongo.SessionContext) error {
		now := r.now()
		current, err := r.load(sc, key)
		if err != nil {
			return err
		}

		if current == nil {
			usage = domain.NewEntityUsage(kind, value, shopDomain, by, now)
			created = true
			_, err = r.collection.InsertOne(sc, entity.MongoEntityUsageDocFromDomain(usage))
			return err
		}

		current.Increment(shopDomain, by, now)
		usage, created = current, false
		_, err = r.collection.ReplaceOne(sc, bson.M{"_id": key}, entity.MongoEntityUsageDocFromDomain(current))
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to increment entity usage %s: %w", key, err)
	}

	return usage, created, nil
}

func (r *MongoEntityUsageRepository) Decrement(ctx context.Context, shopDomain string, kind domain.EntityKind, value string, by int) (*domain.DecrementResult, error) {
	key := domain.UsageKey(kind, value)

	var result *domain.DecrementResult
	err := r.withTransaction(ctx, func(sc mongo.SessionContext) error {
		current, err := r.load(sc, key)
		if err != nil {
			return err
		}
		if current == nil {
			result = &domain.DecrementResult{}
			return nil
		}

		if current.Decrement(shopDomain, by, r.now()) {
			result = &domain.DecrementResult{Found: true, Deleted: true, Usage: current}
			_, err = r.collection.DeleteOne(sc, bson.M{"_id": key})
			return err
		}

		result = &domain.DecrementResult{Found: true, Usage: current}
		_, err = r.collection.ReplaceOne(sc, bson.M{"_id": key}, entity.MongoEntityUsageDocFromDomain(current))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decrement entity usage %s: %w", key, err)
	}

	return result, nil
}

func (r *MongoEntityUsageRepository) Get(ctx context.Context, kind domain.EntityKind, value string) (*domain.EntityUsage, error) {
	usage, err := r.load(ctx, domain.UsageKey(kind, value))
	if err != nil {
		return nil, fmt.Errorf("failed to get entity usage: %w", err)
	}
	return usage, nil
}

func (r *MongoEntityUsageRepository) ListByType(ctx context.Context, kind domain.EntityKind) ([]*domain.EntityUsage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "entityValue", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"entityType": string(kind)}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list entity usage: %w", err)
	}
	defer cursor.Close(ctx)

	var usages []*domain.EntityUsage
	for cursor.Next(ctx) {
		var doc entity.MongoEntityUsageDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode entity usage: %w", err)
		}
		usages = append(usages, doc.ToDomain())
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return usages, nil
}

func (r *MongoEntityUsageRepository) Put(ctx context.Context, usage *domain.EntityUsage) error {
	doc := entity.MongoEntityUsageDocFromDomain(usage)
	opts := options.Replace().SetUpsert(true)

	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": doc.Key}, doc, opts)
	if err != nil {
		return fmt.Errorf("failed to put entity usage: %w", err)
	}
	return nil
}

func (r *MongoEntityUsageRepository) DeleteAll(ctx context.Context) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("failed to delete entity usage: %w", err)
	}
	return nil
}
