package graph

import (
	"context"
	"fmt"

	"shopify-entity-sync/graph/model"
	"shopify-entity-sync/internal/application"
	"shopify-entity-sync/internal/domain"
	"shopify-entity-sync/internal/infrastructure/pubsub"
)

// Entities is the resolver for the entities field.
func (r *queryResolver) Entities(ctx context.Context, entityType domain.EntityKind) ([]*domain.EntityUsage, error) {
	records, err := r.usage.ListByType(ctx, entityType)
	if err != nil {
		r.logger.Error().Err(err).Str("entityType", string(entityType)).Msg("Failed to list entity usage")
		return nil, fmt.Errorf("failed to list entity usage: %w", err)
	}
	return records, nil
}

// Entity is the resolver for the entity field.
func (r *queryResolver) Entity(ctx context.Context, entityType domain.EntityKind, value string) (*domain.EntityUsage, error) {
	record, err := r.usage.Get(ctx, entityType, value)
	if err != nil {
		r.logger.Error().Err(err).Str("entityType", string(entityType)).Str("entityValue", value).Msg("Failed to get entity usage")
		return nil, fmt.Errorf("failed to get entity usage: %w", err)
	}
	return record, nil
}

// Shops is the resolver for the shops field.
func (r *queryResolver) Shops(ctx context.Context) ([]*model.Shop, error) {
	shops, err := r.shopify.ListShops(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list shops: %w", err)
	}
	out := make([]*model.Shop, 0, len(shops))
	for _, s := range shops {
		out = append(out, model.ShopFromDomain(s))
	}
	return out, nil
}

// Products is the resolver for the products field.
func (r *queryResolver) Products(ctx context.Context, shop string) ([]*domain.Product, error) {
	return r.catalog.ListProducts(ctx, shop)
}

// SyncStatus is the resolver for the syncStatus field.
func (r *queryResolver) SyncStatus(ctx context.Context) (*model.SyncStatus, error) {
	status := &model.SyncStatus{Mode: "inline"}
	if n, ok := r.events.Stats()["active_subscriptions"].(int); ok {
		status.ActiveSubscriptions = n
	}
	if r.jobs == nil {
		return status, nil
	}

	status.Mode = "outbox"
	var err error
	if status.Pending, err = r.jobs.CountByStatus(ctx, domain.SyncJobPending); err != nil {
		return nil, fmt.Errorf("failed to count sync jobs: %w", err)
	}
	if status.Dead, err = r.jobs.CountByStatus(ctx, domain.SyncJobDead); err != nil {
		return nil, fmt.Errorf("failed to count sync jobs: %w", err)
	}
	return status, nil
}

// RebuildCounters is the resolver for the rebuildCounters field.
func (r *mutationResolver) RebuildCounters(ctx context.Context) (*application.RebuildReport, error) {
	report, err := r.reconciler.RebuildCounters(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to rebuild counters")
		return nil, err
	}
	return report, nil
}

// ResyncShop is the resolver for the resyncShop field.
func (r *mutationResolver) ResyncShop(ctx context.Context, shop string) (*model.ResyncResult, error) {
	n, err := r.shopify.ResyncShop(ctx, shop)
	if err != nil {
		r.logger.Error().Err(err).Str("shop", shop).Msg("Failed to resync shop")
		return nil, err
	}
	return &model.ResyncResult{Shop: shop, Products: n}, nil
}

// EntityUsageChanged is the resolver for the entityUsageChanged field. The channel closes
// when ctx is done.
func (r *subscriptionResolver) EntityUsageChanged(ctx context.Context, entityTypes []domain.EntityKind, shop *string) (<-chan *domain.EntityUsageEvent, error) {
	filter := &pubsub.EntityEventFilter{EntityTypes: entityTypes}
	if shop != nil {
		filter.Shop = *shop
	}
	return r.events.Subscribe(ctx, filter).Events, nil
}

// Mutation returns MutationResolver implementation.
func (r *Resolver) Mutation() MutationResolver { return &mutationResolver{r} }

// Query returns QueryResolver implementation.
func (r *Resolver) Query() QueryResolver { return &queryResolver{r} }

// Subscription returns SubscriptionResolver implementation.
func (r *Resolver) Subscription() SubscriptionResolver { return &subscriptionResolver{r} }

type mutationResolver struct{ *Resolver }
type queryResolver struct{ *Resolver }
type subscriptionResolver struct{ *Resolver }
