package graph

import (
	"shopify-entity-sync/internal/application"
	"shopify-entity-sync/internal/infrastructure/pubsub"
	"shopify-entity-sync/internal/ports"

	"github.com/rs/zerolog"
)

// This file will not be regenerated automatically.
//
// It serves as dependency injection for your app, add any dependencies you require here.

type Resolver struct {
	usage      *application.EntityUsageService
	reconciler *application.Reconciler
	catalog    *application.CatalogService
	shopify    *application.ShopifyService
	events     *pubsub.EntityEventPubSub
	jobs       ports.SyncJobRepository // nil with inline sync
	logger     zerolog.Logger
}

// NewResolver creates a new GraphQL resolver
func NewResolver(
	usage *application.EntityUsageService,
	reconciler *application.Reconciler,
	catalog *application.CatalogService,
	shopify *application.ShopifyService,
	events *pubsub.EntityEventPubSub,
	jobs ports.SyncJobRepository,
	logger zerolog.Logger,
) *Resolver {
	return &Resolver{
		usage:      usage,
		reconciler: reconciler,
		catalog:    catalog,
		shopify:    shopify,
		events:     events,
		jobs:       jobs,
		logger:     logger,
	}
}
