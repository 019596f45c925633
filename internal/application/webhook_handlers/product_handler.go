package webhook_handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"shopify-entity-sync/internal/application"
	"shopify-entity-sync/internal/domain"

	"github.com/rs/zerolog"
)

// ProductHandler handles product-related webhook events
type ProductHandler struct {
	catalog *application.CatalogService
	logger  zerolog.Logger
}

// NewProductHandler creates a new product webhook handler
func NewProductHandler(catalog *application.CatalogService, logger zerolog.Logger) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		logger:  logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *ProductHandler) CanHandle(topic string) bool {
	return topic == domain.TopicProductsCreate ||
		topic == domain.TopicProductsUpdate ||
		topic == domain.TopicProductsDelete
}

// Handle processes a product webhook event. Invalid payloads and deletes of unknown
// products are acknowledged so Shopify does not retry them.
func (h *ProductHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	var payload domain.ShopifyProductPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("failed to parse product webhook payload: %w", err)
	}

	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", event.Shop).
		Int64("productId", payload.ID).
		Str("title", payload.Title).
		Msg("Processing product webhook event")

	var err error
	switch event.Topic {
	case domain.TopicProductsCreate:
		err = h.catalog.HandleProductCreate(ctx, event.Shop, &payload)
	case domain.TopicProductsUpdate:
		err = h.catalog.HandleProductUpdate(ctx, event.Shop, &payload)
	case domain.TopicProductsDelete:
		err = h.catalog.HandleProductDelete(ctx, event.Shop, payload.ID)
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrNotFound):
		h.logger.Warn().Err(err).Str("topic", event.Topic).Str("shop", event.Shop).Msg("Product webhook ignored")
		return nil
	default:
		return err
	}
}
