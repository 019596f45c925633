package webhook_handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"shopify-entity-sync/internal/application"
	"shopify-entity-sync/internal/domain"

	"github.com/rs/zerolog"
)

// AppUninstalledHandler handles app uninstalled webhook events
type AppUninstalledHandler struct {
	shopifyService *application.ShopifyService
	logger         zerolog.Logger
}

// NewAppUninstalledHandler creates a new app uninstalled webhook handler
func NewAppUninstalledHandler(shopifyService *application.ShopifyService, logger zerolog.Logger) *AppUninstalledHandler {
	return &AppUninstalledHandler{
		shopifyService: shopifyService,
		logger:         logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *AppUninstalledHandler) CanHandle(topic string) bool {
	return topic == domain.TopicAppUninstalled
}

// Handle releases every entity held by the shop and removes its products
func (h *AppUninstalledHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	shopDomain := event.Shop
	if shopDomain == "" {
		var shopData struct {
			Domain          string `json:"domain"`
			MyshopifyDomain string `json:"myshopify_domain"`
		}
		if err := json.Unmarshal(event.Payload, &shopData); err != nil {
			return fmt.Errorf("failed to parse app uninstalled webhook payload: %w", err)
		}
		shopDomain = shopData.MyshopifyDomain
		if shopDomain == "" {
			shopDomain = shopData.Domain
		}
	}
	if shopDomain == "" {
		h.logger.Error().Msg("App uninstalled webhook without shop domain")
		return nil
	}

	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", shopDomain).
		Msg("Processing app uninstalled webhook event")

	if err := h.shopifyService.Uninstall(ctx, shopDomain); err != nil {
		return fmt.Errorf("failed to uninstall shop: %w", err)
	}
	return nil
}
