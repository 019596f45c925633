package api

import (
	"bytes"
	"io"
	"net/http"

	"shopify-entity-sync/internal/application"
	"shopify-entity-sync/internal/domain"
	"shopify-entity-sync/internal/ports"

	"github.com/rs/zerolog"
)

// maxWebhookBody bounds the payload read from Shopify
const maxWebhookBody = 5 << 20

// Webhook outcomes recorded per delivery
const (
	outcomeProcessed = "processed"
	outcomeDuplicate = "duplicate"
	outcomeRejected  = "rejected"
	outcomeFailed    = "failed"
)

// WebhookRecorder counts webhook deliveries by outcome
type WebhookRecorder interface {
	WebhookReceived(topic, outcome string)
}

// WebhookHandler handles Shopify webhook requests. Deliveries are de-duplicated by
// X-Shopify-Webhook-Id when idempotency is set; a failed dispatch releases the key so
// Shopify's retry is processed.
func WebhookHandler(
	shopifyService *application.ShopifyService,
	webhookDispatcher *application.WebhookDispatcher,
	idempotency ports.IdempotencyStore,
	recorder WebhookRecorder,
	logger zerolog.Logger,
) http.HandlerFunc {
	record := func(topic, outcome string) {
		if recorder != nil {
			recorder.WebhookReceived(topic, outcome)
		}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		topic := r.Header.Get("X-Shopify-Topic")
		if topic == "" {
			logger.Warn().Msg("Missing X-Shopify-Topic header")
			writeError(w, http.StatusBadRequest, "missing X-Shopify-Topic header")
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			logger.Error().Err(err).Str("topic", topic).Msg("Failed to read webhook payload")
			writeError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(payload))

		if !shopifyService.VerifyWebhook(r) {
			logger.Warn().Str("topic", topic).Msg("Webhook signature verification failed")
			record(topic, outcomeRejected)
			writeError(w, http.StatusUnauthorized, "invalid signature")
			return
		}

		event := &domain.WebhookEvent{
			WebhookID: r.Header.Get("X-Shopify-Webhook-Id"),
			Topic:     topic,
			Shop:      r.Header.Get("X-Shopify-Shop-Domain"),
			Payload:   payload,
			Verified:  true,
		}

		claimed := false
		if idempotency != nil && event.WebhookID != "" {
			first, err := idempotency.Claim(ctx, event.WebhookID)
			switch {
			case err != nil:
				logger.Warn().Err(err).Str("webhook_id", event.WebhookID).Msg("Idempotency store unavailable, processing delivery")
			case !first:
				logger.Info().
					Str("topic", topic).
					Str("shop", event.Shop).
					Str("webhook_id", event.WebhookID).
					Msg("Duplicate webhook delivery ignored")
				record(topic, outcomeDuplicate)
				writeJSON(w, http.StatusOK, map[string]string{"received": outcomeDuplicate})
				return
			default:
				claimed = true
			}
		}

		// Log webhook event first
		if err := shopifyService.ProcessWebhook(ctx, event); err != nil {
			logger.Error().Err(err).Msg("Failed to log webhook event")
		}

		if err := webhookDispatcher.Dispatch(ctx, event); err != nil {
			logger.Error().
				Err(err).
				Str("topic", topic).
				Str("shop", event.Shop).
				Msg("Failed to dispatch webhook event")
			if claimed {
				if err := idempotency.Release(ctx, event.WebhookID); err != nil {
					logger.Warn().Err(err).Str("webhook_id", event.WebhookID).Msg("Failed to release webhook id")
				}
			}
			record(topic, outcomeFailed)
			// Return 500 to trigger Shopify retry
			writeError(w, http.StatusInternalServerError, "failed to process webhook event")
			return
		}

		record(topic, outcomeProcessed)
		writeJSON(w, http.StatusOK, map[string]string{"received": "true"})
	}
}
