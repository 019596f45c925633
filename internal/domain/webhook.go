package domain

import "time"

// Webhook topics handled by the service
const (
	TopicProductsCreate = "products/create"
	TopicProductsUpdate = "products/update"
	TopicProductsDelete = "products/delete"
	TopicAppUninstalled = "app/uninstalled"
)

// InstallTopics are registered on every shop after OAuth completes
var InstallTopics = []string{
	TopicAppUninstalled,
	TopicProductsCreate,
	TopicProductsUpdate,
	TopicProductsDelete,
}

// WebhookEvent represents a received Shopify webhook
type WebhookEvent struct {
	ID        string    `json:"id" bson:"_id,omitempty"`
	WebhookID string    `json:"webhook_id" bson:"webhook_id"` // X-Shopify-Webhook-Id, unique per delivery
	Topic     string    `json:"topic" bson:"topic"`
	Shop      string    `json:"shop" bson:"shop"`
	Payload   []byte    `json:"payload" bson:"payload"`
	Verified  bool      `json:"verified" bson:"verified"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
