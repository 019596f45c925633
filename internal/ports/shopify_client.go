package ports

import (
	"context"
	"net/http"
	"net/url"

	"shopify-entity-sync/internal/domain"
)

// ShopInfo is the subset of the Shopify shop resource the service keeps
type ShopInfo struct {
	ID              int64
	Name            string
	MyshopifyDomain string
}

// ShopifyClient defines the interface for Shopify Admin API operations
type ShopifyClient interface {
	// Authentication
	GenerateAuthURL(shop string, scopes []string, redirectURI string, state string) (string, error)
	ExchangeToken(ctx context.Context, shop string, code string) (string, error)
	VerifyWebhookRequest(r *http.Request) bool
	// VerifyAuthorizationURL checks the hmac parameter Shopify adds to the OAuth callback
	VerifyAuthorizationURL(u *url.URL) (bool, error)

	// Shop API
	GetShop(ctx context.Context, shop string, accessToken string) (*ShopInfo, error)

	// Product API
	ListAllProducts(ctx context.Context, shop string, accessToken string) ([]*domain.Product, error)

	// Webhook API
	CreateWebhook(ctx context.Context, shop string, accessToken string, topic string, address string) (int64, error)
	DeleteWebhook(ctx context.Context, shop string, accessToken string, webhookID int64) error
}

// EncryptionService encrypts secrets stored at rest
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}
