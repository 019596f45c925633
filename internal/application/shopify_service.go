package application

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"shopify-entity-sync/internal/domain"
	"shopify-entity-sync/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// oauthSessionTTL bounds the time between /auth/shopify and /auth/callback
const oauthSessionTTL = 10 * time.Minute

// ShopifyService implements the shop lifecycle: OAuth install, webhook registration,
// catalogue import and uninstall.
// It depends on ports (interfaces) not concrete implementations
type ShopifyService struct {
	repository    ports.Repository
	encryptionSvc ports.EncryptionService
	client        ports.ShopifyClient
	catalog       *CatalogService
	logger        zerolog.Logger
	appURL        string
	scopes        []string
}

// NewShopifyService creates a new Shopify application service. appURL is the public base
// URL of this service, used for the OAuth callback and webhook addresses.
func NewShopifyService(
	repository ports.Repository,
	encryptionSvc ports.EncryptionService,
	client ports.ShopifyClient,
	catalog *CatalogService,
	logger zerolog.Logger,
	appURL string,
	scopes []string,
) *ShopifyService {
	return &ShopifyService{
		repository:    repository,
		encryptionSvc: encryptionSvc,
		client:        client,
		catalog:       catalog,
		logger:        logger,
		appURL:        strings.TrimSuffix(appURL, "/"),
		scopes:        scopes,
	}
}

// RedirectURI returns the OAuth callback registered for the app
func (s *ShopifyService) RedirectURI() string {
	return s.appURL + "/auth/callback"
}

// WebhookAddress returns the address Shopify delivers webhooks to
func (s *ShopifyService) WebhookAddress() string {
	return s.appURL + "/webhooks/shopify"
}

// BeginInstall stores an OAuth session and returns the authorization URL for shop
func (s *ShopifyService) BeginInstall(ctx context.Context, shop string, returnURL string) (string, error) {
	if !ValidShopDomain(shop) {
		return "", fmt.Errorf("%w: invalid shop domain %q", domain.ErrInvalidInput, shop)
	}

	now := time.Now()
	session := &domain.Session{
		Shop:      shop,
		State:     uuid.NewString(),
		Scopes:    s.scopes,
		ReturnURL: returnURL,
		ExpiresAt: now.Add(oauthSessionTTL),
		CreatedAt: now,
	}
	if err := s.repository.CreateSession(ctx, session); err != nil {
		s.logger.Error().Err(err).Str("shop", shop).Msg("Failed to create OAuth session")
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	authURL, err := s.client.GenerateAuthURL(shop, s.scopes, s.RedirectURI(), session.State)
	if err != nil {
		s.logger.Error().Err(err).Str("shop", shop).Msg("Failed to generate auth URL")
		return "", fmt.Errorf("failed to generate auth URL: %w", err)
	}

	s.logger.Info().
		Str("shop", shop).
		Strs("requested_scopes", s.scopes).
		Msg("OAuth install started")
	return authURL, nil
}

// CompleteInstall exchanges the authorization code, stores the shop with its encrypted
// token, registers webhooks and imports the catalogue. It returns the session's return
// URL alongside the shop.
func (s *ShopifyService) CompleteInstall(ctx context.Context, shop, code, state string) (*domain.Shop, string, error) {
	session, err := s.repository.GetSession(ctx, state)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil || session.Shop != shop {
		s.logger.Warn().Str("shop", shop).Msg("OAuth callback with unknown state")
		return nil, "", fmt.Errorf("%w: unknown OAuth state", domain.ErrInvalidInput)
	}
	if err := s.repository.DeleteSession(ctx, state); err != nil {
		s.logger.Warn().Err(err).Str("shop", shop).Msg("Failed to delete OAuth session")
	}
	if session.Expired(time.Now()) {
		return nil, "", fmt.Errorf("%w: OAuth session expired", domain.ErrInvalidInput)
	}

	accessToken, err := s.client.ExchangeToken(ctx, shop, code)
	if err != nil {
		s.logger.Error().Err(err).Str("shop", shop).Msg("Failed to exchange token")
		return nil, "", fmt.Errorf("failed to exchange token: %w", err)
	}

	info, err := s.client.GetShop(ctx, shop, accessToken)
	if err != nil {
		s.logger.Error().Err(err).Str("shop", shop).Msg("Failed to get shop info")
		return nil, "", fmt.Errorf("failed to get shop info: %w", err)
	}

	encryptedToken, err := s.encryptionSvc.Encrypt(accessToken)
	if err != nil {
		s.logger.Error().Err(err).Str("shop", shop).Msg("Failed to encrypt access token")
		return nil, "", fmt.Errorf("failed to encrypt access token: %w", err)
	}

	now := time.Now()
	domainShop := &domain.Shop{
		Domain:      shop,
		ShopID:      info.ID,
		Name:        info.Name,
		AccessToken: encryptedToken,
		Scopes:      session.Scopes,
		WebhookIDs:  s.registerWebhooks(ctx, shop, accessToken),
		InstalledAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repository.SaveShop(ctx, domainShop); err != nil {
		s.logger.Error().Err(err).Str("shop", shop).Msg("Failed to save shop")
		return nil, "", fmt.Errorf("failed to save shop: %w", err)
	}

	products, err := s.client.ListAllProducts(ctx, shop, accessToken)
	if err != nil {
		s.logger.Error().Err(err).Str("shop", shop).Msg("Failed to fetch products")
		return domainShop, session.ReturnURL, nil
	}
	if err := s.catalog.ImportShop(ctx, shop, products); err != nil {
		s.logger.Error().Err(err).Str("shop", shop).Msg("Failed to import catalogue")
	}

	s.logger.Info().Str("shop", shop).Int("products", len(products)).Msg("Shop installed")
	return domainShop, session.ReturnURL, nil
}

// registerWebhooks subscribes shop to every handled topic. Failures are logged; the
// returned ids cover the successful registrations only.
func (s *ShopifyService) registerWebhooks(ctx context.Context, shop, accessToken string) []int64 {
	var ids []int64
	for _, topic := range domain.InstallTopics {
		id, err := s.client.CreateWebhook(ctx, shop, accessToken, topic, s.WebhookAddress())
		if err != nil {
			s.logger.Error().Err(err).Str("shop", shop).Str("topic", topic).Msg("Failed to register webhook")
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// Uninstall releases the shop's entities, deletes its products and marks it uninstalled.
// Shopify removes the webhooks of an uninstalled app itself.
func (s *ShopifyService) Uninstall(ctx context.Context, shopDomain string) error {
	if err := s.catalog.RemoveShop(ctx, shopDomain); err != nil {
		return err
	}
	if err := s.repository.MarkShopUninstalled(ctx, shopDomain); err != nil {
		s.logger.Error().Err(err).Str("shop", shopDomain).Msg("Failed to mark shop uninstalled")
		return fmt.Errorf("failed to mark shop uninstalled: %w", err)
	}
	s.logger.Info().Str("shop", shopDomain).Msg("Shop uninstalled")
	return nil
}

// ResyncShop fetches the live catalogue of an installed shop and imports products not
// stored yet
func (s *ShopifyService) ResyncShop(ctx context.Context, shopDomain string) (int, error) {
	accessToken, err := s.getDecryptedAccessToken(ctx, shopDomain)
	if err != nil {
		return 0, err
	}
	products, err := s.client.ListAllProducts(ctx, shopDomain, accessToken)
	if err != nil {
		s.logger.Error().Err(err).Str("shop", shopDomain).Msg("Failed to fetch products")
		return 0, fmt.Errorf("failed to fetch products: %w", err)
	}
	if err := s.catalog.ImportShop(ctx, shopDomain, products); err != nil {
		return 0, err
	}
	return len(products), nil
}

// GetShop retrieves a connected shop. The access token stays encrypted.
func (s *ShopifyService) GetShop(ctx context.Context, shopDomain string) (*domain.Shop, error) {
	shop, err := s.repository.GetShop(ctx, shopDomain)
	if err != nil {
		s.logger.Error().Err(err).Str("domain", shopDomain).Msg("Failed to get shop")
		return nil, fmt.Errorf("failed to get shop: %w", err)
	}
	return shop, nil
}

// ListShops retrieves all connected shops
func (s *ShopifyService) ListShops(ctx context.Context) ([]*domain.Shop, error) {
	shops, err := s.repository.ListShops(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list shops")
		return nil, fmt.Errorf("failed to list shops: %w", err)
	}
	return shops, nil
}

// VerifyWebhook checks the HMAC signature of a webhook request. The body stays readable.
func (s *ShopifyService) VerifyWebhook(r *http.Request) bool {
	return s.client.VerifyWebhookRequest(r)
}

// VerifyCallback checks the HMAC signature of an OAuth callback URL
func (s *ShopifyService) VerifyCallback(u *url.URL) bool {
	ok, err := s.client.VerifyAuthorizationURL(u)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to verify OAuth callback signature")
		return false
	}
	return ok
}

// getDecryptedAccessToken retrieves and decrypts the access token for a shop
func (s *ShopifyService) getDecryptedAccessToken(ctx context.Context, shopDomain string) (string, error) {
	shop, err := s.repository.GetShop(ctx, shopDomain)
	if err != nil {
		return "", fmt.Errorf("failed to get shop: %w", err)
	}
	if shop == nil {
		return "", fmt.Errorf("%w: shop %s", domain.ErrNotFound, shopDomain)
	}
	if shop.AccessToken == "" || !shop.Installed() {
		return "", fmt.Errorf("shop has no access token: %s", shopDomain)
	}

	decryptedToken, err := s.encryptionSvc.Decrypt(shop.AccessToken)
	if err != nil {
		s.logger.Error().Err(err).Str("domain", shopDomain).Msg("Failed to decrypt access token")
		return "", fmt.Errorf("failed to decrypt access token: %w", err)
	}
	return decryptedToken, nil
}

// ProcessWebhook logs a received Shopify webhook event
func (s *ShopifyService) ProcessWebhook(ctx context.Context, event *domain.WebhookEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if err := s.repository.LogWebhook(ctx, event); err != nil {
		s.logger.Error().Err(err).Str("topic", event.Topic).Str("shop", event.Shop).Msg("Failed to log webhook")
		return fmt.Errorf("failed to log webhook: %w", err)
	}

	s.logger.Info().
		Str("topic", event.Topic).
		Str("shop", event.Shop).
		Str("webhook_id", event.WebhookID).
		Bool("verified", event.Verified).
		Msg("Webhook received")
	return nil
}

// ValidShopDomain reports whether shop looks like a myshopify domain
func ValidShopDomain(shop string) bool {
	if !strings.HasSuffix(shop, ".myshopify.com") {
		return false
	}
	name := strings.TrimSuffix(shop, ".myshopify.com")
	if name == "" {
		return false
	}
	for _, r := range name {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}
