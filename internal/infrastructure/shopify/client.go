package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"shopify-entity-sync/internal/domain"
	"shopify-entity-sync/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
)

type client struct {
	apiKey      string
	apiSecret   string
	redirectURI string
	app         goshopify.App
	httpClient  *http.Client
	logger      zerolog.Logger
}

// NewClient creates a new Shopify client adapter. redirectURI must match the OAuth
// callback registered for the app.
func NewClient(apiKey, apiSecret, redirectURI string, logger zerolog.Logger) ports.ShopifyClient {
	app := goshopify.App{
		ApiKey:      apiKey,
		ApiSecret:   apiSecret,
		RedirectUrl: redirectURI,
	}
	return &client{
		apiKey:      apiKey,
		apiSecret:   apiSecret,
		redirectURI: redirectURI,
		app:         app,
		httpClient:  http.DefaultClient,
		logger:      logger,
	}
}

// createClient is a helper to create a goshopify client
func (c *client) createClient(shopDomain string, accessToken string) (*goshopify.Client, error) {
	client, err := goshopify.NewClient(c.app, shopDomain, accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

// Authentication methods

func (c *client) GenerateAuthURL(shop string, scopes []string, redirectURI string, state string) (string, error) {
	// Shopify expects scopes to be comma-separated (no spaces)
	scopesStr := strings.Join(scopes, ",")

	authURL := fmt.Sprintf(
		"https://%s/admin/oauth/authorize?client_id=%s&scope=%s&redirect_uri=%s&state=%s",
		shop,
		c.apiKey,
		url.QueryEscape(scopesStr),
		url.QueryEscape(redirectURI),
		url.QueryEscape(state),
	)

	c.logger.Debug().
		Str("shop", shop).
		Str("scopes", scopesStr).
		Msg("Generated OAuth authorization URL")

	return authURL, nil
}

func (c *client) ExchangeToken(ctx context.Context, shop string, code string) (string, error) {
	if c.redirectURI == "" {
		token, err := c.app.GetAccessToken(ctx, shop, code)
		if err != nil {
			return "", fmt.Errorf("failed to exchange token: %w", err)
		}
		return token, nil
	}

	// go-shopify's GetAccessToken does not send redirect_uri, which Shopify requires
	// to match the authorization request
	tokenURL := fmt.Sprintf("https://%s/admin/oauth/access_token", shop)

	values := url.Values{}
	values.Set("client_id", c.apiKey)
	values.Set("client_secret", c.apiSecret)
	values.Set("code", code)
	values.Set("redirect_uri", c.redirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(values.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to exchange token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("failed to exchange token: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var tokenResponse struct {
		AccessToken string `json:"access_token"`
		Scope       string `json:"scope"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	return tokenResponse.AccessToken, nil
}

func (c *client) VerifyWebhookRequest(r *http.Request) bool {
	return c.app.VerifyWebhookRequest(r)
}

// VerifyAuthorizationURL checks the hmac of an OAuth callback URL
func (c *client) VerifyAuthorizationURL(u *url.URL) (bool, error) {
	ok, err := c.app.VerifyAuthorizationURL(u)
	if err != nil {
		return false, fmt.Errorf("failed to verify authorization url: %w", err)
	}
	return ok, nil
}

// Shop API

func (c *client) GetShop(ctx context.Context, shopDomain string, accessToken string) (*ports.ShopInfo, error) {
	client, err := c.createClient(shopDomain, accessToken)
	if err != nil {
		return nil, err
	}
	shop, err := client.Shop.Get(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get shop: %w", err)
	}
	return &ports.ShopInfo{
		ID:              int64(shop.Id),
		Name:            shop.Name,
		MyshopifyDomain: shop.MyshopifyDomain,
	}, nil
}

// Product API

func (c *client) ListAllProducts(ctx context.Context, shopDomain string, accessToken string) ([]*domain.Product, error) {
	client, err := c.createClient(shopDomain, accessToken)
	if err != nil {
		return nil, err
	}
	products, err := client.Product.ListAll(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	out := make([]*domain.Product, 0, len(products))
	for i := range products {
		out = append(out, toDomainProduct(&products[i], shopDomain))
	}

	c.logger.Info().Str("shop", shopDomain).Int("products", len(out)).Msg("Fetched products")
	return out, nil
}

// Webhook API

func (c *client) CreateWebhook(ctx context.Context, shopDomain string, accessToken string, topic string, address string) (int64, error) {
	client, err := c.createClient(shopDomain, accessToken)
	if err != nil {
		return 0, err
	}
	webhook := goshopify.Webhook{
		Topic:   topic,
		Address: address,
		Format:  "json",
	}
	created, err := client.Webhook.Create(ctx, webhook)
	if err != nil {
		return 0, fmt.Errorf("failed to create webhook: %w", err)
	}
	return int64(created.Id), nil
}

func (c *client) DeleteWebhook(ctx context.Context, shopDomain string, accessToken string, webhookID int64) error {
	client, err := c.createClient(shopDomain, accessToken)
	if err != nil {
		return err
	}
	if err := client.Webhook.Delete(ctx, uint64(webhookID)); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	return nil
}

// toDomainProduct converts an Admin API product into the local product record
func toDomainProduct(p *goshopify.Product, shopDomain string) *domain.Product {
	product := &domain.Product{
		ProductID:   int64(p.Id),
		ShopDomain:  shopDomain,
		Title:       p.Title,
		Name:        p.Title,
		Vendor:      p.Vendor,
		ProductType: p.ProductType,
		Description: p.BodyHTML,
		Tags:        p.Tags,
		Status:      string(p.Status),
	}

	for _, o := range p.Options {
		product.Options = append(product.Options, domain.ProductOption{Name: o.Name, Values: o.Values})
	}
	for _, v := range p.Variants {
		variant := domain.ProductVariant{Title: v.Title}
		if v.Price != nil {
			variant.Price = v.Price.String()
		}
		product.Variants = append(product.Variants, variant)
	}
	if len(product.Variants) > 0 {
		product.Price = product.Variants[0].Price
	}
	for _, img := range p.Images {
		product.Images = append(product.Images, domain.ProductImage{Src: img.Src, Alt: img.Alt})
	}
	return product
}
