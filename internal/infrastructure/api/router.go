package api

import (
	"encoding/json"
	"net/http"

	"shopify-entity-sync/internal/application"
	"shopify-entity-sync/internal/ports"

	"github.com/99designs/gqlgen/graphql/playground"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

// RouterConfig carries the collaborators of the HTTP surface
type RouterConfig struct {
	Shopify          *application.ShopifyService
	Dispatcher       *application.WebhookDispatcher
	Idempotency      ports.IdempotencyStore // optional
	Recorder         WebhookRecorder        // optional
	Admin            *AdminAPI
	GraphQL          http.Handler // optional, served at /query
	AdminToken       string
	Gatherer         prometheus.Gatherer // defaults to the global registry
	DefaultReturnURL string
	SwaggerFile      string
	Logger           zerolog.Logger
}

// NewRouter builds the chi router serving every public and admin route
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.SwaggerFile == "" {
		cfg.SwaggerFile = "./docs/swagger.json"
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeadersMiddleware())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	r.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		http.ServeFile(w, r, cfg.SwaggerFile)
	})

	// OAuth routes
	r.Get("/auth/shopify", OAuthInitHandler(cfg.Shopify, cfg.Logger))
	r.Get("/auth/callback", OAuthCallbackHandler(cfg.Shopify, cfg.DefaultReturnURL, cfg.Logger))

	// Webhook endpoint
	r.Post("/webhooks/shopify", WebhookHandler(cfg.Shopify, cfg.Dispatcher, cfg.Idempotency, cfg.Recorder, cfg.Logger))

	// Admin API
	if cfg.Admin != nil {
		r.Route("/api/v1", func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminToken, cfg.Logger))
			cfg.Admin.Routes(r)
		})
	}

	// GraphQL admin queries, mutations and subscriptions
	if cfg.GraphQL != nil {
		r.Handle("/playground", playground.Handler("Entity sync", "/query"))
		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminToken, cfg.Logger))
			r.Handle("/query", cfg.GraphQL)
		})
	}

	return r
}
