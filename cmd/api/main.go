package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"shopify-entity-sync/graph"
	"shopify-entity-sync/internal/application"
	"shopify-entity-sync/internal/application/webhook_handlers"
	"shopify-entity-sync/internal/bootstrap"
	"shopify-entity-sync/internal/config"
	apiinfra "shopify-entity-sync/internal/infrastructure/api"
	"shopify-entity-sync/internal/infrastructure/encryption"
	"shopify-entity-sync/internal/infrastructure/idempotency"
	"shopify-entity-sync/internal/infrastructure/memory"
	shopifyinfra "shopify-entity-sync/internal/infrastructure/shopify"
	"shopify-entity-sync/internal/ports"

	"github.com/rs/zerolog"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := bootstrap.NewLogger("info")
		fallback.Fatal().Err(err).Msg("Invalid configuration")
	}
	logger := bootstrap.NewLogger(cfg.LogLevel)
	if err := cfg.ValidateServer(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid server configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer components.Close()

	// Initialize infrastructure (implementations)
	encryptionService, err := encryption.NewService(cfg.EncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}

	idempotencyStore := newIdempotencyStore(ctx, cfg, logger)

	// Initialize application services
	shopifyClient := shopifyinfra.NewClient(cfg.ShopifyAPIKey, cfg.ShopifyAPISecret, cfg.AppURL+"/auth/callback", logger)
	shopifyService := application.NewShopifyService(
		components.Repository,
		encryptionService,
		shopifyClient,
		components.Catalog,
		logger,
		cfg.AppURL,
		cfg.ShopifyScopes,
	)

	// Initialize webhook dispatcher and register handlers
	webhookDispatcher := application.NewWebhookDispatcher(logger)
	webhookDispatcher.RegisterHandler(webhook_handlers.NewProductHandler(components.Catalog, logger))
	webhookDispatcher.RegisterHandler(webhook_handlers.NewAppUninstalledHandler(shopifyService, logger))

	adminAPI := apiinfra.NewAdminAPI(
		components.UsageService,
		components.Reconciler,
		components.Catalog,
		shopifyService,
		components.Events,
		components.Jobs,
		logger,
	)

	// Create GraphQL resolver and handler
	resolver := graph.NewResolver(
		components.UsageService,
		components.Reconciler,
		components.Catalog,
		shopifyService,
		components.Events,
		components.Jobs,
		logger,
	)
	graphqlHandler := graph.NewHandler(resolver)

	if cfg.AdminToken == "" {
		logger.Warn().Msg("ADMIN_TOKEN is not set, admin API is unauthenticated")
	}

	router := apiinfra.NewRouter(apiinfra.RouterConfig{
		Shopify:     shopifyService,
		Dispatcher:  webhookDispatcher,
		Idempotency: idempotencyStore,
		Recorder:    components.Metrics,
		Admin:       adminAPI,
		GraphQL:     graphqlHandler,
		AdminToken:  cfg.AdminToken,
		Gatherer:    components.Registry,
		Logger:      logger,
	})

	if components.Worker != nil {
		go func() {
			if err := components.Worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("Sync worker stopped")
			}
		}()
	}

	port := strconv.Itoa(cfg.HTTPPort)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}()

	logger.Info().Str("port", port).Msg("Starting API server")
	logger.Info().Msg("Swagger documentation available at http://localhost:" + port + "/swagger/index.html")
	logger.Info().Msg("GraphQL playground available at http://localhost:" + port + "/playground")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("Failed to start server")
	}
	logger.Info().Msg("API server stopped")
}

// newIdempotencyStore uses Redis when configured and an in-process store otherwise
func newIdempotencyStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) ports.IdempotencyStore {
	if cfg.RedisAddr == "" {
		logger.Warn().Msg("REDIS_ADDR not set, webhook de-duplication is per process")
		return memory.NewIdempotencyStore(cfg.WebhookDedupTTL)
	}

	client, err := idempotency.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("Failed to connect to Redis")
	}
	return idempotency.NewRedisStore(client, cfg.WebhookDedupTTL, logger)
}
