// Package bootstrap assembles stores, the agent client and the application services
// from configuration. Both the API server and the operator CLI start from here.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"shopify-entity-sync/internal/application"
	"shopify-entity-sync/internal/config"
	"shopify-entity-sync/internal/infrastructure/dialogflow"
	fsstore "shopify-entity-sync/internal/infrastructure/firestore"
	"shopify-entity-sync/internal/infrastructure/memory"
	"shopify-entity-sync/internal/infrastructure/metrics"
	"shopify-entity-sync/internal/infrastructure/pubsub"
	"shopify-entity-sync/internal/infrastructure/repository"
	"shopify-entity-sync/internal/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
)

// LegacyMigrator backfills canonical product fields from legacy ones
type LegacyMigrator interface {
	MigrateLegacyFields(ctx context.Context) (int64, error)
}

// Components is the assembled service graph
type Components struct {
	Config *config.Config

	Repository ports.Repository
	Products   ports.ProductRepository
	Usage      ports.EntityUsageRepository
	Jobs       ports.SyncJobRepository // nil with inline sync
	Agent      ports.EntityTypeClient

	Registry *prometheus.Registry
	Metrics  *metrics.Prometheus
	Events   *pubsub.EntityEventPubSub

	EntitySync   *application.EntitySyncService
	Syncer       ports.EntitySyncer
	UsageService *application.EntityUsageService
	Reconciler   *application.Reconciler
	Catalog      *application.CatalogService
	Worker       *application.SyncWorker // nil with inline sync

	closers []func() error
}

// NewLogger builds the process logger at level, falling back to info
func NewLogger(level string) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return logger.Level(lvl)
}

// Build opens every backend named by cfg and wires the application services
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Components, error) {
	c := &Components{Config: cfg}

	if err := c.openStores(ctx, logger); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.openAgent(ctx, logger); err != nil {
		c.Close()
		return nil, err
	}

	c.Registry = prometheus.NewRegistry()
	c.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.Metrics = metrics.NewPrometheus(c.Registry)
	c.Events = pubsub.NewEntityEventPubSub(logger, cfg.EventBufferSize)

	c.EntitySync = application.NewEntitySyncService(c.Agent, c.Metrics, logger)
	c.Syncer = c.EntitySync
	if cfg.SyncMode == config.SyncOutbox {
		c.Syncer = application.NewOutboxSyncer(c.Jobs, logger)
		c.Worker = application.NewSyncWorker(c.Jobs, c.Usage, c.EntitySync, application.SyncWorkerConfig{
			BatchSize:   cfg.SyncBatchSize,
			Interval:    cfg.SyncInterval,
			MaxAttempts: cfg.SyncMaxAttempts,
			LeaseTTL:    cfg.SyncLeaseTTL,
		}, logger)
	}

	c.UsageService = application.NewEntityUsageService(c.Usage, c.Syncer, c.Events, c.Metrics, logger)
	c.Reconciler = application.NewReconciler(c.UsageService, c.Syncer, c.Products, c.Usage, logger)
	c.Catalog = application.NewCatalogService(c.Products, c.Reconciler, logger)

	logger.Info().
		Str("store", cfg.StoreBackend).
		Str("agent", cfg.AgentBackend).
		Str("sync", cfg.SyncMode).
		Msg("Service graph assembled")
	return c, nil
}

// Migrator returns the product store's legacy-field migration when it has one
func (c *Components) Migrator() (LegacyMigrator, bool) {
	m, ok := c.Products.(LegacyMigrator)
	return m, ok
}

// Close releases every opened backend
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func (c *Components) openStores(ctx context.Context, logger zerolog.Logger) error {
	cfg := c.Config
	if cfg.StoreBackend == config.StoreMemory {
		c.Repository = memory.NewRepository()
		c.Products = memory.NewProductStore()
		c.Usage = memory.NewEntityUsageStore()
		if cfg.SyncMode == config.SyncOutbox {
			c.Jobs = memory.NewSyncJobStore()
		}
		logger.Warn().Msg("Using in-memory stores, data is lost on restart")
		return nil
	}

	client, err := repository.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return err
	}
	c.closers = append(c.closers, func() error { return client.Disconnect(context.Background()) })

	db := client.Database(cfg.MongoDatabase)
	if err := repository.EnsureIndexes(ctx, db); err != nil {
		return err
	}
	logger.Info().Str("database", cfg.MongoDatabase).Msg("Connected to MongoDB")

	c.Repository = repository.NewMongoRepository(db)
	if cfg.SyncMode == config.SyncOutbox {
		c.Jobs = repository.NewMongoSyncJobRepository(db)
	}

	switch cfg.StoreBackend {
	case config.StoreFirestore:
		return c.openFirestore(ctx, logger)
	default:
		c.openMongoCatalog(db)
		return nil
	}
}

func (c *Components) openMongoCatalog(db *mongo.Database) {
	c.Products = repository.NewMongoProductRepository(db)
	c.Usage = repository.NewMongoEntityUsageRepository(db)
}

func (c *Components) openFirestore(ctx context.Context, logger zerolog.Logger) error {
	client, err := fsstore.NewClient(ctx, c.Config.GCPProjectID, c.Config.GCPCredentialsFile)
	if err != nil {
		return err
	}
	c.closers = append(c.closers, client.Close)

	c.Products = fsstore.NewProductStore(client)
	c.Usage = fsstore.NewEntityUsageStore(client)
	logger.Info().Str("project", c.Config.GCPProjectID).Msg("Using Firestore for products and entity usage")
	return nil
}

func (c *Components) openAgent(ctx context.Context, logger zerolog.Logger) error {
	cfg := c.Config
	if cfg.AgentBackend == config.AgentMemory {
		c.Agent = memory.NewAgent(fmt.Sprintf("projects/%s/locations/%s/agents/local", cfg.GCPProjectID, cfg.DialogflowLocation))
		logger.Warn().Msg("Using in-memory agent, entity types are not sent to Dialogflow")
		return nil
	}

	client, err := dialogflow.NewClient(ctx, dialogflow.Config{
		ProjectID:       cfg.GCPProjectID,
		Location:        cfg.DialogflowLocation,
		AgentID:         cfg.DialogflowAgentID,
		Endpoint:        cfg.DialogflowEndpoint,
		CredentialsFile: cfg.GCPCredentialsFile,
	}, logger)
	if err != nil {
		return err
	}
	c.closers = append(c.closers, client.Close)
	c.Agent = client
	return nil
}
