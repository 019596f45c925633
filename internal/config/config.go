package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Store backends for products and reference counters
const (
	StoreMongo     = "mongo"
	StoreFirestore = "firestore"
	StoreMemory    = "memory"
)

// Sync modes for Dialogflow updates
const (
	SyncOutbox = "outbox"
	SyncInline = "inline"
)

// Agent backends
const (
	AgentDialogflow = "dialogflow"
	AgentMemory     = "memory"
)

const envPrefix = "ENTITY_SYNC"

// Config holds the service configuration.
// Environment variables are parsed with the ENTITY_SYNC_ prefix, e.g. ENTITY_SYNC_HTTP_PORT.
type Config struct {
	HTTPPort int    `envconfig:"HTTP_PORT" default:"8080"`
	AppURL   string `envconfig:"APP_URL" default:"http://localhost:8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	// AdminToken protects /api/v1 with a bearer token when set
	AdminToken string `envconfig:"ADMIN_TOKEN"`

	// Products and counters live in StoreBackend; shops, sessions, the webhook log and
	// the outbox stay in MongoDB unless StoreBackend is memory
	StoreBackend  string `envconfig:"STORE_BACKEND" default:"mongo"`
	MongoURI      string `envconfig:"MONGODB_URI" default:"mongodb://localhost:27017"`
	MongoDatabase string `envconfig:"MONGODB_DATABASE" default:"entity_sync"`

	GCPProjectID       string `envconfig:"GCP_PROJECT_ID"`
	GCPCredentialsFile string `envconfig:"GCP_CREDENTIALS_FILE"`

	AgentBackend       string `envconfig:"AGENT_BACKEND" default:"dialogflow"`
	DialogflowLocation string `envconfig:"DIALOGFLOW_LOCATION" default:"global"`
	DialogflowAgentID  string `envconfig:"DIALOGFLOW_AGENT_ID"`
	DialogflowEndpoint string `envconfig:"DIALOGFLOW_ENDPOINT"`

	// Webhook de-duplication falls back to an in-process store when RedisAddr is empty
	RedisAddr       string        `envconfig:"REDIS_ADDR"`
	RedisPassword   string        `envconfig:"REDIS_PASSWORD"`
	RedisDB         int           `envconfig:"REDIS_DB" default:"0"`
	WebhookDedupTTL time.Duration `envconfig:"WEBHOOK_DEDUP_TTL" default:"24h"`

	ShopifyAPIKey    string   `envconfig:"SHOPIFY_API_KEY"`
	ShopifyAPISecret string   `envconfig:"SHOPIFY_API_SECRET"`
	ShopifyScopes    []string `envconfig:"SHOPIFY_SCOPES" default:"read_products"`
	EncryptionKey    string   `envconfig:"ENCRYPTION_KEY"`

	SyncMode        string        `envconfig:"SYNC_MODE" default:"outbox"`
	SyncInterval    time.Duration `envconfig:"SYNC_INTERVAL" default:"2s"`
	SyncBatchSize   int           `envconfig:"SYNC_BATCH_SIZE" default:"50"`
	SyncMaxAttempts int           `envconfig:"SYNC_MAX_ATTEMPTS" default:"8"`
	SyncLeaseTTL    time.Duration `envconfig:"SYNC_LEASE_TTL" default:"30s"`

	EventBufferSize int `envconfig:"EVENT_BUFFER_SIZE" default:"32"`
}

// Load reads an optional .env file then the environment
func Load() (*Config, error) {
	// A missing .env file is normal outside local development
	_ = godotenv.Load()
	return New()
}

// New parses the environment and validates the result
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerations and the settings each backend requires
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreBackend {
	case StoreMongo, StoreMemory:
	case StoreFirestore:
		if c.GCPProjectID == "" {
			errs = append(errs, errors.New("GCP_PROJECT_ID is required for the firestore store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported STORE_BACKEND: %s", c.StoreBackend))
	}

	switch c.SyncMode {
	case SyncOutbox, SyncInline:
	default:
		errs = append(errs, fmt.Errorf("unsupported SYNC_MODE: %s", c.SyncMode))
	}

	switch c.AgentBackend {
	case AgentMemory:
	case AgentDialogflow:
		if c.GCPProjectID == "" || c.DialogflowAgentID == "" {
			errs = append(errs, errors.New("GCP_PROJECT_ID and DIALOGFLOW_AGENT_ID are required for the dialogflow agent"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported AGENT_BACKEND: %s", c.AgentBackend))
	}

	if c.SyncBatchSize <= 0 {
		errs = append(errs, errors.New("SYNC_BATCH_SIZE must be positive"))
	}
	if c.SyncMaxAttempts <= 0 {
		errs = append(errs, errors.New("SYNC_MAX_ATTEMPTS must be positive"))
	}
	if c.SyncInterval <= 0 {
		errs = append(errs, errors.New("SYNC_INTERVAL must be positive"))
	}

	return errors.Join(errs...)
}

// ValidateServer checks the settings only the HTTP server needs
func (c *Config) ValidateServer() error {
	var errs []error
	if c.ShopifyAPIKey == "" || c.ShopifyAPISecret == "" {
		errs = append(errs, errors.New("SHOPIFY_API_KEY and SHOPIFY_API_SECRET are required"))
	}
	if c.EncryptionKey == "" {
		errs = append(errs, errors.New("ENCRYPTION_KEY is required"))
	}
	return errors.Join(errs...)
}

// UsesMongo reports whether a MongoDB connection is needed
func (c *Config) UsesMongo() bool {
	return c.StoreBackend != StoreMemory
}
