// Package dialogflow implements the entity-type RPC surface on Dialogflow CX
package dialogflow

import (
	"context"
	"fmt"

	"shopify-entity-sync/internal/domain"
	"shopify-entity-sync/internal/ports"

	cx "cloud.google.com/go/dialogflow/cx/apiv3"
	"cloud.google.com/go/dialogflow/cx/apiv3/cxpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/fieldmaskpb"
)

// Config identifies the agent whose entity types are maintained
type Config struct {
	ProjectID       string
	Location        string
	AgentID         string
	Endpoint        string // Optional override of the regional endpoint
	CredentialsFile string // Optional; application default credentials otherwise
}

// AgentPath returns the agent resource name
func (c Config) AgentPath() string {
	return fmt.Sprintf("projects/%s/locations/%s/agents/%s", c.ProjectID, c.Location, c.AgentID)
}

// ResolvedEndpoint returns the API endpoint for the agent's location
func (c Config) ResolvedEndpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	if c.Location == "" || c.Location == "global" {
		return "dialogflow.googleapis.com:443"
	}
	return fmt.Sprintf("%s-dialogflow.googleapis.com:443", c.Location)
}

// Client implements ports.EntityTypeClient with the Dialogflow CX EntityTypes API
type Client struct {
	entityTypes *cx.EntityTypesClient
	agent       string
	logger      zerolog.Logger
}

// NewClient dials the regional Dialogflow CX endpoint for cfg
func NewClient(ctx context.Context, cfg Config, logger zerolog.Logger) (*Client, error) {
	opts := []option.ClientOption{option.WithEndpoint(cfg.ResolvedEndpoint())}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	entityTypes, err := cx.NewEntityTypesClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create dialogflow entity types client: %w", err)
	}

	return &Client{
		entityTypes: entityTypes,
		agent:       cfg.AgentPath(),
		logger:      logger,
	}, nil
}

// Close releases the underlying connection
func (c *Client) Close() error {
	return c.entityTypes.Close()
}

func (c *Client) ListEntityTypes(ctx context.Context) ([]ports.EntityTypeRef, error) {
	it := c.entityTypes.ListEntityTypes(ctx, &cxpb.ListEntityTypesRequest{Parent: c.agent})

	var refs []ports.EntityTypeRef
	for {
		et, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list entity types: %w", err)
		}
		refs = append(refs, ports.EntityTypeRef{Name: et.GetName(), DisplayName: et.GetDisplayName()})
	}
	return refs, nil
}

func (c *Client) CreateEntityType(ctx context.Context, displayName string) (string, error) {
	et, err := c.entityTypes.CreateEntityType(ctx, &cxpb.CreateEntityTypeRequest{
		Parent: c.agent,
		EntityType: &cxpb.EntityType{
			DisplayName: displayName,
			Kind:        cxpb.EntityType_KIND_MAP,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create entity type %s: %w", displayName, err)
	}

	c.logger.Info().Str("entityType", displayName).Str("name", et.GetName()).Msg("Created entity type")
	return et.GetName(), nil
}

func (c *Client) GetEntityType(ctx context.Context, name string) ([]domain.Entity, error) {
	et, err := c.entityTypes.GetEntityType(ctx, &cxpb.GetEntityTypeRequest{Name: name})
	if err != nil {
		return nil, fmt.Errorf("failed to get entity type %s: %w", name, err)
	}
	return fromProto(et.GetEntities()), nil
}

func (c *Client) UpdateEntityTypeEntities(ctx context.Context, name string, entities []domain.Entity) error {
	_, err := c.entityTypes.UpdateEntityType(ctx, &cxpb.UpdateEntityTypeRequest{
		EntityType: &cxpb.EntityType{
			Name:     name,
			Entities: toProto(entities),
		},
		UpdateMask: &fieldmaskpb.FieldMask{Paths: []string{"entities"}},
	})
	if err != nil {
		return fmt.Errorf("failed to update entity type %s: %w", name, err)
	}
	return nil
}

func toProto(entities []domain.Entity) []*cxpb.EntityType_Entity {
	out := make([]*cxpb.EntityType_Entity, 0, len(entities))
	for _, e := range entities {
		out = append(out, &cxpb.EntityType_Entity{
			Value:    e.Value,
			Synonyms: append([]string(nil), e.Synonyms...),
		})
	}
	return out
}

func fromProto(entities []*cxpb.EntityType_Entity) []domain.Entity {
	out := make([]domain.Entity, 0, len(entities))
	for _, e := range entities {
		out = append(out, domain.Entity{
			Value:    e.GetValue(),
			Synonyms: append([]string(nil), e.GetSynonyms()...),
		})
	}
	return out
}
