package entity

import (
	"time"

	"shopify-entity-sync/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoShopDoc represents a connected shop in MongoDB
type MongoShopDoc struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	Domain        string             `bson:"domain"`
	ShopID        int64              `bson:"shop_id"`
	Name          string             `bson:"name"`
	AccessToken   string             `bson:"access_token"`
	Scopes        []string           `bson:"scopes"`
	WebhookIDs    []int64            `bson:"webhook_ids"`
	InstalledAt   time.Time          `bson:"installed_at"`
	UninstalledAt *time.Time         `bson:"uninstalled_at,omitempty"`
	CreatedAt     time.Time          `bson:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoShopDoc) ToDomain() *domain.Shop {
	return &domain.Shop{
		Domain:        d.Domain,
		ShopID:        d.ShopID,
		Name:          d.Name,
		AccessToken:   d.AccessToken,
		Scopes:        d.Scopes,
		WebhookIDs:    d.WebhookIDs,
		InstalledAt:   d.InstalledAt,
		UninstalledAt: d.UninstalledAt,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

// MongoShopDocFromDomain converts a domain entity to a MongoDB document. The _id is left
// empty so upserts keep the stored one.
func MongoShopDocFromDomain(shop *domain.Shop) *MongoShopDoc {
	return &MongoShopDoc{
		Domain:        shop.Domain,
		ShopID:        shop.ShopID,
		Name:          shop.Name,
		AccessToken:   shop.AccessToken,
		Scopes:        shop.Scopes,
		WebhookIDs:    shop.WebhookIDs,
		InstalledAt:   shop.InstalledAt,
		UninstalledAt: shop.UninstalledAt,
		CreatedAt:     shop.CreatedAt,
		UpdatedAt:     shop.UpdatedAt,
	}
}

// MongoSessionDoc represents an OAuth session in MongoDB
type MongoSessionDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Shop      string             `bson:"shop"`
	State     string             `bson:"state"`
	Scopes    []string           `bson:"scopes"`
	ReturnURL string             `bson:"return_url"`
	ExpiresAt time.Time          `bson:"expires_at"`
	CreatedAt time.Time          `bson:"created_at"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoSessionDoc) ToDomain() *domain.Session {
	return &domain.Session{
		ID:        d.ID.Hex(),
		Shop:      d.Shop,
		State:     d.State,
		Scopes:    d.Scopes,
		ReturnURL: d.ReturnURL,
		ExpiresAt: d.ExpiresAt,
		CreatedAt: d.CreatedAt,
	}
}

// MongoSessionDocFromDomain converts a domain entity to a MongoDB document
func MongoSessionDocFromDomain(session *domain.Session) *MongoSessionDoc {
	doc := &MongoSessionDoc{
		Shop:      session.Shop,
		State:     session.State,
		Scopes:    session.Scopes,
		ReturnURL: session.ReturnURL,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
	}

	if session.ID != "" {
		if objID, err := primitive.ObjectIDFromHex(session.ID); err == nil {
			doc.ID = objID
		}
	}

	return doc
}

// MongoWebhookDoc represents a received webhook in MongoDB
type MongoWebhookDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	WebhookID string             `bson:"webhook_id"`
	Topic     string             `bson:"topic"`
	Shop      string             `bson:"shop"`
	Payload   []byte             `bson:"payload"`
	Verified  bool               `bson:"verified"`
	CreatedAt time.Time          `bson:"created_at"`
}

// MongoWebhookDocFromDomain converts a domain entity to a MongoDB document
func MongoWebhookDocFromDomain(event *domain.WebhookEvent) *MongoWebhookDoc {
	doc := &MongoWebhookDoc{
		WebhookID: event.WebhookID,
		Topic:     event.Topic,
		Shop:      event.Shop,
		Payload:   event.Payload,
		Verified:  event.Verified,
		CreatedAt: event.CreatedAt,
	}

	if event.ID != "" {
		if objID, err := primitive.ObjectIDFromHex(event.ID); err == nil {
			doc.ID = objID
		}
	}

	return doc
}
