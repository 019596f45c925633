package domain

import "time"

// Shop represents a connected Shopify store
type Shop struct {
	Domain        string     `json:"domain" bson:"domain"`           // myshopify domain, the shop key
	ShopID        int64      `json:"shop_id" bson:"shop_id"`         // Shopify shop id
	Name          string     `json:"name" bson:"name"`
	AccessToken   string     `json:"-" bson:"access_token"`          // Encrypted at rest
	Scopes        []string   `json:"scopes" bson:"scopes"`
	WebhookIDs    []int64    `json:"webhook_ids" bson:"webhook_ids"` // Webhooks registered at install time
	InstalledAt   time.Time  `json:"installed_at" bson:"installed_at"`
	UninstalledAt *time.Time `json:"uninstalled_at,omitempty" bson:"uninstalled_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" bson:"updated_at"`
}

// Installed reports whether the app is currently installed on the shop
func (s *Shop) Installed() bool {
	return s.UninstalledAt == nil
}
