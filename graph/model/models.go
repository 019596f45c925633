// Package model holds the GraphQL types that have no domain counterpart
package model

import (
	"time"

	"shopify-entity-sync/internal/domain"
)

// Shop is the public view of a connected shop. The access token is never exposed.
type Shop struct {
	Domain        string     `json:"domain"`
	ShopID        int64      `json:"shopId"`
	Name          string     `json:"name"`
	Scopes        []string   `json:"scopes"`
	InstalledAt   time.Time  `json:"installedAt"`
	UninstalledAt *time.Time `json:"uninstalledAt"`
}

// ShopFromDomain converts a stored shop
func ShopFromDomain(s *domain.Shop) *Shop {
	return &Shop{
		Domain:        s.Domain,
		ShopID:        s.ShopID,
		Name:          s.Name,
		Scopes:        s.Scopes,
		InstalledAt:   s.InstalledAt,
		UninstalledAt: s.UninstalledAt,
	}
}

type SyncStatus struct {
	Mode                string `json:"mode"`
	Pending             int64  `json:"pending"`
	Dead                int64  `json:"dead"`
	ActiveSubscriptions int    `json:"activeSubscriptions"`
}

type ResyncResult struct {
	Shop     string `json:"shop"`
	Products int    `json:"products"`
}
