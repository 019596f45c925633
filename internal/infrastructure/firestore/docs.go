// Package firestore stores products and reference counters in Cloud Firestore
package firestore

import (
	"fmt"
	"strings"
	"time"

	"shopify-entity-sync/internal/domain"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	entityUsageCollection = "entityUsage"
	productsCollection    = "products"
)

// docID makes a key usable as a Firestore document id, which cannot contain slashes.
// "%" is escaped first so distinct keys never share an id.
func docID(key string) string {
	return strings.ReplaceAll(strings.ReplaceAll(key, "%", "%25"), "/", "%2F")
}

func productDocID(shopDomain string, productID int64) string {
	return docID(fmt.Sprintf("%s-%d", shopDomain, productID))
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

type usageDoc struct {
	EntityType  string    `firestore:"entityType"`
	EntityValue string    `firestore:"entityValue"`
	UsageCount  int       `firestore:"usageCount"`
	ShopDomains []string  `firestore:"shopDomains"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

func (d *usageDoc) toDomain() *domain.EntityUsage {
	domains := d.ShopDomains
	if domains == nil {
		domains = []string{}
	}
	return &domain.EntityUsage{
		EntityType:  domain.EntityKind(d.EntityType),
		EntityValue: d.EntityValue,
		UsageCount:  d.UsageCount,
		ShopDomains: domains,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func usageDocFromDomain(u *domain.EntityUsage) *usageDoc {
	domains := u.ShopDomains
	if domains == nil {
		domains = []string{}
	}
	return &usageDoc{
		EntityType:  string(u.EntityType),
		EntityValue: u.EntityValue,
		UsageCount:  u.UsageCount,
		ShopDomains: domains,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

type optionDoc struct {
	Name   string   `firestore:"name"`
	Values []string `firestore:"values,omitempty"`
}

type variantDoc struct {
	Title string `firestore:"title"`
	Price string `firestore:"price,omitempty"`
}

type imageDoc struct {
	Src string `firestore:"src"`
	Alt string `firestore:"alt,omitempty"`
}

// productDoc mirrors domain.Product. LegacyProductType is the snake_case key written by
// older revisions of the store.
type productDoc struct {
	ProductID         int64        `firestore:"productId"`
	ShopDomain        string       `firestore:"shopDomain"`
	Title             string       `firestore:"title"`
	Name              string       `firestore:"name"`
	Vendor            string       `firestore:"vendor"`
	ProductType       string       `firestore:"productType"`
	LegacyProductType string       `firestore:"product_type,omitempty"`
	Description       string       `firestore:"description,omitempty"`
	Price             string       `firestore:"price,omitempty"`
	Options           []optionDoc  `firestore:"options"`
	Variants          []variantDoc `firestore:"variants"`
	Tags              string       `firestore:"tags,omitempty"`
	Status            string       `firestore:"status,omitempty"`
	Images            []imageDoc   `firestore:"images,omitempty"`
	UpdatedAt         time.Time    `firestore:"updatedAt"`
}

func (d *productDoc) toDomain(id string) *domain.Product {
	p := &domain.Product{
		ID:          id,
		ProductID:   d.ProductID,
		ShopDomain:  d.ShopDomain,
		Title:       d.Title,
		Name:        d.Name,
		Vendor:      d.Vendor,
		ProductType: d.ProductType,
		Description: d.Description,
		Price:       d.Price,
		Tags:        d.Tags,
		Status:      d.Status,
		UpdatedAt:   d.UpdatedAt,
	}
	if p.ProductType == "" {
		p.ProductType = d.LegacyProductType
	}
	for _, o := range d.Options {
		p.Options = append(p.Options, domain.ProductOption{Name: o.Name, Values: o.Values})
	}
	for _, v := range d.Variants {
		p.Variants = append(p.Variants, domain.ProductVariant{Title: v.Title, Price: v.Price})
	}
	for _, img := range d.Images {
		p.Images = append(p.Images, domain.ProductImage{Src: img.Src, Alt: img.Alt})
	}
	return p
}

func productDocFromDomain(p *domain.Product) *productDoc {
	d := &productDoc{
		ProductID:   p.ProductID,
		ShopDomain:  p.ShopDomain,
		Title:       p.Title,
		Name:        p.Name,
		Vendor:      p.Vendor,
		ProductType: p.ProductType,
		Description: p.Description,
		Price:       p.Price,
		Tags:        p.Tags,
		Status:      p.Status,
		UpdatedAt:   p.UpdatedAt,
		Options:     []optionDoc{},
		Variants:    []variantDoc{},
	}
	for _, o := range p.Options {
		d.Options = append(d.Options, optionDoc{Name: o.Name, Values: o.Values})
	}
	for _, v := range p.Variants {
		d.Variants = append(d.Variants, variantDoc{Title: v.Title, Price: v.Price})
	}
	for _, img := range p.Images {
		d.Images = append(d.Images, imageDoc{Src: img.Src, Alt: img.Alt})
	}
	return d
}
