package entity

import (
	"time"

	"shopify-entity-sync/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoProductDoc represents a stored product in MongoDB.
// LegacyProductType holds the snake_case key written by older revisions of the store; it
// is read as a fallback and cleared by the products migration.
type MongoProductDoc struct {
	ID                primitive.ObjectID      `bson:"_id,omitempty"`
	ProductID         int64                   `bson:"productId"`
	ShopDomain        string                  `bson:"shopDomain"`
	Title             string                  `bson:"title"`
	Name              string                  `bson:"name"`
	Vendor            string                  `bson:"vendor"`
	ProductType       string                  `bson:"productType"`
	LegacyProductType string                  `bson:"product_type,omitempty"`
	Description       string                  `bson:"description,omitempty"`
	Price             string                  `bson:"price,omitempty"`
	Options           []domain.ProductOption  `bson:"options"`
	Variants          []domain.ProductVariant `bson:"variants"`
	Tags              string                  `bson:"tags,omitempty"`
	Status            string                  `bson:"status,omitempty"`
	Images            []domain.ProductImage   `bson:"images,omitempty"`
	UpdatedAt         time.Time               `bson:"updatedAt"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoProductDoc) ToDomain() *domain.Product {
	productType := d.ProductType
	if productType == "" {
		productType = d.LegacyProductType
	}
	return &domain.Product{
		ID:          d.ID.Hex(),
		ProductID:   d.ProductID,
		ShopDomain:  d.ShopDomain,
		Title:       d.Title,
		Name:        d.Name,
		Vendor:      d.Vendor,
		ProductType: productType,
		Description: d.Description,
		Price:       d.Price,
		Options:     d.Options,
		Variants:    d.Variants,
		Tags:        d.Tags,
		Status:      d.Status,
		Images:      d.Images,
		UpdatedAt:   d.UpdatedAt,
	}
}

// MongoProductDocFromDomain converts a domain entity to a MongoDB document
func MongoProductDocFromDomain(product *domain.Product) *MongoProductDoc {
	doc := &MongoProductDoc{
		ProductID:   product.ProductID,
		ShopDomain:  product.ShopDomain,
		Title:       product.Title,
		Name:        product.Name,
		Vendor:      product.Vendor,
		ProductType: product.ProductType,
		Description: product.Description,
		Price:       product.Price,
		Options:     product.Options,
		Variants:    product.Variants,
		Tags:        product.Tags,
		Status:      product.Status,
		Images:      product.Images,
		UpdatedAt:   product.UpdatedAt,
	}

	if product.ID != "" {
		if objID, err := primitive.ObjectIDFromHex(product.ID); err == nil {
			doc.ID = objID
		}
	}

	return doc
}
