package repository

import (
	"context"
	"fmt"
	"time"

	"shopify-entity-sync/internal/domain"
	"shopify-entity-sync/internal/infrastructure/repository/entity"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoProductRepository implements ProductRepository using MongoDB
type MongoProductRepository struct {
	collection *mongo.Collection
}

// NewMongoProductRepository creates a new MongoDB product repository
func NewMongoProductRepository(db *mongo.Database) *MongoProductRepository {
	return &MongoProductRepository{
		collection: db.Collection("products"),
	}
}

func productFilter(shopDomain string, productID int64) bson.M {
	return bson.M{"shopDomain": shopDomain, "productId": productID}
}

// Save upserts a product keyed by shop and Shopify product id
func (r *MongoProductRepository) Save(ctx context.Context, product *domain.Product) error {
	doc := entity.MongoProductDocFromDomain(product)
	doc.UpdatedAt = time.Now()

	update := bson.M{
		"$set":   doc,
		"$unset": bson.M{"product_type": ""},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var saved entity.MongoProductDoc
	err := r.collection.FindOneAndUpdate(ctx, productFilter(product.ShopDomain, product.ProductID), update, opts).Decode(&saved)
	if err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}

	product.ID = saved.ID.Hex()
	product.UpdatedAt = saved.UpdatedAt
	return nil
}

// SaveAll upserts products in one unordered bulk write
func (r *MongoProductRepository) SaveAll(ctx context.Context, products []*domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	now := time.Now()
	models := make([]mongo.WriteModel, 0, len(products))
	for _, p := range products {
		doc := entity.MongoProductDocFromDomain(p)
		doc.UpdatedAt = now
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(productFilter(p.ShopDomain, p.ProductID)).
			SetUpdate(bson.M{"$set": doc, "$unset": bson.M{"product_type": ""}}).
			SetUpsert(true))
	}

	_, err := r.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("failed to save products: %w", err)
	}

	return nil
}

// GetByProductID retrieves a product by shop and Shopify product id
func (r *MongoProductRepository) GetByProductID(ctx context.Context, shopDomain string, productID int64) (*domain.Product, error) {
	var doc entity.MongoProductDoc
	err := r.collection.FindOne(ctx, productFilter(shopDomain, productID)).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return doc.ToDomain(), nil
}

// ListByShop retrieves every product of a shop ordered by Shopify product id
func (r *MongoProductRepository) ListByShop(ctx context.Context, shopDomain string) ([]*domain.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "productId", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"shopDomain": shopDomain}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer cursor.Close(ctx)

	var products []*domain.Product
	for cursor.Next(ctx) {
		var doc entity.MongoProductDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode product: %w", err)
		}
		products = append(products, doc.ToDomain())
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return products, nil
}

// ListShopDomains returns the distinct shops owning at least one product
func (r *MongoProductRepository) ListShopDomains(ctx context.Context) ([]string, error) {
	values, err := r.collection.Distinct(ctx, "shopDomain", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list shop domains: %w", err)
	}

	domains := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			domains = append(domains, s)
		}
	}
	return domains, nil
}

// Delete removes one product. Deleting a missing product is not an error.
func (r *MongoProductRepository) Delete(ctx context.Context, shopDomain string, productID int64) error {
	_, err := r.collection.DeleteOne(ctx, productFilter(shopDomain, productID))
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}

// DeleteByShop removes every product of a shop
func (r *MongoProductRepository) DeleteByShop(ctx context.Context, shopDomain string) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"shopDomain": shopDomain})
	if err != nil {
		return 0, fmt.Errorf("failed to delete products: %w", err)
	}
	return result.DeletedCount, nil
}

// MigrateLegacyFields copies the snake_case product_type key into productType and removes
// it. It returns the number of migrated documents.
func (r *MongoProductRepository) MigrateLegacyFields(ctx context.Context) (int64, error) {
	filter := bson.M{"product_type": bson.M{"$exists": true}}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"productType": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{bson.M{"$ifNull": bson.A{"$productType", ""}}, ""}},
				"$product_type",
				"$productType",
			}},
		}}},
		{{Key: "$unset", Value: "product_type"}},
	}

	result, err := r.collection.UpdateMany(ctx, filter, pipeline)
	if err != nil {
		return 0, fmt.Errorf("failed to migrate products: %w", err)
	}
	return result.ModifiedCount, nil
}
