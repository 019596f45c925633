package firestore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"shopify-entity-sync/internal/domain"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// ProductStore implements ProductRepository on Firestore. Documents are keyed by shop and
// Shopify product id.
type ProductStore struct {
	client *firestore.Client
}

// NewProductStore creates a Firestore-backed product store
func NewProductStore(client *firestore.Client) *ProductStore {
	return &ProductStore{client: client}
}

func (s *ProductStore) collection() *firestore.CollectionRef {
	return s.client.Collection(productsCollection)
}

func (s *ProductStore) Save(ctx context.Context, product *domain.Product) error {
	product.UpdatedAt = time.Now()
	ref := s.collection().Doc(productDocID(product.ShopDomain, product.ProductID))
	if _, err := ref.Set(ctx, productDocFromDomain(product)); err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}
	product.ID = ref.ID
	return nil
}

func (s *ProductStore) SaveAll(ctx context.Context, products []*domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	now := time.Now()
	bw := s.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(products))
	for _, p := range products {
		p.UpdatedAt = now
		ref := s.collection().Doc(productDocID(p.ShopDomain, p.ProductID))
		job, err := bw.Set(ref, productDocFromDomain(p))
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to save products: %w", err)
		}
		p.ID = ref.ID
		jobs = append(jobs, job)
	}
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return fmt.Errorf("failed to save products: %w", err)
		}
	}
	return nil
}

func (s *ProductStore) GetByProductID(ctx context.Context, shopDomain string, productID int64) (*domain.Product, error) {
	snap, err := s.collection().Doc(productDocID(shopDomain, productID)).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	var doc productDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode product: %w", err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

func (s *ProductStore) ListByShop(ctx context.Context, shopDomain string) ([]*domain.Product, error) {
	iter := s.collection().Where("shopDomain", "==", shopDomain).Documents(ctx)
	defer iter.Stop()

	var products []*domain.Product
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list products: %w", err)
		}
		var doc productDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode product: %w", err)
		}
		products = append(products, doc.toDomain(snap.Ref.ID))
	}

	sort.Slice(products, func(i, j int) bool { return products[i].ProductID < products[j].ProductID })
	return products, nil
}

// ListShopDomains scans the shop field of every product. Firestore has no distinct query.
func (s *ProductStore) ListShopDomains(ctx context.Context) ([]string, error) {
	iter := s.collection().Select("shopDomain").Documents(ctx)
	defer iter.Stop()

	seen := make(map[string]struct{})
	var domains []string
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list shop domains: %w", err)
		}
		v, err := snap.DataAt("shopDomain")
		if err != nil {
			continue
		}
		shop, ok := v.(string)
		if !ok || shop == "" {
			continue
		}
		if _, dup := seen[shop]; dup {
			continue
		}
		seen[shop] = struct{}{}
		domains = append(domains, shop)
	}

	sort.Strings(domains)
	return domains, nil
}

func (s *ProductStore) Delete(ctx context.Context, shopDomain string, productID int64) error {
	if _, err := s.collection().Doc(productDocID(shopDomain, productID)).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}

func (s *ProductStore) DeleteByShop(ctx context.Context, shopDomain string) (int64, error) {
	n, err := deleteQuery(ctx, s.client, s.collection().Where("shopDomain", "==", shopDomain))
	if err != nil {
		return 0, fmt.Errorf("failed to delete products: %w", err)
	}
	return n, nil
}

// MigrateLegacyFields moves the snake_case product_type key into productType
func (s *ProductStore) MigrateLegacyFields(ctx context.Context) (int64, error) {
	iter := s.collection().Where("product_type", "!=", "").Documents(ctx)
	defer iter.Stop()

	var migrated int64
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return migrated, fmt.Errorf("failed to list legacy products: %w", err)
		}
		var doc productDoc
		if err := snap.DataTo(&doc); err != nil {
			return migrated, fmt.Errorf("failed to decode product: %w", err)
		}

		updates := []firestore.Update{{Path: "product_type", Value: firestore.Delete}}
		if doc.ProductType == "" {
			updates = append(updates, firestore.Update{Path: "productType", Value: doc.LegacyProductType})
		}
		if _, err := snap.Ref.Update(ctx, updates); err != nil {
			return migrated, fmt.Errorf("failed to migrate product %s: %w", snap.Ref.ID, err)
		}
		migrated++
	}
	return migrated, nil
}
