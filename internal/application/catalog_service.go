package application

import (
	"context"
	"fmt"
	"time"

	"shopify-entity-sync/internal/domain"
	"shopify-entity-sync/internal/ports"

	"github.com/rs/zerolog"
)

// CatalogService persists products received from Shopify and feeds entity changes to the
// reconciler. Entity sync is a best-effort side effect: its failures are logged and never
// block the product write.
type CatalogService struct {
	products   ports.ProductRepository
	reconciler *Reconciler
	logger     zerolog.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(products ports.ProductRepository, reconciler *Reconciler, logger zerolog.Logger) *CatalogService {
	return &CatalogService{
		products:   products,
		reconciler: reconciler,
		logger:     logger,
	}
}

// HandleProductCreate stores a new product and counts its entities. Redelivered creates
// for a stored product are ignored.
func (s *CatalogService) HandleProductCreate(ctx context.Context, shopDomain string, payload *domain.ShopifyProductPayload) error {
	product, err := s.productFromPayload(shopDomain, payload)
	if err != nil {
		return err
	}

	return s.reconciler.Track(func() error {
		existing, err := s.products.GetByProductID(ctx, shopDomain, product.ProductID)
		if err != nil {
			return fmt.Errorf("failed to get product: %w", err)
		}
		if existing != nil {
			s.logger.Info().Str("shop", shopDomain).Int64("productId", product.ProductID).Msg("Product already stored, skipping create")
			return nil
		}

		if err := s.save(ctx, product); err != nil {
			return err
		}

		s.syncEntities(shopDomain, product.ProductID, s.reconciler.UpdateDialogflowEntities(ctx, shopDomain, []*domain.Product{product}))

		s.logger.Info().Str("shop", shopDomain).Int64("productId", product.ProductID).Msg("Product created")
		return nil
	})
}

// HandleProductUpdate stores the incoming product, then diffs it against the previous
// version. A product that was never stored is counted as new. Counters only move once
// the write succeeded, so a retried delivery never counts twice.
func (s *CatalogService) HandleProductUpdate(ctx context.Context, shopDomain string, payload *domain.ShopifyProductPayload) error {
	product, err := s.productFromPayload(shopDomain, payload)
	if err != nil {
		return err
	}

	return s.reconciler.Track(func() error {
		existing, err := s.products.GetByProductID(ctx, shopDomain, product.ProductID)
		if err != nil {
			return fmt.Errorf("failed to get product: %w", err)
		}
		if existing != nil {
			product.ID = existing.ID
		}

		if err := s.save(ctx, product); err != nil {
			return err
		}

		if existing == nil {
			s.logger.Warn().Str("shop", shopDomain).Int64("productId", product.ProductID).Msg("Updated product not stored, imported it")
			s.syncEntities(shopDomain, product.ProductID, s.reconciler.UpdateDialogflowEntities(ctx, shopDomain, []*domain.Product{product}))
		} else {
			s.syncEntities(shopDomain, product.ProductID, s.reconciler.CompareEntities(ctx, product, existing))
		}

		s.logger.Info().Str("shop", shopDomain).Int64("productId", product.ProductID).Msg("Product updated")
		return nil
	})
}

// HandleProductDelete deletes a stored product and releases its entities
func (s *CatalogService) HandleProductDelete(ctx context.Context, shopDomain string, productID int64) error {
	if shopDomain == "" || productID == 0 {
		s.logger.Error().Str("shop", shopDomain).Int64("productId", productID).Msg("Product delete is missing shop or product id")
		return fmt.Errorf("%w: shop domain and product id are required", domain.ErrInvalidInput)
	}

	return s.reconciler.Track(func() error {
		existing, err := s.products.GetByProductID(ctx, shopDomain, productID)
		if err != nil {
			return fmt.Errorf("failed to get product: %w", err)
		}
		if existing == nil {
			s.logger.Error().Str("shop", shopDomain).Int64("productId", productID).Msg("Product not found")
			return fmt.Errorf("%w: product %d", domain.ErrNotFound, productID)
		}
		if existing.ShopDomain == "" {
			existing.ShopDomain = shopDomain
		}

		if err := s.products.Delete(ctx, shopDomain, productID); err != nil {
			s.logger.Error().Err(err).Str("shop", shopDomain).Int64("productId", productID).Msg("Failed to delete product")
			return fmt.Errorf("failed to delete product: %w", err)
		}

		s.syncEntities(shopDomain, productID, s.reconciler.CleanUpEntities(ctx, []*domain.Product{existing}))

		s.logger.Info().Str("shop", shopDomain).Int64("productId", productID).Msg("Product deleted")
		return nil
	})
}

// ImportShop stores the full catalogue of a newly connected shop and counts its entities.
// Products already stored for the shop are skipped so a reinstall does not double count.
func (s *CatalogService) ImportShop(ctx context.Context, shopDomain string, products []*domain.Product) error {
	if shopDomain == "" {
		return fmt.Errorf("%w: shop domain is required", domain.ErrInvalidInput)
	}

	return s.reconciler.Track(func() error {
		stored, err := s.products.ListByShop(ctx, shopDomain)
		if err != nil {
			return fmt.Errorf("failed to list products: %w", err)
		}
		known := make(map[int64]struct{}, len(stored))
		for _, p := range stored {
			known[p.ProductID] = struct{}{}
		}

		now := time.Now()
		fresh := make([]*domain.Product, 0, len(products))
		for _, p := range products {
			if p == nil {
				continue
			}
			if _, ok := known[p.ProductID]; ok {
				continue
			}
			p.ShopDomain = shopDomain
			p.UpdatedAt = now
			fresh = append(fresh, p)
		}

		if len(fresh) == 0 {
			s.logger.Info().Str("shop", shopDomain).Int("stored", len(stored)).Msg("No new products to import")
			return nil
		}

		if err := s.products.SaveAll(ctx, fresh); err != nil {
			s.logger.Error().Err(err).Str("shop", shopDomain).Msg("Failed to save products")
			return fmt.Errorf("failed to save products: %w", err)
		}

		if err := s.reconciler.UpdateDialogflowEntities(ctx, shopDomain, fresh); err != nil {
			s.logger.Error().Err(err).Str("shop", shopDomain).Msg("Failed to update entities for imported products")
		}

		s.logger.Info().Str("shop", shopDomain).Int("imported", len(fresh)).Msg("Shop catalogue imported")
		return nil
	})
}

// RemoveShop deletes the shop's products and releases every entity they held
func (s *CatalogService) RemoveShop(ctx context.Context, shopDomain string) error {
	if shopDomain == "" {
		return fmt.Errorf("%w: shop domain is required", domain.ErrInvalidInput)
	}

	return s.reconciler.Track(func() error {
		products, err := s.products.ListByShop(ctx, shopDomain)
		if err != nil {
			return fmt.Errorf("failed to list products: %w", err)
		}

		deleted, err := s.products.DeleteByShop(ctx, shopDomain)
		if err != nil {
			return fmt.Errorf("failed to delete products: %w", err)
		}

		if len(products) > 0 {
			for _, p := range products {
				p.ShopDomain = shopDomain
			}
			if err := s.reconciler.CleanUpEntities(ctx, products); err != nil {
				s.logger.Error().Err(err).Str("shop", shopDomain).Msg("Failed to clean up entities for removed shop")
			}
		}

		s.logger.Info().Str("shop", shopDomain).Int64("products", deleted).Msg("Shop data removed")
		return nil
	})
}

// ListProducts returns the stored products of a shop
func (s *CatalogService) ListProducts(ctx context.Context, shopDomain string) ([]*domain.Product, error) {
	products, err := s.products.ListByShop(ctx, shopDomain)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (s *CatalogService) productFromPayload(shopDomain string, payload *domain.ShopifyProductPayload) (*domain.Product, error) {
	if payload == nil || payload.ID == 0 {
		s.logger.Error().Str("shop", shopDomain).Msg("Product ID is missing")
		return nil, fmt.Errorf("%w: product id is required", domain.ErrInvalidInput)
	}
	if shopDomain == "" {
		s.logger.Error().Int64("productId", payload.ID).Msg("Shop domain is missing")
		return nil, fmt.Errorf("%w: shop domain is required", domain.ErrInvalidInput)
	}
	product := payload.ToProduct(shopDomain)
	product.UpdatedAt = time.Now()
	return product, nil
}

func (s *CatalogService) save(ctx context.Context, product *domain.Product) error {
	if err := s.products.Save(ctx, product); err != nil {
		s.logger.Error().Err(err).Str("shop", product.ShopDomain).Int64("productId", product.ProductID).Msg("Failed to save product")
		return fmt.Errorf("failed to save product: %w", err)
	}
	return nil
}

func (s *CatalogService) syncEntities(shopDomain string, productID int64, err error) {
	if err != nil {
		s.logger.Error().Err(err).Str("shop", shopDomain).Int64("productId", productID).Msg("Entity sync failed")
	}
}
