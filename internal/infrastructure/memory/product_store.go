package memory

import (
	"context"
	"sort"
	"sync"

	"shopify-entity-sync/internal/domain"

	"github.com/google/uuid"
)

type productKey struct {
	shop string
	id   int64
}

// ProductStore keeps products keyed by shop and Shopify product id
type ProductStore struct {
	mu       sync.RWMutex
	products map[productKey]*domain.Product
}

// NewProductStore creates an empty store
func NewProductStore() *ProductStore {
	return &ProductStore{products: make(map[productKey]*domain.Product)}
}

func (s *ProductStore) Save(ctx context.Context, product *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.save(product)
	return nil
}

func (s *ProductStore) SaveAll(ctx context.Context, products []*domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		s.save(p)
	}
	return nil
}

func (s *ProductStore) save(product *domain.Product) {
	key := productKey{shop: product.ShopDomain, id: product.ProductID}
	if product.ID == "" {
		if existing, ok := s.products[key]; ok {
			product.ID = existing.ID
		} else {
			product.ID = uuid.NewString()
		}
	}
	s.products[key] = cloneProduct(product)
}

func (s *ProductStore) GetByProductID(ctx context.Context, shopDomain string, productID int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[productKey{shop: shopDomain, id: productID}]
	if !ok {
		return nil, nil
	}
	return cloneProduct(p), nil
}

func (s *ProductStore) ListByShop(ctx context.Context, shopDomain string) ([]*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Product
	for k, p := range s.products {
		if k.shop == shopDomain {
			out = append(out, cloneProduct(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (s *ProductStore) ListShopDomains(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []string
	for k := range s.products {
		if _, ok := seen[k.shop]; ok {
			continue
		}
		seen[k.shop] = struct{}{}
		out = append(out, k.shop)
	}
	sort.Strings(out)
	return out, nil
}

func (s *ProductStore) Delete(ctx context.Context, shopDomain string, productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.products, productKey{shop: shopDomain, id: productID})
	return nil
}

func (s *ProductStore) DeleteByShop(ctx context.Context, shopDomain string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k := range s.products {
		if k.shop == shopDomain {
			delete(s.products, k)
			n++
		}
	}
	return n, nil
}

func cloneProduct(p *domain.Product) *domain.Product {
	c := *p
	c.Options = make([]domain.ProductOption, len(p.Options))
	for i, o := range p.Options {
		c.Options[i] = domain.ProductOption{Name: o.Name, Values: append([]string(nil), o.Values...)}
	}
	c.Variants = append([]domain.ProductVariant(nil), p.Variants...)
	c.Images = append([]domain.ProductImage(nil), p.Images...)
	return &c
}
