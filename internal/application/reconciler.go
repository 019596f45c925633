package application

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"shopify-entity-sync/internal/domain"
	"shopify-entity-sync/internal/ports"

	"github.com/rs/zerolog"
)

// Reconciler keeps entity usage counters and remote entity types aligned with the
// product catalogue
type Reconciler struct {
	usage     *EntityUsageService
	syncer    ports.EntitySyncer
	products  ports.ProductRepository
	usageRepo ports.EntityUsageRepository
	logger    zerolog.Logger

	// catalog writes hold gate shared, RebuildCounters holds it exclusively
	gate sync.RWMutex
}

// Track runs a catalog write that changes counters. Writes run concurrently with each
// other but never while RebuildCounters replaces the counters. fn must not call Track.
func (r *Reconciler) Track(fn func() error) error {
	r.gate.RLock()
	defer r.gate.RUnlock()
	return fn()
}

// NewReconciler creates a new reconciler
func NewReconciler(
	usage *EntityUsageService,
	syncer ports.EntitySyncer,
	products ports.ProductRepository,
	usageRepo ports.EntityUsageRepository,
	logger zerolog.Logger,
) *Reconciler {
	return &Reconciler{
		usage:     usage,
		syncer:    syncer,
		products:  products,
		usageRepo: usageRepo,
		logger:    logger,
	}
}

// UpdateDialogflowEntities counts every entity of a product batch for shopDomain and
// merges the distinct values of each kind into its entity type
func (r *Reconciler) UpdateDialogflowEntities(ctx context.Context, shopDomain string, products []*domain.Product) error {
	if shopDomain == "" {
		r.logger.Error().Int("products", len(products)).Msg("Shop domain is missing, skipping entity update")
		return fmt.Errorf("%w: shop domain is required", domain.ErrInvalidInput)
	}
	if len(products) == 0 {
		r.logger.Error().Str("shop", shopDomain).Msg("No products to process, skipping entity update")
		return fmt.Errorf("%w: products are required", domain.ErrInvalidInput)
	}

	extraction := domain.ExtractEntities(products)
	for _, kind := range domain.EntityKinds {
		counts := extraction[kind]
		if len(counts) == 0 {
			continue
		}

		for _, c := range counts {
			if err := r.usage.Increment(ctx, shopDomain, kind, c.Value, c.Count); err != nil {
				return err
			}
		}

		r.push(ctx, kind, extraction.Entities(kind))
	}

	r.logger.Info().Str("shop", shopDomain).Int("products", len(products)).Msg("Entities updated from product batch")
	return nil
}

// CompareEntities applies the entity changes between the stored and the incoming version
// of one product
func (r *Reconciler) CompareEntities(ctx context.Context, newProduct, oldProduct *domain.Product) error {
	if newProduct == nil || oldProduct == nil {
		r.logger.Error().Msg("Product versions missing, skipping entity comparison")
		return fmt.Errorf("%w: both product versions are required", domain.ErrInvalidInput)
	}

	shopDomain := newProduct.ShopDomain
	if shopDomain == "" {
		shopDomain = oldProduct.ShopDomain
	}
	if shopDomain == "" {
		r.logger.Error().Int64("productId", newProduct.ProductID).Msg("Shop domain is missing, skipping entity comparison")
		return fmt.Errorf("%w: shop domain is required", domain.ErrInvalidInput)
	}

	if err := r.compareScalar(ctx, shopDomain, domain.KindProduct, oldProduct.Title, newProduct.Title); err != nil {
		return err
	}
	if err := r.compareScalar(ctx, shopDomain, domain.KindBrand, brandValue(oldProduct.Vendor), brandValue(newProduct.Vendor)); err != nil {
		return err
	}
	if err := r.compareScalar(ctx, shopDomain, domain.KindProductType, oldProduct.ProductType, newProduct.ProductType); err != nil {
		return err
	}
	if err := r.compareOptions(ctx, shopDomain, oldProduct, newProduct); err != nil {
		return err
	}
	return r.compareVariants(ctx, shopDomain, oldProduct, newProduct)
}

// CleanUpEntities releases every entity reference held by products. All products must
// belong to the shop of the first one; each distinct value is decremented once by its
// aggregate count.
func (r *Reconciler) CleanUpEntities(ctx context.Context, products []*domain.Product) error {
	if len(products) == 0 || products[0] == nil {
		r.logger.Error().Msg("No products to clean up")
		return fmt.Errorf("%w: products are required", domain.ErrInvalidInput)
	}
	shopDomain := products[0].ShopDomain
	if shopDomain == "" {
		r.logger.Error().Int64("productId", products[0].ProductID).Msg("Shop domain is missing, skipping entity clean up")
		return fmt.Errorf("%w: shop domain is required", domain.ErrInvalidInput)
	}

	extraction := domain.ExtractEntities(products)
	for _, kind := range domain.EntityKinds {
		for _, c := range extraction[kind] {
			if err := r.usage.Decrement(ctx, shopDomain, kind, c.Value, c.Count); err != nil {
				return err
			}
		}
	}

	r.logger.Info().Str("shop", shopDomain).Int("products", len(products)).Msg("Entities cleaned up")
	return nil
}

// RebuildCounters recomputes every usage record from the product store, replaces the
// stored counters and realigns the remote entity types. Values no longer referenced
// by any product are removed remotely. Catalog writes in this process wait until the
// rebuild finishes.
func (r *Reconciler) RebuildCounters(ctx context.Context) (*RebuildReport, error) {
	r.gate.Lock()
	defer r.gate.Unlock()

	previous := make(map[string]*domain.EntityUsage)
	for _, kind := range domain.EntityKinds {
		usages, err := r.usageRepo.ListByType(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("failed to list entity usage: %w", err)
		}
		for _, u := range usages {
			previous[u.Key()] = u
		}
	}

	shopDomains, err := r.products.ListShopDomains(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list shop domains: %w", err)
	}

	now := time.Now()
	rebuilt := make(map[string]*domain.EntityUsage)
	var order []string
	productCount := 0
	for _, shopDomain := range shopDomains {
		products, err := r.products.ListByShop(ctx, shopDomain)
		if err != nil {
			return nil, fmt.Errorf("failed to list products for %s: %w", shopDomain, err)
		}
		productCount += len(products)

		extraction := domain.ExtractEntities(products)
		for _, kind := range domain.EntityKinds {
			for _, c := range extraction[kind] {
				key := domain.UsageKey(kind, c.Value)
				if u, ok := rebuilt[key]; ok {
					u.Increment(shopDomain, c.Count, now)
					continue
				}
				u := domain.NewEntityUsage(kind, c.Value, shopDomain, c.Count, now)
				if old, ok := previous[key]; ok {
					u.CreatedAt = old.CreatedAt
				}
				rebuilt[key] = u
				order = append(order, key)
			}
		}
	}

	if err := r.usageRepo.DeleteAll(ctx); err != nil {
		return nil, fmt.Errorf("failed to clear entity usage: %w", err)
	}

	entities := make(map[domain.EntityKind][]domain.Entity)
	for _, key := range order {
		u := rebuilt[key]
		if err := r.usageRepo.Put(ctx, u); err != nil {
			return nil, fmt.Errorf("failed to store entity usage %s: %w", key, err)
		}
		entities[u.EntityType] = append(entities[u.EntityType], domain.Entity{Value: u.EntityValue, Synonyms: []string{u.EntityValue}})
	}

	for _, kind := range domain.EntityKinds {
		if len(entities[kind]) > 0 {
			r.push(ctx, kind, entities[kind])
		}
	}

	report := &RebuildReport{
		Shops:    len(shopDomains),
		Products: productCount,
		Records:  len(rebuilt),
	}

	var stale []string
	for key := range previous {
		if _, ok := rebuilt[key]; !ok {
			stale = append(stale, key)
		}
	}
	sort.Strings(stale)
	for _, key := range stale {
		u := previous[key]
		if err := r.syncer.RemoveValue(ctx, u.EntityType, u.EntityValue); err != nil {
			r.logger.Error().Err(err).Str("entityType", string(u.EntityType)).Str("entityValue", u.EntityValue).Msg("Failed to remove stale entity value")
			continue
		}
		report.Removed++
	}

	r.logger.Info().
		Int("shops", report.Shops).
		Int("products", report.Products).
		Int("records", report.Records).
		Int("removed", report.Removed).
		Msg("Entity usage counters rebuilt")
	return report, nil
}

// RebuildReport summarizes a counter rebuild
type RebuildReport struct {
	Shops    int `json:"shops"`
	Products int `json:"products"`
	Records  int `json:"records"`
	Removed  int `json:"removed"`
}

// compareScalar moves one reference from oldValue to newValue
func (r *Reconciler) compareScalar(ctx context.Context, shopDomain string, kind domain.EntityKind, oldValue, newValue string) error {
	if oldValue == newValue {
		return nil
	}
	if oldValue != "" {
		if err := r.usage.Decrement(ctx, shopDomain, kind, oldValue, 1); err != nil {
			return err
		}
	}
	if newValue != "" {
		if err := r.usage.Increment(ctx, shopDomain, kind, newValue, 1); err != nil {
			return err
		}
		r.push(ctx, kind, []domain.Entity{{Value: newValue, Synonyms: []string{newValue}}})
	}
	return nil
}

// compareOptions diffs option names. The joined order-sensitive names gate the pass;
// the set difference decides what changes.
func (r *Reconciler) compareOptions(ctx context.Context, shopDomain string, oldProduct, newProduct *domain.Product) error {
	oldNames := oldProduct.OptionNames()
	newNames := newProduct.OptionNames()
	if strings.Join(oldNames, ",") == strings.Join(newNames, ",") {
		return nil
	}

	for _, name := range domain.StringSetDifference(oldNames, newNames) {
		if err := r.usage.Decrement(ctx, shopDomain, domain.KindProductOptions, name, 1); err != nil {
			return err
		}
	}

	added := domain.StringSetDifference(newNames, oldNames)
	if len(added) == 0 {
		return nil
	}
	values := newProduct.OptionValues()
	entities := make([]domain.Entity, 0, len(added))
	for _, name := range added {
		if err := r.usage.Increment(ctx, shopDomain, domain.KindProductOptions, name, 1); err != nil {
			return err
		}
		entities = append(entities, domain.Entity{Value: name, Synonyms: append([]string{name}, values[name]...)})
	}
	r.push(ctx, domain.KindProductOptions, entities)
	return nil
}

// compareVariants diffs variant entity values. A renamed product changes every
// "{title} {variant}" value, so the composite values are compared rather than the
// raw variant titles.
func (r *Reconciler) compareVariants(ctx context.Context, shopDomain string, oldProduct, newProduct *domain.Product) error {
	oldValues := oldProduct.VariantValues()
	newValues := newProduct.VariantValues()
	if strings.Join(oldValues, ",") == strings.Join(newValues, ",") {
		return nil
	}

	for _, value := range domain.StringSetDifference(oldValues, newValues) {
		if err := r.usage.Decrement(ctx, shopDomain, domain.KindProductVariants, value, 1); err != nil {
			return err
		}
	}

	added := domain.StringSetDifference(newValues, oldValues)
	if len(added) == 0 {
		return nil
	}
	entities := make([]domain.Entity, 0, len(added))
	for _, value := range added {
		if err := r.usage.Increment(ctx, shopDomain, domain.KindProductVariants, value, 1); err != nil {
			return err
		}
		entities = append(entities, domain.Entity{Value: value, Synonyms: []string{value}})
	}
	r.push(ctx, domain.KindProductVariants, entities)
	return nil
}

// push propagates entities remotely. Failures never undo committed counter changes.
func (r *Reconciler) push(ctx context.Context, kind domain.EntityKind, entities []domain.Entity) {
	if err := r.syncer.Push(ctx, kind, entities); err != nil {
		r.logger.Error().
			Err(err).
			Str("entityType", string(kind)).
			Int("entities", len(entities)).
			Msg("Failed to sync entity type")
	}
}

// brandValue returns vendor, or "" when it is a placeholder brand
func brandValue(vendor string) string {
	if domain.IsInvalidBrand(vendor) {
		return ""
	}
	return vendor
}
