package api

import (
	"fmt"
	"net/http"
	"net/url"

	"shopify-entity-sync/internal/application"
	"shopify-entity-sync/internal/domain"
	"shopify-entity-sync/internal/infrastructure/pubsub"
	"shopify-entity-sync/internal/ports"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// AdminAPI serves the operator endpoints under /api/v1
type AdminAPI struct {
	usage      *application.EntityUsageService
	reconciler *application.Reconciler
	catalog    *application.CatalogService
	shopify    *application.ShopifyService
	events     *pubsub.EntityEventPubSub
	jobs       ports.SyncJobRepository // nil with inline sync
	logger     zerolog.Logger
}

// NewAdminAPI creates the admin endpoints. jobs may be nil when changes are pushed inline.
func NewAdminAPI(
	usage *application.EntityUsageService,
	reconciler *application.Reconciler,
	catalog *application.CatalogService,
	shopify *application.ShopifyService,
	events *pubsub.EntityEventPubSub,
	jobs ports.SyncJobRepository,
	logger zerolog.Logger,
) *AdminAPI {
	return &AdminAPI{
		usage:      usage,
		reconciler: reconciler,
		catalog:    catalog,
		shopify:    shopify,
		events:     events,
		jobs:       jobs,
		logger:     logger,
	}
}

// Routes mounts the admin endpoints on r
func (a *AdminAPI) Routes(r chi.Router) {
	r.Get("/entities/{entityType}", a.HandleListEntities)
	r.Get("/entities/{entityType}/{value}", a.HandleGetEntity)
	r.Post("/reconcile", a.HandleReconcile)
	r.Get("/shops", a.HandleListShops)
	r.Get("/shops/{shop}/products", a.HandleListProducts)
	r.Post("/shops/{shop}/resync", a.HandleResyncShop)
	r.Get("/sync/status", a.HandleSyncStatus)
}

type entityListResponse struct {
	EntityType domain.EntityKind     `json:"entityType"`
	Records    []*domain.EntityUsage `json:"records"`
}

// HandleListEntities returns every usage record of one entity type
func (a *AdminAPI) HandleListEntities(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseEntityKind(pathParam(r, "entityType"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := a.usage.ListByType(r.Context(), kind)
	if err != nil {
		a.logger.Error().Err(err).Str("entityType", string(kind)).Msg("Failed to list entity usage")
		writeError(w, statusFor(err), "failed to list entity usage")
		return
	}
	if records == nil {
		records = []*domain.EntityUsage{}
	}
	writeJSON(w, http.StatusOK, entityListResponse{EntityType: kind, Records: records})
}

// HandleGetEntity returns one usage record
func (a *AdminAPI) HandleGetEntity(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseEntityKind(pathParam(r, "entityType"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	value := pathParam(r, "value")

	record, err := a.usage.Get(r.Context(), kind, value)
	if err != nil {
		a.logger.Error().Err(err).Str("entityType", string(kind)).Str("entityValue", value).Msg("Failed to get entity usage")
		writeError(w, statusFor(err), "failed to get entity usage")
		return
	}
	if record == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no usage record for %s", domain.UsageKey(kind, value)))
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// HandleReconcile rebuilds every counter from the product store
func (a *AdminAPI) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	report, err := a.reconciler.RebuildCounters(r.Context())
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to rebuild counters")
		writeError(w, statusFor(err), "failed to rebuild counters")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleListShops returns the connected shops
func (a *AdminAPI) HandleListShops(w http.ResponseWriter, r *http.Request) {
	shops, err := a.shopify.ListShops(r.Context())
	if err != nil {
		writeError(w, statusFor(err), "failed to list shops")
		return
	}
	if shops == nil {
		shops = []*domain.Shop{}
	}
	writeJSON(w, http.StatusOK, shops)
}

// HandleListProducts returns the stored products of one shop
func (a *AdminAPI) HandleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.catalog.ListProducts(r.Context(), pathParam(r, "shop"))
	if err != nil {
		writeError(w, statusFor(err), "failed to list products")
		return
	}
	if products == nil {
		products = []*domain.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

// HandleResyncShop imports products of the live catalogue that are not stored yet
func (a *AdminAPI) HandleResyncShop(w http.ResponseWriter, r *http.Request) {
	shop := pathParam(r, "shop")
	n, err := a.shopify.ResyncShop(r.Context(), shop)
	if err != nil {
		a.logger.Error().Err(err).Str("shop", shop).Msg("Failed to resync shop")
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"shop": shop, "products": n})
}

type syncStatusResponse struct {
	Mode          string                 `json:"mode"`
	Pending       int64                  `json:"pending"`
	Dead          int64                  `json:"dead"`
	Subscriptions map[string]interface{} `json:"subscriptions"`
}

// HandleSyncStatus reports outbox depth and event stream subscribers
func (a *AdminAPI) HandleSyncStatus(w http.ResponseWriter, r *http.Request) {
	resp := syncStatusResponse{Mode: "inline", Subscriptions: a.events.Stats()}
	if a.jobs != nil {
		resp.Mode = "outbox"
		var err error
		if resp.Pending, err = a.jobs.CountByStatus(r.Context(), domain.SyncJobPending); err != nil {
			writeError(w, statusFor(err), "failed to count sync jobs")
			return
		}
		if resp.Dead, err = a.jobs.CountByStatus(r.Context(), domain.SyncJobDead); err != nil {
			writeError(w, statusFor(err), "failed to count sync jobs")
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// pathParam returns the decoded route parameter. chi matches on the escaped path when the
// request carries encoded separators, so "%2F" inside a value reaches handlers still escaped.
func pathParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return raw
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}
