// internal/handlers/summary.go
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/piaxis/inventory-sync/internal/adapters/db"
	redis_a "github.com/piaxis/inventory-sync/internal/adapters/redis_adapter"
	"github.com/piaxis/inventory-sync/internal/core/ports"
	"github.com/piaxis/inventory-sync/internal/workers"
)

// SummaryHandler serves the cached per-store stock rollup
type SummaryHandler struct {
	db     *db.Database
	cache  ports.CacheRepository
	logger *slog.Logger
}

// NewSummaryHandler creates a new summary handler
func NewSummaryHandler(db *db.Database, cache ports.CacheRepository, logger *slog.Logger) *SummaryHandler {
	return &SummaryHandler{
		db:     db,
		cache:  cache,
		logger: logger.With(slog.String("handler", "summary")),
	}
}

// GetSummary handles GET /api/v1/stores/{storeID}/summary. The rollup
// is served from cache when the background worker has refreshed it, and
// computed on demand otherwise.
func (h *SummaryHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	storeID := r.PathValue("storeID")

	cacheKey := redis_a.BuildKey(redis_a.PrefixSummary, storeID)
	var summary workers.StoreSummary

	err := h.cache.GetOrSet(ctx, cacheKey, &summary, func() (interface{}, error) {
		return h.loadSummary(ctx, storeID)
	}, 15*time.Minute)

	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load store summary",
			slog.String("store_id", storeID),
			err)
		h.respondError(w, http.StatusInternalServerError, "Failed to load store summary")
		return
	}

	h.respondJSON(w, http.StatusOK, summary)
}

func (h *SummaryHandler) loadSummary(ctx context.Context, storeID string) (*workers.StoreSummary, error) {
	summary := &workers.StoreSummary{
		StoreID:     storeID,
		RefreshedAt: time.Now(),
	}

	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(quantity), 0),
		       COUNT(*) FILTER (WHERE quantity = 0)
		FROM products
		WHERE store_id = $1 AND deleted_at IS NULL`

	err := h.db.QueryRow(ctx, query, storeID).Scan(
		&summary.ProductCount,
		&summary.TotalQuantity,
		&summary.OutOfStock,
	)
	if err != nil {
		return nil, err
	}

	var lastImport *time.Time
	err = h.db.QueryRow(ctx,
		`SELECT MAX(completed_at) FROM import_batches WHERE store_id = $1`,
		storeID,
	).Scan(&lastImport)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to read last import time",
			slog.String("store_id", storeID),
			err)
	} else {
		summary.LastImportAt = lastImport
	}

	return summary, nil
}

func (h *SummaryHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *SummaryHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
