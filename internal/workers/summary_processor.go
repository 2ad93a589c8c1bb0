// internal/workers/summary_processor.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"

	redis_a "github.com/piaxis/inventory-sync/internal/adapters/redis_adapter"
	"github.com/piaxis/inventory-sync/internal/core/ports"
)

const summaryTTL = 15 * time.Minute

// SummaryPayload represents the payload for summary refresh tasks
type SummaryPayload struct {
	StoreID string `json:"store_id"`
}

// StoreSummary is the cached per-store stock rollup, refreshed after
// every applied import.
type StoreSummary struct {
	StoreID       string     `json:"store_id"`
	ProductCount  int        `json:"product_count"`
	TotalQuantity int64      `json:"total_quantity"`
	OutOfStock    int        `json:"out_of_stock"`
	LastImportAt  *time.Time `json:"last_import_at,omitempty"`
	RefreshedAt   time.Time  `json:"refreshed_at"`
}

// RowQuerier is the slice of the database adapter the summary needs.
type RowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// SummaryProcessor recomputes store summaries
type SummaryProcessor struct {
	db     RowQuerier
	cache  ports.CacheRepository
	logger *slog.Logger
}

// NewSummaryProcessor creates a new summary processor
func NewSummaryProcessor(database RowQuerier, cache ports.CacheRepository, logger *slog.Logger) *SummaryProcessor {
	return &SummaryProcessor{
		db:     database,
		cache:  cache,
		logger: logger.With(slog.String("processor", "summary")),
	}
}

// RefreshSummary recomputes and caches the rollup for one store
func (p *SummaryProcessor) RefreshSummary(ctx context.Context, t *asynq.Task) error {
	var payload SummaryPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	summary, err := p.computeSummary(ctx, payload.StoreID)
	if err != nil {
		return fmt.Errorf("failed to compute summary for store %s: %w", payload.StoreID, err)
	}

	key := redis_a.BuildKey(redis_a.PrefixSummary, payload.StoreID)
	if err := p.cache.SetWithTTL(ctx, key, summary, summaryTTL); err != nil {
		return fmt.Errorf("failed to cache summary for store %s: %w", payload.StoreID, err)
	}

	p.logger.InfoContext(ctx, "store summary refreshed",
		slog.String("store_id", payload.StoreID),
		slog.Int("product_count", summary.ProductCount),
		slog.Int64("total_quantity", summary.TotalQuantity))

	return nil
}

func (p *SummaryProcessor) computeSummary(ctx context.Context, storeID string) (*StoreSummary, error) {
	summary := &StoreSummary{
		StoreID:     storeID,
		RefreshedAt: time.Now(),
	}

	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(quantity), 0),
		       COUNT(*) FILTER (WHERE quantity = 0)
		FROM products
		WHERE store_id = $1 AND deleted_at IS NULL`

	err := p.db.QueryRow(ctx, query, storeID).Scan(
		&summary.ProductCount,
		&summary.TotalQuantity,
		&summary.OutOfStock,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate products: %w", err)
	}

	var lastImport *time.Time
	err = p.db.QueryRow(ctx,
		`SELECT MAX(completed_at) FROM import_batches WHERE store_id = $1`,
		storeID,
	).Scan(&lastImport)
	if err != nil {
		p.logger.WarnContext(ctx, "failed to read last import time",
			slog.String("store_id", storeID),
			err)
	} else {
		summary.LastImportAt = lastImport
	}

	return summary, nil
}
