// internal/core/services/import.go
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/piaxis/inventory-sync/internal/core/domain"
	"github.com/piaxis/inventory-sync/internal/core/ports"
)

// importLockTTL bounds how long a crashed import can hold its key lock.
const importLockTTL = 2 * time.Minute

// Transactor runs a function inside a single database transaction.
// Implemented by the database adapter.
type Transactor interface {
	Transaction(ctx context.Context, fn func(pgx.Tx) error) error
}

// ImportService applies delta batches to product stock
type ImportService struct {
	products ports.ProductRepository
	batches  ports.ImportRepository
	tx       Transactor
	cache    ports.CacheRepository
	logger   *slog.Logger
}

// Statically assert that *ImportService implements the ImportService interface.
var _ ports.ImportService = (*ImportService)(nil)

// NewImportService creates a new import service
func NewImportService(products ports.ProductRepository, batches ports.ImportRepository, tx Transactor, cache ports.CacheRepository, logger *slog.Logger) *ImportService {
	return &ImportService{
		products: products,
		batches:  batches,
		tx:       tx,
		cache:    cache,
		logger:   logger.With(slog.String("service", "import")),
	}
}

// Apply runs one delta batch. Resubmitting the same (store, key) pair
// with identical content replays the stored result; the same key with
// different content is rejected with domain.ErrIdempotencyKeyReuse.
// Rows are independent: a conflicting row is reported and skipped while
// the rest of the batch commits.
func (s *ImportService) Apply(ctx context.Context, params ports.ApplyParams) (*ports.ApplyOutcome, error) {
	if params.StoreID == "" {
		return nil, fmt.Errorf("store id is required")
	}
	if params.IdempotencyKey == "" {
		return nil, fmt.Errorf("idempotency key is required")
	}

	hash := contentHash(params.Payload)

	// Serialize concurrent submissions of the same key. Without this,
	// two in-flight requests could both miss the replay lookup and
	// double-apply the deltas.
	lockKey := fmt.Sprintf("import:lock:%s:%s", params.StoreID, params.IdempotencyKey)
	acquired, err := s.cache.SetNX(ctx, lockKey, hash, importLockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire import lock: %w", err)
	}
	if !acquired {
		return nil, domain.ErrImportInProgress
	}
	defer func() {
		if err := s.cache.Delete(context.WithoutCancel(ctx), lockKey); err != nil {
			s.logger.WarnContext(ctx, "failed to release import lock",
				slog.String("key", lockKey), slog.Any("error", err))
		}
	}()

	existing, err := s.batches.FindByKey(ctx, params.StoreID, params.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	if existing != nil {
		if existing.ContentHash != hash {
			return nil, domain.ErrIdempotencyKeyReuse
		}
		s.logger.InfoContext(ctx, "replaying stored import result",
			slog.String("store_id", params.StoreID),
			slog.String("batch_id", existing.BatchID.String()))
		return &ports.ApplyOutcome{Batch: existing, Replayed: true}, nil
	}

	batch := &domain.ImportBatch{
		StoreID:        params.StoreID,
		IdempotencyKey: params.IdempotencyKey,
		ContentHash:    hash,
		FileName:       params.FileName,
	}
	batch.PrepareForStorage()

	result := &domain.ImportResult{
		Applied:   []domain.RowResult{},
		Conflicts: []domain.RowResult{},
	}
	for _, rerr := range params.ParseErrors {
		result.Conflicts = append(result.Conflicts, domain.RowResult{
			Row:     rerr.Row,
			Reason:  domain.ConflictMalformedRow,
			Message: rerr.Message,
		})
	}

	err = s.tx.Transaction(ctx, func(tx pgx.Tx) error {
		for i := range params.Deltas {
			if err := s.applyRow(ctx, tx, params.StoreID, &params.Deltas[i], result); err != nil {
				return err
			}
		}

		sort.SliceStable(result.Conflicts, func(i, j int) bool {
			return result.Conflicts[i].Row < result.Conflicts[j].Row
		})

		batch.Complete(result)
		if err := s.batches.RecordBatch(ctx, tx, batch); err != nil {
			return fmt.Errorf("failed to record batch: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("import transaction failed: %w", err)
	}

	// Quantities changed; cached product reads for this store are stale.
	if err := s.cache.DeletePattern(ctx, fmt.Sprintf("product:%s:*", params.StoreID)); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate product cache",
			slog.String("store_id", params.StoreID), slog.Any("error", err))
	}

	s.logger.InfoContext(ctx, "applied delta batch",
		slog.String("store_id", params.StoreID),
		slog.String("batch_id", batch.BatchID.String()),
		slog.Int("applied", batch.AppliedCount),
		slog.Int("conflicts", batch.ConflictCount))

	return &ports.ApplyOutcome{Batch: batch}, nil
}

// applyRow resolves and applies a single delta. Domain conflicts are
// recorded on the result; only infrastructure errors propagate and roll
// the transaction back.
func (s *ImportService) applyRow(ctx context.Context, tx pgx.Tx, storeID string, d *domain.InventoryDelta, result *domain.ImportResult) error {
	ref := d.Ref()

	product, err := s.products.ResolveRef(ctx, tx, storeID, ref)
	if errors.Is(err, domain.ErrUnknownProduct) {
		result.Conflicts = append(result.Conflicts, domain.RowResult{
			Row:     d.Row,
			SKU:     d.SKU,
			Delta:   d.DeltaQuantity,
			Reason:  domain.ConflictUnknownProduct,
			Message: fmt.Sprintf("no product matches %s", ref),
		})
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to resolve row %d: %w", d.Row, err)
	}

	newQty, err := s.products.AdjustQuantity(ctx, tx, storeID, product.ProductID, d.DeltaQuantity)
	if errors.Is(err, domain.ErrInsufficientStock) {
		result.Conflicts = append(result.Conflicts, domain.RowResult{
			Row:       d.Row,
			ProductID: product.ProductID.String(),
			SKU:       product.SKU,
			Delta:     d.DeltaQuantity,
			Reason:    domain.ConflictInsufficientStock,
			Message:   fmt.Sprintf("delta %d would drive quantity %d below zero", d.DeltaQuantity, product.Quantity),
		})
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to adjust row %d: %w", d.Row, err)
	}

	result.Applied = append(result.Applied, domain.RowResult{
		Row:         d.Row,
		ProductID:   product.ProductID.String(),
		SKU:         product.SKU,
		Delta:       d.DeltaQuantity,
		NewQuantity: newQty,
	})
	return nil
}

// GetBatch retrieves one import batch by ID
func (s *ImportService) GetBatch(ctx context.Context, storeID string, batchID uuid.UUID) (*domain.ImportBatch, error) {
	batch, err := s.batches.FindByID(ctx, storeID, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get import batch: %w", err)
	}
	if batch == nil {
		return nil, fmt.Errorf("import batch not found: %s", batchID)
	}
	return batch, nil
}

// ListBatches retrieves the most recent batches for a store
func (s *ImportService) ListBatches(ctx context.Context, storeID string, limit int) ([]domain.ImportBatch, error) {
	if limit <= 0 {
		limit = 20
	}
	batches, err := s.batches.ListRecent(ctx, storeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list import batches: %w", err)
	}
	return batches, nil
}

// contentHash fingerprints the uploaded file so a reused key can be
// distinguished from a retried one.
func contentHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
