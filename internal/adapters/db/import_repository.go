// internal/adapters/db/import_repository.go
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/piaxis/inventory-sync/internal/core/domain"
	"github.com/piaxis/inventory-sync/internal/core/ports"
)

// importRepository implements ports.ImportRepository
type importRepository struct {
	db     *Database
	logger *slog.Logger
}

// NewImportRepository creates a new import batch repository
func NewImportRepository(db *Database, logger *slog.Logger) ports.ImportRepository {
	return &importRepository{
		db:     db,
		logger: logger.With(slog.String("repository", "import")),
	}
}

const batchColumns = `
	batch_id, store_id, idempotency_key, content_hash, file_name,
	status, applied_count, conflict_count, result, archive_key,
	created_at, completed_at`

// FindByKey retrieves the batch recorded for an idempotency key
func (r *importRepository) FindByKey(ctx context.Context, storeID, key string) (*domain.ImportBatch, error) {
	query := `
		SELECT ` + batchColumns + `
		FROM import_batches
		WHERE store_id = $1 AND idempotency_key = $2`

	batch, err := scanBatch(r.db.QueryRow(ctx, query, storeID, key))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find batch by key: %w", err)
	}

	return batch, nil
}

// FindByID retrieves an import batch by ID
func (r *importRepository) FindByID(ctx context.Context, storeID string, batchID uuid.UUID) (*domain.ImportBatch, error) {
	query := `
		SELECT ` + batchColumns + `
		FROM import_batches
		WHERE store_id = $1 AND batch_id = $2`

	batch, err := scanBatch(r.db.QueryRow(ctx, query, storeID, batchID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find batch: %w", err)
	}

	return batch, nil
}

// ListRecent retrieves the most recently created batches for a store
func (r *importRepository) ListRecent(ctx context.Context, storeID string, limit int) ([]domain.ImportBatch, error) {
	query := `
		SELECT ` + batchColumns + `
		FROM import_batches
		WHERE store_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, storeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer rows.Close()

	var batches []domain.ImportBatch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, *batch)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return batches, nil
}

// RecordBatch persists a completed batch within the caller's transaction
func (r *importRepository) RecordBatch(ctx context.Context, tx pgx.Tx, batch *domain.ImportBatch) error {
	query := `
		INSERT INTO import_batches (
			batch_id, store_id, idempotency_key, content_hash, file_name,
			status, applied_count, conflict_count, result, archive_key,
			created_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)`

	resultJSON, err := json.Marshal(batch.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal batch result: %w", err)
	}

	_, err = tx.Exec(ctx, query,
		batch.BatchID, batch.StoreID, batch.IdempotencyKey, batch.ContentHash,
		nullIfEmpty(batch.FileName), batch.Status, batch.AppliedCount,
		batch.ConflictCount, resultJSON, nullIfEmpty(batch.ArchiveKey),
		batch.CreatedAt, batch.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record batch: %w", err)
	}

	r.logger.DebugContext(ctx, "import batch recorded",
		slog.String("batch_id", batch.BatchID.String()),
		slog.String("store_id", batch.StoreID))

	return nil
}

// SetArchiveKey stamps the archive object key on a batch
func (r *importRepository) SetArchiveKey(ctx context.Context, batchID uuid.UUID, archiveKey string) error {
	query := `UPDATE import_batches SET archive_key = $2 WHERE batch_id = $1`

	tag, err := r.db.Exec(ctx, query, batchID, archiveKey)
	if err != nil {
		return fmt.Errorf("failed to set archive key: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("import batch not found: %s", batchID)
	}

	return nil
}

// PurgeExpired removes batches older than the retention window
func (r *importRepository) PurgeExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `DELETE FROM import_batches WHERE created_at < $1`

	cutoff := time.Now().Add(-olderThan)
	tag, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge batches: %w", err)
	}

	purged := tag.RowsAffected()
	if purged > 0 {
		r.logger.InfoContext(ctx, "purged expired import batches",
			slog.Int64("count", purged),
			slog.Time("cutoff", cutoff))
	}

	return purged, nil
}

// scanBatch scans a single batch row, handling nullable columns
func scanBatch(row pgx.Row) (*domain.ImportBatch, error) {
	batch := &domain.ImportBatch{}
	var fileName, archiveKey sql.NullString
	var resultJSON []byte
	var completedAt sql.NullTime

	err := row.Scan(
		&batch.BatchID, &batch.StoreID, &batch.IdempotencyKey, &batch.ContentHash,
		&fileName, &batch.Status, &batch.AppliedCount, &batch.ConflictCount,
		&resultJSON, &archiveKey, &batch.CreatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	batch.FileName = fileName.String
	batch.ArchiveKey = archiveKey.String
	if completedAt.Valid {
		batch.CompletedAt = &completedAt.Time
	}

	if len(resultJSON) > 0 {
		result := &domain.ImportResult{}
		if err := json.Unmarshal(resultJSON, result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal batch result: %w", err)
		}
		batch.Result = result
	}

	return batch, nil
}
