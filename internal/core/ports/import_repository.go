// internal/core/ports/import_repository.go
package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/piaxis/inventory-sync/internal/core/domain"
)

// ImportRepository defines the persistence port for import batches.
type ImportRepository interface {
	// FindByKey returns the batch previously recorded for (storeID, key),
	// or nil when the key has never been used.
	FindByKey(ctx context.Context, storeID, key string) (*domain.ImportBatch, error)
	FindByID(ctx context.Context, storeID string, batchID uuid.UUID) (*domain.ImportBatch, error)
	ListRecent(ctx context.Context, storeID string, limit int) ([]domain.ImportBatch, error)

	// RecordBatch persists a completed batch inside the same transaction
	// that applied its deltas, so the idempotency record and the quantity
	// changes commit or roll back together.
	RecordBatch(ctx context.Context, tx pgx.Tx, batch *domain.ImportBatch) error

	// SetArchiveKey stamps the object key after the CSV payload has been
	// archived by the background worker.
	SetArchiveKey(ctx context.Context, batchID uuid.UUID, archiveKey string) error

	// PurgeExpired deletes batches older than the retention window and
	// returns how many were removed.
	PurgeExpired(ctx context.Context, olderThan time.Duration) (int64, error)
}
