// internal/core/ports/import_service.go
package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/piaxis/inventory-sync/internal/core/domain"
)

// ApplyParams carries one delta batch into the application service.
type ApplyParams struct {
	StoreID        string
	IdempotencyKey string
	FileName       string
	// Raw CSV payload as uploaded, used for the content hash and the
	// background archive task.
	Payload []byte
	Deltas  []domain.InventoryDelta
	// Rows the parser rejected. They surface as conflicts without ever
	// touching the database.
	ParseErrors []*domain.RowError
}

// ApplyOutcome is what a single import attempt produced.
type ApplyOutcome struct {
	Batch *domain.ImportBatch
	// Replayed is true when the idempotency key had already been consumed
	// by an identical payload and the stored result was returned instead
	// of re-applying the deltas.
	Replayed bool
}

// ImportService defines the application service port for delta imports.
type ImportService interface {
	Apply(ctx context.Context, params ApplyParams) (*ApplyOutcome, error)
	GetBatch(ctx context.Context, storeID string, batchID uuid.UUID) (*domain.ImportBatch, error)
	ListBatches(ctx context.Context, storeID string, limit int) ([]domain.ImportBatch, error)
}
