// internal/workers/archive_processor.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/piaxis/inventory-sync/internal/adapters/storage"
	"github.com/piaxis/inventory-sync/internal/core/ports"
)

const (
	TypeArchivePayload   = "import:archive"
	TypeRefreshSummary   = "summary:refresh"
	TypeCleanupOldData   = "cleanup:old_data"
	TypeCleanupTempFiles = "cleanup:temp_files"
)

// ArchivePayload represents the payload for archive tasks
type ArchivePayload struct {
	BatchID  uuid.UUID `json:"batch_id"`
	StoreID  string    `json:"store_id"`
	FileName string    `json:"file_name,omitempty"`
	Content  []byte    `json:"content"`
}

// ArchiveProcessor uploads accepted delta files to object storage so a
// batch can be audited after the fact.
type ArchiveProcessor struct {
	archive *storage.ArchiveStore
	batches ports.ImportRepository
	logger  *slog.Logger
}

// NewArchiveProcessor creates a new archive processor
func NewArchiveProcessor(archive *storage.ArchiveStore, batches ports.ImportRepository, logger *slog.Logger) *ArchiveProcessor {
	return &ArchiveProcessor{
		archive: archive,
		batches: batches,
		logger:  logger.With(slog.String("processor", "archive")),
	}
}

// ProcessArchive uploads the original file content and records the
// resulting storage key on the batch.
func (p *ArchiveProcessor) ProcessArchive(ctx context.Context, t *asynq.Task) error {
	var payload ArchivePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	p.logger.InfoContext(ctx, "archiving import payload",
		slog.String("batch_id", payload.BatchID.String()),
		slog.String("store_id", payload.StoreID))

	key, err := p.archive.Put(ctx, payload.StoreID, payload.BatchID, payload.Content)
	if err != nil {
		return fmt.Errorf("failed to archive payload for batch %s: %w", payload.BatchID, err)
	}

	if err := p.batches.SetArchiveKey(ctx, payload.BatchID, key); err != nil {
		return fmt.Errorf("failed to record archive key for batch %s: %w", payload.BatchID, err)
	}

	p.logger.InfoContext(ctx, "import payload archived",
		slog.String("batch_id", payload.BatchID.String()),
		slog.String("archive_key", key))

	return nil
}
