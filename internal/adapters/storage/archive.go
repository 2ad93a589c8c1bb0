// internal/adapters/storage/archive.go
package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ArchiveStore keeps the raw CSV payload of every applied import batch
// for audit and replay debugging. Objects are keyed by store and batch
// so retention jobs can prune per store.
type ArchiveStore struct {
	storage StorageClient
	logger  *slog.Logger
}

// NewArchiveStore creates a new archive store
func NewArchiveStore(storage StorageClient, logger *slog.Logger) *ArchiveStore {
	return &ArchiveStore{
		storage: storage,
		logger:  logger.With(slog.String("component", "archive")),
	}
}

// ArchiveKey builds the object key for a batch payload
func ArchiveKey(storeID string, batchID uuid.UUID) string {
	return fmt.Sprintf("imports/%s/%s.csv", storeID, batchID)
}

// Put archives a batch payload and returns its object key
func (a *ArchiveStore) Put(ctx context.Context, storeID string, batchID uuid.UUID, payload []byte) (string, error) {
	key := ArchiveKey(storeID, batchID)

	if _, err := a.storage.Upload(ctx, key, bytes.NewReader(payload), "text/csv"); err != nil {
		return "", fmt.Errorf("failed to archive import payload: %w", err)
	}

	a.logger.InfoContext(ctx, "import payload archived",
		slog.String("key", key),
		slog.Int("size", len(payload)))

	return key, nil
}

// Get retrieves an archived batch payload
func (a *ArchiveStore) Get(ctx context.Context, storeID string, batchID uuid.UUID) ([]byte, error) {
	return a.storage.Download(ctx, ArchiveKey(storeID, batchID))
}

// PresignedURL returns a short-lived download link for an archived payload
func (a *ArchiveStore) PresignedURL(ctx context.Context, key string, duration time.Duration) (string, error) {
	return a.storage.GetPresignedURL(ctx, key, duration)
}

// PurgeStore removes every archived payload for a store
func (a *ArchiveStore) PurgeStore(ctx context.Context, storeID string) (int, error) {
	keys, err := a.storage.List(ctx, fmt.Sprintf("imports/%s/", storeID))
	if err != nil {
		return 0, fmt.Errorf("failed to list archived payloads: %w", err)
	}

	for _, key := range keys {
		if err := a.storage.Delete(ctx, key); err != nil {
			return 0, fmt.Errorf("failed to delete %s: %w", key, err)
		}
	}

	return len(keys), nil
}
