// internal/core/domain/batch.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// BatchStatus represents the lifecycle of an import batch
type BatchStatus string

const (
	BatchPending   BatchStatus = "pending"
	BatchCompleted BatchStatus = "completed"
)

// RowResult describes the outcome of one delta row. Applied rows carry
// the resulting quantity; conflict rows carry a reason and message.
type RowResult struct {
	Row         int            `json:"row"`
	ProductID   string         `json:"product_id,omitempty"`
	SKU         string         `json:"sku,omitempty"`
	Delta       int            `json:"delta"`
	NewQuantity int            `json:"new_quantity,omitempty"`
	Reason      ConflictReason `json:"reason,omitempty"`
	Message     string         `json:"message,omitempty"`
}

// ImportResult is what a submission returns: the ordered applied rows
// and the ordered conflicts. One conflicting row never invalidates the
// rest of the batch.
type ImportResult struct {
	Applied   []RowResult `json:"applied"`
	Conflicts []RowResult `json:"conflicts"`
}

// AppliedCount returns len(Applied), tolerating a nil receiver
func (r *ImportResult) AppliedCount() int {
	if r == nil {
		return 0
	}
	return len(r.Applied)
}

// ConflictCount returns len(Conflicts), tolerating a nil receiver
func (r *ImportResult) ConflictCount() int {
	if r == nil {
		return 0
	}
	return len(r.Conflicts)
}

// ImportBatch is the persistent record of one submission. The pair
// (StoreID, IdempotencyKey) is unique: resubmitting the same key with
// the same content hash replays the stored result instead of mutating
// stock again.
type ImportBatch struct {
	BatchID        uuid.UUID     `json:"batch_id"`
	StoreID        string        `json:"store_id"`
	IdempotencyKey string        `json:"idempotency_key"`
	ContentHash    string        `json:"content_hash"`
	FileName       string        `json:"file_name,omitempty"`
	Status         BatchStatus   `json:"status"`
	AppliedCount   int           `json:"applied_count"`
	ConflictCount  int           `json:"conflict_count"`
	Result         *ImportResult `json:"result,omitempty"`
	ArchiveKey     string        `json:"archive_key,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
}

// PrepareForStorage fills identity and timestamps before persistence
func (b *ImportBatch) PrepareForStorage() {
	if b.BatchID == uuid.Nil {
		b.BatchID = uuid.New()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	if b.Status == "" {
		b.Status = BatchPending
	}
}

// Complete marks the batch finished and records the result counts
func (b *ImportBatch) Complete(result *ImportResult) {
	now := time.Now()
	b.Status = BatchCompleted
	b.Result = result
	b.AppliedCount = result.AppliedCount()
	b.ConflictCount = result.ConflictCount()
	b.CompletedAt = &now
}
