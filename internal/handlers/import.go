// internal/handlers/import.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/piaxis/inventory-sync/internal/core/domain"
	"github.com/piaxis/inventory-sync/internal/core/ports"
	"github.com/piaxis/inventory-sync/internal/workers"
)

// IdempotencyKeyHeader carries the client-chosen key that makes a
// submission safe to retry.
const IdempotencyKeyHeader = "X-Idempotency-Key"

// ImportHandler handles delta import operations
type ImportHandler struct {
	service     ports.ImportService
	asynqClient *asynq.Client
	logger      *slog.Logger
	maxFileSize int64
	maxRows     int
}

// NewImportHandler creates a new import handler
func NewImportHandler(service ports.ImportService, asynqClient *asynq.Client, logger *slog.Logger, maxFileSize int64, maxRows int) *ImportHandler {
	return &ImportHandler{
		service:     service,
		asynqClient: asynqClient,
		logger:      logger.With(slog.String("handler", "import")),
		maxFileSize: maxFileSize,
		maxRows:     maxRows,
	}
}

// ImportCSV handles POST /api/v1/stores/{storeID}/inventory/import
func (h *ImportHandler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	storeID := r.PathValue("storeID")

	key := r.Header.Get(IdempotencyKeyHeader)
	if key == "" {
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("%s header is required", IdempotencyKeyHeader))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize)
	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.respondError(w, http.StatusRequestEntityTooLarge, "File exceeds the maximum allowed size")
			return
		}
		h.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "File is required")
		return
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to read upload", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to read upload")
		return
	}

	deltas, parseErrs, err := domain.ParseDeltaCSV(bytes.NewReader(payload))
	if err != nil {
		// Header-level failures reject the whole file
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if len(deltas)+len(parseErrs) > h.maxRows {
		h.respondError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("File exceeds the maximum of %d rows", h.maxRows))
		return
	}

	outcome, err := h.service.Apply(ctx, ports.ApplyParams{
		StoreID:        storeID,
		IdempotencyKey: key,
		FileName:       header.Filename,
		Payload:        payload,
		Deltas:         deltas,
		ParseErrors:    parseErrs,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrIdempotencyKeyReuse):
			h.respondError(w, http.StatusConflict, err.Error())
		case errors.Is(err, domain.ErrImportInProgress):
			h.respondError(w, http.StatusConflict, err.Error())
		default:
			h.logger.ErrorContext(ctx, "import failed",
				slog.String("store_id", storeID),
				slog.String("idempotency_key", key),
				err)
			h.respondError(w, http.StatusInternalServerError, "Failed to apply import")
		}
		return
	}

	batch := outcome.Batch

	if !outcome.Replayed {
		h.enqueueFollowups(ctx, batch, payload)
	}

	h.logger.InfoContext(ctx, "import processed",
		slog.String("store_id", storeID),
		slog.String("batch_id", batch.BatchID.String()),
		slog.Bool("replayed", outcome.Replayed),
		slog.Int("applied", batch.AppliedCount),
		slog.Int("conflicts", batch.ConflictCount))

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"batch_id":       batch.BatchID,
		"status":         batch.Status,
		"replayed":       outcome.Replayed,
		"applied_count":  batch.AppliedCount,
		"conflict_count": batch.ConflictCount,
		"result":         batch.Result,
	})
}

// BatchStatus handles GET /api/v1/stores/{storeID}/inventory/import/{batchID}
func (h *ImportHandler) BatchStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	storeID := r.PathValue("storeID")

	batchID, err := uuid.Parse(r.PathValue("batchID"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid batch ID")
		return
	}

	batch, err := h.service.GetBatch(ctx, storeID, batchID)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "Batch not found")
		return
	}

	h.respondJSON(w, http.StatusOK, batch)
}

// ListBatches handles GET /api/v1/stores/{storeID}/inventory/imports
func (h *ImportHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	storeID := r.PathValue("storeID")

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		limit, _ = strconv.Atoi(l)
	}

	batches, err := h.service.ListBatches(ctx, storeID, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list batches",
			slog.String("store_id", storeID),
			err)
		h.respondError(w, http.StatusInternalServerError, "Failed to list batches")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"store_id": storeID,
		"batches":  batches,
		"count":    len(batches),
	})
}

// Template handles GET /api/v1/inventory/import/template
func (h *ImportHandler) Template(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="inventory_deltas.csv"`)
	w.WriteHeader(http.StatusOK)
	w.Write(domain.TemplateCSV())
}

// enqueueFollowups schedules the archive upload and summary refresh.
// Failures are logged, never surfaced: the batch has already committed.
func (h *ImportHandler) enqueueFollowups(ctx context.Context, batch *domain.ImportBatch, payload []byte) {
	if h.asynqClient == nil {
		return
	}

	archive, err := json.Marshal(workers.ArchivePayload{
		BatchID:  batch.BatchID,
		StoreID:  batch.StoreID,
		FileName: batch.FileName,
		Content:  payload,
	})
	if err == nil {
		_, err = h.asynqClient.Enqueue(
			asynq.NewTask(workers.TypeArchivePayload, archive),
			asynq.Queue("default"),
			asynq.MaxRetry(3),
			asynq.Retention(24*time.Hour))
	}
	if err != nil {
		h.logger.WarnContext(ctx, "failed to enqueue archive task",
			slog.String("batch_id", batch.BatchID.String()),
			err)
	}

	summary, err := json.Marshal(workers.SummaryPayload{StoreID: batch.StoreID})
	if err == nil {
		_, err = h.asynqClient.Enqueue(
			asynq.NewTask(workers.TypeRefreshSummary, summary),
			asynq.Queue("default"))
	}
	if err != nil {
		h.logger.WarnContext(ctx, "failed to enqueue summary task",
			slog.String("store_id", batch.StoreID),
			err)
	}
}

func (h *ImportHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *ImportHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
