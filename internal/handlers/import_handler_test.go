// internal/handlers/import_handler_test.go
package handlers_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/piaxis/inventory-sync/internal/core/domain"
	"github.com/piaxis/inventory-sync/internal/core/ports"
	"github.com/piaxis/inventory-sync/internal/handlers"
	"github.com/piaxis/inventory-sync/test/helpers"
	"github.com/piaxis/inventory-sync/test/mocks"
)

const validCSV = "product_id,sku,barcode,delta_quantity,store_location_id,reason,occurred_at,external_ref\n" +
	",SKU-1,,5,,restock,,PO-1\n" +
	",SKU-2,,-2,,sale,,SALE-9\n"

func newImportRequest(t *testing.T, storeID, key, csv string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "deltas.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(csv))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/stores/"+storeID+"/inventory/import", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if key != "" {
		req.Header.Set(handlers.IdempotencyKeyHeader, key)
	}
	req.SetPathValue("storeID", storeID)
	return req
}

func completedBatch(storeID, key string) *domain.ImportBatch {
	batch := &domain.ImportBatch{
		BatchID:        uuid.New(),
		StoreID:        storeID,
		IdempotencyKey: key,
	}
	batch.PrepareForStorage()
	batch.Complete(&domain.ImportResult{
		Applied: []domain.RowResult{
			{Row: 1, SKU: "SKU-1", Delta: 5, NewQuantity: 15},
			{Row: 2, SKU: "SKU-2", Delta: -2, NewQuantity: 8},
		},
	})
	return batch
}

func TestImportHandler_ImportCSV(t *testing.T) {
	tests := []struct {
		name           string
		storeID        string
		key            string
		csv            string
		setupMocks     func(*mocks.ImportService)
		expectedStatus int
		validateBody   func(*testing.T, []byte)
	}{
		{
			name:    "applies_valid_file",
			storeID: "store-1",
			key:     "key-1",
			csv:     validCSV,
			setupMocks: func(m *mocks.ImportService) {
				m.On("Apply", mock.Anything, mock.MatchedBy(func(p ports.ApplyParams) bool {
					return p.StoreID == "store-1" &&
						p.IdempotencyKey == "key-1" &&
						len(p.Deltas) == 2 &&
						len(p.ParseErrors) == 0
				})).Return(&ports.ApplyOutcome{Batch: completedBatch("store-1", "key-1")}, nil)
			},
			expectedStatus: http.StatusOK,
			validateBody: func(t *testing.T, body []byte) {
				var resp map[string]any
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, false, resp["replayed"])
				assert.EqualValues(t, 2, resp["applied_count"])
				assert.EqualValues(t, 0, resp["conflict_count"])
			},
		},
		{
			name:    "replays_previous_result",
			storeID: "store-1",
			key:     "key-1",
			csv:     validCSV,
			setupMocks: func(m *mocks.ImportService) {
				m.On("Apply", mock.Anything, mock.Anything).
					Return(&ports.ApplyOutcome{Batch: completedBatch("store-1", "key-1"), Replayed: true}, nil)
			},
			expectedStatus: http.StatusOK,
			validateBody: func(t *testing.T, body []byte) {
				var resp map[string]any
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, true, resp["replayed"])
			},
		},
		{
			name:           "rejects_missing_idempotency_key",
			storeID:        "store-1",
			key:            "",
			csv:            validCSV,
			setupMocks:     func(m *mocks.ImportService) {},
			expectedStatus: http.StatusBadRequest,
			validateBody: func(t *testing.T, body []byte) {
				var resp map[string]string
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Contains(t, resp["error"], handlers.IdempotencyKeyHeader)
			},
		},
		{
			name:           "rejects_unexpected_header",
			storeID:        "store-1",
			key:            "key-1",
			csv:            "foo,bar\n1,2\n",
			setupMocks:     func(m *mocks.ImportService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:    "conflicting_key_reuse",
			storeID: "store-1",
			key:     "key-1",
			csv:     validCSV,
			setupMocks: func(m *mocks.ImportService) {
				m.On("Apply", mock.Anything, mock.Anything).
					Return(nil, domain.ErrIdempotencyKeyReuse)
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name:    "concurrent_import_in_progress",
			storeID: "store-1",
			key:     "key-1",
			csv:     validCSV,
			setupMocks: func(m *mocks.ImportService) {
				m.On("Apply", mock.Anything, mock.Anything).
					Return(nil, domain.ErrImportInProgress)
			},
			expectedStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(mocks.ImportService)
			tt.setupMocks(service)

			handler := handlers.NewImportHandler(service, nil, helpers.TestLogger(), 10<<20, 10000)

			req := newImportRequest(t, tt.storeID, tt.key, tt.csv)
			w := httptest.NewRecorder()

			handler.ImportCSV(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.validateBody != nil {
				tt.validateBody(t, w.Body.Bytes())
			}
			service.AssertExpectations(t)
		})
	}
}

func TestImportHandler_ImportCSV_RowLimit(t *testing.T) {
	service := new(mocks.ImportService)
	handler := handlers.NewImportHandler(service, nil, helpers.TestLogger(), 10<<20, 1)

	req := newImportRequest(t, "store-1", "key-1", validCSV)
	w := httptest.NewRecorder()

	handler.ImportCSV(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	service.AssertNotCalled(t, "Apply")
}

func TestImportHandler_Template(t *testing.T) {
	handler := handlers.NewImportHandler(new(mocks.ImportService), nil, helpers.TestLogger(), 10<<20, 10000)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/inventory/import/template", nil)
	w := httptest.NewRecorder()

	handler.Template(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")

	// The served template must parse cleanly through the same parser
	deltas, rowErrs, err := domain.ParseDeltaCSV(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
	assert.Len(t, deltas, 3)
}

func TestImportHandler_BatchStatus(t *testing.T) {
	batch := completedBatch("store-1", "key-1")

	tests := []struct {
		name           string
		batchID        string
		setupMocks     func(*mocks.ImportService)
		expectedStatus int
	}{
		{
			name:    "returns_batch",
			batchID: batch.BatchID.String(),
			setupMocks: func(m *mocks.ImportService) {
				m.On("GetBatch", mock.Anything, "store-1", batch.BatchID).Return(batch, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "invalid_batch_id",
			batchID:        "not-a-uuid",
			setupMocks:     func(m *mocks.ImportService) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(mocks.ImportService)
			tt.setupMocks(service)

			handler := handlers.NewImportHandler(service, nil, helpers.TestLogger(), 10<<20, 10000)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/stores/store-1/inventory/import/"+tt.batchID, nil)
			req.SetPathValue("storeID", "store-1")
			req.SetPathValue("batchID", tt.batchID)
			w := httptest.NewRecorder()

			handler.BatchStatus(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			service.AssertExpectations(t)
		})
	}
}
