// internal/handlers/export.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tealeg/xlsx/v3"

	redis_a "github.com/piaxis/inventory-sync/internal/adapters/redis_adapter"
	"github.com/piaxis/inventory-sync/internal/core/ports"
)

// ExportParams defines parameters for export operations
type ExportParams struct {
	StoreID        string     `json:"store_id"`
	Columns        []string   `json:"columns"`
	IncludeDeleted bool       `json:"include_deleted"`
	DateFrom       *time.Time `json:"date_from"`
	DateTo         *time.Time `json:"date_to"`
	Format         string     `json:"format"`
}

// StockExportRow is one product row in a stock export
type StockExportRow struct {
	ProductID   string     `db:"product_id"`
	StoreID     string     `db:"store_id"`
	SKU         string     `db:"sku"`
	Barcode     *string    `db:"barcode"`
	Name        string     `db:"name"`
	Description *string    `db:"description"`
	UnitPrice   *float64   `db:"unit_price"`
	Quantity    int        `db:"quantity"`
	LocationID  *string    `db:"location_id"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
	DeletedAt   *time.Time `db:"deleted_at"`
}

// JSONExportResponse represents the JSON export response structure
type JSONExportResponse struct {
	Products []map[string]any `json:"products"`
	Metadata ExportMetadata   `json:"metadata"`
}

// ExportMetadata contains metadata about the export
type ExportMetadata struct {
	StoreID        string    `json:"store_id"`
	ExportDate     time.Time `json:"export_date"`
	TotalProducts  int       `json:"total_products"`
	IncludeDeleted bool      `json:"include_deleted"`
	Columns        []string  `json:"columns"`
}

// ExportHandler handles export operations
type ExportHandler struct {
	db     ports.Database
	cache  ports.CacheRepository
	logger *slog.Logger
}

// NewExportHandler creates a new export handler
func NewExportHandler(db ports.Database, cache ports.CacheRepository, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{
		db:     db,
		cache:  cache,
		logger: logger.With(slog.String("handler", "export")),
	}
}

// ExportExcel handles GET /api/v1/stores/{storeID}/inventory/export/excel
func (h *ExportHandler) ExportExcel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	params := h.parseExportParams(r)

	h.logger.InfoContext(ctx, "starting Excel export",
		slog.String("store_id", params.StoreID))

	data, err := h.getStockData(ctx, params)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to retrieve stock data", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to retrieve data")
		return
	}

	excelData, err := h.generateExcelFile(data, params)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate Excel file", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to generate Excel file")
		return
	}

	filename := fmt.Sprintf("stock_export_%s_%s.xlsx", params.StoreID, time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(excelData)))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

	if _, err := w.Write(excelData); err != nil {
		h.logger.ErrorContext(ctx, "failed to write Excel response", err)
		return
	}

	h.logger.InfoContext(ctx, "Excel export completed",
		slog.Int("total_rows", len(data)),
		slog.String("filename", filename))
}

// ExportJSON handles GET /api/v1/stores/{storeID}/inventory/export/json
func (h *ExportHandler) ExportJSON(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	params := h.parseExportParams(r)

	h.logger.InfoContext(ctx, "starting JSON export",
		slog.String("store_id", params.StoreID))

	// Check cache first
	cacheKey := redis_a.BuildKey(redis_a.PrefixExport, "json", params.StoreID, h.getCacheKeyFromParams(params))
	var cachedData []byte
	if err := h.cache.Get(ctx, cacheKey, &cachedData); err == nil {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache", "HIT")
		w.Header().Set("Content-Length", strconv.Itoa(len(cachedData)))

		if _, err := w.Write(cachedData); err != nil {
			h.logger.ErrorContext(ctx, "failed to write cached JSON response", err)
			return
		}

		h.logger.InfoContext(ctx, "JSON export served from cache")
		return
	}

	data, err := h.getStockData(ctx, params)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to retrieve stock data", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to retrieve data")
		return
	}

	jsonData := make([]map[string]any, 0, len(data))
	for _, row := range data {
		jsonData = append(jsonData, h.rowToJSONMap(&row, params.Columns))
	}

	response := JSONExportResponse{
		Products: jsonData,
		Metadata: ExportMetadata{
			StoreID:        params.StoreID,
			ExportDate:     time.Now(),
			TotalProducts:  len(jsonData),
			IncludeDeleted: params.IncludeDeleted,
			Columns:        params.Columns,
		},
	}

	responseData, err := json.Marshal(response)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to marshal JSON response", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to generate JSON")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", "MISS")
	w.Header().Set("Content-Length", strconv.Itoa(len(responseData)))

	if _, err := w.Write(responseData); err != nil {
		h.logger.ErrorContext(ctx, "failed to write JSON response", err)
		return
	}

	// Cache the result (async)
	go func() {
		cacheCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := h.cache.SetWithTTL(cacheCtx, cacheKey, responseData, 5*time.Minute); err != nil {
			h.logger.WarnContext(cacheCtx, "failed to cache JSON response", err)
		}
	}()

	h.logger.InfoContext(ctx, "JSON export completed",
		slog.Int("total_rows", len(data)))
}

// Helper methods

// parseExportParams parses and validates export parameters from the request
func (h *ExportHandler) parseExportParams(r *http.Request) *ExportParams {
	params := &ExportParams{
		StoreID: r.PathValue("storeID"),
		Columns: []string{"all"},
	}

	if cols := r.URL.Query().Get("columns"); cols != "" {
		params.Columns = strings.Split(strings.TrimSpace(cols), ",")
		for i, col := range params.Columns {
			params.Columns[i] = strings.TrimSpace(col)
		}
	}

	params.IncludeDeleted = r.URL.Query().Get("include_deleted") == "true"

	if from := r.URL.Query().Get("date_from"); from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil {
			params.DateFrom = &t
		}
	}

	if to := r.URL.Query().Get("date_to"); to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil {
			params.DateTo = &t
		}
	}

	params.Format = r.URL.Query().Get("format")
	if params.Format == "" {
		params.Format = "xlsx"
	}

	return params
}

// getStockData retrieves product rows for the export
func (h *ExportHandler) getStockData(ctx context.Context, params *ExportParams) ([]StockExportRow, error) {
	query, args := buildExportQuery(params)

	rows, err := h.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock data: %w", err)
	}
	defer rows.Close()

	var data []StockExportRow
	for rows.Next() {
		var row StockExportRow
		err := rows.Scan(
			&row.ProductID, &row.StoreID, &row.SKU, &row.Barcode,
			&row.Name, &row.Description, &row.UnitPrice, &row.Quantity,
			&row.LocationID, &row.CreatedAt, &row.UpdatedAt, &row.DeletedAt,
		)
		if err != nil {
			h.logger.WarnContext(ctx, "failed to scan stock row", err)
			continue
		}
		data = append(data, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stock rows: %w", err)
	}

	return data, nil
}

// buildExportQuery constructs the SQL query based on export parameters
func buildExportQuery(params *ExportParams) (string, []any) {
	query := `
		SELECT product_id::text, store_id, sku, barcode, name, description,
		       unit_price::float8, quantity, location_id,
		       created_at, updated_at, deleted_at
		FROM products
		WHERE store_id = $1`
	args := []any{params.StoreID}

	if params.DateFrom != nil {
		args = append(args, *params.DateFrom)
		query += fmt.Sprintf(" AND updated_at >= $%d", len(args))
	}
	if params.DateTo != nil {
		args = append(args, *params.DateTo)
		query += fmt.Sprintf(" AND updated_at <= $%d", len(args))
	}
	if !params.IncludeDeleted {
		query += " AND deleted_at IS NULL"
	}

	query += " ORDER BY sku ASC"
	return query, args
}

// generateExcelFile creates an Excel file in memory from the data
func (h *ExportHandler) generateExcelFile(data []StockExportRow, params *ExportParams) ([]byte, error) {
	file := xlsx.NewFile()

	sheet, err := file.AddSheet("Stock")
	if err != nil {
		return nil, fmt.Errorf("failed to add worksheet: %w", err)
	}

	headers := h.getExcelHeaders(params.Columns)
	headerRow := sheet.AddRow()
	for _, header := range headers {
		cell := headerRow.AddCell()
		cell.Value = header
		cell.GetStyle().Font.Bold = true
		cell.GetStyle().Fill.PatternType = "solid"
		cell.GetStyle().Fill.FgColor = "CCCCCC"
	}

	for _, row := range data {
		dataRow := sheet.AddRow()
		for _, value := range h.rowToExcelValues(&row) {
			cell := dataRow.AddCell()
			cell.Value = value
		}
	}

	for i := 0; i < len(headers); i++ {
		sheet.SetColWidth(i, i, 15)
	}

	var buffer bytes.Buffer
	if err := file.Write(&buffer); err != nil {
		return nil, fmt.Errorf("failed to write Excel file to buffer: %w", err)
	}

	return buffer.Bytes(), nil
}

// getExcelHeaders returns the appropriate headers based on requested columns
func (h *ExportHandler) getExcelHeaders(columns []string) []string {
	allHeaders := []string{
		"Product ID", "Store ID", "SKU", "Barcode", "Name", "Description",
		"Unit Price", "Quantity", "Location", "Created At", "Updated At",
	}

	if len(columns) == 1 && columns[0] == "all" {
		return allHeaders
	}

	headerMap := map[string]string{
		"product_id":  "Product ID",
		"store_id":    "Store ID",
		"sku":         "SKU",
		"barcode":     "Barcode",
		"name":        "Name",
		"description": "Description",
		"unit_price":  "Unit Price",
		"quantity":    "Quantity",
		"location_id": "Location",
		"created_at":  "Created At",
		"updated_at":  "Updated At",
	}

	var selectedHeaders []string
	for _, col := range columns {
		if header, exists := headerMap[col]; exists {
			selectedHeaders = append(selectedHeaders, header)
		}
	}

	if len(selectedHeaders) == 0 {
		return allHeaders
	}

	return selectedHeaders
}

// rowToExcelValues converts a stock row to Excel cell values
func (h *ExportHandler) rowToExcelValues(row *StockExportRow) []string {
	return []string{
		row.ProductID,
		row.StoreID,
		row.SKU,
		h.safeStringValue(row.Barcode),
		row.Name,
		h.safeStringValue(row.Description),
		h.safeFloatValue(row.UnitPrice),
		strconv.Itoa(row.Quantity),
		h.safeStringValue(row.LocationID),
		row.CreatedAt.Format("2006-01-02 15:04:05"),
		row.UpdatedAt.Format("2006-01-02 15:04:05"),
	}
}

// rowToJSONMap converts a stock row to a JSON-friendly map
func (h *ExportHandler) rowToJSONMap(row *StockExportRow, columns []string) map[string]any {
	result := map[string]any{
		"product_id":  row.ProductID,
		"store_id":    row.StoreID,
		"sku":         row.SKU,
		"barcode":     row.Barcode,
		"name":        row.Name,
		"description": row.Description,
		"unit_price":  row.UnitPrice,
		"quantity":    row.Quantity,
		"location_id": row.LocationID,
		"created_at":  row.CreatedAt,
		"updated_at":  row.UpdatedAt,
	}

	if len(columns) > 0 && !(len(columns) == 1 && columns[0] == "all") {
		filtered := make(map[string]any)
		for _, col := range columns {
			if value, exists := result[col]; exists {
				filtered[col] = value
			}
		}
		return filtered
	}

	return result
}

// Utility methods for safe value conversion

func (h *ExportHandler) safeStringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func (h *ExportHandler) safeFloatValue(value *float64) string {
	if value == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *value)
}

func (h *ExportHandler) getCacheKeyFromParams(params *ExportParams) string {
	key := fmt.Sprintf("cols_%s_del_%t", strings.Join(params.Columns, ","), params.IncludeDeleted)
	if params.DateFrom != nil {
		key += fmt.Sprintf("_from_%s", params.DateFrom.Format("20060102"))
	}
	if params.DateTo != nil {
		key += fmt.Sprintf("_to_%s", params.DateTo.Format("20060102"))
	}
	return key
}

func (h *ExportHandler) respondError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
