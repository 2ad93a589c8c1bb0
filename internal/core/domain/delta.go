// internal/core/domain/delta.go
package domain

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ConflictReason classifies why a delta row could not be applied
type ConflictReason string

// Conflict reason constants
const (
	ConflictUnknownProduct    ConflictReason = "unknown_product"
	ConflictInsufficientStock ConflictReason = "insufficient_stock"
	ConflictMalformedRow      ConflictReason = "malformed_row"
)

// Sentinel errors for delta application
var (
	ErrUnknownProduct       = errors.New("no product matches product_id, sku, or barcode")
	ErrInsufficientStock    = errors.New("delta would drive quantity negative")
	ErrIdempotencyKeyReuse  = errors.New("idempotency key already used with different file content")
	ErrMissingHeader        = errors.New("csv header row is missing")
	ErrUnexpectedHeader     = errors.New("csv header does not match the delta schema")
	ErrMissingIdentifier    = errors.New("at least one of product_id, sku, or barcode is required")
	ErrImportInProgress     = errors.New("an import with this idempotency key is already in progress")
)

// DeltaColumns is the exact, ordered CSV schema for delta files.
// Consumers must ignore unknown extra columns, never reject them.
var DeltaColumns = []string{
	"product_id", "sku", "barcode", "delta_quantity",
	"store_location_id", "reason", "occurred_at", "external_ref",
}

// InventoryDelta is a single requested change to a product's on-hand
// quantity. It exists only within a submitted file and has no persistent
// identity of its own; the product record is the durable entity.
type InventoryDelta struct {
	Row             int       `json:"row"` // 1-based data row number, header excluded
	ProductID       string    `json:"product_id,omitempty"`
	SKU             string    `json:"sku,omitempty"`
	Barcode         string    `json:"barcode,omitempty"`
	DeltaQuantity   int       `json:"delta_quantity"`
	StoreLocationID string    `json:"store_location_id,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	OccurredAt      time.Time `json:"occurred_at,omitempty"`
	ExternalRef     string    `json:"external_ref,omitempty"`
}

// Validate checks the invariants a row must hold before application.
// DeltaQuantity of zero is permitted; it applies as a no-op.
func (d *InventoryDelta) Validate() error {
	if d.ProductID == "" && d.SKU == "" && d.Barcode == "" {
		return ErrMissingIdentifier
	}
	return nil
}

// RowError is a parse-time failure attached to a specific data row.
// A RowError never aborts parsing of the rest of the file.
type RowError struct {
	Row     int
	Message string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// ParseDeltaCSV reads a delta file. The first record must be the schema
// header; unknown extra columns are ignored. Malformed rows are returned
// as RowErrors alongside the rows that parsed cleanly.
func ParseDeltaCSV(r io.Reader) ([]InventoryDelta, []*RowError, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, ErrMissingHeader
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	index, err := mapHeader(header)
	if err != nil {
		return nil, nil, err
	}

	var (
		deltas   []InventoryDelta
		rowErrs  []*RowError
		rowCount int
	)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowCount++
		if err != nil {
			rowErrs = append(rowErrs, &RowError{Row: rowCount, Message: err.Error()})
			continue
		}

		delta, rerr := parseRecord(rowCount, record, index)
		if rerr != nil {
			rowErrs = append(rowErrs, rerr)
			continue
		}
		deltas = append(deltas, delta)
	}

	return deltas, rowErrs, nil
}

// mapHeader resolves known column names to their positions. All known
// columns must be present; anything else is ignored.
func mapHeader(header []string) (map[string]int, error) {
	index := make(map[string]int, len(DeltaColumns))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range DeltaColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrUnexpectedHeader, col)
		}
	}
	return index, nil
}

func parseRecord(row int, record []string, index map[string]int) (InventoryDelta, *RowError) {
	get := func(col string) string {
		i := index[col]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	delta := InventoryDelta{
		Row:             row,
		ProductID:       get("product_id"),
		SKU:             get("sku"),
		Barcode:         get("barcode"),
		StoreLocationID: get("store_location_id"),
		Reason:          get("reason"),
		ExternalRef:     get("external_ref"),
	}

	qty := get("delta_quantity")
	if qty == "" {
		return delta, &RowError{Row: row, Message: "delta_quantity is required"}
	}
	n, err := strconv.Atoi(qty)
	if err != nil {
		return delta, &RowError{Row: row, Message: fmt.Sprintf("invalid delta_quantity %q", qty)}
	}
	delta.DeltaQuantity = n

	if ts := get("occurred_at"); ts != "" {
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return delta, &RowError{Row: row, Message: fmt.Sprintf("invalid occurred_at %q", ts)}
		}
		delta.OccurredAt = t
	}

	if err := delta.Validate(); err != nil {
		return delta, &RowError{Row: row, Message: err.Error()}
	}

	return delta, nil
}

// TemplateCSV returns the downloadable schema template: the header plus
// one restock and two reduction example rows. The output must round-trip
// unmodified through ParseDeltaCSV.
func TemplateCSV() []byte {
	var b strings.Builder
	b.WriteString(strings.Join(DeltaColumns, ","))
	b.WriteString("\n")
	b.WriteString(",SKU-123,,10,,restock,2026-01-30T10:00:00Z,PO-001\n")
	b.WriteString(",SKU-123,,-2,,sale,2026-01-30T12:00:00Z,SALE-001\n")
	b.WriteString(",SKU-999,,-1,,adjustment,2026-01-30T18:30:00Z,SHRINK-001\n")
	return []byte(b.String())
}
