package domain_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piaxis/inventory-sync/internal/core/domain"
)

func TestParseDeltaCSV(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		wantDeltas    int
		wantRowErrors int
		wantError     bool
	}{
		{
			name: "valid_rows_parse_cleanly",
			input: "product_id,sku,barcode,delta_quantity,store_location_id,reason,occurred_at,external_ref\n" +
				",SKU-1,,10,,restock,2026-01-30T10:00:00Z,PO-1\n" +
				",SKU-1,,-3,,sale,2026-01-30T12:00:00Z,SALE-1\n",
			wantDeltas: 2,
		},
		{
			name:      "empty_input_fails_on_missing_header",
			input:     "",
			wantError: true,
		},
		{
			name:      "wrong_header_rejected",
			input:     "sku,quantity\nSKU-1,10\n",
			wantError: true,
		},
		{
			name: "unknown_extra_columns_ignored",
			input: "product_id,sku,barcode,delta_quantity,store_location_id,reason,occurred_at,external_ref,comment\n" +
				",SKU-1,,5,,restock,2026-01-30T10:00:00Z,PO-1,ignore me\n",
			wantDeltas: 1,
		},
		{
			name: "malformed_row_does_not_abort_remaining_rows",
			input: "product_id,sku,barcode,delta_quantity,store_location_id,reason,occurred_at,external_ref\n" +
				",SKU-1,,not-a-number,,sale,,X-1\n" +
				",SKU-2,,4,,restock,,X-2\n",
			wantDeltas:    1,
			wantRowErrors: 1,
		},
		{
			name: "row_without_any_identifier_is_a_row_error",
			input: "product_id,sku,barcode,delta_quantity,store_location_id,reason,occurred_at,external_ref\n" +
				",,,7,,restock,,X-1\n",
			wantRowErrors: 1,
		},
		{
			name: "missing_delta_quantity_is_a_row_error",
			input: "product_id,sku,barcode,delta_quantity,store_location_id,reason,occurred_at,external_ref\n" +
				",SKU-1,,,,sale,,X-1\n",
			wantRowErrors: 1,
		},
		{
			name: "invalid_occurred_at_is_a_row_error",
			input: "product_id,sku,barcode,delta_quantity,store_location_id,reason,occurred_at,external_ref\n" +
				",SKU-1,,3,,restock,yesterday,X-1\n",
			wantRowErrors: 1,
		},
		{
			name: "zero_delta_is_permitted",
			input: "product_id,sku,barcode,delta_quantity,store_location_id,reason,occurred_at,external_ref\n" +
				",SKU-1,,0,,adjustment,,X-1\n",
			wantDeltas: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deltas, rowErrs, err := domain.ParseDeltaCSV(strings.NewReader(tt.input))

			if tt.wantError {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Len(t, deltas, tt.wantDeltas)
			assert.Len(t, rowErrs, tt.wantRowErrors)
		})
	}
}

func TestParseDeltaCSV_RowNumbersAndFields(t *testing.T) {
	input := "product_id,sku,barcode,delta_quantity,store_location_id,reason,occurred_at,external_ref\n" +
		",SKU-1,,10,LOC-2,restock,2026-01-30T10:00:00Z,PO-1\n" +
		",,BAR-9,-2,,sale,,SALE-1\n"

	deltas, rowErrs, err := domain.ParseDeltaCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Empty(t, rowErrs)
	require.Len(t, deltas, 2)

	assert.Equal(t, 1, deltas[0].Row)
	assert.Equal(t, "SKU-1", deltas[0].SKU)
	assert.Equal(t, 10, deltas[0].DeltaQuantity)
	assert.Equal(t, "LOC-2", deltas[0].StoreLocationID)
	assert.Equal(t, "PO-1", deltas[0].ExternalRef)
	assert.False(t, deltas[0].OccurredAt.IsZero())

	assert.Equal(t, 2, deltas[1].Row)
	assert.Equal(t, "BAR-9", deltas[1].Barcode)
	assert.Equal(t, -2, deltas[1].DeltaQuantity)
	assert.True(t, deltas[1].OccurredAt.IsZero())
}

func TestTemplateCSV_RoundTrip(t *testing.T) {
	deltas, rowErrs, err := domain.ParseDeltaCSV(bytes.NewReader(domain.TemplateCSV()))

	require.NoError(t, err)
	require.Empty(t, rowErrs)
	require.Len(t, deltas, 3)

	assert.Equal(t, 10, deltas[0].DeltaQuantity)
	assert.Equal(t, "restock", deltas[0].Reason)
	assert.Equal(t, -2, deltas[1].DeltaQuantity)
	assert.Equal(t, "sale", deltas[1].Reason)
	assert.Equal(t, -1, deltas[2].DeltaQuantity)
	assert.Equal(t, "adjustment", deltas[2].Reason)
}

func TestInventoryDelta_Validate(t *testing.T) {
	tests := []struct {
		name      string
		delta     domain.InventoryDelta
		wantError bool
	}{
		{
			name:  "sku_alone_is_sufficient",
			delta: domain.InventoryDelta{SKU: "SKU-1", DeltaQuantity: 1},
		},
		{
			name:  "barcode_alone_is_sufficient",
			delta: domain.InventoryDelta{Barcode: "123", DeltaQuantity: -1},
		},
		{
			name:      "no_identifier_fails",
			delta:     domain.InventoryDelta{DeltaQuantity: 5},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.delta.Validate()
			if tt.wantError {
				assert.ErrorIs(t, err, domain.ErrMissingIdentifier)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDeltaRef_String(t *testing.T) {
	assert.Equal(t, "product_id=p1", domain.DeltaRef{ProductID: "p1", SKU: "s"}.String())
	assert.Equal(t, "sku=s1", domain.DeltaRef{SKU: "s1", Barcode: "b"}.String())
	assert.Equal(t, "barcode=b1", domain.DeltaRef{Barcode: "b1"}.String())
	assert.Equal(t, "unidentified", domain.DeltaRef{}.String())
}
