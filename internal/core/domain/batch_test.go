package domain_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piaxis/inventory-sync/internal/core/domain"
)

func TestProduct_Validate(t *testing.T) {
	valid := func(mutate func(*domain.Product)) *domain.Product {
		p := &domain.Product{
			StoreID:   "S1",
			SKU:       "SKU-1",
			Name:      "Widget",
			UnitPrice: decimal.NewFromFloat(9.99),
			Quantity:  5,
		}
		if mutate != nil {
			mutate(p)
		}
		return p
	}

	tests := []struct {
		name      string
		product   *domain.Product
		wantError string
	}{
		{name: "valid_product", product: valid(nil)},
		{
			name:      "missing_store_id",
			product:   valid(func(p *domain.Product) { p.StoreID = "" }),
			wantError: "store_id is required",
		},
		{
			name:      "missing_sku",
			product:   valid(func(p *domain.Product) { p.SKU = "" }),
			wantError: "sku is required",
		},
		{
			name:      "missing_name",
			product:   valid(func(p *domain.Product) { p.Name = "" }),
			wantError: "name is required",
		},
		{
			name:      "negative_quantity",
			product:   valid(func(p *domain.Product) { p.Quantity = -1 }),
			wantError: "quantity cannot be negative",
		},
		{
			name:      "negative_price",
			product:   valid(func(p *domain.Product) { p.UnitPrice = decimal.NewFromInt(-1) }),
			wantError: "unit_price cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.product.Validate()
			if tt.wantError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantError)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProduct_PrepareForStorage(t *testing.T) {
	p := &domain.Product{StoreID: "S1", SKU: "SKU-1", Name: "Widget"}
	p.PrepareForStorage()

	assert.NotEqual(t, uuid.Nil, p.ProductID)
	assert.False(t, p.CreatedAt.IsZero())
	assert.False(t, p.UpdatedAt.IsZero())

	// A second call must not rotate the identity
	id := p.ProductID
	created := p.CreatedAt
	p.PrepareForStorage()
	assert.Equal(t, id, p.ProductID)
	assert.Equal(t, created, p.CreatedAt)
}

func TestImportBatch_Complete(t *testing.T) {
	batch := &domain.ImportBatch{
		StoreID:        "S1",
		IdempotencyKey: "key-1",
		ContentHash:    "abc",
	}
	batch.PrepareForStorage()

	assert.NotEqual(t, uuid.Nil, batch.BatchID)
	assert.Equal(t, domain.BatchPending, batch.Status)

	result := &domain.ImportResult{
		Applied:   []domain.RowResult{{Row: 1, Delta: 10, NewQuantity: 15}},
		Conflicts: []domain.RowResult{{Row: 2, Delta: -9, Reason: domain.ConflictInsufficientStock}},
	}
	batch.Complete(result)

	assert.Equal(t, domain.BatchCompleted, batch.Status)
	assert.Equal(t, 1, batch.AppliedCount)
	assert.Equal(t, 1, batch.ConflictCount)
	require.NotNil(t, batch.CompletedAt)
}

func TestImportResult_NilSafeCounts(t *testing.T) {
	var r *domain.ImportResult
	assert.Equal(t, 0, r.AppliedCount())
	assert.Equal(t, 0, r.ConflictCount())
}
