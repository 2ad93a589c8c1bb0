// internal/core/domain/product.go
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a sellable item with an on-hand quantity at a store
// location. Quantity is only ever mutated through delta application.
type Product struct {
	ProductID   uuid.UUID       `json:"product_id"`
	StoreID     string          `json:"store_id"`
	SKU         string          `json:"sku"`
	Barcode     string          `json:"barcode,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	LocationID  string          `json:"location_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   *time.Time      `json:"deleted_at,omitempty"`
}

// Validate performs domain validation on the product
func (p *Product) Validate() error {
	if p.StoreID == "" {
		return fmt.Errorf("store_id is required")
	}
	if p.SKU == "" {
		return fmt.Errorf("sku is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.Quantity < 0 {
		return fmt.Errorf("quantity cannot be negative")
	}
	if p.UnitPrice.IsNegative() {
		return fmt.Errorf("unit_price cannot be negative")
	}
	return nil
}

// PrepareForStorage fills identity and timestamps before persistence
func (p *Product) PrepareForStorage() {
	if p.ProductID == uuid.Nil {
		p.ProductID = uuid.New()
	}

	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
}

// DeltaRef carries the alternate keys a delta row may use to name a
// product. Resolution precedence is ProductID, then SKU, then Barcode.
type DeltaRef struct {
	ProductID string
	SKU       string
	Barcode   string
}

// Ref extracts the product reference from a delta row
func (d *InventoryDelta) Ref() DeltaRef {
	return DeltaRef{ProductID: d.ProductID, SKU: d.SKU, Barcode: d.Barcode}
}

// String renders the most specific identifier present, for logs and
// conflict messages.
func (r DeltaRef) String() string {
	switch {
	case r.ProductID != "":
		return "product_id=" + r.ProductID
	case r.SKU != "":
		return "sku=" + r.SKU
	case r.Barcode != "":
		return "barcode=" + r.Barcode
	default:
		return "unidentified"
	}
}
