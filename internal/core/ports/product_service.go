// internal/core/ports/product_service.go
package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/piaxis/inventory-sync/internal/core/domain"
)

// ProductService defines the application service port for products.
// This interface is implemented by the application service.
type ProductService interface {
	SaveProduct(ctx context.Context, product *domain.Product) error
	SaveProducts(ctx context.Context, products []domain.Product) error
	GetByID(ctx context.Context, storeID string, productID uuid.UUID) (*domain.Product, error)
	UpdateProduct(ctx context.Context, storeID string, productID uuid.UUID, product *domain.Product) error
	DeleteProduct(ctx context.Context, storeID string, productID uuid.UUID, permanent bool) error
	// Note: We need to define ListParams and ListResult here to avoid circular dependencies.
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

// ListParams holds parameters for listing products
type ListParams struct {
	StoreID    string
	Search     string
	SKU        string
	Barcode    string
	LocationID string
	InStock    *bool
	SortBy     string
	SortOrder  string
	Page       int
	PageSize   int
}

// ListResult holds the result of listing products
type ListResult struct {
	Products   []*domain.Product `json:"products"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalCount int64             `json:"total_count"`
	TotalPages int               `json:"total_pages"`
}
