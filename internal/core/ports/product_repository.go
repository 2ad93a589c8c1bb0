// internal/core/ports/product_repository.go
package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/piaxis/inventory-sync/internal/core/domain"
)

// ProductRepository defines the persistence port for products.
// This interface is implemented by the database adapter.
type ProductRepository interface {
	Save(ctx context.Context, product *domain.Product) error
	SaveBatch(ctx context.Context, products []domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	FindByID(ctx context.Context, storeID string, productID uuid.UUID) (*domain.Product, error)
	Delete(ctx context.Context, storeID string, productID uuid.UUID) error
	SoftDelete(ctx context.Context, storeID string, productID uuid.UUID) error
	Count(ctx context.Context, storeID string) (int64, error)
	Exists(ctx context.Context, storeID string, productID uuid.UUID) (bool, error)

	// ResolveRef looks a product up by the first identifier present on the
	// ref, in product_id, sku, barcode order. Returns domain.ErrUnknownProduct
	// when nothing matches. Runs inside tx so resolution sees quantities
	// adjusted earlier in the same batch.
	ResolveRef(ctx context.Context, tx pgx.Tx, storeID string, ref domain.DeltaRef) (*domain.Product, error)

	// AdjustQuantity applies a signed delta to a product's quantity and
	// returns the new value. Returns domain.ErrInsufficientStock when the
	// adjustment would drive the quantity below zero, leaving it unchanged.
	AdjustQuantity(ctx context.Context, tx pgx.Tx, storeID string, productID uuid.UUID, delta int) (int, error)
}
