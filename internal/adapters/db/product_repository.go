// internal/adapters/db/product_repository.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/piaxis/inventory-sync/internal/core/domain"
	"github.com/piaxis/inventory-sync/internal/core/ports"
)

// productRepository implements ports.ProductRepository
type productRepository struct {
	db     *Database
	logger *slog.Logger
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *Database, logger *slog.Logger) ports.ProductRepository {
	return &productRepository{
		db:     db,
		logger: logger.With(slog.String("repository", "product")),
	}
}

const productColumns = `
	product_id, store_id, sku, barcode, name, description,
	unit_price, quantity, location_id, created_at, updated_at`

// Save creates a new product
func (r *productRepository) Save(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (
			product_id, store_id, sku, barcode, name, description,
			unit_price, quantity, location_id, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		) RETURNING product_id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		product.ProductID, product.StoreID, product.SKU, nullIfEmpty(product.Barcode),
		product.Name, nullIfEmpty(product.Description), product.UnitPrice,
		product.Quantity, nullIfEmpty(product.LocationID),
		product.CreatedAt, product.UpdatedAt,
	).Scan(&product.ProductID, &product.CreatedAt, &product.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}

	r.logger.DebugContext(ctx, "product saved",
		slog.String("product_id", product.ProductID.String()),
		slog.String("sku", product.SKU))

	return nil
}

// SaveBatch saves multiple products in a transaction
func (r *productRepository) SaveBatch(ctx context.Context, products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	return r.db.Transaction(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}

		query := `
			INSERT INTO products (
				product_id, store_id, sku, barcode, name, description,
				unit_price, quantity, location_id, created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
			)
			ON CONFLICT (store_id, sku) WHERE deleted_at IS NULL
			DO UPDATE SET
				barcode = EXCLUDED.barcode,
				name = EXCLUDED.name,
				description = EXCLUDED.description,
				unit_price = EXCLUDED.unit_price,
				location_id = EXCLUDED.location_id,
				updated_at = EXCLUDED.updated_at
			RETURNING product_id`

		for i := range products {
			batch.Queue(query,
				products[i].ProductID, products[i].StoreID, products[i].SKU,
				nullIfEmpty(products[i].Barcode), products[i].Name,
				nullIfEmpty(products[i].Description), products[i].UnitPrice,
				products[i].Quantity, nullIfEmpty(products[i].LocationID),
				products[i].CreatedAt, products[i].UpdatedAt,
			)
		}

		br := tx.SendBatch(ctx, batch)
		defer br.Close()

		for i := range products {
			if err := br.QueryRow().Scan(&products[i].ProductID); err != nil {
				return fmt.Errorf("failed to save product %d: %w", i, err)
			}
		}

		return nil
	})
}

// Update updates an existing product
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products SET
			sku = $3, barcode = $4, name = $5, description = $6,
			unit_price = $7, quantity = $8, location_id = $9, updated_at = $10
		WHERE store_id = $1 AND product_id = $2 AND deleted_at IS NULL`

	product.UpdatedAt = time.Now()

	tag, err := r.db.Exec(ctx, query,
		product.StoreID, product.ProductID, product.SKU, nullIfEmpty(product.Barcode),
		product.Name, nullIfEmpty(product.Description), product.UnitPrice,
		product.Quantity, nullIfEmpty(product.LocationID), product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product not found: %s", product.ProductID)
	}

	r.logger.DebugContext(ctx, "product updated",
		slog.String("product_id", product.ProductID.String()))

	return nil
}

// FindByID retrieves a product by ID
func (r *productRepository) FindByID(ctx context.Context, storeID string, productID uuid.UUID) (*domain.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE store_id = $1 AND product_id = $2 AND deleted_at IS NULL`

	product, err := scanProduct(r.db.QueryRow(ctx, query, storeID, productID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find product: %w", err)
	}

	return product, nil
}

// ResolveRef looks a product up by the first identifier present, in
// product_id, sku, barcode order. A present but unmatched identifier is
// ErrUnknownProduct; later identifiers are never consulted.
func (r *productRepository) ResolveRef(ctx context.Context, tx pgx.Tx, storeID string, ref domain.DeltaRef) (*domain.Product, error) {
	var (
		column string
		value  interface{}
	)

	switch {
	case ref.ProductID != "":
		id, err := uuid.Parse(ref.ProductID)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid product_id %q", domain.ErrUnknownProduct, ref.ProductID)
		}
		column, value = "product_id", id
	case ref.SKU != "":
		column, value = "sku", ref.SKU
	case ref.Barcode != "":
		column, value = "barcode", ref.Barcode
	default:
		return nil, domain.ErrUnknownProduct
	}

	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE store_id = $1 AND ` + column + ` = $2 AND deleted_at IS NULL`

	product, err := scanProduct(tx.QueryRow(ctx, query, storeID, value))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProduct, ref)
		}
		return nil, fmt.Errorf("failed to resolve product by %s: %w", column, err)
	}

	return product, nil
}

// AdjustQuantity applies a signed delta with a non-negative guard. The
// guard lives in the WHERE clause so a concurrent adjustment can never
// slip the quantity below zero.
func (r *productRepository) AdjustQuantity(ctx context.Context, tx pgx.Tx, storeID string, productID uuid.UUID, delta int) (int, error) {
	query := `
		UPDATE products
		SET quantity = quantity + $3, updated_at = $4
		WHERE store_id = $1 AND product_id = $2 AND deleted_at IS NULL
		  AND quantity + $3 >= 0
		RETURNING quantity`

	var newQuantity int
	err := tx.QueryRow(ctx, query, storeID, productID, delta, time.Now()).Scan(&newQuantity)
	if err != nil {
		if err == pgx.ErrNoRows {
			// The row exists (ResolveRef found it in this transaction),
			// so the guard is what rejected the update.
			return 0, domain.ErrInsufficientStock
		}
		return 0, fmt.Errorf("failed to adjust quantity: %w", err)
	}

	return newQuantity, nil
}

// Delete performs a hard delete
func (r *productRepository) Delete(ctx context.Context, storeID string, productID uuid.UUID) error {
	query := `DELETE FROM products WHERE store_id = $1 AND product_id = $2`

	tag, err := r.db.Exec(ctx, query, storeID, productID)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product not found: %s", productID)
	}

	r.logger.InfoContext(ctx, "product deleted",
		slog.String("product_id", productID.String()))

	return nil
}

// SoftDelete marks a product as deleted
func (r *productRepository) SoftDelete(ctx context.Context, storeID string, productID uuid.UUID) error {
	query := `
		UPDATE products SET deleted_at = $3, updated_at = $3
		WHERE store_id = $1 AND product_id = $2 AND deleted_at IS NULL`

	now := time.Now()
	tag, err := r.db.Exec(ctx, query, storeID, productID, now)
	if err != nil {
		return fmt.Errorf("failed to soft delete product: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product not found: %s", productID)
	}

	r.logger.InfoContext(ctx, "product soft deleted",
		slog.String("product_id", productID.String()))

	return nil
}

// Count returns the total number of products for a store
func (r *productRepository) Count(ctx context.Context, storeID string) (int64, error) {
	query := `SELECT COUNT(*) FROM products WHERE store_id = $1 AND deleted_at IS NULL`

	var count int64
	if err := r.db.QueryRow(ctx, query, storeID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}

	return count, nil
}

// Exists checks if a product exists
func (r *productRepository) Exists(ctx context.Context, storeID string, productID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM products WHERE store_id = $1 AND product_id = $2 AND deleted_at IS NULL)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, storeID, productID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}

	return exists, nil
}

// scanProduct scans a single product row, handling nullable columns
func scanProduct(row pgx.Row) (*domain.Product, error) {
	product := &domain.Product{}
	var barcode, description, locationID sql.NullString

	err := row.Scan(
		&product.ProductID, &product.StoreID, &product.SKU, &barcode,
		&product.Name, &description, &product.UnitPrice, &product.Quantity,
		&locationID, &product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	product.Barcode = barcode.String
	product.Description = description.String
	product.LocationID = locationID.String

	return product, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
