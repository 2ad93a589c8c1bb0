// internal/core/services/product.go
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/piaxis/inventory-sync/internal/core/domain"
	"github.com/piaxis/inventory-sync/internal/core/ports"
)

// productCacheTTL bounds staleness of single-product reads
const productCacheTTL = 5 * time.Minute

// PgxPool interface defines the contract for database operations
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// ProductService handles product business logic
type ProductService struct {
	repo   ports.ProductRepository
	db     PgxPool
	cache  ports.CacheRepository
	logger *slog.Logger
}

// Statically assert that *ProductService implements the ProductService interface.
var _ ports.ProductService = (*ProductService)(nil)

// NewProductService creates a new product service
func NewProductService(repo ports.ProductRepository, db PgxPool, cache ports.CacheRepository, logger *slog.Logger) *ProductService {
	return &ProductService{
		repo:   repo,
		db:     db,
		cache:  cache,
		logger: logger.With(slog.String("service", "product")),
	}
}

// SaveProduct saves a single product
func (s *ProductService) SaveProduct(ctx context.Context, product *domain.Product) error {
	if err := product.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	product.PrepareForStorage()

	if err := s.repo.Save(ctx, product); err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}

	s.logger.InfoContext(ctx, "saved product",
		slog.String("product_id", product.ProductID.String()),
		slog.String("store_id", product.StoreID),
		slog.String("sku", product.SKU))

	return nil
}

// SaveProducts saves multiple products with batch support
func (s *ProductService) SaveProducts(ctx context.Context, products []domain.Product) error {
	if len(products) == 0 {
		s.logger.InfoContext(ctx, "no products to save")
		return nil
	}

	// Validate all products first
	for i := range products {
		if err := products[i].Validate(); err != nil {
			return fmt.Errorf("validation failed for product %s: %w", products[i].SKU, err)
		}
		products[i].PrepareForStorage()
	}

	// Use repository's batch save
	if err := s.repo.SaveBatch(ctx, products); err != nil {
		return fmt.Errorf("failed to save products batch: %w", err)
	}

	s.logger.InfoContext(ctx, "saved products",
		slog.Int("count", len(products)))

	return nil
}

// GetByID retrieves a product by ID, serving repeated reads from cache
func (s *ProductService) GetByID(ctx context.Context, storeID string, productID uuid.UUID) (*domain.Product, error) {
	cacheKey := productCacheKey(storeID, productID)

	var product domain.Product
	err := s.cache.GetOrSet(ctx, cacheKey, &product, func() (interface{}, error) {
		p, err := s.repo.FindByID(ctx, storeID, productID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, fmt.Errorf("product not found: %s", productID)
		}
		return p, nil
	}, productCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return &product, nil
}

// UpdateProduct updates an existing product
func (s *ProductService) UpdateProduct(ctx context.Context, storeID string, productID uuid.UUID, product *domain.Product) error {
	// Ensure identity matches the route
	product.ProductID = productID
	product.StoreID = storeID

	if err := product.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if err := s.repo.Update(ctx, product); err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	if err := s.cache.Delete(ctx, productCacheKey(storeID, productID)); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate product cache",
			slog.String("product_id", productID.String()), slog.Any("error", err))
	}

	s.logger.InfoContext(ctx, "updated product",
		slog.String("product_id", productID.String()))

	return nil
}

// DeleteProduct deletes a product (soft delete by default)
func (s *ProductService) DeleteProduct(ctx context.Context, storeID string, productID uuid.UUID, permanent bool) error {
	// Check if product exists
	exists, err := s.repo.Exists(ctx, storeID, productID)
	if err != nil {
		return fmt.Errorf("failed to check product existence: %w", err)
	}

	if !exists {
		return fmt.Errorf("product not found: %s", productID)
	}

	if permanent {
		err = s.repo.Delete(ctx, storeID, productID)
	} else {
		err = s.repo.SoftDelete(ctx, storeID, productID)
	}

	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	if err := s.cache.Delete(ctx, productCacheKey(storeID, productID)); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate product cache",
			slog.String("product_id", productID.String()), slog.Any("error", err))
	}

	s.logger.InfoContext(ctx, "deleted product",
		slog.String("product_id", productID.String()),
		slog.Bool("permanent", permanent))

	return nil
}

// List retrieves products with filtering and pagination
func (s *ProductService) List(ctx context.Context, params ports.ListParams) (*ports.ListResult, error) {
	products, totalCount, err := s.getFilteredProducts(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	// Calculate total pages
	var totalPages int
	if params.PageSize > 0 {
		totalPages = int(totalCount) / params.PageSize
		if int(totalCount)%params.PageSize > 0 {
			totalPages++
		}
	}

	result := &ports.ListResult{
		Products:   products,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalCount: totalCount,
		TotalPages: totalPages,
	}

	return result, nil
}

// sortableColumns are the only column names accepted for ORDER BY.
var sortableColumns = map[string]bool{
	"sku":        true,
	"name":       true,
	"quantity":   true,
	"unit_price": true,
	"created_at": true,
	"updated_at": true,
}

// getFilteredProducts is a helper method that queries the database directly
func (s *ProductService) getFilteredProducts(ctx context.Context, params ports.ListParams) ([]*domain.Product, int64, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	base := psql.Select(
		"product_id", "store_id", "sku", "barcode", "name", "description",
		"unit_price", "quantity", "location_id", "created_at", "updated_at",
	).
		From("products").
		Where(sq.Eq{"deleted_at": nil}).
		Where(sq.Eq{"store_id": params.StoreID})

	if params.Search != "" {
		base = base.Where(sq.Or{
			sq.ILike{"name": "%" + params.Search + "%"},
			sq.ILike{"sku": "%" + params.Search + "%"},
		})
	}
	if params.SKU != "" {
		base = base.Where(sq.Eq{"sku": params.SKU})
	}
	if params.Barcode != "" {
		base = base.Where(sq.Eq{"barcode": params.Barcode})
	}
	if params.LocationID != "" {
		base = base.Where(sq.Eq{"location_id": params.LocationID})
	}
	if params.InStock != nil {
		if *params.InStock {
			base = base.Where(sq.Gt{"quantity": 0})
		} else {
			base = base.Where(sq.Eq{"quantity": 0})
		}
	}

	// Get count
	countSQL, countArgs, err := psql.Select("COUNT(*)").
		FromSelect(base, "t").
		ToSql()
	if err != nil {
		return nil, 0, err
	}

	var totalCount int64
	if err := s.db.QueryRow(ctx, countSQL, countArgs...).Scan(&totalCount); err != nil {
		return nil, 0, err
	}

	// Add ordering and pagination. SortBy is caller input and is only
	// ever interpolated after the allow-list check.
	orderBy := "created_at DESC"
	if sortableColumns[params.SortBy] {
		direction := "ASC"
		if params.SortOrder == "desc" {
			direction = "DESC"
		}
		orderBy = fmt.Sprintf("%s %s", params.SortBy, direction)
	}

	query := base.OrderBy(orderBy)
	if params.PageSize > 0 {
		query = query.
			Limit(uint64(params.PageSize)).
			Offset(uint64((params.Page - 1) * params.PageSize))
	}

	querySQL, queryArgs, err := query.ToSql()
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.Query(ctx, querySQL, queryArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		product := &domain.Product{}
		var barcode, description, locationID *string

		err := rows.Scan(
			&product.ProductID, &product.StoreID, &product.SKU, &barcode,
			&product.Name, &description, &product.UnitPrice, &product.Quantity,
			&locationID, &product.CreatedAt, &product.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}

		// Handle nullable fields
		if barcode != nil {
			product.Barcode = *barcode
		}
		if description != nil {
			product.Description = *description
		}
		if locationID != nil {
			product.LocationID = *locationID
		}

		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return products, totalCount, nil
}

func productCacheKey(storeID string, productID uuid.UUID) string {
	return fmt.Sprintf("product:%s:%s", storeID, productID)
}
