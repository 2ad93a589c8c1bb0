// internal/core/services/product_service_test.go
package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	redis_a "github.com/piaxis/inventory-sync/internal/adapters/redis_adapter"
	"github.com/piaxis/inventory-sync/internal/core/domain"
	"github.com/piaxis/inventory-sync/internal/core/ports"
	"github.com/piaxis/inventory-sync/internal/core/services"
	"github.com/piaxis/inventory-sync/test/helpers"
	"github.com/piaxis/inventory-sync/test/mocks"
)

type productFixture struct {
	repo    *mocks.ProductRepository
	service *services.ProductService
}

func newProductFixture(t *testing.T) *productFixture {
	t.Helper()

	tr := helpers.SetupTestRedis(t)
	f := &productFixture{repo: new(mocks.ProductRepository)}
	cache := redis_a.NewCache(tr.Client, time.Hour, helpers.TestLogger())
	f.service = services.NewProductService(f.repo, nil, cache, helpers.TestLogger())
	return f
}

func TestProductService_SaveProduct(t *testing.T) {
	tests := []struct {
		name    string
		product *domain.Product
		setup   func(f *productFixture)
		wantErr string
	}{
		{
			name:    "saves a valid product",
			product: testProduct("store-1", "SKU-A", 5),
			setup: func(f *productFixture) {
				f.repo.On("Save", mock.Anything, mock.Anything).Return(nil)
			},
		},
		{
			name:    "rejects a product without sku",
			product: &domain.Product{StoreID: "store-1", Name: "No SKU"},
			wantErr: "validation failed",
		},
		{
			name:    "rejects a product without store",
			product: &domain.Product{SKU: "SKU-A", Name: "No Store"},
			wantErr: "validation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newProductFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}

			err := f.service.SaveProduct(context.Background(), tt.product)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				f.repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
				return
			}

			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, tt.product.ProductID)
			f.repo.AssertExpectations(t)
		})
	}
}

func TestProductService_SaveProducts(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()

	// Empty slice is a no-op, not an error
	require.NoError(t, f.service.SaveProducts(ctx, nil))
	f.repo.AssertNotCalled(t, "SaveBatch", mock.Anything, mock.Anything)

	products := []domain.Product{
		*testProduct("store-1", "SKU-A", 5),
		*testProduct("store-1", "SKU-B", 0),
	}
	f.repo.On("SaveBatch", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, f.service.SaveProducts(ctx, products))
	f.repo.AssertExpectations(t)
}

func TestProductService_GetByID_ServesRepeatedReadsFromCache(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()

	p := testProduct("store-1", "SKU-A", 5)
	f.repo.On("FindByID", mock.Anything, "store-1", p.ProductID).Return(p, nil).Once()

	first, err := f.service.GetByID(ctx, "store-1", p.ProductID)
	require.NoError(t, err)
	assert.Equal(t, p.SKU, first.SKU)

	second, err := f.service.GetByID(ctx, "store-1", p.ProductID)
	require.NoError(t, err)
	assert.Equal(t, p.SKU, second.SKU)
	assert.Equal(t, p.Quantity, second.Quantity)

	// Second read must come from cache
	f.repo.AssertNumberOfCalls(t, "FindByID", 1)
}

func TestProductService_GetByID_NotFound(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()

	missing := uuid.New()
	f.repo.On("FindByID", mock.Anything, "store-1", missing).Return(nil, nil)

	_, err := f.service.GetByID(ctx, "store-1", missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestProductService_UpdateProduct_PinsIdentityToRoute(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()

	routeID := uuid.New()
	product := testProduct("store-1", "SKU-A", 5)

	var updated *domain.Product
	f.repo.On("Update", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			updated = args.Get(1).(*domain.Product)
		}).Return(nil)

	require.NoError(t, f.service.UpdateProduct(ctx, "store-1", routeID, product))

	require.NotNil(t, updated)
	assert.Equal(t, routeID, updated.ProductID)
	assert.Equal(t, "store-1", updated.StoreID)
}

// capturePool records every statement sent to the pool so the
// generated SQL can be inspected.
type capturePool struct {
	statements []string
}

func (p *capturePool) Begin(ctx context.Context) (pgx.Tx, error) { return nil, nil }

func (p *capturePool) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	p.statements = append(p.statements, sql)
	return pgconn.CommandTag{}, nil
}

func (p *capturePool) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	p.statements = append(p.statements, sql)
	return emptyRows{}, nil
}

func (p *capturePool) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	p.statements = append(p.statements, sql)
	return zeroRow{}
}

func (p *capturePool) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }

type zeroRow struct{}

func (zeroRow) Scan(dest ...any) error { return nil }

type emptyRows struct{}

func (emptyRows) Close()                                       {}
func (emptyRows) Err() error                                   { return nil }
func (emptyRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (emptyRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (emptyRows) Next() bool                                   { return false }
func (emptyRows) Scan(dest ...any) error                       { return nil }
func (emptyRows) Values() ([]any, error)                       { return nil, nil }
func (emptyRows) RawValues() [][]byte                          { return nil }
func (emptyRows) Conn() *pgx.Conn                              { return nil }

func TestProductService_List_SortColumnAllowList(t *testing.T) {
	tests := []struct {
		name      string
		sortBy    string
		sortOrder string
		wantOrder string
	}{
		{
			name:      "known column is honored",
			sortBy:    "sku",
			sortOrder: "desc",
			wantOrder: "ORDER BY sku DESC",
		},
		{
			name:      "unknown column falls back to created_at",
			sortBy:    "garbage",
			wantOrder: "ORDER BY created_at DESC",
		},
		{
			name:      "sql expression falls back to created_at",
			sortBy:    "(SELECT idempotency_key FROM import_batches LIMIT 1)",
			wantOrder: "ORDER BY created_at DESC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := helpers.SetupTestRedis(t)
			cache := redis_a.NewCache(tr.Client, time.Hour, helpers.TestLogger())
			pool := &capturePool{}
			service := services.NewProductService(new(mocks.ProductRepository), pool, cache, helpers.TestLogger())

			_, err := service.List(context.Background(), ports.ListParams{
				StoreID:   "store-1",
				SortBy:    tt.sortBy,
				SortOrder: tt.sortOrder,
				Page:      1,
				PageSize:  10,
			})
			require.NoError(t, err)

			// The second statement is the page query carrying ORDER BY
			require.Len(t, pool.statements, 2)
			listSQL := pool.statements[1]
			assert.Contains(t, listSQL, tt.wantOrder)
			if tt.sortBy != "sku" {
				assert.NotContains(t, listSQL, tt.sortBy)
			}
		})
	}
}

func TestProductService_DeleteProduct(t *testing.T) {
	tests := []struct {
		name      string
		permanent bool
		exists    bool
		wantErr   bool
		wantCall  string
	}{
		{name: "soft deletes by default", exists: true, wantCall: "SoftDelete"},
		{name: "permanent delete removes the row", permanent: true, exists: true, wantCall: "Delete"},
		{name: "missing product is an error", exists: false, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newProductFixture(t)
			productID := uuid.New()

			f.repo.On("Exists", mock.Anything, "store-1", productID).Return(tt.exists, nil)
			if tt.exists {
				f.repo.On(tt.wantCall, mock.Anything, "store-1", productID).Return(nil)
			}

			err := f.service.DeleteProduct(context.Background(), "store-1", productID, tt.permanent)

			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			f.repo.AssertExpectations(t)
		})
	}
}
