// test/mocks/mocks.go

// Package mocks contains hand-maintained testify mocks for the
// application's ports. Keep them in sync with the interfaces under
// internal/core/ports.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"

	"github.com/piaxis/inventory-sync/internal/core/domain"
	"github.com/piaxis/inventory-sync/internal/core/ports"
)

// ProductRepository mocks ports.ProductRepository
type ProductRepository struct {
	mock.Mock
}

var _ ports.ProductRepository = (*ProductRepository)(nil)

func (m *ProductRepository) Save(ctx context.Context, product *domain.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *ProductRepository) SaveBatch(ctx context.Context, products []domain.Product) error {
	args := m.Called(ctx, products)
	return args.Error(0)
}

func (m *ProductRepository) Update(ctx context.Context, product *domain.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *ProductRepository) FindByID(ctx context.Context, storeID string, productID uuid.UUID) (*domain.Product, error) {
	args := m.Called(ctx, storeID, productID)
	if p, ok := args.Get(0).(*domain.Product); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProductRepository) Delete(ctx context.Context, storeID string, productID uuid.UUID) error {
	args := m.Called(ctx, storeID, productID)
	return args.Error(0)
}

func (m *ProductRepository) SoftDelete(ctx context.Context, storeID string, productID uuid.UUID) error {
	args := m.Called(ctx, storeID, productID)
	return args.Error(0)
}

func (m *ProductRepository) Count(ctx context.Context, storeID string) (int64, error) {
	args := m.Called(ctx, storeID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *ProductRepository) Exists(ctx context.Context, storeID string, productID uuid.UUID) (bool, error) {
	args := m.Called(ctx, storeID, productID)
	return args.Bool(0), args.Error(1)
}

func (m *ProductRepository) ResolveRef(ctx context.Context, tx pgx.Tx, storeID string, ref domain.DeltaRef) (*domain.Product, error) {
	args := m.Called(ctx, tx, storeID, ref)
	if p, ok := args.Get(0).(*domain.Product); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProductRepository) AdjustQuantity(ctx context.Context, tx pgx.Tx, storeID string, productID uuid.UUID, delta int) (int, error) {
	args := m.Called(ctx, tx, storeID, productID, delta)
	return args.Int(0), args.Error(1)
}

// ImportRepository mocks ports.ImportRepository
type ImportRepository struct {
	mock.Mock
}

var _ ports.ImportRepository = (*ImportRepository)(nil)

func (m *ImportRepository) FindByKey(ctx context.Context, storeID, key string) (*domain.ImportBatch, error) {
	args := m.Called(ctx, storeID, key)
	if b, ok := args.Get(0).(*domain.ImportBatch); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ImportRepository) FindByID(ctx context.Context, storeID string, batchID uuid.UUID) (*domain.ImportBatch, error) {
	args := m.Called(ctx, storeID, batchID)
	if b, ok := args.Get(0).(*domain.ImportBatch); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ImportRepository) ListRecent(ctx context.Context, storeID string, limit int) ([]domain.ImportBatch, error) {
	args := m.Called(ctx, storeID, limit)
	if b, ok := args.Get(0).([]domain.ImportBatch); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ImportRepository) RecordBatch(ctx context.Context, tx pgx.Tx, batch *domain.ImportBatch) error {
	args := m.Called(ctx, tx, batch)
	return args.Error(0)
}

func (m *ImportRepository) SetArchiveKey(ctx context.Context, batchID uuid.UUID, archiveKey string) error {
	args := m.Called(ctx, batchID, archiveKey)
	return args.Error(0)
}

func (m *ImportRepository) PurgeExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

// ImportService mocks ports.ImportService
type ImportService struct {
	mock.Mock
}

var _ ports.ImportService = (*ImportService)(nil)

func (m *ImportService) Apply(ctx context.Context, params ports.ApplyParams) (*ports.ApplyOutcome, error) {
	args := m.Called(ctx, params)
	if o, ok := args.Get(0).(*ports.ApplyOutcome); ok {
		return o, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ImportService) GetBatch(ctx context.Context, storeID string, batchID uuid.UUID) (*domain.ImportBatch, error) {
	args := m.Called(ctx, storeID, batchID)
	if b, ok := args.Get(0).(*domain.ImportBatch); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ImportService) ListBatches(ctx context.Context, storeID string, limit int) ([]domain.ImportBatch, error) {
	args := m.Called(ctx, storeID, limit)
	if b, ok := args.Get(0).([]domain.ImportBatch); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

// ProductService mocks ports.ProductService
type ProductService struct {
	mock.Mock
}

var _ ports.ProductService = (*ProductService)(nil)

func (m *ProductService) SaveProduct(ctx context.Context, product *domain.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *ProductService) SaveProducts(ctx context.Context, products []domain.Product) error {
	args := m.Called(ctx, products)
	return args.Error(0)
}

func (m *ProductService) GetByID(ctx context.Context, storeID string, productID uuid.UUID) (*domain.Product, error) {
	args := m.Called(ctx, storeID, productID)
	if p, ok := args.Get(0).(*domain.Product); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProductService) UpdateProduct(ctx context.Context, storeID string, productID uuid.UUID, product *domain.Product) error {
	args := m.Called(ctx, storeID, productID, product)
	return args.Error(0)
}

func (m *ProductService) DeleteProduct(ctx context.Context, storeID string, productID uuid.UUID, permanent bool) error {
	args := m.Called(ctx, storeID, productID, permanent)
	return args.Error(0)
}

func (m *ProductService) List(ctx context.Context, params ports.ListParams) (*ports.ListResult, error) {
	args := m.Called(ctx, params)
	if r, ok := args.Get(0).(*ports.ListResult); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
