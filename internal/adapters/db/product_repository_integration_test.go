//go:build integration
// +build integration

package db_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/suite"

	"github.com/piaxis/inventory-sync/internal/adapters/db"
	"github.com/piaxis/inventory-sync/internal/core/domain"
	"github.com/piaxis/inventory-sync/internal/core/ports"
	"github.com/piaxis/inventory-sync/test/helpers"
)

type ProductRepositorySuite struct {
	suite.Suite
	testDB *helpers.TestDB
	repo   ports.ProductRepository
	ctx    context.Context
}

func (s *ProductRepositorySuite) SetupSuite() {
	s.testDB = helpers.SetupTestDB(s.T())
	s.repo = db.NewProductRepository(s.testDB.Database, helpers.TestLogger())
	s.ctx = context.Background()
}

func (s *ProductRepositorySuite) SetupTest() {
	helpers.TruncateAllTables(s.T(), s.testDB.PgxPool)
}

func (s *ProductRepositorySuite) TestSaveAndFindByID() {
	product := helpers.CreateTestProduct()

	err := s.repo.Save(s.ctx, product)
	s.NoError(err)

	saved, err := s.repo.FindByID(s.ctx, product.StoreID, product.ProductID)
	s.NoError(err)
	s.NotNil(saved)
	helpers.CompareProducts(s.T(), product, saved)
}

func (s *ProductRepositorySuite) TestSaveBatch() {
	products := helpers.CreateTestProducts(5)

	err := s.repo.SaveBatch(s.ctx, products)
	s.NoError(err)

	count, err := s.repo.Count(s.ctx, "store-1")
	s.NoError(err)
	s.EqualValues(5, count)
}

func (s *ProductRepositorySuite) TestUpdate() {
	product := helpers.CreateTestProduct()
	s.NoError(s.repo.Save(s.ctx, product))

	product.Name = "Renamed"
	product.Quantity = 99
	s.NoError(s.repo.Update(s.ctx, product))

	saved, err := s.repo.FindByID(s.ctx, product.StoreID, product.ProductID)
	s.NoError(err)
	s.Equal("Renamed", saved.Name)
	s.Equal(99, saved.Quantity)
}

func (s *ProductRepositorySuite) TestResolveRefPrecedence() {
	byID := helpers.CreateTestProduct(func(p *domain.Product) {
		p.SKU = "SKU-A"
		p.Barcode = "1111111111111"
	})
	bySKU := helpers.CreateTestProduct(func(p *domain.Product) {
		p.SKU = "SKU-B"
		p.Barcode = "2222222222222"
	})
	s.NoError(s.repo.Save(s.ctx, byID))
	s.NoError(s.repo.Save(s.ctx, bySKU))

	err := s.testDB.Database.Transaction(s.ctx, func(tx pgx.Tx) error {
		// product_id wins over a sku that names a different product
		found, err := s.repo.ResolveRef(s.ctx, tx, "store-1", domain.DeltaRef{
			ProductID: byID.ProductID.String(),
			SKU:       "SKU-B",
		})
		s.NoError(err)
		s.Equal(byID.ProductID, found.ProductID)

		// sku wins over barcode
		found, err = s.repo.ResolveRef(s.ctx, tx, "store-1", domain.DeltaRef{
			SKU:     "SKU-B",
			Barcode: "1111111111111",
		})
		s.NoError(err)
		s.Equal(bySKU.ProductID, found.ProductID)

		// barcode alone
		found, err = s.repo.ResolveRef(s.ctx, tx, "store-1", domain.DeltaRef{
			Barcode: "1111111111111",
		})
		s.NoError(err)
		s.Equal(byID.ProductID, found.ProductID)

		// no match
		_, err = s.repo.ResolveRef(s.ctx, tx, "store-1", domain.DeltaRef{SKU: "SKU-MISSING"})
		s.ErrorIs(err, domain.ErrUnknownProduct)

		// a present but unmatched product_id conflicts; it does not fall
		// through to the row's sku
		_, err = s.repo.ResolveRef(s.ctx, tx, "store-1", domain.DeltaRef{
			ProductID: uuid.New().String(),
			SKU:       "SKU-B",
		})
		s.ErrorIs(err, domain.ErrUnknownProduct)

		return nil
	})
	s.NoError(err)
}

func (s *ProductRepositorySuite) TestAdjustQuantity() {
	product := helpers.CreateTestProduct(func(p *domain.Product) {
		p.Quantity = 5
	})
	s.NoError(s.repo.Save(s.ctx, product))

	err := s.testDB.Database.Transaction(s.ctx, func(tx pgx.Tx) error {
		newQty, err := s.repo.AdjustQuantity(s.ctx, tx, "store-1", product.ProductID, 10)
		s.NoError(err)
		s.Equal(15, newQty)

		newQty, err = s.repo.AdjustQuantity(s.ctx, tx, "store-1", product.ProductID, -3)
		s.NoError(err)
		s.Equal(12, newQty)

		return nil
	})
	s.NoError(err)
}

func (s *ProductRepositorySuite) TestAdjustQuantityRejectsNegative() {
	product := helpers.CreateTestProduct(func(p *domain.Product) {
		p.Quantity = 2
	})
	s.NoError(s.repo.Save(s.ctx, product))

	err := s.testDB.Database.Transaction(s.ctx, func(tx pgx.Tx) error {
		_, err := s.repo.AdjustQuantity(s.ctx, tx, "store-1", product.ProductID, -5)
		s.ErrorIs(err, domain.ErrInsufficientStock)
		return nil
	})
	s.NoError(err)

	// Stock is untouched
	saved, err := s.repo.FindByID(s.ctx, "store-1", product.ProductID)
	s.NoError(err)
	s.Equal(2, saved.Quantity)
}

func (s *ProductRepositorySuite) TestSoftDeleteHidesFromResolve() {
	product := helpers.CreateTestProduct()
	s.NoError(s.repo.Save(s.ctx, product))

	s.NoError(s.repo.SoftDelete(s.ctx, "store-1", product.ProductID))

	err := s.testDB.Database.Transaction(s.ctx, func(tx pgx.Tx) error {
		_, err := s.repo.ResolveRef(s.ctx, tx, "store-1", domain.DeltaRef{SKU: product.SKU})
		s.ErrorIs(err, domain.ErrUnknownProduct)
		return nil
	})
	s.NoError(err)

	exists, err := s.repo.Exists(s.ctx, "store-1", product.ProductID)
	s.NoError(err)
	s.False(exists)
}

func (s *ProductRepositorySuite) TestDelete() {
	product := helpers.CreateTestProduct()
	s.NoError(s.repo.Save(s.ctx, product))

	s.NoError(s.repo.Delete(s.ctx, "store-1", product.ProductID))

	_, err := s.repo.FindByID(s.ctx, "store-1", product.ProductID)
	s.Error(err)
}

func (s *ProductRepositorySuite) TestStoreIsolation() {
	product := helpers.CreateTestProduct()
	s.NoError(s.repo.Save(s.ctx, product))

	other := helpers.CreateTestProduct(func(p *domain.Product) {
		p.StoreID = "store-2"
		p.SKU = product.SKU
	})
	s.NoError(s.repo.Save(s.ctx, other))

	err := s.testDB.Database.Transaction(s.ctx, func(tx pgx.Tx) error {
		found, err := s.repo.ResolveRef(s.ctx, tx, "store-2", domain.DeltaRef{SKU: product.SKU})
		s.NoError(err)
		s.Equal(other.ProductID, found.ProductID)
		return nil
	})
	s.NoError(err)
}

func TestProductRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	suite.Run(t, new(ProductRepositorySuite))
}
