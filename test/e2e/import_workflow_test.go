//go:build e2e
// +build e2e

package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/piaxis/inventory-sync/internal/adapters/db"
	redis_a "github.com/piaxis/inventory-sync/internal/adapters/redis_adapter"
	"github.com/piaxis/inventory-sync/internal/core/domain"
	"github.com/piaxis/inventory-sync/internal/core/services"
	"github.com/piaxis/inventory-sync/internal/handlers"
	"github.com/piaxis/inventory-sync/test/helpers"
)

type ImportE2ESuite struct {
	suite.Suite
	server    *httptest.Server
	client    *http.Client
	baseURL   string
	testDB    *helpers.TestDB
	testRedis *helpers.TestRedis
}

func (s *ImportE2ESuite) SetupSuite() {
	// Setup test database
	s.testDB = helpers.SetupTestDB(s.T())

	// Setup test Redis
	s.testRedis = helpers.SetupTestRedis(s.T())

	// Start test server
	s.server = s.startTestServer()
	s.client = &http.Client{Timeout: 10 * time.Second}
	s.baseURL = s.server.URL + "/api/v1"
}

func (s *ImportE2ESuite) TearDownSuite() {
	s.server.Close()
}

func (s *ImportE2ESuite) SetupTest() {
	helpers.TruncateAllTables(s.T(), s.testDB.PgxPool)
	s.testRedis.Server.FlushAll()
}

func (s *ImportE2ESuite) startTestServer() *httptest.Server {
	logger := helpers.TestLogger()

	cache := redis_a.NewCache(s.testRedis.Client, time.Hour, logger)
	productRepo := db.NewProductRepository(s.testDB.Database, logger)
	importRepo := db.NewImportRepository(s.testDB.Database, logger)

	importService := services.NewImportService(productRepo, importRepo, s.testDB.Database, cache, logger)
	productService := services.NewProductService(productRepo, s.testDB.PgxPool, cache, logger)

	importHandler := handlers.NewImportHandler(importService, nil, logger, 10<<20, 10000)
	productHandler := handlers.NewProductHandler(productService, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/stores/{storeID}/inventory/import", importHandler.ImportCSV)
	mux.HandleFunc("GET /api/v1/stores/{storeID}/inventory/import/{batchID}", importHandler.BatchStatus)
	mux.HandleFunc("GET /api/v1/stores/{storeID}/inventory/imports", importHandler.ListBatches)
	mux.HandleFunc("GET /api/v1/inventory/import/template", importHandler.Template)
	mux.HandleFunc("GET /api/v1/stores/{storeID}/products", productHandler.ListProducts)
	mux.HandleFunc("GET /api/v1/stores/{storeID}/products/{id}", productHandler.GetProduct)
	mux.HandleFunc("POST /api/v1/stores/{storeID}/products", productHandler.CreateProduct)

	return httptest.NewServer(mux)
}

func (s *ImportE2ESuite) seedProduct(storeID, sku string, quantity int) {
	helpers.SeedTestData(s.T(), s.testDB.PgxPool, []domain.Product{
		*helpers.CreateTestProduct(func(p *domain.Product) {
			p.StoreID = storeID
			p.SKU = sku
			p.Quantity = quantity
		}),
	})
}

func (s *ImportE2ESuite) submitCSV(storeID, key, csv string) *http.Response {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "deltas.csv")
	s.Require().NoError(err)
	_, err = io.Copy(part, strings.NewReader(csv))
	s.Require().NoError(err)
	s.Require().NoError(writer.Close())

	req, err := http.NewRequest("POST",
		fmt.Sprintf("%s/stores/%s/inventory/import", s.baseURL, storeID), body)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set(handlers.IdempotencyKeyHeader, key)

	resp, err := s.client.Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *ImportE2ESuite) productQuantity(storeID, sku string) int {
	var quantity int
	err := s.testDB.PgxPool.QueryRow(context.Background(),
		"SELECT quantity FROM products WHERE store_id = $1 AND sku = $2 AND deleted_at IS NULL",
		storeID, sku).Scan(&quantity)
	s.Require().NoError(err)
	return quantity
}

func (s *ImportE2ESuite) decodeResponse(resp *http.Response, v interface{}) {
	defer resp.Body.Close()
	err := json.NewDecoder(resp.Body).Decode(v)
	s.NoError(err)
}

const deltaHeader = "product_id,sku,barcode,delta_quantity,store_location_id,reason,occurred_at,external_ref\n"

func (s *ImportE2ESuite) TestCompleteImportWorkflow() {
	s.seedProduct("S1", "SKU-1", 5)

	csv := deltaHeader +
		",SKU-1,,10,,restock,,PO-1\n" +
		",SKU-1,,-3,,sale,,SALE-1\n"

	// 1. Submit the batch
	resp := s.submitCSV("S1", "e2e-key-1", csv)
	s.Equal(http.StatusOK, resp.StatusCode)

	var result map[string]interface{}
	s.decodeResponse(resp, &result)
	s.Equal(false, result["replayed"])
	s.EqualValues(2, result["applied_count"])
	s.EqualValues(0, result["conflict_count"])
	batchID := result["batch_id"].(string)
	s.NotEmpty(batchID)

	// 2. Stock reflects both deltas: 5 + 10 - 3
	s.Equal(12, s.productQuantity("S1", "SKU-1"))

	// 3. Batch status is retrievable
	resp2, err := s.client.Get(fmt.Sprintf("%s/stores/S1/inventory/import/%s", s.baseURL, batchID))
	s.NoError(err)
	s.Equal(http.StatusOK, resp2.StatusCode)

	var batch map[string]interface{}
	s.decodeResponse(resp2, &batch)
	s.Equal("completed", batch["status"])

	// 4. The batch shows up in the store's import history
	resp3, err := s.client.Get(fmt.Sprintf("%s/stores/S1/inventory/imports", s.baseURL))
	s.NoError(err)
	s.Equal(http.StatusOK, resp3.StatusCode)

	var history map[string]interface{}
	s.decodeResponse(resp3, &history)
	s.EqualValues(1, history["count"])
}

func (s *ImportE2ESuite) TestIdempotentResubmission() {
	s.seedProduct("S1", "SKU-1", 5)

	csv := deltaHeader + ",SKU-1,,10,,restock,,PO-1\n"

	resp := s.submitCSV("S1", "e2e-key-2", csv)
	s.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	s.Equal(15, s.productQuantity("S1", "SKU-1"))

	// Same key, same content: replayed, stock unchanged
	resp = s.submitCSV("S1", "e2e-key-2", csv)
	s.Equal(http.StatusOK, resp.StatusCode)

	var result map[string]interface{}
	s.decodeResponse(resp, &result)
	s.Equal(true, result["replayed"])
	s.Equal(15, s.productQuantity("S1", "SKU-1"))
}

func (s *ImportE2ESuite) TestKeyReuseWithDifferentContent() {
	s.seedProduct("S1", "SKU-1", 5)

	resp := s.submitCSV("S1", "e2e-key-3", deltaHeader+",SKU-1,,10,,restock,,PO-1\n")
	s.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Same key, different content: rejected, stock unchanged
	resp = s.submitCSV("S1", "e2e-key-3", deltaHeader+",SKU-1,,99,,restock,,PO-2\n")
	s.Equal(http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
	s.Equal(15, s.productQuantity("S1", "SKU-1"))
}

func (s *ImportE2ESuite) TestNegativeStockConflict() {
	s.seedProduct("S1", "SKU-2", 2)

	resp := s.submitCSV("S1", "e2e-key-4", deltaHeader+",SKU-2,,-5,,sale,,SALE-9\n")
	s.Equal(http.StatusOK, resp.StatusCode)

	var result map[string]interface{}
	s.decodeResponse(resp, &result)
	s.EqualValues(0, result["applied_count"])
	s.EqualValues(1, result["conflict_count"])

	// Stock untouched
	s.Equal(2, s.productQuantity("S1", "SKU-2"))
}

func (s *ImportE2ESuite) TestRowIndependence() {
	s.seedProduct("S1", "SKU-1", 5)

	csv := deltaHeader +
		",SKU-1,,10,,restock,,PO-1\n" +
		",SKU-MISSING,,-1,,sale,,SALE-1\n" +
		",,,not-a-number,,sale,,SALE-2\n"

	resp := s.submitCSV("S1", "e2e-key-5", csv)
	s.Equal(http.StatusOK, resp.StatusCode)

	var result map[string]interface{}
	s.decodeResponse(resp, &result)
	s.EqualValues(1, result["applied_count"])
	s.EqualValues(2, result["conflict_count"])

	// The well-formed row applied despite its neighbors
	s.Equal(15, s.productQuantity("S1", "SKU-1"))
}

func (s *ImportE2ESuite) TestTemplateRoundTrip() {
	resp, err := s.client.Get(s.baseURL + "/inventory/import/template")
	s.NoError(err)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("text/csv", resp.Header.Get("Content-Type"))

	template, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	s.NoError(err)

	// Seed the SKUs the template references, then submit it unmodified
	s.seedProduct("S1", "SKU-123", 10)
	s.seedProduct("S1", "SKU-999", 10)

	resp = s.submitCSV("S1", "e2e-key-6", string(template))
	s.Equal(http.StatusOK, resp.StatusCode)

	var result map[string]interface{}
	s.decodeResponse(resp, &result)
	s.EqualValues(3, result["applied_count"])
	s.EqualValues(0, result["conflict_count"])

	// 10 + 10 - 2 for SKU-123, 10 - 1 for SKU-999
	s.Equal(18, s.productQuantity("S1", "SKU-123"))
	s.Equal(9, s.productQuantity("S1", "SKU-999"))
}

func (s *ImportE2ESuite) TestConcurrentDistinctImports() {
	// Ten distinct keys against ten distinct SKUs apply independently
	for i := 0; i < 10; i++ {
		s.seedProduct("S1", fmt.Sprintf("SKU-C%d", i), 5)
	}

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func(idx int) {
			defer func() { done <- true }()

			csv := deltaHeader + fmt.Sprintf(",SKU-C%d,,7,,restock,,PO-%d\n", idx, idx)
			resp := s.submitCSV("S1", fmt.Sprintf("e2e-concurrent-%d", idx), csv)
			s.Equal(http.StatusOK, resp.StatusCode)
			resp.Body.Close()
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	for i := 0; i < 10; i++ {
		s.Equal(12, s.productQuantity("S1", fmt.Sprintf("SKU-C%d", i)))
	}
}

func TestImportE2ESuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E tests in short mode")
	}
	suite.Run(t, new(ImportE2ESuite))
}
