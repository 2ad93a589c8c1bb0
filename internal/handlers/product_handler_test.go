// internal/handlers/product_handler_test.go
package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/piaxis/inventory-sync/internal/core/domain"
	"github.com/piaxis/inventory-sync/internal/core/ports"
	"github.com/piaxis/inventory-sync/internal/handlers"
	"github.com/piaxis/inventory-sync/test/helpers"
	"github.com/piaxis/inventory-sync/test/mocks"
)

func TestProductHandler_GetProduct(t *testing.T) {
	testProduct := helpers.CreateTestProduct()

	tests := []struct {
		name           string
		productID      string
		setupMocks     func(*mocks.ProductService)
		expectedStatus int
		validateBody   func(*testing.T, []byte)
	}{
		{
			name:      "returns_product",
			productID: testProduct.ProductID.String(),
			setupMocks: func(m *mocks.ProductService) {
				m.On("GetByID", mock.Anything, "store-1", testProduct.ProductID).
					Return(testProduct, nil)
			},
			expectedStatus: http.StatusOK,
			validateBody: func(t *testing.T, body []byte) {
				var got domain.Product
				require.NoError(t, json.Unmarshal(body, &got))
				assert.Equal(t, testProduct.SKU, got.SKU)
				assert.Equal(t, testProduct.Quantity, got.Quantity)
			},
		},
		{
			name:           "invalid_product_id",
			productID:      "not-a-uuid",
			setupMocks:     func(m *mocks.ProductService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:      "product_not_found",
			productID: testProduct.ProductID.String(),
			setupMocks: func(m *mocks.ProductService) {
				m.On("GetByID", mock.Anything, "store-1", testProduct.ProductID).
					Return(nil, fmt.Errorf("product not found: %s", testProduct.ProductID))
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:      "service_error",
			productID: testProduct.ProductID.String(),
			setupMocks: func(m *mocks.ProductService) {
				m.On("GetByID", mock.Anything, "store-1", testProduct.ProductID).
					Return(nil, errors.New("connection refused"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(mocks.ProductService)
			tt.setupMocks(service)

			handler := handlers.NewProductHandler(service, helpers.TestLogger())

			req := httptest.NewRequest(http.MethodGet, "/api/v1/stores/store-1/products/"+tt.productID, nil)
			req.SetPathValue("storeID", "store-1")
			req.SetPathValue("id", tt.productID)
			w := httptest.NewRecorder()

			handler.GetProduct(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.validateBody != nil {
				tt.validateBody(t, w.Body.Bytes())
			}
			service.AssertExpectations(t)
		})
	}
}

func TestProductHandler_ListProducts(t *testing.T) {
	products := helpers.CreateTestProducts(3)

	service := new(mocks.ProductService)
	service.On("List", mock.Anything, mock.MatchedBy(func(p ports.ListParams) bool {
		return p.StoreID == "store-1" && p.Page == 2 && p.PageSize == 10 &&
			p.SKU == "SKU-001" && p.SortBy == "sku" && p.SortOrder == "asc"
	})).Return(&ports.ListResult{
		Products:   []*domain.Product{&products[0], &products[1], &products[2]},
		Page:       2,
		PageSize:   10,
		TotalCount: 13,
		TotalPages: 2,
	}, nil)

	handler := handlers.NewProductHandler(service, helpers.TestLogger())

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/stores/store-1/products?page=2&limit=10&sku=SKU-001&sort=sku&order=asc", nil)
	req.SetPathValue("storeID", "store-1")
	w := httptest.NewRecorder()

	handler.ListProducts(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var result ports.ListResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Len(t, result.Products, 3)
	assert.EqualValues(t, 13, result.TotalCount)
	service.AssertExpectations(t)
}

func TestProductHandler_CreateProduct(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setupMocks     func(*mocks.ProductService)
		expectedStatus int
	}{
		{
			name: "creates_product",
			body: `{"sku":"SKU-100","name":"Espresso Beans 500g","unit_price":12.40,"quantity":30}`,
			setupMocks: func(m *mocks.ProductService) {
				m.On("SaveProduct", mock.Anything, mock.MatchedBy(func(p *domain.Product) bool {
					return p.StoreID == "store-1" && p.SKU == "SKU-100" &&
						p.Quantity == 30 && p.ProductID != uuid.Nil
				})).Return(nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "rejects_missing_sku",
			body:           `{"name":"No SKU","quantity":5}`,
			setupMocks:     func(m *mocks.ProductService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "rejects_negative_quantity",
			body:           `{"sku":"SKU-101","name":"Bad Quantity","quantity":-1}`,
			setupMocks:     func(m *mocks.ProductService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "rejects_malformed_json",
			body:           `{"sku":`,
			setupMocks:     func(m *mocks.ProductService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "service_error",
			body: `{"sku":"SKU-102","name":"Fails","quantity":1}`,
			setupMocks: func(m *mocks.ProductService) {
				m.On("SaveProduct", mock.Anything, mock.Anything).
					Return(errors.New("unique constraint violation"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(mocks.ProductService)
			tt.setupMocks(service)

			handler := handlers.NewProductHandler(service, helpers.TestLogger())

			req := httptest.NewRequest(http.MethodPost, "/api/v1/stores/store-1/products",
				bytes.NewReader([]byte(tt.body)))
			req.Header.Set("Content-Type", "application/json")
			req.SetPathValue("storeID", "store-1")
			w := httptest.NewRecorder()

			handler.CreateProduct(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			service.AssertExpectations(t)
		})
	}
}

func TestProductHandler_DeleteProduct(t *testing.T) {
	productID := uuid.New()

	tests := []struct {
		name           string
		query          string
		permanent      bool
		expectedStatus int
	}{
		{
			name:           "soft_delete",
			query:          "",
			permanent:      false,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "permanent_delete",
			query:          "?permanent=true",
			permanent:      true,
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(mocks.ProductService)
			service.On("DeleteProduct", mock.Anything, "store-1", productID, tt.permanent).
				Return(nil)

			handler := handlers.NewProductHandler(service, helpers.TestLogger())

			req := httptest.NewRequest(http.MethodDelete,
				"/api/v1/stores/store-1/products/"+productID.String()+tt.query, nil)
			req.SetPathValue("storeID", "store-1")
			req.SetPathValue("id", productID.String())
			w := httptest.NewRecorder()

			handler.DeleteProduct(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			service.AssertExpectations(t)
		})
	}
}

func TestProductHandler_UpdateProduct(t *testing.T) {
	testProduct := helpers.CreateTestProduct()

	service := new(mocks.ProductService)
	service.On("UpdateProduct", mock.Anything, "store-1", testProduct.ProductID, mock.Anything).
		Return(nil)
	service.On("GetByID", mock.Anything, "store-1", testProduct.ProductID).
		Return(testProduct, nil)

	handler := handlers.NewProductHandler(service, helpers.TestLogger())

	body := `{"sku":"SKU-001","name":"Renamed Product","quantity":40}`
	req := httptest.NewRequest(http.MethodPut,
		"/api/v1/stores/store-1/products/"+testProduct.ProductID.String(),
		bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	req.SetPathValue("storeID", "store-1")
	req.SetPathValue("id", testProduct.ProductID.String())
	w := httptest.NewRecorder()

	handler.UpdateProduct(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	service.AssertExpectations(t)
}
