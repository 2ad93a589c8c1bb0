// internal/handlers/product.go
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/piaxis/inventory-sync/internal/core/domain"
	"github.com/piaxis/inventory-sync/internal/core/ports"
)

// ProductHandler handles product-related HTTP requests
type ProductHandler struct {
	service ports.ProductService
	logger  *slog.Logger
}

// NewProductHandler creates a new product handler
func NewProductHandler(service ports.ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "product")),
	}
}

// GetProduct handles GET /api/v1/stores/{storeID}/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	storeID := r.PathValue("storeID")
	idStr := r.PathValue("id")

	productID, err := uuid.Parse(idStr)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid product ID format")
		return
	}

	product, err := h.service.GetByID(ctx, storeID, productID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to get product",
			slog.String("store_id", storeID),
			slog.String("product_id", idStr),
			err)

		if err.Error() == "product not found: "+idStr {
			h.respondError(w, http.StatusNotFound, "Product not found")
			return
		}

		h.respondError(w, http.StatusInternalServerError, "Failed to retrieve product")
		return
	}

	h.respondJSON(w, http.StatusOK, product)
}

// ListProducts handles GET /api/v1/stores/{storeID}/products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	params := h.parseListParams(r)

	result, err := h.service.List(ctx, params)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list products",
			slog.String("store_id", params.StoreID),
			err)
		h.respondError(w, http.StatusInternalServerError, "Failed to list products")
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// CreateProduct handles POST /api/v1/stores/{storeID}/products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	storeID := r.PathValue("storeID")

	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := req.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	product := req.ToDomain(storeID)

	if err := h.service.SaveProduct(ctx, product); err != nil {
		h.logger.ErrorContext(ctx, "failed to create product",
			slog.String("store_id", storeID),
			slog.String("sku", product.SKU),
			err)
		h.respondError(w, http.StatusInternalServerError, "Failed to create product")
		return
	}

	h.logger.InfoContext(ctx, "product created",
		slog.String("product_id", product.ProductID.String()),
		slog.String("sku", product.SKU))

	h.respondJSON(w, http.StatusCreated, product)
}

// UpdateProduct handles PUT /api/v1/stores/{storeID}/products/{id}
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	storeID := r.PathValue("storeID")
	idStr := r.PathValue("id")

	productID, err := uuid.Parse(idStr)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid product ID format")
		return
	}

	var req UpdateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := req.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	product := req.ToDomain(storeID)

	if err := h.service.UpdateProduct(ctx, storeID, productID, product); err != nil {
		h.logger.ErrorContext(ctx, "failed to update product",
			slog.String("store_id", storeID),
			slog.String("product_id", idStr),
			err)

		if err.Error() == "product not found: "+idStr {
			h.respondError(w, http.StatusNotFound, "Product not found")
			return
		}

		h.respondError(w, http.StatusInternalServerError, "Failed to update product")
		return
	}

	updated, err := h.service.GetByID(ctx, storeID, productID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to retrieve updated product",
			slog.String("product_id", idStr),
			err)
		// Still return success even if we can't retrieve the updated product
		h.respondJSON(w, http.StatusOK, map[string]string{"message": "Product updated successfully"})
		return
	}

	h.logger.InfoContext(ctx, "product updated",
		slog.String("product_id", idStr))

	h.respondJSON(w, http.StatusOK, updated)
}

// DeleteProduct handles DELETE /api/v1/stores/{storeID}/products/{id}
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	storeID := r.PathValue("storeID")
	idStr := r.PathValue("id")

	productID, err := uuid.Parse(idStr)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid product ID format")
		return
	}

	permanent := r.URL.Query().Get("permanent") == "true"

	if err := h.service.DeleteProduct(ctx, storeID, productID, permanent); err != nil {
		h.logger.ErrorContext(ctx, "failed to delete product",
			slog.String("store_id", storeID),
			slog.String("product_id", idStr),
			slog.Bool("permanent", permanent),
			err)

		if err.Error() == "product not found: "+idStr {
			h.respondError(w, http.StatusNotFound, "Product not found")
			return
		}

		h.respondError(w, http.StatusInternalServerError, "Failed to delete product")
		return
	}

	h.logger.InfoContext(ctx, "product deleted",
		slog.String("product_id", idStr),
		slog.Bool("permanent", permanent))

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Product deleted successfully",
		"product_id": idStr,
		"permanent":  permanent,
	})
}

// parseListParams parses query parameters for listing products
func (h *ProductHandler) parseListParams(r *http.Request) ports.ListParams {
	params := ports.ListParams{
		StoreID:   r.PathValue("storeID"),
		Page:      1,
		PageSize:  50,
		SortBy:    "created_at",
		SortOrder: "desc",
	}

	// Parse pagination
	if page := r.URL.Query().Get("page"); page != "" {
		if p, err := strconv.Atoi(page); err == nil && p > 0 {
			params.Page = p
		}
	}

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil && l > 0 {
			if l > 100 {
				params.PageSize = 100
			} else {
				params.PageSize = l
			}
		}
	}

	// Parse filters
	params.Search = r.URL.Query().Get("search")
	params.SKU = r.URL.Query().Get("sku")
	params.Barcode = r.URL.Query().Get("barcode")
	params.LocationID = r.URL.Query().Get("location_id")

	if inStock := r.URL.Query().Get("in_stock"); inStock != "" {
		if val, err := strconv.ParseBool(inStock); err == nil {
			params.InStock = &val
		}
	}

	// Parse sorting
	if sortBy := r.URL.Query().Get("sort"); sortBy != "" {
		params.SortBy = sortBy
	}

	if order := r.URL.Query().Get("order"); order == "asc" || order == "desc" {
		params.SortOrder = order
	}

	return params
}

// Helper methods

func (h *ProductHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response",
			slog.String("error", err.Error()))
	}
}

func (h *ProductHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

// Request/Response DTOs

// CreateProductRequest represents the request body for creating a product
type CreateProductRequest struct {
	SKU         string          `json:"sku"`
	Barcode     string          `json:"barcode,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	LocationID  string          `json:"location_id,omitempty"`
}

// Validate validates the create product request
func (r *CreateProductRequest) Validate() error {
	if r.SKU == "" {
		return fmt.Errorf("sku is required")
	}
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if r.Quantity < 0 {
		return fmt.Errorf("quantity cannot be negative")
	}
	if r.UnitPrice.IsNegative() {
		return fmt.Errorf("unit_price cannot be negative")
	}
	return nil
}

// ToDomain converts the request to a domain model
func (r *CreateProductRequest) ToDomain(storeID string) *domain.Product {
	return &domain.Product{
		ProductID:   uuid.New(),
		StoreID:     storeID,
		SKU:         r.SKU,
		Barcode:     r.Barcode,
		Name:        r.Name,
		Description: r.Description,
		UnitPrice:   r.UnitPrice,
		Quantity:    r.Quantity,
		LocationID:  r.LocationID,
	}
}

// UpdateProductRequest represents the request body for updating a product
type UpdateProductRequest struct {
	SKU         string          `json:"sku"`
	Barcode     string          `json:"barcode,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	LocationID  string          `json:"location_id,omitempty"`
}

// Validate validates the update product request
func (r *UpdateProductRequest) Validate() error {
	if r.SKU == "" {
		return fmt.Errorf("sku is required")
	}
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if r.Quantity < 0 {
		return fmt.Errorf("quantity cannot be negative")
	}
	if r.UnitPrice.IsNegative() {
		return fmt.Errorf("unit_price cannot be negative")
	}
	return nil
}

// ToDomain converts the request to a domain model
func (r *UpdateProductRequest) ToDomain(storeID string) *domain.Product {
	return &domain.Product{
		StoreID:     storeID,
		SKU:         r.SKU,
		Barcode:     r.Barcode,
		Name:        r.Name,
		Description: r.Description,
		UnitPrice:   r.UnitPrice,
		Quantity:    r.Quantity,
		LocationID:  r.LocationID,
	}
}
