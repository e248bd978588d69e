package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/internal/inventory/service"
	"github.com/stockflow/stockflow-backend/pkg/actor"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// ProductHandler handles product endpoints
type ProductHandler struct {
	service     *service.InventoryService
	logger      *logger.Logger
	sampleLimit int
}

// NewProductHandler creates a new product handler
func NewProductHandler(svc *service.InventoryService, log *logger.Logger, sampleLimit int) *ProductHandler {
	return &ProductHandler{
		service:     svc,
		logger:      log,
		sampleLimit: sampleLimit,
	}
}

// CreateProductRequest is the payload for creating a product
type CreateProductRequest struct {
	Name          string          `json:"name" validate:"required,min=1,max=255"`
	Description   *string         `json:"description,omitempty"`
	SKU           *string         `json:"sku,omitempty" validate:"omitempty,max=100"`
	Quantity      int             `json:"quantity" validate:"gte=0"`
	MinStockLevel int             `json:"min_stock_level" validate:"gte=0"`
	CustomFields  json.RawMessage `json:"custom_fields,omitempty"`
	CategoryID    *string         `json:"category_id,omitempty" validate:"omitempty,uuid"`
	WarehouseID   *string         `json:"warehouse_id,omitempty" validate:"omitempty,uuid"`
	GenerateUnits bool            `json:"generate_units"`
}

// Create creates a new product, optionally generating one tracked unit
// per point of quantity
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.CreateProduct(r.Context(), service.CreateProductInput{
		Name:          req.Name,
		Description:   req.Description,
		SKU:           req.SKU,
		Quantity:      req.Quantity,
		MinStockLevel: req.MinStockLevel,
		CustomFields:  req.CustomFields,
		CategoryID:    req.CategoryID,
		WarehouseID:   req.WarehouseID,
		GenerateUnits: req.GenerateUnits,
		CreatedBy:     actorID(r),
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	trimUnitSample(result, h.sampleLimit)
	httputil.Created(w, result)
}

// List lists products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := pagination(r)

	filter := repository.ProductFilter{
		CategoryID:  r.URL.Query().Get("category_id"),
		WarehouseID: r.URL.Query().Get("warehouse_id"),
		Search:      r.URL.Query().Get("search"),
		LowStock:    r.URL.Query().Get("low_stock") == "true",
	}

	products, total, err := h.service.ListProducts(r.Context(), page, perPage, filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, products, paginationMeta(page, perPage, total))
}

// Get gets a product with its unit count and a bounded unit sample
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	detail, err := h.service.GetProduct(r.Context(), id, h.sampleLimit)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, detail)
}

// UpdateProductRequest is the payload for updating a product
type UpdateProductRequest struct {
	Name          string          `json:"name" validate:"required,min=1,max=255"`
	Description   *string         `json:"description,omitempty"`
	SKU           *string         `json:"sku,omitempty" validate:"omitempty,max=100"`
	MinStockLevel int             `json:"min_stock_level" validate:"gte=0"`
	CustomFields  json.RawMessage `json:"custom_fields,omitempty"`
	CategoryID    *string         `json:"category_id,omitempty" validate:"omitempty,uuid"`
	WarehouseID   *string         `json:"warehouse_id,omitempty" validate:"omitempty,uuid"`
	Quantity      *int            `json:"quantity,omitempty" validate:"omitempty,gte=0"`
	GenerateUnits bool            `json:"generate_units"`
}

// Update updates a product. Raising the quantity with generate_units set
// backfills the missing units.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateProductRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.UpdateProduct(r.Context(), service.UpdateProductInput{
		ID:            id,
		Name:          req.Name,
		Description:   req.Description,
		SKU:           req.SKU,
		MinStockLevel: req.MinStockLevel,
		CustomFields:  req.CustomFields,
		CategoryID:    req.CategoryID,
		WarehouseID:   req.WarehouseID,
		Quantity:      req.Quantity,
		GenerateUnits: req.GenerateUnits,
		UpdatedBy:     actorID(r),
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	trimUnitSample(result, h.sampleLimit)
	httputil.JSON(w, http.StatusOK, result)
}

// Delete deletes a product. Without cascade=true the delete is rejected
// while tracked units remain.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	policy := service.RejectIfUnitsExist
	if r.URL.Query().Get("cascade") == "true" {
		policy = service.CascadeUnits
	}

	if err := h.service.DeleteProduct(r.Context(), id, policy); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// Category and warehouse lookups

// ListCategories lists all categories
func (h *ProductHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, categories)
}

// CreateCategoryRequest is the payload for creating a category
type CreateCategoryRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=255"`
	Description *string `json:"description,omitempty"`
}

// CreateCategory creates a category
func (h *ProductHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	category := &repository.Category{Name: req.Name, Description: req.Description}
	if err := h.service.CreateCategory(r.Context(), category); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, category)
}

// ListWarehouses lists all warehouses
func (h *ProductHandler) ListWarehouses(w http.ResponseWriter, r *http.Request) {
	warehouses, err := h.service.ListWarehouses(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, warehouses)
}

// CreateWarehouseRequest is the payload for creating a warehouse
type CreateWarehouseRequest struct {
	Name     string  `json:"name" validate:"required,min=1,max=255"`
	Location *string `json:"location,omitempty"`
}

// CreateWarehouse creates a warehouse
func (h *ProductHandler) CreateWarehouse(w http.ResponseWriter, r *http.Request) {
	var req CreateWarehouseRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	warehouse := &repository.Warehouse{Name: req.Name, Location: req.Location}
	if err := h.service.CreateWarehouse(r.Context(), warehouse); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, warehouse)
}

// Helpers shared across inventory handlers

func pagination(r *http.Request) (page, perPage int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	perPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	return page, perPage
}

func paginationMeta(page, perPage int, total int64) *httputil.Meta {
	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}

	return &httputil.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}
}

// actorID returns the acting user's ID from the request context, if any
func actorID(r *http.Request) *string {
	a := actor.FromContext(r.Context())
	if a == nil {
		return nil
	}
	return &a.ID
}

// trimUnitSample caps the units echoed back in create/update responses.
// Counts stay intact so the caller can still see the full batch outcome.
func trimUnitSample(result *service.ProductWithUnits, limit int) {
	if result.Units != nil && limit > 0 && len(result.Units.Units) > limit {
		result.Units.Units = result.Units.Units[:limit]
	}
}
