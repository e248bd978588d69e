package service

import (
	"context"
	"encoding/json"

	"github.com/stockflow/stockflow-backend/internal/inventory/events"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/internal/inventory/unitid"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// DeletionPolicy controls what happens to a product's units on delete
type DeletionPolicy string

const (
	// CascadeUnits deletes all units along with the product
	CascadeUnits DeletionPolicy = "cascade"
	// RejectIfUnitsExist refuses to delete a product that still has units
	RejectIfUnitsExist DeletionPolicy = "reject"
)

// InventoryService handles inventory business logic
type InventoryService struct {
	productRepo   *repository.ProductRepository
	unitRepo      *repository.UnitRepository
	categoryRepo  *repository.CategoryRepository
	warehouseRepo *repository.WarehouseRepository
	idgen         *unitid.Generator
	publisher     *events.InventoryEventPublisher
	logger        *logger.Logger
	qrCodeSize    int
}

// NewInventoryService creates a new inventory service
func NewInventoryService(
	productRepo *repository.ProductRepository,
	unitRepo *repository.UnitRepository,
	categoryRepo *repository.CategoryRepository,
	warehouseRepo *repository.WarehouseRepository,
	idgen *unitid.Generator,
	publisher *events.InventoryEventPublisher,
	log *logger.Logger,
	qrCodeSize int,
) *InventoryService {
	return &InventoryService{
		productRepo:   productRepo,
		unitRepo:      unitRepo,
		categoryRepo:  categoryRepo,
		warehouseRepo: warehouseRepo,
		idgen:         idgen,
		publisher:     publisher,
		logger:        log,
		qrCodeSize:    qrCodeSize,
	}
}

// CreateProductInput is the input for creating a product
type CreateProductInput struct {
	Name          string
	Description   *string
	SKU           *string
	Quantity      int
	MinStockLevel int
	CustomFields  json.RawMessage
	CategoryID    *string
	WarehouseID   *string
	GenerateUnits bool
	CreatedBy     *string
}

// ProductWithUnits is a product together with a batch creation report
type ProductWithUnits struct {
	*repository.Product
	Units *BatchResult `json:"units,omitempty"`
}

// ProductDetail is a product with its related lookups and a sample of units
type ProductDetail struct {
	*repository.Product
	Category   *repository.Category      `json:"category,omitempty"`
	Warehouse  *repository.Warehouse     `json:"warehouse,omitempty"`
	UnitCount  int                       `json:"unit_count"`
	UnitSample []*repository.ProductUnit `json:"unit_sample,omitempty"`
}

// CreateProduct creates a product and, when requested, one unit per point
// of initial quantity. Unit generation runs after the product row exists
// and is not transactional with it: a partial batch leaves the product in
// place with the result reporting created versus requested.
func (s *InventoryService) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductWithUnits, error) {
	if input.Quantity < 0 {
		return nil, errors.Validation(map[string]string{"quantity": "must not be negative"})
	}

	product := &repository.Product{
		Name:          input.Name,
		Description:   input.Description,
		SKU:           input.SKU,
		Quantity:      input.Quantity,
		MinStockLevel: input.MinStockLevel,
		CustomFields:  input.CustomFields,
		CategoryID:    input.CategoryID,
		WarehouseID:   input.WarehouseID,
		CreatedBy:     input.CreatedBy,
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, err
	}

	result := &ProductWithUnits{Product: product}

	if input.GenerateUnits && input.Quantity > 0 {
		batch := s.createUnits(ctx, product, input.Quantity, 1, input.CreatedBy)
		result.Units = batch

		s.publisher.PublishUnitBatchCreated(ctx, product.ID, batch.Requested, batch.Created, batch.UnitIDs(), input.CreatedBy)
	}

	s.checkLowStock(ctx, product)

	return result, nil
}

// GetProduct gets a product with related lookups and a bounded sample of
// its units.
func (s *InventoryService) GetProduct(ctx context.Context, id string, sampleLimit int) (*ProductDetail, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &ProductDetail{Product: product}

	count, err := s.unitRepo.CountByProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.UnitCount = count

	if sampleLimit > 0 {
		units, _, err := s.unitRepo.ListByProduct(ctx, id, "", 1, sampleLimit)
		if err != nil {
			return nil, err
		}
		detail.UnitSample = units
	}

	if product.CategoryID != nil {
		detail.Category, _ = s.categoryRepo.GetByID(ctx, *product.CategoryID)
	}
	if product.WarehouseID != nil {
		detail.Warehouse, _ = s.warehouseRepo.GetByID(ctx, *product.WarehouseID)
	}

	return detail, nil
}

// ListProducts lists products with pagination and filters
func (s *InventoryService) ListProducts(ctx context.Context, page, perPage int, filter repository.ProductFilter) ([]*repository.Product, int64, error) {
	return s.productRepo.List(ctx, page, perPage, filter)
}

// UpdateProductInput is the input for updating a product
type UpdateProductInput struct {
	ID            string
	Name          string
	Description   *string
	SKU           *string
	MinStockLevel int
	CustomFields  json.RawMessage
	CategoryID    *string
	WarehouseID   *string
	Quantity      *int
	GenerateUnits bool
	UpdatedBy     *string
}

// UpdateProduct updates a product. When the quantity is raised and unit
// generation is requested, the quantity field is written first and the
// missing units are backfilled afterwards. A partial backfill does not
// roll the quantity back; the returned batch result carries the shortfall
// so callers can surface it.
func (s *InventoryService) UpdateProduct(ctx context.Context, input UpdateProductInput) (*ProductWithUnits, error) {
	if input.Quantity != nil && *input.Quantity < 0 {
		return nil, errors.Validation(map[string]string{"quantity": "must not be negative"})
	}

	current, err := s.productRepo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	product := &repository.Product{
		ID:            input.ID,
		Name:          input.Name,
		Description:   input.Description,
		SKU:           input.SKU,
		Quantity:      current.Quantity,
		MinStockLevel: input.MinStockLevel,
		CustomFields:  input.CustomFields,
		CategoryID:    input.CategoryID,
		WarehouseID:   input.WarehouseID,
		CreatedBy:     current.CreatedBy,
		UpdatedBy:     input.UpdatedBy,
		CreatedAt:     current.CreatedAt,
	}
	if product.CustomFields == nil {
		product.CustomFields = current.CustomFields
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, err
	}

	result := &ProductWithUnits{Product: product}

	if input.Quantity != nil && *input.Quantity != current.Quantity {
		if err := s.productRepo.UpdateQuantity(ctx, product.ID, *input.Quantity, input.UpdatedBy); err != nil {
			return nil, err
		}
		product.Quantity = *input.Quantity

		s.publisher.PublishProductQuantityChanged(ctx, product.ID, current.Quantity, *input.Quantity, "product_update", input.UpdatedBy)

		// Backfill only grows the unit set; a lowered quantity leaves
		// existing units untouched.
		missing := *input.Quantity - current.Quantity
		if input.GenerateUnits && missing > 0 {
			batch, err := s.backfillUnits(ctx, product, missing, input.UpdatedBy)
			if err != nil {
				return nil, err
			}
			result.Units = batch
		}

		s.checkLowStock(ctx, product)
	}

	return result, nil
}

// backfillUnits creates count units continuing from the live unit count
func (s *InventoryService) backfillUnits(ctx context.Context, product *repository.Product, count int, createdBy *string) (*BatchResult, error) {
	startSeq, err := s.nextSequence(ctx, product.ID)
	if err != nil {
		return nil, err
	}

	batch := s.createUnits(ctx, product, count, startSeq, createdBy)
	s.publisher.PublishUnitBatchCreated(ctx, product.ID, batch.Requested, batch.Created, batch.UnitIDs(), createdBy)

	return batch, nil
}

// DeleteProduct deletes a product under the given policy. With
// RejectIfUnitsExist the delete fails with a Conflict while units remain;
// with CascadeUnits all units are removed first.
func (s *InventoryService) DeleteProduct(ctx context.Context, id string, policy DeletionPolicy) error {
	if _, err := s.productRepo.GetByID(ctx, id); err != nil {
		return err
	}

	count, err := s.unitRepo.CountByProduct(ctx, id)
	if err != nil {
		return err
	}

	if count > 0 {
		switch policy {
		case CascadeUnits:
			deleted, err := s.unitRepo.DeleteByProduct(ctx, id)
			if err != nil {
				return err
			}
			s.logger.Info().
				Str("product_id", id).
				Int64("units_deleted", deleted).
				Msg("cascade deleted product units")
		case RejectIfUnitsExist:
			return errors.Conflict("product still has tracked units; delete them first or request cascade")
		default:
			return errors.InvalidArgument("unknown deletion policy")
		}
	}

	return s.productRepo.SoftDelete(ctx, id)
}

// nextSequence returns the next 1-based unit sequence for a product.
// It is a live-count snapshot, not an atomic counter: concurrent batch
// creation for the same product can race, with the unique index on
// unit_id rejecting the loser. Callers that care should serialize batch
// creation per product.
func (s *InventoryService) nextSequence(ctx context.Context, productID string) (int, error) {
	count, err := s.unitRepo.CountByProduct(ctx, productID)
	if err != nil {
		return 0, err
	}
	return count + 1, nil
}

// checkLowStock publishes a low stock event when the product sits at or
// below its minimum level.
func (s *InventoryService) checkLowStock(ctx context.Context, product *repository.Product) {
	if product.MinStockLevel <= 0 || product.Quantity > product.MinStockLevel {
		return
	}

	severity := "warning"
	if product.Quantity == 0 {
		severity = "critical"
	}

	s.publisher.PublishProductLowStock(ctx, product.ID, product.Name, product.Quantity, product.MinStockLevel, severity)
}

// Category and warehouse lookups

// CreateCategory creates a category
func (s *InventoryService) CreateCategory(ctx context.Context, c *repository.Category) error {
	return s.categoryRepo.Create(ctx, c)
}

// ListCategories lists all categories
func (s *InventoryService) ListCategories(ctx context.Context) ([]*repository.Category, error) {
	return s.categoryRepo.List(ctx)
}

// CreateWarehouse creates a warehouse
func (s *InventoryService) CreateWarehouse(ctx context.Context, w *repository.Warehouse) error {
	return s.warehouseRepo.Create(ctx, w)
}

// ListWarehouses lists all warehouses
func (s *InventoryService) ListWarehouses(ctx context.Context) ([]*repository.Warehouse, error) {
	return s.warehouseRepo.List(ctx)
}
