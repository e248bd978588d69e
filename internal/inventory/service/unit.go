package service

import (
	"context"

	"github.com/skip2/go-qrcode"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/internal/inventory/unitid"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// BatchResult reports the outcome of a unit generation batch. Created can
// be lower than Requested: generation is unit-by-unit and deliberately not
// transactional, so a mid-batch failure keeps the units already written.
type BatchResult struct {
	Requested int                       `json:"requested"`
	Created   int                       `json:"created"`
	Units     []*repository.ProductUnit `json:"units"`
	// FailureReason carries the first error of a partial batch
	FailureReason string `json:"failure_reason,omitempty"`
}

// UnitIDs returns the human-readable identifiers of the created units
func (b *BatchResult) UnitIDs() []string {
	ids := make([]string, len(b.Units))
	for i, u := range b.Units {
		ids[i] = u.UnitID
	}
	return ids
}

// CreateUnits generates count units for a product, continuing from the
// current live unit count, and raises the product quantity to match.
func (s *InventoryService) CreateUnits(ctx context.Context, productID string, count int, createdBy *string) (*BatchResult, error) {
	if count < 1 {
		return nil, errors.InvalidArgument("count must be at least 1")
	}

	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	// Quantity first, then the unit rows. A partial batch leaves the
	// quantity at the requested value and reports the shortfall, same
	// as the backfill on product updates.
	newQuantity := product.Quantity + count
	if err := s.productRepo.UpdateQuantity(ctx, productID, newQuantity, createdBy); err != nil {
		return nil, err
	}
	s.publisher.PublishProductQuantityChanged(ctx, productID, product.Quantity, newQuantity, "units_added", createdBy)
	product.Quantity = newQuantity

	return s.backfillUnits(ctx, product, count, createdBy)
}

// createUnits writes count units with sequences startSeq..startSeq+count-1.
// On the first failure the batch stops and reports the shortfall; units
// already written stay in place.
func (s *InventoryService) createUnits(ctx context.Context, product *repository.Product, count, startSeq int, createdBy *string) *BatchResult {
	result := &BatchResult{
		Requested: count,
		Units:     make([]*repository.ProductUnit, 0, count),
	}

	for i := 0; i < count; i++ {
		unit, err := s.createUnit(ctx, product, startSeq+i, createdBy)
		if err != nil {
			s.logger.Error().Err(err).
				Str("product_id", product.ID).
				Int("sequence", startSeq+i).
				Int("created", result.Created).
				Int("requested", count).
				Msg("unit batch stopped early")
			result.FailureReason = err.Error()
			break
		}

		result.Units = append(result.Units, unit)
		result.Created++
	}

	return result
}

func (s *InventoryService) createUnit(ctx context.Context, product *repository.Product, sequence int, createdBy *string) (*repository.ProductUnit, error) {
	id, err := unitid.UnitID(product.Name, product.ID, sequence)
	if err != nil {
		return nil, err
	}

	payload, err := s.idgen.QRPayload(id)
	if err != nil {
		return nil, err
	}

	unit := &repository.ProductUnit{
		ProductID:  product.ID,
		UnitID:     id,
		QRCodeData: payload,
		Status:     repository.StatusAvailable,
		CreatedBy:  createdBy,
	}

	if err := s.unitRepo.Create(ctx, unit); err != nil {
		return nil, err
	}

	return unit, nil
}

// GetUnit gets a unit by its human-readable identifier
func (s *InventoryService) GetUnit(ctx context.Context, unitID string) (*repository.ProductUnit, error) {
	return s.unitRepo.GetByUnitID(ctx, unitID)
}

// ListUnits lists a product's units with an optional status filter
func (s *InventoryService) ListUnits(ctx context.Context, productID, status string, page, perPage int) ([]*repository.ProductUnit, int64, error) {
	if status != "" && !repository.ValidStatus(status) {
		return nil, 0, errors.InvalidStatus(status)
	}

	if _, err := s.productRepo.GetByID(ctx, productID); err != nil {
		return nil, 0, err
	}

	return s.unitRepo.ListByProduct(ctx, productID, status, page, perPage)
}

// UpdateUnitStatus changes a unit's status, optionally replacing its notes
// in the same call. Every recognized status can transition to every other;
// unrecognized values are rejected. Nil notes leave the existing notes
// untouched.
func (s *InventoryService) UpdateUnitStatus(ctx context.Context, unitID, status string, notes *string, changedBy *string) (*repository.ProductUnit, error) {
	if !repository.ValidStatus(status) {
		return nil, errors.InvalidStatus(status)
	}

	current, err := s.unitRepo.GetByUnitID(ctx, unitID)
	if err != nil {
		return nil, err
	}

	updated := current
	if current.Status != status {
		updated, err = s.unitRepo.UpdateStatus(ctx, unitID, status)
		if err != nil {
			return nil, err
		}
		s.publisher.PublishUnitStatusChanged(ctx, updated.ProductID, unitID, current.Status, status, changedBy)
	}

	if notes != nil {
		updated, err = s.unitRepo.UpdateNotes(ctx, unitID, notes)
		if err != nil {
			return nil, err
		}
	}

	return updated, nil
}

// UpdateUnitNotes replaces a unit's notes
func (s *InventoryService) UpdateUnitNotes(ctx context.Context, unitID string, notes *string) (*repository.ProductUnit, error) {
	return s.unitRepo.UpdateNotes(ctx, unitID, notes)
}

// DeleteUnit deletes a single unit and decrements the owning product's
// quantity atomically.
func (s *InventoryService) DeleteUnit(ctx context.Context, unitID string, deletedBy *string) error {
	productID, oldQuantity, newQuantity, err := s.unitRepo.DeleteWithQuantityDecrement(ctx, unitID)
	if err != nil {
		return err
	}

	s.publisher.PublishUnitDeleted(ctx, productID, unitID, newQuantity, deletedBy)
	s.publisher.PublishProductQuantityChanged(ctx, productID, oldQuantity, newQuantity, "unit_deleted", deletedBy)

	if product, err := s.productRepo.GetByID(ctx, productID); err == nil {
		s.checkLowStock(ctx, product)
	}

	return nil
}

// ScanResult is the detail returned for a resolved scan payload
type ScanResult struct {
	Unit      *repository.ProductUnit `json:"unit"`
	Product   *repository.Product     `json:"product"`
	Category  *repository.Category    `json:"category,omitempty"`
	Warehouse *repository.Warehouse   `json:"warehouse,omitempty"`
}

// ResolveScan resolves a scanned payload to its unit and product. The
// payload is treated as opaque: lookup goes through the stored value only,
// so a forged payload of the right shape still misses.
func (s *InventoryService) ResolveScan(ctx context.Context, payload string) (*ScanResult, error) {
	unit, err := s.unitRepo.GetByQRCodeData(ctx, payload)
	if err != nil {
		return nil, err
	}

	product, err := s.productRepo.GetByID(ctx, unit.ProductID)
	if err != nil {
		return nil, err
	}

	result := &ScanResult{Unit: unit, Product: product}

	if product.CategoryID != nil {
		result.Category, _ = s.categoryRepo.GetByID(ctx, *product.CategoryID)
	}
	if product.WarehouseID != nil {
		result.Warehouse, _ = s.warehouseRepo.GetByID(ctx, *product.WarehouseID)
	}

	return result, nil
}

// RenderQRCode renders a unit's scan payload as a PNG image. The image is
// derived on demand from the stored payload, never persisted.
func (s *InventoryService) RenderQRCode(ctx context.Context, unitID string) ([]byte, error) {
	unit, err := s.unitRepo.GetByUnitID(ctx, unitID)
	if err != nil {
		return nil, err
	}

	png, err := qrcode.Encode(unit.QRCodeData, qrcode.Medium, s.qrCodeSize)
	if err != nil {
		return nil, errors.Internal("failed to render qr code")
	}

	return png, nil
}
