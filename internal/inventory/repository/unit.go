package repository

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// Unit statuses. The set is open: any status can transition to any other,
// unknown values are rejected at the boundary.
const (
	StatusAvailable = "available"
	StatusReserved  = "reserved"
	StatusSold      = "sold"
	StatusDamaged   = "damaged"
	StatusLost      = "lost"
)

// ValidStatus reports whether s is a recognized unit status
func ValidStatus(s string) bool {
	switch s {
	case StatusAvailable, StatusReserved, StatusSold, StatusDamaged, StatusLost:
		return true
	}
	return false
}

// ProductUnit represents one physical, individually trackable unit of a product
type ProductUnit struct {
	ID         string    `db:"id" json:"id"`
	ProductID  string    `db:"product_id" json:"product_id"`
	UnitID     string    `db:"unit_id" json:"unit_id"`
	QRCodeData string    `db:"qr_code_data" json:"qr_code_data"`
	Status     string    `db:"status" json:"status"`
	Notes      *string   `db:"notes" json:"notes,omitempty"`
	CreatedBy  *string   `db:"created_by" json:"created_by,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

const unitColumns = `
	id, product_id, unit_id, qr_code_data, status, notes, created_by,
	created_at, updated_at
`

// UnitRepository handles product unit persistence
type UnitRepository struct {
	db *database.DB
}

// NewUnitRepository creates a new unit repository
func NewUnitRepository(db *database.DB) *UnitRepository {
	return &UnitRepository{db: db}
}

// Create inserts a single unit. Duplicate unit_id or qr_code_data is
// surfaced as a Conflict via the unique indexes; callers treat that as
// the backstop for concurrent sequence races.
func (r *UnitRepository) Create(ctx context.Context, u *ProductUnit) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.Status == "" {
		u.Status = StatusAvailable
	}

	query := `
		INSERT INTO product_units (id, product_id, unit_id, qr_code_data, status, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		u.ID, u.ProductID, u.UnitID, u.QRCodeData, u.Status, u.Notes, u.CreatedBy,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return mapPQ(err)
	}

	return nil
}

// GetByUnitID gets a unit by its human-readable identifier
func (r *UnitRepository) GetByUnitID(ctx context.Context, unitID string) (*ProductUnit, error) {
	var u ProductUnit

	query := `SELECT ` + unitColumns + ` FROM product_units WHERE unit_id = $1`
	err := r.db.GetContext(ctx, &u, query, unitID)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("unit")
	}
	if err != nil {
		return nil, err
	}

	return &u, nil
}

// GetByQRCodeData resolves a scanned payload to a unit. The payload is
// matched opaquely against the stored value, never parsed.
func (r *UnitRepository) GetByQRCodeData(ctx context.Context, qrCodeData string) (*ProductUnit, error) {
	var u ProductUnit

	query := `SELECT ` + unitColumns + ` FROM product_units WHERE qr_code_data = $1`
	err := r.db.GetContext(ctx, &u, query, qrCodeData)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("unit")
	}
	if err != nil {
		return nil, err
	}

	return &u, nil
}

// ListByProduct lists units for a product with pagination and an optional
// status filter. Units of a product share a fixed-length prefix, so sorting
// by length first keeps sequence order once the number outgrows its padding.
func (r *UnitRepository) ListByProduct(ctx context.Context, productID string, status string, page, perPage int) ([]*ProductUnit, int64, error) {
	where := ` WHERE product_id = $1`
	args := []interface{}{productID}

	if status != "" {
		args = append(args, status)
		where += ` AND status = $` + strconv.Itoa(len(args))
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM product_units`+where, args...); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	args = append(args, perPage, offset)
	query := `SELECT ` + unitColumns + ` FROM product_units` + where +
		` ORDER BY length(unit_id), unit_id LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	var units []*ProductUnit
	if err := r.db.SelectContext(ctx, &units, query, args...); err != nil {
		return nil, 0, err
	}

	return units, total, nil
}

// CountByProduct counts live units of a product. Batch creation derives
// the next sequence number from this snapshot.
func (r *UnitRepository) CountByProduct(ctx context.Context, productID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM product_units WHERE product_id = $1`, productID)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// UpdateStatus changes a unit's status and returns the updated row
func (r *UnitRepository) UpdateStatus(ctx context.Context, unitID, status string) (*ProductUnit, error) {
	var u ProductUnit

	query := `
		UPDATE product_units SET status = $2, updated_at = NOW()
		WHERE unit_id = $1
		RETURNING ` + unitColumns

	err := r.db.QueryRowxContext(ctx, query, unitID, status).StructScan(&u)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("unit")
	}
	if err != nil {
		return nil, mapPQ(err)
	}

	return &u, nil
}

// UpdateNotes replaces a unit's free-form notes
func (r *UnitRepository) UpdateNotes(ctx context.Context, unitID string, notes *string) (*ProductUnit, error) {
	var u ProductUnit

	query := `
		UPDATE product_units SET notes = $2, updated_at = NOW()
		WHERE unit_id = $1
		RETURNING ` + unitColumns

	err := r.db.QueryRowxContext(ctx, query, unitID, notes).StructScan(&u)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("unit")
	}
	if err != nil {
		return nil, err
	}

	return &u, nil
}

// DeleteWithQuantityDecrement deletes one unit and decrements the owning
// product's quantity in the same transaction, so the aggregate count and
// the unit rows cannot drift on the single-unit path. Returns the
// product's quantity before and after the decrement; when the quantity is
// already 0 the decrement clamps and both values are 0.
func (r *UnitRepository) DeleteWithQuantityDecrement(ctx context.Context, unitID string) (productID string, oldQuantity, newQuantity int, err error) {
	err = r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		row := tx.QueryRowxContext(ctx, `DELETE FROM product_units WHERE unit_id = $1 RETURNING product_id`, unitID)
		if scanErr := row.Scan(&productID); scanErr == sql.ErrNoRows {
			return errors.NotFound("unit")
		} else if scanErr != nil {
			return scanErr
		}

		row = tx.QueryRowxContext(ctx, `
			UPDATE products p SET quantity = GREATEST(p.quantity - 1, 0), updated_at = NOW()
			FROM (SELECT id, quantity FROM products WHERE id = $1 AND deleted_at IS NULL FOR UPDATE) prev
			WHERE p.id = prev.id
			RETURNING prev.quantity, p.quantity
		`, productID)
		if scanErr := row.Scan(&oldQuantity, &newQuantity); scanErr == sql.ErrNoRows {
			return errors.NotFound("product")
		} else if scanErr != nil {
			return scanErr
		}

		return nil
	})
	if err != nil {
		return "", 0, 0, err
	}

	return productID, oldQuantity, newQuantity, nil
}

// DeleteByProduct deletes all units of a product. Used by cascading
// product deletion; the product row is removed by the caller.
func (r *UnitRepository) DeleteByProduct(ctx context.Context, productID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM product_units WHERE product_id = $1`, productID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
