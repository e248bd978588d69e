package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// Product represents a product whose stock is tracked per physical unit
type Product struct {
	ID            string          `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	Description   *string         `db:"description" json:"description,omitempty"`
	SKU           *string         `db:"sku" json:"sku,omitempty"`
	Quantity      int             `db:"quantity" json:"quantity"`
	MinStockLevel int             `db:"min_stock_level" json:"min_stock_level"`
	CustomFields  json.RawMessage `db:"custom_fields" json:"custom_fields,omitempty"`
	CategoryID    *string         `db:"category_id" json:"category_id,omitempty"`
	WarehouseID   *string         `db:"warehouse_id" json:"warehouse_id,omitempty"`
	CreatedBy     *string         `db:"created_by" json:"created_by,omitempty"`
	UpdatedBy     *string         `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
	DeletedAt     *time.Time      `db:"deleted_at" json:"-"`
}

// ProductFilter narrows product listings
type ProductFilter struct {
	CategoryID  string
	WarehouseID string
	Search      string
	LowStock    bool
}

const productColumns = `
	id, name, description, sku, quantity, min_stock_level, custom_fields,
	category_id, warehouse_id, created_by, updated_by,
	created_at, updated_at
`

// ProductRepository handles product persistence
type ProductRepository struct {
	db *database.DB
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *database.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create creates a new product
func (r *ProductRepository) Create(ctx context.Context, p *Product) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CustomFields == nil {
		p.CustomFields = json.RawMessage(`{}`)
	}

	query := `
		INSERT INTO products (
			id, name, description, sku, quantity, min_stock_level, custom_fields,
			category_id, warehouse_id, created_by, updated_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		p.ID, p.Name, p.Description, p.SKU, p.Quantity, p.MinStockLevel,
		p.CustomFields, p.CategoryID, p.WarehouseID, p.CreatedBy,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return mapPQ(err)
	}

	return nil
}

// GetByID gets a product by ID
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*Product, error) {
	var p Product

	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 AND deleted_at IS NULL`
	err := r.db.GetContext(ctx, &p, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("product")
	}
	if err != nil {
		return nil, err
	}

	return &p, nil
}

// List lists products with pagination and optional filters
func (r *ProductRepository) List(ctx context.Context, page, perPage int, filter ProductFilter) ([]*Product, int64, error) {
	where := ` WHERE deleted_at IS NULL`
	args := []interface{}{}

	if filter.CategoryID != "" {
		args = append(args, filter.CategoryID)
		where += ` AND category_id = $` + strconv.Itoa(len(args))
	}
	if filter.WarehouseID != "" {
		args = append(args, filter.WarehouseID)
		where += ` AND warehouse_id = $` + strconv.Itoa(len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := strconv.Itoa(len(args))
		where += ` AND (name ILIKE $` + n + ` OR sku ILIKE $` + n + `)`
	}
	if filter.LowStock {
		where += ` AND quantity <= min_stock_level`
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM products`+where, args...); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	args = append(args, perPage, offset)
	query := `SELECT ` + productColumns + ` FROM products` + where +
		` ORDER BY name LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	var products []*Product
	if err := r.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// Update updates a product's editable fields. Quantity is managed
// separately via UpdateQuantity so unit backfill stays explicit.
func (r *ProductRepository) Update(ctx context.Context, p *Product) error {
	query := `
		UPDATE products SET
			name = $2, description = $3, sku = $4, min_stock_level = $5,
			custom_fields = $6, category_id = $7, warehouse_id = $8,
			updated_by = $9, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query,
		p.ID, p.Name, p.Description, p.SKU, p.MinStockLevel,
		p.CustomFields, p.CategoryID, p.WarehouseID, p.UpdatedBy,
	)
	if err != nil {
		return mapPQ(err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("product")
	}

	return nil
}

// UpdateQuantity writes the product's aggregate quantity field
func (r *ProductRepository) UpdateQuantity(ctx context.Context, id string, quantity int, updatedBy *string) error {
	query := `
		UPDATE products SET quantity = $2, updated_by = $3, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, id, quantity, updatedBy)
	if err != nil {
		return mapPQ(err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("product")
	}

	return nil
}

// SoftDelete soft deletes a product
func (r *ProductRepository) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE products SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("product")
	}

	return nil
}

func mapPQ(err error) error {
	if appErr := database.MapPQError(err); appErr != nil {
		return appErr
	}
	return err
}

