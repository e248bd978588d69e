package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// Warehouse is a physical storage location products are assigned to
type Warehouse struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Location  *string   `db:"location" json:"location,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// WarehouseRepository handles warehouse persistence
type WarehouseRepository struct {
	db *database.DB
}

// NewWarehouseRepository creates a new warehouse repository
func NewWarehouseRepository(db *database.DB) *WarehouseRepository {
	return &WarehouseRepository{db: db}
}

// Create creates a new warehouse
func (r *WarehouseRepository) Create(ctx context.Context, w *Warehouse) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}

	query := `
		INSERT INTO warehouses (id, name, location)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRowxContext(ctx, query, w.ID, w.Name, w.Location).
		Scan(&w.CreatedAt, &w.UpdatedAt)
}

// GetByID gets a warehouse by ID
func (r *WarehouseRepository) GetByID(ctx context.Context, id string) (*Warehouse, error) {
	var w Warehouse
	err := r.db.GetContext(ctx, &w, `
		SELECT id, name, location, created_at, updated_at FROM warehouses WHERE id = $1
	`, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("warehouse")
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// List lists all warehouses ordered by name
func (r *WarehouseRepository) List(ctx context.Context) ([]*Warehouse, error) {
	var warehouses []*Warehouse
	err := r.db.SelectContext(ctx, &warehouses, `
		SELECT id, name, location, created_at, updated_at FROM warehouses ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	return warehouses, nil
}
