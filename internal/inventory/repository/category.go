package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// Category groups products for filtering and reporting
type Category struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CategoryRepository handles category persistence
type CategoryRepository struct {
	db *database.DB
}

// NewCategoryRepository creates a new category repository
func NewCategoryRepository(db *database.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// Create creates a new category
func (r *CategoryRepository) Create(ctx context.Context, c *Category) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}

	query := `
		INSERT INTO categories (id, name, description)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRowxContext(ctx, query, c.ID, c.Name, c.Description).
		Scan(&c.CreatedAt, &c.UpdatedAt)
}

// GetByID gets a category by ID
func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*Category, error) {
	var c Category
	err := r.db.GetContext(ctx, &c, `
		SELECT id, name, description, created_at, updated_at FROM categories WHERE id = $1
	`, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("category")
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// List lists all categories ordered by name
func (r *CategoryRepository) List(ctx context.Context) ([]*Category, error) {
	var categories []*Category
	err := r.db.SelectContext(ctx, &categories, `
		SELECT id, name, description, created_at, updated_at FROM categories ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	return categories, nil
}
