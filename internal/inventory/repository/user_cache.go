package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// CachedUser is a local projection of a user maintained from user events,
// so the service can resolve actor names without calling the user service.
type CachedUser struct {
	UserID    string    `db:"user_id" json:"user_id"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Email     string    `db:"email" json:"email"`
	RoleName  string    `db:"role_name" json:"role_name"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// FullName returns the cached user's display name
func (u *CachedUser) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// UserCacheRepository handles the user cache projection
type UserCacheRepository struct {
	db *database.DB
}

// NewUserCacheRepository creates a new user cache repository
func NewUserCacheRepository(db *database.DB) *UserCacheRepository {
	return &UserCacheRepository{db: db}
}

// Set upserts a cached user
func (r *UserCacheRepository) Set(ctx context.Context, u *CachedUser) error {
	query := `
		INSERT INTO user_cache (user_id, first_name, last_name, email, role_name, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			email = EXCLUDED.email,
			role_name = EXCLUDED.role_name,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query, u.UserID, u.FirstName, u.LastName, u.Email, u.RoleName)
	return err
}

// Get gets a cached user by ID
func (r *UserCacheRepository) Get(ctx context.Context, userID string) (*CachedUser, error) {
	var u CachedUser
	err := r.db.GetContext(ctx, &u, `
		SELECT user_id, first_name, last_name, email, role_name, updated_at
		FROM user_cache WHERE user_id = $1
	`, userID)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("user")
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Delete removes a cached user
func (r *UserCacheRepository) Delete(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM user_cache WHERE user_id = $1`, userID)
	return err
}
