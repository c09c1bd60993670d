package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coursecap-api/internal/models"
)

// AdminUserRepository reads the admin_users allow-list.
type AdminUserRepository struct {
	db *sqlx.DB
}

// NewAdminUserRepository constructs the repository.
func NewAdminUserRepository(db *sqlx.DB) *AdminUserRepository {
	return &AdminUserRepository{db: db}
}

// IsAdmin reports whether uid is on the allow-list.
func (r *AdminUserRepository) IsAdmin(ctx context.Context, uid string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM admin_users WHERE uid = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, uid); err != nil {
		return false, fmt.Errorf("check admin %s: %w", uid, err)
	}
	return exists, nil
}

// List returns every admin.
func (r *AdminUserRepository) List(ctx context.Context) ([]models.AdminUser, error) {
	const query = `SELECT uid, created_at FROM admin_users ORDER BY uid`
	var admins []models.AdminUser
	if err := r.db.SelectContext(ctx, &admins, query); err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return admins, nil
}
