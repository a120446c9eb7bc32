package repository

import (
	"context"
	"fmt"

	"tarot/internal/model"
)

type AdminRepository interface {
	GetByUsername(ctx context.Context, username string) (*model.AdminUser, error)
	Create(ctx context.Context, a *model.AdminUser) error
}

type adminRepo struct {
	db DBTX
}

func NewAdminRepo(db DBTX) AdminRepository {
	return &adminRepo{db: db}
}

func (r *adminRepo) GetByUsername(ctx context.Context, username string) (*model.AdminUser, error) {
	const q = `SELECT id, username, password_hash, created_at FROM admin_users WHERE username = $1`
	var a model.AdminUser
	if err := r.db.QueryRow(ctx, q, username).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.CreatedAt); err != nil {
		return nil, fmt.Errorf("fetch admin %s: %w", username, notFound(err))
	}
	return &a, nil
}

func (r *adminRepo) Create(ctx context.Context, a *model.AdminUser) error {
	const q = `
		INSERT INTO admin_users (username, password_hash)
		VALUES ($1, $2)
		RETURNING id, created_at
	`
	if err := r.db.QueryRow(ctx, q, a.Username, a.PasswordHash).Scan(&a.ID, &a.CreatedAt); err != nil {
		return fmt.Errorf("create admin %s: %w", a.Username, err)
	}
	return nil
}
