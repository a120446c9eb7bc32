package repository

import (
	"context"
	"fmt"
	"time"

	"tarot/internal/model"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	// LockByID loads the user with FOR UPDATE. Only meaningful inside WithTx.
	LockByID(ctx context.Context, id string) (*model.User, error)
	// UpsertOAuth inserts or refreshes the user matched by (provider, provider_id).
	UpsertOAuth(ctx context.Context, u *model.User) (created bool, err error)
	UpdateMembershipExpiry(ctx context.Context, id string, expiresAt time.Time) error
	// ListIDs pages through user ids in creation order.
	ListIDs(ctx context.Context, limit, offset int) ([]string, error)
}

type userRepo struct {
	db DBTX
}

func NewUserRepo(db DBTX) UserRepository {
	return &userRepo{db: db}
}

const userColumns = `id, provider, provider_id, email, name, avatar, membership_expires_at, created_at, updated_at`

func (r *userRepo) scan(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Provider, &u.ProviderID, &u.Email, &u.Name, &u.Avatar, &u.MembershipExpiresAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := r.scan(r.db.QueryRow(ctx, q, id))
	if err != nil {
		return nil, fmt.Errorf("fetch user %s: %w", id, err)
	}
	return u, nil
}

func (r *userRepo) LockByID(ctx context.Context, id string) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	u, err := r.scan(r.db.QueryRow(ctx, q, id))
	if err != nil {
		return nil, fmt.Errorf("lock user %s: %w", id, err)
	}
	return u, nil
}

func (r *userRepo) UpsertOAuth(ctx context.Context, u *model.User) (bool, error) {
	// xmax = 0 only for freshly inserted rows.
	const q = `
		INSERT INTO users (provider, provider_id, email, name, avatar)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (provider, provider_id) DO UPDATE
		SET email = EXCLUDED.email,
		    name = EXCLUDED.name,
		    avatar = EXCLUDED.avatar,
		    updated_at = NOW()
		RETURNING id, membership_expires_at, created_at, updated_at, (xmax = 0) AS inserted
	`
	var inserted bool
	err := r.db.QueryRow(ctx, q, u.Provider, u.ProviderID, u.Email, u.Name, u.Avatar).
		Scan(&u.ID, &u.MembershipExpiresAt, &u.CreatedAt, &u.UpdatedAt, &inserted)
	if err != nil {
		return false, fmt.Errorf("upsert user %s/%s: %w", u.Provider, u.ProviderID, err)
	}
	return inserted, nil
}

func (r *userRepo) UpdateMembershipExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	const q = `UPDATE users SET membership_expires_at = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.db.Exec(ctx, q, id, expiresAt)
	if err != nil {
		return fmt.Errorf("update membership expiry for user %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update membership expiry for user %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *userRepo) ListIDs(ctx context.Context, limit, offset int) ([]string, error) {
	const q = `SELECT id FROM users ORDER BY created_at, id LIMIT $1 OFFSET $2`
	rows, err := r.db.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
