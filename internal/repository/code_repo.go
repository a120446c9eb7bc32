package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"tarot/internal/model"
)

// CodeRepository manages redemption codes.
type CodeRepository interface {
	CreateBatch(ctx context.Context, codes []model.RedemptionCode) error
	// LockByCode loads the code with FOR UPDATE, or ErrNotFound.
	LockByCode(ctx context.Context, code string) (*model.RedemptionCode, error)
	MarkRedeemed(ctx context.Context, code, userID string, at time.Time) error
	List(ctx context.Context, limit, offset int) ([]model.RedemptionCode, error)
}

type codeRepo struct {
	db DBTX
}

func NewCodeRepo(db DBTX) CodeRepository {
	return &codeRepo{db: db}
}

const codeColumns = `code, duration_days, expires_at, redeemed_by, redeemed_at, note, created_at`

func scanCode(row interface{ Scan(...any) error }) (*model.RedemptionCode, error) {
	var c model.RedemptionCode
	if err := row.Scan(&c.Code, &c.DurationDays, &c.ExpiresAt, &c.RedeemedBy, &c.RedeemedAt, &c.Note, &c.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *codeRepo) CreateBatch(ctx context.Context, codes []model.RedemptionCode) error {
	const q = `
		INSERT INTO redemption_codes (code, duration_days, expires_at, note)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	batch := &pgx.Batch{}
	for i := range codes {
		c := &codes[i]
		batch.Queue(q, c.Code, c.DurationDays, c.ExpiresAt, c.Note).QueryRow(func(row pgx.Row) error {
			return row.Scan(&c.CreatedAt)
		})
	}
	br := r.db.SendBatch(ctx, batch)
	if err := br.Close(); err != nil {
		return fmt.Errorf("insert %d redemption codes: %w", len(codes), err)
	}
	return nil
}

func (r *codeRepo) LockByCode(ctx context.Context, code string) (*model.RedemptionCode, error) {
	q := `SELECT ` + codeColumns + ` FROM redemption_codes WHERE code = $1 FOR UPDATE`
	c, err := scanCode(r.db.QueryRow(ctx, q, code))
	if err != nil {
		return nil, fmt.Errorf("lock redemption code: %w", err)
	}
	return c, nil
}

func (r *codeRepo) MarkRedeemed(ctx context.Context, code, userID string, at time.Time) error {
	const q = `
		UPDATE redemption_codes
		SET redeemed_by = $2, redeemed_at = $3
		WHERE code = $1 AND redeemed_at IS NULL
	`
	tag, err := r.db.Exec(ctx, q, code, userID, at)
	if err != nil {
		return fmt.Errorf("mark code redeemed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark code redeemed: %w", ErrNotFound)
	}
	return nil
}

func (r *codeRepo) List(ctx context.Context, limit, offset int) ([]model.RedemptionCode, error) {
	q := `SELECT ` + codeColumns + ` FROM redemption_codes ORDER BY created_at DESC, code LIMIT $1 OFFSET $2`
	rows, err := r.db.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list redemption codes: %w", err)
	}
	defer rows.Close()
	codes := []model.RedemptionCode{}
	for rows.Next() {
		c, err := scanCode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan redemption code: %w", err)
		}
		codes = append(codes, *c)
	}
	return codes, rows.Err()
}
