package repository

import (
	"context"
	"fmt"

	"tarot/internal/model"
)

// ShareRepository stores public reading snapshots.
type ShareRepository interface {
	Create(ctx context.Context, s *model.SharedReading) error
	// GetAndCountView increments the view counter and returns the updated row.
	GetAndCountView(ctx context.Context, id string) (*model.SharedReading, error)
}

type shareRepo struct {
	db DBTX
}

func NewShareRepo(db DBTX) ShareRepository {
	return &shareRepo{db: db}
}

func (r *shareRepo) Create(ctx context.Context, s *model.SharedReading) error {
	const q = `
		INSERT INTO shared_readings (id, user_id, question, spread, cards, interpretation)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING view_count, created_at
	`
	cards := []byte(s.Cards)
	if len(cards) == 0 {
		cards = []byte("[]")
	}
	if err := r.db.QueryRow(ctx, q, s.ID, s.UserID, s.Question, s.Spread, cards, s.Interpretation).
		Scan(&s.ViewCount, &s.CreatedAt); err != nil {
		return fmt.Errorf("create shared reading: %w", err)
	}
	return nil
}

func (r *shareRepo) GetAndCountView(ctx context.Context, id string) (*model.SharedReading, error) {
	const q = `
		UPDATE shared_readings
		SET view_count = view_count + 1
		WHERE id = $1
		RETURNING id, user_id, question, spread, cards, interpretation, view_count, created_at
	`
	var s model.SharedReading
	var cards []byte
	err := r.db.QueryRow(ctx, q, id).Scan(&s.ID, &s.UserID, &s.Question, &s.Spread, &cards, &s.Interpretation, &s.ViewCount, &s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("fetch shared reading %s: %w", id, notFound(err))
	}
	s.Cards = cards
	return &s, nil
}
