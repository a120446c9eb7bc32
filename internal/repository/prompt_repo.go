package repository

import (
	"context"
	"fmt"

	"tarot/internal/model"
)

type PromptRepository interface {
	Get(ctx context.Context, name string) (*model.Prompt, error)
	Upsert(ctx context.Context, p *model.Prompt) error
}

type promptRepo struct {
	db DBTX
}

func NewPromptRepo(db DBTX) PromptRepository {
	return &promptRepo{db: db}
}

func (r *promptRepo) Get(ctx context.Context, name string) (*model.Prompt, error) {
	var p model.Prompt
	err := r.db.QueryRow(ctx, `SELECT name, content, updated_at FROM prompts WHERE name = $1`, name).
		Scan(&p.Name, &p.Content, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("fetch prompt %s: %w", name, notFound(err))
	}
	return &p, nil
}

func (r *promptRepo) Upsert(ctx context.Context, p *model.Prompt) error {
	const q = `
		INSERT INTO prompts (name, content, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE
		SET content = EXCLUDED.content, updated_at = NOW()
		RETURNING updated_at
	`
	if err := r.db.QueryRow(ctx, q, p.Name, p.Content).Scan(&p.UpdatedAt); err != nil {
		return fmt.Errorf("upsert prompt %s: %w", p.Name, err)
	}
	return nil
}
