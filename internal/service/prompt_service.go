package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"tarot/internal/model"
	"tarot/internal/repository"
)

// PromptService exposes operator-editable prompts.
type PromptService interface {
	Get(ctx context.Context, name string) (*model.Prompt, error)
	Put(ctx context.Context, name, content string) (*model.Prompt, error)
}

type promptService struct {
	store  repository.Store
	logger zerolog.Logger
}

func NewPromptService(store repository.Store, logger zerolog.Logger) PromptService {
	return &promptService{store: store, logger: logger.With().Str("service", "PromptService").Logger()}
}

func (s *promptService) Get(ctx context.Context, name string) (*model.Prompt, error) {
	p, err := s.store.Prompts().Get(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPromptNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *promptService) Put(ctx context.Context, name, content string) (*model.Prompt, error) {
	p := &model.Prompt{Name: name, Content: content}
	if err := s.store.Prompts().Upsert(ctx, p); err != nil {
		s.logger.Error().Err(err).Str("prompt", name).Msg("Failed to save prompt")
		return nil, err
	}
	s.logger.Info().Str("prompt", name).Msg("Prompt updated")
	return p, nil
}
