package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"tarot/internal/model"
	"tarot/internal/repository"
	"tarot/internal/util"
)

type CreateShareInput struct {
	Question       string
	Spread         string
	Cards          json.RawMessage
	Interpretation string
}

// ShareService stores public snapshots of readings.
type ShareService interface {
	// Create stores a snapshot; userID is nil for anonymous shares.
	Create(ctx context.Context, userID *string, in CreateShareInput) (*model.SharedReading, error)
	// View returns the snapshot and counts the view.
	View(ctx context.Context, id string) (*model.SharedReading, error)
}

type shareService struct {
	store  repository.Store
	logger zerolog.Logger
}

func NewShareService(store repository.Store, logger zerolog.Logger) ShareService {
	return &shareService{store: store, logger: logger.With().Str("service", "ShareService").Logger()}
}

func (s *shareService) Create(ctx context.Context, userID *string, in CreateShareInput) (*model.SharedReading, error) {
	id, err := util.RandomHex(6)
	if err != nil {
		return nil, err
	}
	sr := &model.SharedReading{
		ID:             id,
		UserID:         userID,
		Question:       in.Question,
		Spread:         in.Spread,
		Cards:          in.Cards,
		Interpretation: in.Interpretation,
	}
	if err := s.store.Shares().Create(ctx, sr); err != nil {
		s.logger.Error().Err(err).Msg("Failed to create shared reading")
		return nil, err
	}
	return sr, nil
}

func (s *shareService) View(ctx context.Context, id string) (*model.SharedReading, error) {
	sr, err := s.store.Shares().GetAndCountView(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrShareNotFound
		}
		s.logger.Error().Err(err).Str("share_id", id).Msg("Failed to fetch shared reading")
		return nil, err
	}
	return sr, nil
}
