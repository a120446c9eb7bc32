package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"tarot/internal/model"
	"tarot/internal/quota"
	"tarot/internal/repository"
)

// AnalyticsService records page views and reads the daily rollup.
type AnalyticsService interface {
	// RecordPageView never fails the caller; storage errors are only logged.
	RecordPageView(ctx context.Context, pv model.PageView)
	Daily(ctx context.Context, days int) ([]model.DailyAnalytics, error)
}

type analyticsService struct {
	store  repository.Store
	logger zerolog.Logger
	now    func() time.Time
}

func NewAnalyticsService(store repository.Store, logger zerolog.Logger, opts ...Option) AnalyticsService {
	o := buildOptions(opts)
	return &analyticsService{
		store:  store,
		logger: logger.With().Str("service", "AnalyticsService").Logger(),
		now:    o.now,
	}
}

func (s *analyticsService) RecordPageView(ctx context.Context, pv model.PageView) {
	pv.CreatedAt = s.now()
	err := s.store.WithTx(ctx, func(st repository.Store) error {
		return st.Analytics().RecordPageView(ctx, &pv)
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("path", pv.Path).Msg("Failed to record page view")
	}
}

func (s *analyticsService) Daily(ctx context.Context, days int) ([]model.DailyAnalytics, error) {
	from := quota.Day(s.now()).AddDate(0, 0, -(days - 1))
	rows, err := s.store.Analytics().ListDaily(ctx, from)
	if err != nil {
		s.logger.Error().Err(err).Int("days", days).Msg("Failed to list daily analytics")
		return nil, err
	}
	return rows, nil
}
