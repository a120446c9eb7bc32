package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"tarot/internal/metrics"
	"tarot/internal/model"
	"tarot/internal/quota"
	"tarot/internal/repository"
)

// UsageService meters AI readings per UTC day.
type UsageService interface {
	Status(ctx context.Context, userID string) (*model.DailyUsage, error)
	// Consume takes one reading from today's allowance. When the allowance is
	// spent it returns the exhausted usage together with ErrDailyLimitReached.
	Consume(ctx context.Context, userID string) (*model.DailyUsage, error)
}

type usageService struct {
	store  repository.Store
	logger zerolog.Logger
	now    func() time.Time
}

func NewUsageService(store repository.Store, logger zerolog.Logger, opts ...Option) UsageService {
	o := buildOptions(opts)
	return &usageService{
		store:  store,
		logger: logger.With().Str("service", "UsageService").Logger(),
		now:    o.now,
	}
}

func (s *usageService) plan(ctx context.Context, userID string, now time.Time) (model.Plan, error) {
	u, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}
	return quota.PlanAt(u.MembershipExpiresAt, now), nil
}

func usage(plan model.Plan, day time.Time, used int) *model.DailyUsage {
	limit := quota.DailyLimit(plan)
	return &model.DailyUsage{
		Plan:      plan,
		Day:       day,
		Used:      used,
		Limit:     limit,
		Remaining: quota.Remaining(limit, used),
	}
}

func (s *usageService) Status(ctx context.Context, userID string) (*model.DailyUsage, error) {
	now := s.now()
	plan, err := s.plan(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	day := quota.Day(now)
	used, err := s.store.Usage().GetDaily(ctx, userID, day)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to read daily usage")
		return nil, err
	}
	return usage(plan, day, used), nil
}

func (s *usageService) Consume(ctx context.Context, userID string) (*model.DailyUsage, error) {
	now := s.now()
	plan, err := s.plan(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	day := quota.Day(now)
	limit := quota.DailyLimit(plan)
	count, ok, err := s.store.Usage().IncrementDaily(ctx, userID, day, limit)
	if err != nil {
		metrics.UsageConsumedTotal.WithLabelValues(string(plan), "error").Inc()
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to consume daily usage")
		return nil, err
	}
	if !ok {
		metrics.UsageConsumedTotal.WithLabelValues(string(plan), "limited").Inc()
		return usage(plan, day, limit), ErrDailyLimitReached
	}
	metrics.UsageConsumedTotal.WithLabelValues(string(plan), "ok").Inc()
	return usage(plan, day, count), nil
}
