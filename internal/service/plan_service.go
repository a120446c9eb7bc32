package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tarot/internal/model"
	"tarot/internal/quota"
	"tarot/internal/repository"
)

// PlanService computes a user's plan and quota snapshot.
type PlanService interface {
	// Snapshot returns the fresh user row and its quota view. It creates the
	// missing cycle rows the view depends on.
	Snapshot(ctx context.Context, userID string) (*model.User, *model.QuotaSnapshot, error)
}

type planService struct {
	store  repository.Store
	logger zerolog.Logger
	now    func() time.Time
}

func NewPlanService(store repository.Store, logger zerolog.Logger, opts ...Option) PlanService {
	o := buildOptions(opts)
	return &planService{
		store:  store,
		logger: logger.With().Str("service", "PlanService").Logger(),
		now:    o.now,
	}
}

func (s *planService) Snapshot(ctx context.Context, userID string) (*model.User, *model.QuotaSnapshot, error) {
	now := s.now()
	var (
		user *model.User
		snap *model.QuotaSnapshot
	)
	err := s.store.WithTx(ctx, func(st repository.Store) error {
		u, err := lockUser(ctx, st, userID)
		if err != nil {
			return err
		}
		ps, err := resolvePlan(ctx, st, u, now)
		if err != nil {
			return err
		}
		used, err := topicsUsed(ctx, st, u.ID, ps, now)
		if err != nil {
			return err
		}
		user = u
		snap = ps.snapshot(used, now)
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to compute quota snapshot")
		}
		return nil, nil, err
	}
	return user, snap, nil
}

// planState is the plan of a user at one instant plus the cycle that
// carries its quotas.
type planState struct {
	Plan  model.Plan
	Cycle *model.MembershipCycle
}

func (p *planState) snapshot(used int, now time.Time) *model.QuotaSnapshot {
	snap := &model.QuotaSnapshot{
		Plan:           p.Plan,
		CycleID:        p.Cycle.ID,
		TopicQuotaUsed: used,
	}
	if p.Plan == model.PlanMember {
		end := p.Cycle.EndsAt
		snap.TopicQuotaTotal = p.Cycle.TopicQuota
		snap.EventQuotaPerTopic = p.Cycle.EventQuotaPerTopic
		snap.ExpiresAt = &end
	} else {
		next := quota.NextWeekStart(now)
		snap.TopicQuotaTotal = quota.FreeWeeklyTopics
		snap.EventQuotaPerTopic = quota.FreeEventsPerTopic
		snap.ExpiresAt = &next
	}
	snap.TopicQuotaRemaining = quota.Remaining(snap.TopicQuotaTotal, used)
	return snap
}

func lockUser(ctx context.Context, st repository.Store, userID string) (*model.User, error) {
	u, err := st.Users().LockByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// resolvePlan derives the plan from the cached expiry and makes sure the
// matching cycle exists. Must run inside WithTx with the user row locked.
func resolvePlan(ctx context.Context, st repository.Store, u *model.User, now time.Time) (*planState, error) {
	plan := quota.PlanAt(u.MembershipExpiresAt, now)

	if plan == model.PlanMember {
		c, err := st.Cycles().GetActive(ctx, u.ID, model.PlanMember, now)
		if err == nil {
			return &planState{Plan: plan, Cycle: c}, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		limit, err := fallbackLimit(ctx, st, u, now)
		if err != nil {
			return nil, err
		}
		fallback := quota.FallbackCycle(u.ID, now, limit)
		if _, err := st.Cycles().CloseActive(ctx, u.ID, model.PlanFree, now); err != nil {
			return nil, err
		}
		if err := st.Cycles().Create(ctx, &fallback); err != nil {
			return nil, err
		}
		return &planState{Plan: plan, Cycle: &fallback}, nil
	}

	if _, err := st.Quotas().SnapshotLapsedTopics(ctx, u.ID, now); err != nil {
		return nil, err
	}
	c, err := st.Cycles().GetActive(ctx, u.ID, model.PlanFree, now)
	if err == nil {
		return &planState{Plan: plan, Cycle: c}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	free := quota.FreeCycle(u.ID, now)
	if err := st.Cycles().Create(ctx, &free); err != nil {
		return nil, err
	}
	return &planState{Plan: plan, Cycle: &free}, nil
}

// fallbackLimit is the latest end a fallback cycle may have: the cached
// expiry, or the start of an already granted future member cycle.
func fallbackLimit(ctx context.Context, st repository.Store, u *model.User, now time.Time) (time.Time, error) {
	limit := *u.MembershipExpiresAt
	cycles, err := st.Cycles().ListByUser(ctx, u.ID)
	if err != nil {
		return time.Time{}, err
	}
	for _, c := range cycles {
		if c.Plan == model.PlanMember && c.StartsAt.After(now) && c.StartsAt.Before(limit) {
			limit = c.StartsAt
		}
	}
	return limit, nil
}

// topicsUsed counts topics against the current window: the active cycle for
// members, the UTC week for free users.
func topicsUsed(ctx context.Context, st repository.Store, userID string, ps *planState, now time.Time) (int, error) {
	if ps.Plan == model.PlanMember {
		return st.Topics().CountByCycle(ctx, ps.Cycle.ID)
	}
	return st.Quotas().GetWeeklyTopicCount(ctx, userID, quota.WeekStart(now))
}

// grantMembership opens a paid cycle of days starting at max(expiry, now),
// closes any open free cycle and moves the cached expiry. Must run inside
// WithTx with the user row locked.
func grantMembership(ctx context.Context, st repository.Store, u *model.User, days int, source model.CycleSource, reference string, now time.Time) (*model.MembershipCycle, error) {
	if days <= 0 {
		return nil, fmt.Errorf("grant membership: invalid duration %d", days)
	}
	base := quota.ExtendFrom(u.MembershipExpiresAt, now)
	cycle := quota.MemberCycle(u.ID, base, days, source)
	if reference != "" {
		ref := reference
		cycle.Reference = &ref
	}
	if _, err := st.Cycles().CloseActive(ctx, u.ID, model.PlanFree, now); err != nil {
		return nil, err
	}
	if err := st.Cycles().Create(ctx, &cycle); err != nil {
		return nil, err
	}
	if err := st.Users().UpdateMembershipExpiry(ctx, u.ID, cycle.EndsAt); err != nil {
		return nil, err
	}
	expires := cycle.EndsAt
	u.MembershipExpiresAt = &expires
	return &cycle, nil
}
