package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"tarot/internal/metrics"
	"tarot/internal/model"
	"tarot/internal/pubsub"
	"tarot/internal/repository"
)

// Notifier receives membership changes after they are committed.
type Notifier interface {
	Notify(ctx context.Context, ev pubsub.MembershipEvent)
}

// MembershipService moves users between plans.
type MembershipService interface {
	// Grant extends the user's membership by days from max(expiry, now).
	Grant(ctx context.Context, userID string, days int, source model.CycleSource, reference string) (*model.User, *model.MembershipCycle, error)
	// GrantWith runs prepare inside the grant transaction with the user row
	// locked and grants the number of days it returns. When prepare returns
	// ErrSkipGrant its writes are committed and no cycle is opened; the
	// returned cycle is then nil.
	GrantWith(ctx context.Context, userID string, source model.CycleSource, reference string, prepare GrantPrepare) (*model.User, *model.MembershipCycle, error)
	// RepairCycles closes free cycles overlapping an active member cycle and
	// rewrites legacy plan tags. It returns the number of rows changed.
	RepairCycles(ctx context.Context) (int64, error)
}

// GrantPrepare performs the caller's own writes in the grant transaction and
// decides how many days to grant.
type GrantPrepare func(st repository.Store, u *model.User) (days int, err error)

// ErrSkipGrant lets a GrantPrepare commit without opening a cycle.
var ErrSkipGrant = errors.New("grant skipped")

type membershipService struct {
	store    repository.Store
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time
}

func NewMembershipService(store repository.Store, notifier Notifier, logger zerolog.Logger, opts ...Option) MembershipService {
	o := buildOptions(opts)
	return &membershipService{
		store:    store,
		notifier: notifier,
		logger:   logger.With().Str("service", "MembershipService").Logger(),
		now:      o.now,
	}
}

func (s *membershipService) Grant(ctx context.Context, userID string, days int, source model.CycleSource, reference string) (*model.User, *model.MembershipCycle, error) {
	return s.GrantWith(ctx, userID, source, reference, func(repository.Store, *model.User) (int, error) {
		return days, nil
	})
}

func (s *membershipService) GrantWith(ctx context.Context, userID string, source model.CycleSource, reference string, prepare GrantPrepare) (*model.User, *model.MembershipCycle, error) {
	now := s.now()
	var (
		user    *model.User
		cycle   *model.MembershipCycle
		refused bool
		skipped bool
	)
	err := s.store.WithTx(ctx, func(st repository.Store) error {
		u, err := lockUser(ctx, st, userID)
		if err != nil {
			return err
		}
		user = u
		days, err := prepare(st, u)
		if errors.Is(err, ErrSkipGrant) {
			skipped = true
			return nil
		}
		if err != nil {
			refused = true
			return err
		}
		c, err := grantMembership(ctx, st, u, days, source, reference, now)
		if err != nil {
			return err
		}
		cycle = c
		return nil
	})
	if err != nil {
		if !refused && !errors.Is(err, ErrUserNotFound) {
			s.logger.Error().Err(err).Str("user_id", userID).Str("source", string(source)).Msg("Failed to grant membership")
		}
		return nil, nil, err
	}
	if skipped {
		return user, nil, nil
	}
	announceGrant(ctx, s.notifier, s.logger, user, cycle, now)
	return user, cycle, nil
}

const repairPageSize = 500

func (s *membershipService) RepairCycles(ctx context.Context) (int64, error) {
	normalized, err := s.store.Cycles().NormalizeLegacyPlans(ctx)
	if err != nil {
		return 0, err
	}
	total := normalized
	now := s.now()
	for offset := 0; ; offset += repairPageSize {
		ids, err := s.store.Users().ListIDs(ctx, repairPageSize, offset)
		if err != nil {
			return total, err
		}
		for _, id := range ids {
			var closed int64
			err := s.store.WithTx(ctx, func(st repository.Store) error {
				if _, err := lockUser(ctx, st, id); err != nil {
					return err
				}
				if _, err := st.Cycles().GetActive(ctx, id, model.PlanMember, now); err != nil {
					if isNotFound(err) {
						return nil
					}
					return err
				}
				n, err := st.Cycles().CloseActive(ctx, id, model.PlanFree, now)
				closed = n
				return err
			})
			if err != nil {
				return total, err
			}
			if closed > 0 {
				s.logger.Info().Str("user_id", id).Int64("closed", closed).Msg("Closed free cycles overlapping a member cycle")
			}
			total += closed
		}
		if len(ids) < repairPageSize {
			break
		}
	}
	s.logger.Info().Int64("normalized", normalized).Int64("total", total).Msg("Cycle repair finished")
	return total, nil
}

func announceGrant(ctx context.Context, n Notifier, logger zerolog.Logger, u *model.User, c *model.MembershipCycle, now time.Time) {
	metrics.MembershipGrantsTotal.WithLabelValues(string(c.Source)).Inc()
	logger.Info().
		Str("user_id", u.ID).
		Str("cycle_id", c.ID).
		Str("source", string(c.Source)).
		Time("membership_expires_at", c.EndsAt).
		Msg("Membership granted")
	if n == nil {
		return
	}
	ev := pubsub.MembershipEvent{
		Type:                "membership.activated",
		UserID:              u.ID,
		CycleID:             c.ID,
		Source:              string(c.Source),
		MembershipExpiresAt: c.EndsAt,
		OccurredAt:          now,
	}
	if c.Reference != nil {
		ev.Reference = *c.Reference
	}
	n.Notify(ctx, ev)
}
