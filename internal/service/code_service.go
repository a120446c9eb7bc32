package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tarot/internal/model"
	"tarot/internal/repository"
	"tarot/internal/util"
)

type GenerateCodesInput struct {
	Count         int
	DurationDays  int
	ExpiresInDays int
	Note          string
}

// CodeService issues and redeems membership codes.
type CodeService interface {
	Generate(ctx context.Context, in GenerateCodesInput) ([]model.RedemptionCode, error)
	List(ctx context.Context, limit, offset int) ([]model.RedemptionCode, error)
	// Redeem returns a *RedeemError when the code is missing, used or expired.
	Redeem(ctx context.Context, userID, code string) (*model.User, error)
}

type codeService struct {
	store       repository.Store
	memberships MembershipService
	logger      zerolog.Logger
	now         func() time.Time
}

func NewCodeService(store repository.Store, memberships MembershipService, logger zerolog.Logger, opts ...Option) CodeService {
	o := buildOptions(opts)
	return &codeService{
		store:       store,
		memberships: memberships,
		logger:      logger.With().Str("service", "CodeService").Logger(),
		now:         o.now,
	}
}

func (s *codeService) Generate(ctx context.Context, in GenerateCodesInput) ([]model.RedemptionCode, error) {
	expiresAt := s.now().AddDate(0, 0, in.ExpiresInDays)
	codes := make([]model.RedemptionCode, 0, in.Count)
	for i := 0; i < in.Count; i++ {
		code, err := util.NewRedemptionCode()
		if err != nil {
			return nil, err
		}
		codes = append(codes, model.RedemptionCode{
			Code:         code,
			DurationDays: in.DurationDays,
			ExpiresAt:    expiresAt,
			Note:         in.Note,
		})
	}
	if err := s.store.Codes().CreateBatch(ctx, codes); err != nil {
		s.logger.Error().Err(err).Int("count", in.Count).Msg("Failed to store generated codes")
		return nil, err
	}
	s.logger.Info().Int("count", len(codes)).Int("duration_days", in.DurationDays).Msg("Redemption codes generated")
	return codes, nil
}

func (s *codeService) List(ctx context.Context, limit, offset int) ([]model.RedemptionCode, error) {
	codes, err := s.store.Codes().List(ctx, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list codes")
		return nil, err
	}
	return codes, nil
}

// NormalizeCode upper-cases and trims user input so codes are matched
// case-insensitively.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *codeService) Redeem(ctx context.Context, userID, code string) (*model.User, error) {
	code = NormalizeCode(code)
	now := s.now()
	// The code is locked and marked in the grant transaction so a code can
	// never open two cycles.
	user, _, err := s.memberships.GrantWith(ctx, userID, model.SourceRedeem, code, func(st repository.Store, u *model.User) (int, error) {
		rc, err := st.Codes().LockByCode(ctx, code)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return 0, &RedeemError{Reason: RedeemNotFound}
			}
			return 0, err
		}
		if rc.RedeemedAt != nil {
			return 0, &RedeemError{Reason: RedeemUsed}
		}
		if !now.Before(rc.ExpiresAt) {
			return 0, &RedeemError{Reason: RedeemExpired}
		}
		if err := st.Codes().MarkRedeemed(ctx, rc.Code, u.ID, now); err != nil {
			return 0, err
		}
		return rc.DurationDays, nil
	})
	if err != nil {
		var re *RedeemError
		if errors.As(err, &re) {
			s.logger.Info().Str("user_id", userID).Str("code", code).Str("reason", re.Reason).Msg("Code redemption refused")
		} else if !errors.Is(err, ErrUserNotFound) {
			s.logger.Error().Err(err).Str("user_id", userID).Str("code", code).Msg("Failed to redeem code")
		}
		return nil, err
	}
	return user, nil
}
