package service

import (
	"errors"
	"fmt"

	"tarot/internal/repository"
)

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrTopicNotFound         = errors.New("topic not found")
	ErrShareNotFound         = errors.New("shared reading not found")
	ErrPromptNotFound        = errors.New("prompt not found")
	ErrDailyLimitReached     = errors.New("daily limit reached")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrProviderNotConfigured = errors.New("payment provider not configured")
	ErrUnattributedEvent     = errors.New("webhook event has no user id")
	ErrLLMUnavailable        = errors.New("reading service unavailable")
	ErrOAuthNotConfigured    = errors.New("oauth provider not configured")
)

// QuotaError is returned when a topic or event creation is refused.
type QuotaError struct {
	Reason    string
	Limit     int
	Used      int
	Remaining int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("quota exceeded: %s (%d/%d)", e.Reason, e.Used, e.Limit)
}

// Redemption failure reasons.
const (
	RedeemNotFound = "not_found"
	RedeemUsed     = "used"
	RedeemExpired  = "expired"
)

// RedeemError explains why a code could not be redeemed.
type RedeemError struct {
	Reason string
}

func (e *RedeemError) Error() string {
	return "redeem code: " + e.Reason
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
