package dto

import (
	"time"

	"tarot/internal/model"
)

type UserResponseDTO struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	Name                string     `json:"name"`
	Avatar              string     `json:"avatar"`
	MembershipExpiresAt *time.Time `json:"membership_expires_at"`
	CreatedAt           time.Time  `json:"created_at"`
}

type UsageResponseDTO struct {
	Plan      model.Plan `json:"plan"`
	Day       string     `json:"day"`
	Used      int        `json:"used"`
	Limit     int        `json:"limit"`
	Remaining int        `json:"remaining"`
}

// MeResponseDTO is returned by GET /api/me. Token is set only when the
// caller's token carried a stale membership expiry and was re-issued.
type MeResponseDTO struct {
	User  UserResponseDTO     `json:"user"`
	Plan  model.Plan          `json:"plan"`
	Quota model.QuotaSnapshot `json:"quota"`
	Usage UsageResponseDTO    `json:"usage"`
	Token string              `json:"token,omitempty"`
}

func NewUserResponse(u *model.User) UserResponseDTO {
	return UserResponseDTO{
		ID:                  u.ID,
		Email:               u.Email,
		Name:                u.Name,
		Avatar:              u.Avatar,
		MembershipExpiresAt: u.MembershipExpiresAt,
		CreatedAt:           u.CreatedAt,
	}
}

func NewUsageResponse(u *model.DailyUsage) UsageResponseDTO {
	return UsageResponseDTO{
		Plan:      u.Plan,
		Day:       u.Day.Format(time.DateOnly),
		Used:      u.Used,
		Limit:     u.Limit,
		Remaining: u.Remaining,
	}
}
