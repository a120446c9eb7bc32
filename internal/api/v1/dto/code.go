package dto

import "time"

type CodeGenerateDTO struct {
	Count         int    `json:"count" validate:"required,min=1,max=100"`
	DurationDays  int    `json:"duration_days" validate:"omitempty,min=1,max=3650"`
	ExpiresInDays int    `json:"expires_in_days" validate:"omitempty,min=1,max=3650"`
	Note          string `json:"note" validate:"max=200"`
}

type CodeRedeemDTO struct {
	Code string `json:"code" validate:"required,max=64"`
}

type CodeRedeemResponseDTO struct {
	OK                  bool       `json:"ok"`
	Reason              string     `json:"reason,omitempty"`
	MembershipExpiresAt *time.Time `json:"membership_expires_at,omitempty"`
	Token               string     `json:"token,omitempty"`
}
