package model

import "time"

// RedemptionCode is a single-use token exchanged for membership days.
type RedemptionCode struct {
	Code         string     `db:"code" json:"code"`
	DurationDays int        `db:"duration_days" json:"duration_days"`
	ExpiresAt    time.Time  `db:"expires_at" json:"expires_at"`
	RedeemedBy   *string    `db:"redeemed_by" json:"redeemed_by,omitempty"`
	RedeemedAt   *time.Time `db:"redeemed_at" json:"redeemed_at,omitempty"`
	Note         string     `db:"note" json:"note,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}
