package model

import "time"

// User represents an account created through an OAuth provider.
type User struct {
	ID                  string     `db:"id" json:"id"`
	Provider            string     `db:"provider" json:"provider"`
	ProviderID          string     `db:"provider_id" json:"provider_id"`
	Email               string     `db:"email" json:"email"`
	Name                string     `db:"name" json:"name"`
	Avatar              string     `db:"avatar" json:"avatar"`
	MembershipExpiresAt *time.Time `db:"membership_expires_at" json:"membership_expires_at,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// AdminUser is an operator allowed to call the admin endpoints.
type AdminUser struct {
	ID           string    `db:"id"`
	Username     string    `db:"username"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}
