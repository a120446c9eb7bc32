package model

import (
	"encoding/json"
	"time"
)

// SharedReading is a public snapshot of a reading reachable by id.
type SharedReading struct {
	ID             string          `db:"id" json:"id"`
	UserID         *string         `db:"user_id" json:"user_id,omitempty"`
	Question       string          `db:"question" json:"question"`
	Spread         string          `db:"spread" json:"spread"`
	Cards          json.RawMessage `db:"cards" json:"cards"`
	Interpretation string          `db:"interpretation" json:"interpretation"`
	ViewCount      int             `db:"view_count" json:"view_count"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}
