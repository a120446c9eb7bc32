package model

import (
	"encoding/json"
	"time"
)

type TopicStatus string

const (
	TopicActive  TopicStatus = "active"
	TopicDeleted TopicStatus = "deleted"
)

// Topic groups the readings a user records around one question.
type Topic struct {
	ID         string      `db:"id" json:"id"`
	UserID     string      `db:"user_id" json:"user_id"`
	CycleID    *string     `db:"cycle_id" json:"cycle_id,omitempty"`
	Title      string      `db:"title" json:"title"`
	Question   string      `db:"question" json:"question"`
	Status     TopicStatus `db:"status" json:"status"`
	EventCount int         `db:"event_count" json:"event_count"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at" json:"updated_at"`
}

// TopicEvent is a single entry recorded under a topic.
type TopicEvent struct {
	ID        string          `db:"id" json:"id"`
	TopicID   string          `db:"topic_id" json:"topic_id"`
	UserID    string          `db:"user_id" json:"user_id"`
	CycleID   *string         `db:"cycle_id" json:"cycle_id,omitempty"`
	Title     string          `db:"title" json:"title"`
	Content   string          `db:"content" json:"content"`
	Cards     json.RawMessage `db:"cards" json:"cards,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// TopicEventSnapshot freezes a topic's event count when its paid cycle lapsed.
type TopicEventSnapshot struct {
	TopicID    string    `db:"topic_id"`
	UserID     string    `db:"user_id"`
	EventCount int       `db:"event_count"`
	SnapshotAt time.Time `db:"snapshot_at"`
}
