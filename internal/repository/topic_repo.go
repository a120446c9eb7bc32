package repository

import (
	"context"
	"fmt"

	"tarot/internal/model"
)

// TopicRepository manages topics and their events.
type TopicRepository interface {
	Create(ctx context.Context, t *model.Topic) error
	// Get returns an active topic owned by userID, or ErrNotFound.
	Get(ctx context.Context, id, userID string) (*model.Topic, error)
	ListByUser(ctx context.Context, userID string) ([]model.Topic, error)
	SoftDelete(ctx context.Context, id, userID string) error
	// CountByCycle counts every topic created in the cycle, deleted ones included.
	CountByCycle(ctx context.Context, cycleID string) (int, error)

	CreateEvent(ctx context.Context, e *model.TopicEvent) error
	ListEvents(ctx context.Context, topicID string) ([]model.TopicEvent, error)
	CountEvents(ctx context.Context, topicID string) (int, error)
	// CountEventsInCycle counts the topic's events recorded during one cycle.
	CountEventsInCycle(ctx context.Context, topicID, cycleID string) (int, error)
}

type topicRepo struct {
	db DBTX
}

func NewTopicRepo(db DBTX) TopicRepository {
	return &topicRepo{db: db}
}

const topicSelect = `
	SELECT t.id, t.user_id, t.cycle_id, t.title, t.question, t.status,
	       (SELECT COUNT(*) FROM topic_events e WHERE e.topic_id = t.id) AS event_count,
	       t.created_at, t.updated_at
	FROM topics t
`

func scanTopic(row interface{ Scan(...any) error }) (*model.Topic, error) {
	var t model.Topic
	if err := row.Scan(&t.ID, &t.UserID, &t.CycleID, &t.Title, &t.Question, &t.Status, &t.EventCount, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *topicRepo) Create(ctx context.Context, t *model.Topic) error {
	const q = `
		INSERT INTO topics (user_id, cycle_id, title, question, status)
		VALUES ($1, $2, $3, $4, 'active')
		RETURNING id, status, created_at, updated_at
	`
	if err := r.db.QueryRow(ctx, q, t.UserID, t.CycleID, t.Title, t.Question).
		Scan(&t.ID, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return fmt.Errorf("create topic for user %s: %w", t.UserID, err)
	}
	return nil
}

func (r *topicRepo) Get(ctx context.Context, id, userID string) (*model.Topic, error) {
	q := topicSelect + ` WHERE t.id = $1 AND t.user_id = $2 AND t.status = 'active'`
	t, err := scanTopic(r.db.QueryRow(ctx, q, id, userID))
	if err != nil {
		return nil, fmt.Errorf("fetch topic %s: %w", id, err)
	}
	return t, nil
}

func (r *topicRepo) ListByUser(ctx context.Context, userID string) ([]model.Topic, error) {
	q := topicSelect + ` WHERE t.user_id = $1 AND t.status = 'active' ORDER BY t.created_at DESC`
	rows, err := r.db.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list topics for user %s: %w", userID, err)
	}
	defer rows.Close()
	topics := []model.Topic{}
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		topics = append(topics, *t)
	}
	return topics, rows.Err()
}

func (r *topicRepo) SoftDelete(ctx context.Context, id, userID string) error {
	const q = `
		UPDATE topics SET status = 'deleted', updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND status = 'active'
	`
	tag, err := r.db.Exec(ctx, q, id, userID)
	if err != nil {
		return fmt.Errorf("delete topic %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete topic %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *topicRepo) CountByCycle(ctx context.Context, cycleID string) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM topics WHERE cycle_id = $1`, cycleID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count topics in cycle %s: %w", cycleID, err)
	}
	return n, nil
}

func (r *topicRepo) CreateEvent(ctx context.Context, e *model.TopicEvent) error {
	const q = `
		INSERT INTO topic_events (topic_id, user_id, cycle_id, title, content, cards)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	var cards any
	if len(e.Cards) > 0 {
		cards = []byte(e.Cards)
	}
	if err := r.db.QueryRow(ctx, q, e.TopicID, e.UserID, e.CycleID, e.Title, e.Content, cards).
		Scan(&e.ID, &e.CreatedAt); err != nil {
		return fmt.Errorf("create event on topic %s: %w", e.TopicID, err)
	}
	_, err := r.db.Exec(ctx, `UPDATE topics SET updated_at = NOW() WHERE id = $1`, e.TopicID)
	if err != nil {
		return fmt.Errorf("touch topic %s: %w", e.TopicID, err)
	}
	return nil
}

func (r *topicRepo) ListEvents(ctx context.Context, topicID string) ([]model.TopicEvent, error) {
	const q = `
		SELECT id, topic_id, user_id, cycle_id, title, content, cards, created_at
		FROM topic_events
		WHERE topic_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, q, topicID)
	if err != nil {
		return nil, fmt.Errorf("list events for topic %s: %w", topicID, err)
	}
	defer rows.Close()
	events := []model.TopicEvent{}
	for rows.Next() {
		var e model.TopicEvent
		var cards []byte
		if err := rows.Scan(&e.ID, &e.TopicID, &e.UserID, &e.CycleID, &e.Title, &e.Content, &cards, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Cards = cards
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *topicRepo) CountEvents(ctx context.Context, topicID string) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM topic_events WHERE topic_id = $1`, topicID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events for topic %s: %w", topicID, err)
	}
	return n, nil
}

func (r *topicRepo) CountEventsInCycle(ctx context.Context, topicID, cycleID string) (int, error) {
	const q = `SELECT COUNT(*) FROM topic_events WHERE topic_id = $1 AND cycle_id = $2`
	var n int
	if err := r.db.QueryRow(ctx, q, topicID, cycleID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events for topic %s in cycle %s: %w", topicID, cycleID, err)
	}
	return n, nil
}
