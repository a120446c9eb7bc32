package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"tarot/internal/model"
)

// QuotaRepository tracks the free-tier weekly counter and downgrade snapshots.
type QuotaRepository interface {
	GetWeeklyTopicCount(ctx context.Context, userID string, weekStart time.Time) (int, error)
	IncrementWeeklyTopicCount(ctx context.Context, userID string, weekStart time.Time) (int, error)
	// GetSnapshot returns the topic's downgrade snapshot, or ErrNotFound.
	GetSnapshot(ctx context.Context, topicID string) (*model.TopicEventSnapshot, error)
	// SnapshotLapsedTopics freezes the event count of every active topic
	// created before the user's latest lapsed member cycle ended. A snapshot
	// is only rewritten when a later member cycle has lapsed since it was
	// taken.
	SnapshotLapsedTopics(ctx context.Context, userID string, now time.Time) (int64, error)
}

type quotaRepo struct {
	db DBTX
}

func NewQuotaRepo(db DBTX) QuotaRepository {
	return &quotaRepo{db: db}
}

func (r *quotaRepo) GetWeeklyTopicCount(ctx context.Context, userID string, weekStart time.Time) (int, error) {
	const q = `SELECT count FROM weekly_topic_usage WHERE user_id = $1 AND week_start = $2`
	var n int
	err := r.db.QueryRow(ctx, q, userID, weekStart).Scan(&n)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("fetch weekly topic usage for user %s: %w", userID, err)
	}
	return n, nil
}

func (r *quotaRepo) IncrementWeeklyTopicCount(ctx context.Context, userID string, weekStart time.Time) (int, error) {
	const q = `
		INSERT INTO weekly_topic_usage (user_id, week_start, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id, week_start) DO UPDATE
		SET count = weekly_topic_usage.count + 1
		RETURNING count
	`
	var n int
	if err := r.db.QueryRow(ctx, q, userID, weekStart).Scan(&n); err != nil {
		return 0, fmt.Errorf("increment weekly topic usage for user %s: %w", userID, err)
	}
	return n, nil
}

func (r *quotaRepo) GetSnapshot(ctx context.Context, topicID string) (*model.TopicEventSnapshot, error) {
	const q = `SELECT topic_id, user_id, event_count, snapshot_at FROM topic_event_snapshots WHERE topic_id = $1`
	var s model.TopicEventSnapshot
	if err := r.db.QueryRow(ctx, q, topicID).Scan(&s.TopicID, &s.UserID, &s.EventCount, &s.SnapshotAt); err != nil {
		return nil, fmt.Errorf("fetch snapshot for topic %s: %w", topicID, notFound(err))
	}
	return &s, nil
}

func (r *quotaRepo) SnapshotLapsedTopics(ctx context.Context, userID string, now time.Time) (int64, error) {
	const q = `
		INSERT INTO topic_event_snapshots (topic_id, user_id, event_count, snapshot_at)
		SELECT t.id, t.user_id, COUNT(e.id), $2
		FROM topics t
		LEFT JOIN topic_events e ON e.topic_id = t.id
		WHERE t.user_id = $1
		  AND t.status = 'active'
		  AND t.created_at < (
		      SELECT MAX(ends_at) FROM membership_cycles
		      WHERE user_id = $1 AND plan = 'member' AND ends_at <= $2
		  )
		GROUP BY t.id, t.user_id
		ON CONFLICT (topic_id) DO UPDATE
		SET event_count = EXCLUDED.event_count,
		    snapshot_at = EXCLUDED.snapshot_at
		WHERE topic_event_snapshots.snapshot_at < (
		    SELECT MAX(ends_at) FROM membership_cycles
		    WHERE user_id = $1 AND plan = 'member' AND ends_at <= $2
		)
	`
	tag, err := r.db.Exec(ctx, q, userID, now)
	if err != nil {
		return 0, fmt.Errorf("snapshot lapsed topics for user %s: %w", userID, err)
	}
	return tag.RowsAffected(), nil
}
