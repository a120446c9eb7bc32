package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// UsageRepository tracks per-day reading consumption.
type UsageRepository interface {
	GetDaily(ctx context.Context, userID string, day time.Time) (int, error)
	// IncrementDaily atomically adds one to the day's counter unless it has
	// already reached limit. ok is false when the limit was hit.
	IncrementDaily(ctx context.Context, userID string, day time.Time, limit int) (count int, ok bool, err error)
}

type usageRepo struct {
	db DBTX
}

// NewUsageRepo creates a new UsageRepository.
func NewUsageRepo(db DBTX) UsageRepository {
	return &usageRepo{db: db}
}

func (r *usageRepo) GetDaily(ctx context.Context, userID string, day time.Time) (int, error) {
	const q = `SELECT count FROM daily_usage WHERE user_id = $1 AND usage_date = $2`
	var n int
	if err := r.db.QueryRow(ctx, q, userID, day).Scan(&n); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("fetch daily usage for user %s: %w", userID, err)
	}
	return n, nil
}

// IncrementDaily folds the limit check into the upsert so concurrent calls
// cannot overshoot: the conflict branch only fires while count < limit.
func (r *usageRepo) IncrementDaily(ctx context.Context, userID string, day time.Time, limit int) (int, bool, error) {
	if limit <= 0 {
		return 0, false, nil
	}
	const q = `
		INSERT INTO daily_usage (user_id, usage_date, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id, usage_date) DO UPDATE
		SET count = daily_usage.count + 1
		WHERE daily_usage.count < $3
		RETURNING count
	`
	var n int
	err := r.db.QueryRow(ctx, q, userID, day, limit).Scan(&n)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("increment daily usage for user %s: %w", userID, err)
	}
	return n, true, nil
}
