package repository

import (
	"context"
	"fmt"
	"time"

	"tarot/internal/model"
)

// AnalyticsRepository records page views and daily rollups.
type AnalyticsRepository interface {
	RecordPageView(ctx context.Context, pv *model.PageView) error
	ListDaily(ctx context.Context, from time.Time) ([]model.DailyAnalytics, error)
}

type analyticsRepo struct {
	db DBTX
}

func NewAnalyticsRepo(db DBTX) AnalyticsRepository {
	return &analyticsRepo{db: db}
}

// RecordPageView inserts the raw view and refreshes the day's rollup.
func (r *analyticsRepo) RecordPageView(ctx context.Context, pv *model.PageView) error {
	const insertQ = `
		INSERT INTO page_views (path, referrer, visitor_id, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.db.Exec(ctx, insertQ, pv.Path, pv.Referrer, pv.VisitorID, pv.UserAgent, pv.CreatedAt); err != nil {
		return fmt.Errorf("insert page view: %w", err)
	}
	const rollupQ = `
		INSERT INTO daily_analytics (day, page_views, unique_visitors, updated_at)
		SELECT $1::date, 1, CASE WHEN $2::text = '' THEN 0 ELSE 1 END, NOW()
		ON CONFLICT (day) DO UPDATE
		SET page_views = daily_analytics.page_views + 1,
		    unique_visitors = (
		        SELECT COUNT(DISTINCT visitor_id)
		        FROM page_views
		        WHERE created_at >= $3
		          AND created_at < $4
		          AND visitor_id <> ''
		    ),
		    updated_at = NOW()
	`
	day, next := utcDayBounds(pv.CreatedAt)
	if _, err := r.db.Exec(ctx, rollupQ, day, pv.VisitorID, day, next); err != nil {
		return fmt.Errorf("update daily analytics for %s: %w", day.Format(time.DateOnly), err)
	}
	return nil
}

func (r *analyticsRepo) ListDaily(ctx context.Context, from time.Time) ([]model.DailyAnalytics, error) {
	const q = `
		SELECT day, page_views, unique_visitors
		FROM daily_analytics
		WHERE day >= $1
		ORDER BY day
	`
	rows, err := r.db.Query(ctx, q, from)
	if err != nil {
		return nil, fmt.Errorf("list daily analytics: %w", err)
	}
	defer rows.Close()
	days := []model.DailyAnalytics{}
	for rows.Next() {
		var d model.DailyAnalytics
		if err := rows.Scan(&d.Day, &d.PageViews, &d.UniqueVisitors); err != nil {
			return nil, fmt.Errorf("scan daily analytics: %w", err)
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// utcDayBounds returns the UTC midnight starting t's day and the next one.
// Bounds are bound as instants so the session time zone never shifts them.
func utcDayBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day, day.AddDate(0, 0, 1)
}
