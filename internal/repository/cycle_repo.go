package repository

import (
	"context"
	"fmt"
	"time"

	"tarot/internal/model"
)

// CycleRepository manages membership cycles.
type CycleRepository interface {
	// GetActive returns the cycle of the given plan covering now, or ErrNotFound.
	GetActive(ctx context.Context, userID string, plan model.Plan, now time.Time) (*model.MembershipCycle, error)
	Create(ctx context.Context, c *model.MembershipCycle) error
	// CloseActive ends every cycle of the plan that is still open at now.
	CloseActive(ctx context.Context, userID string, plan model.Plan, now time.Time) (int64, error)
	ListByUser(ctx context.Context, userID string) ([]model.MembershipCycle, error)
	// NormalizeLegacyPlans rewrites historical 'pro' cycles to 'member'.
	NormalizeLegacyPlans(ctx context.Context) (int64, error)
}

type cycleRepo struct {
	db DBTX
}

func NewCycleRepo(db DBTX) CycleRepository {
	return &cycleRepo{db: db}
}

const cycleColumns = `id, user_id, plan, starts_at, ends_at, topic_quota, event_quota_per_topic, source, reference, created_at`

func scanCycle(row interface{ Scan(...any) error }) (*model.MembershipCycle, error) {
	var c model.MembershipCycle
	if err := row.Scan(&c.ID, &c.UserID, &c.Plan, &c.StartsAt, &c.EndsAt, &c.TopicQuota, &c.EventQuotaPerTopic, &c.Source, &c.Reference, &c.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	c.Plan = model.NormalizePlan(c.Plan)
	return &c, nil
}

func (r *cycleRepo) GetActive(ctx context.Context, userID string, plan model.Plan, now time.Time) (*model.MembershipCycle, error) {
	q := `
		SELECT ` + cycleColumns + `
		FROM membership_cycles
		WHERE user_id = $1
		  AND plan = $2
		  AND starts_at <= $3
		  AND ends_at > $3
		ORDER BY starts_at DESC
		LIMIT 1
	`
	c, err := scanCycle(r.db.QueryRow(ctx, q, userID, plan, now))
	if err != nil {
		return nil, fmt.Errorf("fetch active %s cycle for user %s: %w", plan, userID, err)
	}
	return c, nil
}

func (r *cycleRepo) Create(ctx context.Context, c *model.MembershipCycle) error {
	const q = `
		INSERT INTO membership_cycles (user_id, plan, starts_at, ends_at, topic_quota, event_quota_per_topic, source, reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, q, c.UserID, c.Plan, c.StartsAt, c.EndsAt, c.TopicQuota, c.EventQuotaPerTopic, c.Source, c.Reference).
		Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("create %s cycle for user %s: %w", c.Plan, c.UserID, err)
	}
	return nil
}

func (r *cycleRepo) CloseActive(ctx context.Context, userID string, plan model.Plan, now time.Time) (int64, error) {
	const q = `
		UPDATE membership_cycles
		SET ends_at = $3
		WHERE user_id = $1
		  AND plan = $2
		  AND starts_at <= $3
		  AND ends_at > $3
	`
	tag, err := r.db.Exec(ctx, q, userID, plan, now)
	if err != nil {
		return 0, fmt.Errorf("close active %s cycles for user %s: %w", plan, userID, err)
	}
	return tag.RowsAffected(), nil
}

func (r *cycleRepo) ListByUser(ctx context.Context, userID string) ([]model.MembershipCycle, error) {
	q := `SELECT ` + cycleColumns + ` FROM membership_cycles WHERE user_id = $1 ORDER BY starts_at`
	rows, err := r.db.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list cycles for user %s: %w", userID, err)
	}
	defer rows.Close()
	var cycles []model.MembershipCycle
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		cycles = append(cycles, *c)
	}
	return cycles, rows.Err()
}

func (r *cycleRepo) NormalizeLegacyPlans(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE membership_cycles SET plan = 'member' WHERE plan = 'pro'`)
	if err != nil {
		return 0, fmt.Errorf("normalize legacy plans: %w", err)
	}
	return tag.RowsAffected(), nil
}
