package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tarot/internal/model"
)

func TestMemberConsumesFiftyPerDay(t *testing.T) {
	c := newClock()
	st := newTestStore(c)
	svc := NewUsageService(st, nopLogger, WithClock(c.Now))
	u := memberUntil(st, c.Now().AddDate(0, 0, 30))
	ctx := context.Background()

	var last *model.DailyUsage
	for i := 0; i < 50; i++ {
		var err error
		last, err = svc.Consume(ctx, u.ID)
		require.NoError(t, err, "consume %d", i+1)
	}
	assert.Equal(t, 50, last.Used)
	assert.Equal(t, 0, last.Remaining)

	got, err := svc.Consume(ctx, u.ID)
	assert.ErrorIs(t, err, ErrDailyLimitReached)
	require.NotNil(t, got)
	assert.Equal(t, 0, got.Remaining)
	assert.Equal(t, 50, got.Limit)

	status, err := svc.Status(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, status.Used)
}

func TestFreeDailyLimitResetsAtMidnight(t *testing.T) {
	c := newClock()
	st := newTestStore(c)
	svc := NewUsageService(st, nopLogger, WithClock(c.Now))
	u := freeUser(st)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.Consume(ctx, u.ID)
		require.NoError(t, err)
	}
	_, err := svc.Consume(ctx, u.ID)
	assert.ErrorIs(t, err, ErrDailyLimitReached)

	c.Advance(14 * time.Hour)
	usage, err := svc.Consume(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, usage.Used)
	assert.Equal(t, 1, usage.Remaining)
	assert.Equal(t, model.PlanFree, usage.Plan)
}

func TestUsageUnknownUser(t *testing.T) {
	c := newClock()
	svc := NewUsageService(newTestStore(c), nopLogger, WithClock(c.Now))

	_, err := svc.Consume(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
