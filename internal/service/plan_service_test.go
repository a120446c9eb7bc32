package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tarot/internal/model"
	"tarot/internal/quota"
)

func TestSnapshotPlanFollowsExpiry(t *testing.T) {
	c := newClock()
	st := newTestStore(c)
	svc := NewPlanService(st, nopLogger, WithClock(c.Now))

	member := memberUntil(st, c.Now().Add(time.Hour))
	lapsed := st.SeedUser(model.User{Email: "lapsed@example.com", MembershipExpiresAt: ptrTime(c.Now().Add(-time.Hour))})

	_, snap, err := svc.Snapshot(context.Background(), member.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanMember, snap.Plan)

	_, snap, err = svc.Snapshot(context.Background(), lapsed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanFree, snap.Plan)
}

func TestSnapshotMemberWithoutCycleGetsFallback(t *testing.T) {
	c := newClock()
	st := newTestStore(c)
	svc := NewPlanService(st, nopLogger, WithClock(c.Now))
	expires := c.Now().AddDate(0, 0, 20)
	u := memberUntil(st, expires)

	_, snap, err := svc.Snapshot(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, quota.MemberTopicsPerCycle, snap.TopicQuotaTotal)
	assert.Equal(t, quota.MemberTopicsPerCycle, snap.TopicQuotaRemaining)
	assert.Equal(t, quota.MemberEventsPerTopic, snap.EventQuotaPerTopic)
	require.NotNil(t, snap.ExpiresAt)
	assert.Equal(t, expires, *snap.ExpiresAt)

	cycles := st.CyclesOf(u.ID)
	require.Len(t, cycles, 1)
	assert.Equal(t, model.SourceFallback, cycles[0].Source)

	// A second read reuses the cycle.
	_, _, err = svc.Snapshot(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Len(t, st.CyclesOf(u.ID), 1)
}

func TestFallbackCycleStopsAtNextGrantedCycle(t *testing.T) {
	c := newClock()
	st := newTestStore(c)
	svc := NewPlanService(st, nopLogger, WithClock(c.Now))
	memberships := NewMembershipService(st, nil, nopLogger, WithClock(c.Now))
	cached := c.Now().AddDate(0, 0, 10)
	u := memberUntil(st, cached)
	ctx := context.Background()

	_, granted, err := memberships.Grant(ctx, u.ID, quota.PaidCycleDays, model.SourceCreemSubscription, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, cached, granted.StartsAt)

	_, snap, err := svc.Snapshot(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanMember, snap.Plan)
	require.NotNil(t, snap.ExpiresAt)
	assert.Equal(t, cached, *snap.ExpiresAt)

	var members []model.MembershipCycle
	for _, cy := range st.CyclesOf(u.ID) {
		if cy.Plan == model.PlanMember {
			members = append(members, cy)
		}
	}
	require.Len(t, members, 2)
	for i := range members {
		for j := i + 1; j < len(members); j++ {
			a, b := members[i], members[j]
			overlap := a.StartsAt.Before(b.EndsAt) && b.StartsAt.Before(a.EndsAt)
			assert.False(t, overlap, "cycles %s and %s overlap", a.Source, b.Source)
		}
	}

	// Once the fallback ends the granted cycle takes over with a fresh quota.
	c.Advance(10*24*time.Hour + time.Minute)
	_, snap, err = svc.Snapshot(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, quota.MemberTopicsPerCycle, snap.TopicQuotaRemaining)
	require.NotNil(t, snap.ExpiresAt)
	assert.Equal(t, granted.EndsAt, *snap.ExpiresAt)
	assert.Len(t, st.CyclesOf(u.ID), 2)
}

func TestSnapshotFreeUser(t *testing.T) {
	c := newClock()
	st := newTestStore(c)
	svc := NewPlanService(st, nopLogger, WithClock(c.Now))
	u := freeUser(st)

	_, snap, err := svc.Snapshot(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanFree, snap.Plan)
	assert.Equal(t, 1, snap.TopicQuotaTotal)
	assert.Equal(t, 1, snap.TopicQuotaRemaining)
	assert.Equal(t, 3, snap.EventQuotaPerTopic)
	assert.Equal(t, time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC), *snap.ExpiresAt)

	cycles := st.CyclesOf(u.ID)
	require.Len(t, cycles, 1)
	assert.Equal(t, model.PlanFree, cycles[0].Plan)
	assert.Equal(t, model.SourceDefault, cycles[0].Source)
}

func TestSnapshotUnknownUser(t *testing.T) {
	c := newClock()
	svc := NewPlanService(newTestStore(c), nopLogger, WithClock(c.Now))

	_, _, err := svc.Snapshot(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func ptrTime(t time.Time) *time.Time { return &t }
