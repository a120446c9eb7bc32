package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tarot/internal/model"
)

func requireRedeemReason(t *testing.T, err error, reason string) {
	t.Helper()
	var re *RedeemError
	require.True(t, errors.As(err, &re), "expected redeem error, got %v", err)
	assert.Equal(t, reason, re.Reason)
}

func TestRedeemCodeGrantsMembership(t *testing.T) {
	c := newClock()
	st := newTestStore(c)
	notifier := &recordingNotifier{}
	svc := NewCodeService(st, NewMembershipService(st, notifier, nopLogger, WithClock(c.Now)), nopLogger, WithClock(c.Now))
	u := freeUser(st)
	ctx := context.Background()

	// Opening a free cycle first lets the grant prove it closes it.
	_, _, err := NewPlanService(st, nopLogger, WithClock(c.Now)).Snapshot(ctx, u.ID)
	require.NoError(t, err)

	codes, err := svc.Generate(ctx, GenerateCodesInput{Count: 2, DurationDays: 30, ExpiresInDays: 90, Note: "launch"})
	require.NoError(t, err)
	require.Len(t, codes, 2)
	assert.NotEqual(t, codes[0].Code, codes[1].Code)
	assert.Len(t, codes[0].Code, 16)

	updated, err := svc.Redeem(ctx, u.ID, " "+codes[0].Code+" ")
	require.NoError(t, err)
	require.NotNil(t, updated.MembershipExpiresAt)
	assert.Equal(t, c.Now().AddDate(0, 0, 30), *updated.MembershipExpiresAt)
	assert.Equal(t, c.Now().AddDate(0, 0, 30), *st.User(u.ID).MembershipExpiresAt)

	var active []model.MembershipCycle
	for _, cy := range st.CyclesOf(u.ID) {
		if cy.ActiveAt(c.Now()) {
			active = append(active, cy)
		}
	}
	require.Len(t, active, 1, "free cycle must be closed when the paid one opens")
	assert.Equal(t, model.PlanMember, active[0].Plan)
	assert.Equal(t, model.SourceRedeem, active[0].Source)

	events := notifier.Events()
	require.Len(t, events, 1)
	assert.Equal(t, u.ID, events[0].UserID)
	assert.Equal(t, codes[0].Code, events[0].Reference)
}

func TestRedeemTwiceReportsUsed(t *testing.T) {
	c := newClock()
	st := newTestStore(c)
	svc := NewCodeService(st, NewMembershipService(st, nil, nopLogger, WithClock(c.Now)), nopLogger, WithClock(c.Now))
	u := freeUser(st)
	st.SeedCode(model.RedemptionCode{Code: "ABCDEF0123456789", DurationDays: 30, ExpiresAt: c.Now().AddDate(0, 0, 10)})

	_, err := svc.Redeem(context.Background(), u.ID, "abcdef0123456789")
	require.NoError(t, err)

	_, err = svc.Redeem(context.Background(), u.ID, "ABCDEF0123456789")
	requireRedeemReason(t, err, RedeemUsed)
}

func TestRedeemExpiredAndMissing(t *testing.T) {
	c := newClock()
	st := newTestStore(c)
	svc := NewCodeService(st, NewMembershipService(st, nil, nopLogger, WithClock(c.Now)), nopLogger, WithClock(c.Now))
	u := freeUser(st)
	st.SeedCode(model.RedemptionCode{Code: "EXPIRED000000000", DurationDays: 30, ExpiresAt: c.Now().Add(-time.Minute)})

	_, err := svc.Redeem(context.Background(), u.ID, "EXPIRED000000000")
	requireRedeemReason(t, err, RedeemExpired)

	_, err = svc.Redeem(context.Background(), u.ID, "NOPE")
	requireRedeemReason(t, err, RedeemNotFound)

	assert.Nil(t, st.User(u.ID).MembershipExpiresAt)
}

func TestRedeemExtendsFromFutureExpiry(t *testing.T) {
	c := newClock()
	st := newTestStore(c)
	svc := NewCodeService(st, NewMembershipService(st, nil, nopLogger, WithClock(c.Now)), nopLogger, WithClock(c.Now))
	expires := c.Now().AddDate(0, 0, 12)
	u := memberUntil(st, expires)
	st.SeedCode(model.RedemptionCode{Code: "EXTEND0000000000", DurationDays: 30, ExpiresAt: c.Now().AddDate(0, 0, 1)})

	updated, err := svc.Redeem(context.Background(), u.ID, "EXTEND0000000000")
	require.NoError(t, err)
	assert.Equal(t, expires.AddDate(0, 0, 30), *updated.MembershipExpiresAt)
}
