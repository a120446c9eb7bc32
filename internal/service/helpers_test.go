package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tarot/internal/model"
	"tarot/internal/pubsub"
	"tarot/internal/repository/memstore"
)

// 2025-03-12 is a Wednesday.
var baseTime = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock { return &clock{t: baseTime} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []pubsub.MembershipEvent
}

func (n *recordingNotifier) Notify(ctx context.Context, ev pubsub.MembershipEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) Events() []pubsub.MembershipEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]pubsub.MembershipEvent(nil), n.events...)
}

func newTestStore(c *clock) *memstore.Store {
	st := memstore.New()
	st.Now = c.Now
	return st
}

func memberUntil(st *memstore.Store, expires time.Time) model.User {
	return st.SeedUser(model.User{Email: "member@example.com", Name: "Member", MembershipExpiresAt: &expires})
}

func freeUser(st *memstore.Store) model.User {
	return st.SeedUser(model.User{Email: "free@example.com", Name: "Free"})
}

var nopLogger = zerolog.Nop()
