// Package memstore is an in-memory repository.Store used by tests. WithTx
// serialises callers on one mutex and rolls back on error by restoring a copy
// of the data.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tarot/internal/model"
	"tarot/internal/repository"
)

type weekKey struct {
	userID string
	week   time.Time
}

type dayKey struct {
	userID string
	day    time.Time
}

type data struct {
	users      map[string]model.User
	cycles     map[string]model.MembershipCycle
	topics     map[string]model.Topic
	events     map[string]model.TopicEvent
	weekly     map[weekKey]int
	snapshots  map[string]model.TopicEventSnapshot
	codes      map[string]model.RedemptionCode
	shares     map[string]model.SharedReading
	daily      map[dayKey]int
	webhooks   map[string]bool
	pageViews  []model.PageView
	analytics  map[time.Time]model.DailyAnalytics
	prompts    map[string]model.Prompt
	admins     map[string]model.AdminUser
	insertSeq  int64
	insertedAt map[string]int64
}

func newData() *data {
	return &data{
		users:      map[string]model.User{},
		cycles:     map[string]model.MembershipCycle{},
		topics:     map[string]model.Topic{},
		events:     map[string]model.TopicEvent{},
		weekly:     map[weekKey]int{},
		snapshots:  map[string]model.TopicEventSnapshot{},
		codes:      map[string]model.RedemptionCode{},
		shares:     map[string]model.SharedReading{},
		daily:      map[dayKey]int{},
		webhooks:   map[string]bool{},
		analytics:  map[time.Time]model.DailyAnalytics{},
		prompts:    map[string]model.Prompt{},
		admins:     map[string]model.AdminUser{},
		insertedAt: map[string]int64{},
	}
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.cycles {
		c.cycles[k] = v
	}
	for k, v := range d.topics {
		c.topics[k] = v
	}
	for k, v := range d.events {
		c.events[k] = v
	}
	for k, v := range d.weekly {
		c.weekly[k] = v
	}
	for k, v := range d.snapshots {
		c.snapshots[k] = v
	}
	for k, v := range d.codes {
		c.codes[k] = v
	}
	for k, v := range d.shares {
		c.shares[k] = v
	}
	for k, v := range d.daily {
		c.daily[k] = v
	}
	for k, v := range d.webhooks {
		c.webhooks[k] = v
	}
	c.pageViews = append(c.pageViews, d.pageViews...)
	for k, v := range d.analytics {
		c.analytics[k] = v
	}
	for k, v := range d.prompts {
		c.prompts[k] = v
	}
	for k, v := range d.admins {
		c.admins[k] = v
	}
	for k, v := range d.insertedAt {
		c.insertedAt[k] = v
	}
	c.insertSeq = d.insertSeq
	return c
}

// Store implements repository.Store in memory.
type Store struct {
	mu   *sync.Mutex
	d    *data
	inTx bool
	// Now stamps created_at columns. Defaults to time.Now.
	Now func() time.Time
	// FailPing makes Ping return an error.
	FailPing bool
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{mu: &sync.Mutex{}, d: newData(), Now: time.Now}
}

// lock acquires the store mutex unless the caller already holds it via WithTx.
func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Store) seq(id string) {
	s.d.insertSeq++
	s.d.insertedAt[id] = s.d.insertSeq
}

func (s *Store) WithTx(ctx context.Context, fn func(repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	backup := s.d.clone()
	tx := &Store{mu: s.mu, d: s.d, inTx: true, Now: s.Now}
	if err := fn(tx); err != nil {
		*s.d = *backup
		return err
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s.FailPing {
		return fmt.Errorf("ping: connection refused")
	}
	return nil
}

func (s *Store) Users() repository.UserRepository { return userRepo{s} }
func (s *Store) Cycles() repository.CycleRepository { return cycleRepo{s} }
func (s *Store) Topics() repository.TopicRepository { return topicRepo{s} }
func (s *Store) Quotas() repository.QuotaRepository { return quotaRepo{s} }
func (s *Store) Codes() repository.CodeRepository { return codeRepo{s} }
func (s *Store) Shares() repository.ShareRepository { return shareRepo{s} }
func (s *Store) Usage() repository.UsageRepository { return usageRepo{s} }
func (s *Store) Webhooks() repository.WebhookRepository { return webhookRepo{s} }
func (s *Store) Analytics() repository.AnalyticsRepository { return analyticsRepo{s} }
func (s *Store) Prompts() repository.PromptRepository { return promptRepo{s} }
func (s *Store) Admins() repository.AdminRepository { return adminRepo{s} }

// SeedUser inserts a user directly and returns it.
func (s *Store) SeedUser(u model.User) model.User {
	defer s.lock()()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Provider == "" {
		u.Provider = "google"
	}
	if u.ProviderID == "" {
		u.ProviderID = u.ID
	}
	u.CreatedAt = s.now()
	u.UpdatedAt = u.CreatedAt
	s.d.users[u.ID] = u
	s.seq(u.ID)
	return u
}

// SeedCycle inserts a cycle directly and returns it.
func (s *Store) SeedCycle(c model.MembershipCycle) model.MembershipCycle {
	defer s.lock()()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = s.now()
	s.d.cycles[c.ID] = c
	s.seq(c.ID)
	return c
}

// SeedSnapshot inserts a downgrade snapshot directly.
func (s *Store) SeedSnapshot(snap model.TopicEventSnapshot) {
	defer s.lock()()
	s.d.snapshots[snap.TopicID] = snap
}

// SeedCode inserts a redemption code directly.
func (s *Store) SeedCode(c model.RedemptionCode) {
	defer s.lock()()
	c.CreatedAt = s.now()
	s.d.codes[c.Code] = c
	s.seq(c.Code)
}

// User returns the stored user row.
func (s *Store) User(id string) model.User {
	defer s.lock()()
	return s.d.users[id]
}

// CyclesOf returns every cycle of the user ordered by start.
func (s *Store) CyclesOf(userID string) []model.MembershipCycle {
	defer s.lock()()
	return s.cyclesOf(userID)
}

func (s *Store) cyclesOf(userID string) []model.MembershipCycle {
	var out []model.MembershipCycle
	for _, c := range s.d.cycles {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartsAt.Equal(out[j].StartsAt) {
			return s.d.insertedAt[out[i].ID] < s.d.insertedAt[out[j].ID]
		}
		return out[i].StartsAt.Before(out[j].StartsAt)
	})
	return out
}

// PageViews returns the recorded page views.
func (s *Store) PageViews() []model.PageView {
	defer s.lock()()
	return append([]model.PageView(nil), s.d.pageViews...)
}
