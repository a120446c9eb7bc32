package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"tarot/internal/model"
	"tarot/internal/repository"
)

func notFound(what, id string) error {
	return fmt.Errorf("%s %s: %w", what, id, repository.ErrNotFound)
}

// checkUUID mirrors Postgres rejecting a malformed value for a uuid column.
func checkUUID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid input syntax for type uuid: %q (SQLSTATE 22P02)", id)
	}
	return nil
}

type userRepo struct{ s *Store }

func (r userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	defer r.s.lock()()
	u, ok := r.s.d.users[id]
	if !ok {
		return nil, notFound("user", id)
	}
	return &u, nil
}

func (r userRepo) LockByID(ctx context.Context, id string) (*model.User, error) {
	return r.GetByID(ctx, id)
}

func (r userRepo) UpsertOAuth(ctx context.Context, u *model.User) (bool, error) {
	defer r.s.lock()()
	now := r.s.now()
	for id, existing := range r.s.d.users {
		if existing.Provider == u.Provider && existing.ProviderID == u.ProviderID {
			existing.Email = u.Email
			existing.Name = u.Name
			existing.Avatar = u.Avatar
			existing.UpdatedAt = now
			r.s.d.users[id] = existing
			*u = existing
			return false, nil
		}
	}
	u.ID = uuid.NewString()
	u.CreatedAt = now
	u.UpdatedAt = now
	r.s.d.users[u.ID] = *u
	r.s.seq(u.ID)
	return true, nil
}

func (r userRepo) UpdateMembershipExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	defer r.s.lock()()
	u, ok := r.s.d.users[id]
	if !ok {
		return notFound("user", id)
	}
	u.MembershipExpiresAt = &expiresAt
	u.UpdatedAt = r.s.now()
	r.s.d.users[id] = u
	return nil
}

func (r userRepo) ListIDs(ctx context.Context, limit, offset int) ([]string, error) {
	defer r.s.lock()()
	ids := make([]string, 0, len(r.s.d.users))
	for id := range r.s.d.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return r.s.d.insertedAt[ids[i]] < r.s.d.insertedAt[ids[j]] })
	return page(ids, limit, offset), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit < len(items) {
		items = items[:limit]
	}
	return items
}

type cycleRepo struct{ s *Store }

func (r cycleRepo) GetActive(ctx context.Context, userID string, plan model.Plan, now time.Time) (*model.MembershipCycle, error) {
	defer r.s.lock()()
	var best *model.MembershipCycle
	for _, c := range r.s.cyclesOf(userID) {
		if c.Plan != plan || !c.ActiveAt(now) {
			continue
		}
		if best == nil || c.StartsAt.After(best.StartsAt) {
			c := c
			best = &c
		}
	}
	if best == nil {
		return nil, notFound("active cycle for user", userID)
	}
	return best, nil
}

func (r cycleRepo) Create(ctx context.Context, c *model.MembershipCycle) error {
	defer r.s.lock()()
	c.ID = uuid.NewString()
	c.CreatedAt = r.s.now()
	r.s.d.cycles[c.ID] = *c
	r.s.seq(c.ID)
	return nil
}

func (r cycleRepo) CloseActive(ctx context.Context, userID string, plan model.Plan, now time.Time) (int64, error) {
	defer r.s.lock()()
	var n int64
	for id, c := range r.s.d.cycles {
		if c.UserID == userID && c.Plan == plan && !c.StartsAt.After(now) && c.EndsAt.After(now) {
			c.EndsAt = now
			r.s.d.cycles[id] = c
			n++
		}
	}
	return n, nil
}

func (r cycleRepo) ListByUser(ctx context.Context, userID string) ([]model.MembershipCycle, error) {
	defer r.s.lock()()
	return r.s.cyclesOf(userID), nil
}

func (r cycleRepo) NormalizeLegacyPlans(ctx context.Context) (int64, error) {
	defer r.s.lock()()
	var n int64
	for id, c := range r.s.d.cycles {
		if c.Plan == "pro" {
			c.Plan = model.PlanMember
			r.s.d.cycles[id] = c
			n++
		}
	}
	return n, nil
}

type topicRepo struct{ s *Store }

func (r topicRepo) withCount(t model.Topic) model.Topic {
	t.EventCount = 0
	for _, e := range r.s.d.events {
		if e.TopicID == t.ID {
			t.EventCount++
		}
	}
	return t
}

func (r topicRepo) Create(ctx context.Context, t *model.Topic) error {
	defer r.s.lock()()
	t.ID = uuid.NewString()
	t.Status = model.TopicActive
	t.CreatedAt = r.s.now()
	t.UpdatedAt = t.CreatedAt
	r.s.d.topics[t.ID] = *t
	r.s.seq(t.ID)
	return nil
}

func (r topicRepo) Get(ctx context.Context, id, userID string) (*model.Topic, error) {
	defer r.s.lock()()
	if err := checkUUID(id); err != nil {
		return nil, err
	}
	t, ok := r.s.d.topics[id]
	if !ok || t.UserID != userID || t.Status != model.TopicActive {
		return nil, notFound("topic", id)
	}
	t = r.withCount(t)
	return &t, nil
}

func (r topicRepo) ListByUser(ctx context.Context, userID string) ([]model.Topic, error) {
	defer r.s.lock()()
	topics := []model.Topic{}
	for _, t := range r.s.d.topics {
		if t.UserID == userID && t.Status == model.TopicActive {
			topics = append(topics, r.withCount(t))
		}
	}
	sort.Slice(topics, func(i, j int) bool {
		return r.s.d.insertedAt[topics[i].ID] > r.s.d.insertedAt[topics[j].ID]
	})
	return topics, nil
}

func (r topicRepo) SoftDelete(ctx context.Context, id, userID string) error {
	defer r.s.lock()()
	if err := checkUUID(id); err != nil {
		return err
	}
	t, ok := r.s.d.topics[id]
	if !ok || t.UserID != userID || t.Status != model.TopicActive {
		return notFound("topic", id)
	}
	t.Status = model.TopicDeleted
	r.s.d.topics[id] = t
	return nil
}

func (r topicRepo) CountByCycle(ctx context.Context, cycleID string) (int, error) {
	defer r.s.lock()()
	n := 0
	for _, t := range r.s.d.topics {
		if t.CycleID != nil && *t.CycleID == cycleID {
			n++
		}
	}
	return n, nil
}

func (r topicRepo) CreateEvent(ctx context.Context, e *model.TopicEvent) error {
	defer r.s.lock()()
	e.ID = uuid.NewString()
	e.CreatedAt = r.s.now()
	r.s.d.events[e.ID] = *e
	r.s.seq(e.ID)
	return nil
}

func (r topicRepo) ListEvents(ctx context.Context, topicID string) ([]model.TopicEvent, error) {
	defer r.s.lock()()
	events := []model.TopicEvent{}
	for _, e := range r.s.d.events {
		if e.TopicID == topicID {
			events = append(events, e)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		return r.s.d.insertedAt[events[i].ID] < r.s.d.insertedAt[events[j].ID]
	})
	return events, nil
}

func (r topicRepo) CountEvents(ctx context.Context, topicID string) (int, error) {
	defer r.s.lock()()
	n := 0
	for _, e := range r.s.d.events {
		if e.TopicID == topicID {
			n++
		}
	}
	return n, nil
}

func (r topicRepo) CountEventsInCycle(ctx context.Context, topicID, cycleID string) (int, error) {
	defer r.s.lock()()
	n := 0
	for _, e := range r.s.d.events {
		if e.TopicID == topicID && e.CycleID != nil && *e.CycleID == cycleID {
			n++
		}
	}
	return n, nil
}

type quotaRepo struct{ s *Store }

func (r quotaRepo) GetWeeklyTopicCount(ctx context.Context, userID string, weekStart time.Time) (int, error) {
	defer r.s.lock()()
	return r.s.d.weekly[weekKey{userID, weekStart.UTC()}], nil
}

func (r quotaRepo) IncrementWeeklyTopicCount(ctx context.Context, userID string, weekStart time.Time) (int, error) {
	defer r.s.lock()()
	k := weekKey{userID, weekStart.UTC()}
	r.s.d.weekly[k]++
	return r.s.d.weekly[k], nil
}

func (r quotaRepo) GetSnapshot(ctx context.Context, topicID string) (*model.TopicEventSnapshot, error) {
	defer r.s.lock()()
	snap, ok := r.s.d.snapshots[topicID]
	if !ok {
		return nil, notFound("snapshot for topic", topicID)
	}
	return &snap, nil
}

func (r quotaRepo) SnapshotLapsedTopics(ctx context.Context, userID string, now time.Time) (int64, error) {
	defer r.s.lock()()
	var lapsedAt time.Time
	for _, c := range r.s.d.cycles {
		if c.UserID == userID && c.Plan == model.PlanMember && !c.EndsAt.After(now) && c.EndsAt.After(lapsedAt) {
			lapsedAt = c.EndsAt
		}
	}
	if lapsedAt.IsZero() {
		return 0, nil
	}
	var n int64
	for _, t := range r.s.d.topics {
		if t.UserID != userID || t.Status != model.TopicActive || !t.CreatedAt.Before(lapsedAt) {
			continue
		}
		if existing, ok := r.s.d.snapshots[t.ID]; ok && !existing.SnapshotAt.Before(lapsedAt) {
			continue
		}
		count := topicRepo{r.s}.withCount(t).EventCount
		r.s.d.snapshots[t.ID] = model.TopicEventSnapshot{TopicID: t.ID, UserID: userID, EventCount: count, SnapshotAt: now}
		n++
	}
	return n, nil
}

type codeRepo struct{ s *Store }

func (r codeRepo) CreateBatch(ctx context.Context, codes []model.RedemptionCode) error {
	defer r.s.lock()()
	for _, c := range codes {
		if _, ok := r.s.d.codes[c.Code]; ok {
			return fmt.Errorf("insert redemption code %s: duplicate key", c.Code)
		}
	}
	for i := range codes {
		codes[i].CreatedAt = r.s.now()
		r.s.d.codes[codes[i].Code] = codes[i]
		r.s.seq(codes[i].Code)
	}
	return nil
}

func (r codeRepo) LockByCode(ctx context.Context, code string) (*model.RedemptionCode, error) {
	defer r.s.lock()()
	c, ok := r.s.d.codes[code]
	if !ok {
		return nil, notFound("redemption code", code)
	}
	return &c, nil
}

func (r codeRepo) MarkRedeemed(ctx context.Context, code, userID string, at time.Time) error {
	defer r.s.lock()()
	c, ok := r.s.d.codes[code]
	if !ok || c.RedeemedAt != nil {
		return notFound("redemption code", code)
	}
	c.RedeemedBy = &userID
	c.RedeemedAt = &at
	r.s.d.codes[code] = c
	return nil
}

func (r codeRepo) List(ctx context.Context, limit, offset int) ([]model.RedemptionCode, error) {
	defer r.s.lock()()
	codes := []model.RedemptionCode{}
	for _, c := range r.s.d.codes {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool {
		return r.s.d.insertedAt[codes[i].Code] > r.s.d.insertedAt[codes[j].Code]
	})
	return page(codes, limit, offset), nil
}

type shareRepo struct{ s *Store }

func (r shareRepo) Create(ctx context.Context, sr *model.SharedReading) error {
	defer r.s.lock()()
	if _, ok := r.s.d.shares[sr.ID]; ok {
		return fmt.Errorf("create shared reading %s: duplicate key", sr.ID)
	}
	if len(sr.Cards) == 0 {
		sr.Cards = []byte("[]")
	}
	sr.ViewCount = 0
	sr.CreatedAt = r.s.now()
	r.s.d.shares[sr.ID] = *sr
	return nil
}

func (r shareRepo) GetAndCountView(ctx context.Context, id string) (*model.SharedReading, error) {
	defer r.s.lock()()
	sr, ok := r.s.d.shares[id]
	if !ok {
		return nil, notFound("shared reading", id)
	}
	sr.ViewCount++
	r.s.d.shares[id] = sr
	return &sr, nil
}

type usageRepo struct{ s *Store }

func (r usageRepo) GetDaily(ctx context.Context, userID string, day time.Time) (int, error) {
	defer r.s.lock()()
	return r.s.d.daily[dayKey{userID, day.UTC()}], nil
}

func (r usageRepo) IncrementDaily(ctx context.Context, userID string, day time.Time, limit int) (int, bool, error) {
	defer r.s.lock()()
	k := dayKey{userID, day.UTC()}
	if r.s.d.daily[k] >= limit {
		return 0, false, nil
	}
	r.s.d.daily[k]++
	return r.s.d.daily[k], true, nil
}

type webhookRepo struct{ s *Store }

func (r webhookRepo) MarkProcessed(ctx context.Context, provider, eventID, eventType string) (bool, error) {
	defer r.s.lock()()
	k := provider + "/" + eventID
	if r.s.d.webhooks[k] {
		return false, nil
	}
	r.s.d.webhooks[k] = true
	return true, nil
}

type analyticsRepo struct{ s *Store }

func (r analyticsRepo) RecordPageView(ctx context.Context, pv *model.PageView) error {
	defer r.s.lock()()
	r.s.d.pageViews = append(r.s.d.pageViews, *pv)
	t := pv.CreatedAt.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	visitors := map[string]bool{}
	views := 0
	for _, v := range r.s.d.pageViews {
		vt := v.CreatedAt.UTC()
		if vt.Before(day) || !vt.Before(day.AddDate(0, 0, 1)) {
			continue
		}
		views++
		if v.VisitorID != "" {
			visitors[v.VisitorID] = true
		}
	}
	r.s.d.analytics[day] = model.DailyAnalytics{Day: day, PageViews: views, UniqueVisitors: len(visitors)}
	return nil
}

func (r analyticsRepo) ListDaily(ctx context.Context, from time.Time) ([]model.DailyAnalytics, error) {
	defer r.s.lock()()
	days := []model.DailyAnalytics{}
	for day, d := range r.s.d.analytics {
		if !day.Before(from) {
			days = append(days, d)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Day.Before(days[j].Day) })
	return days, nil
}

type promptRepo struct{ s *Store }

func (r promptRepo) Get(ctx context.Context, name string) (*model.Prompt, error) {
	defer r.s.lock()()
	p, ok := r.s.d.prompts[name]
	if !ok {
		return nil, notFound("prompt", name)
	}
	return &p, nil
}

func (r promptRepo) Upsert(ctx context.Context, p *model.Prompt) error {
	defer r.s.lock()()
	p.UpdatedAt = r.s.now()
	r.s.d.prompts[p.Name] = *p
	return nil
}

type adminRepo struct{ s *Store }

func (r adminRepo) GetByUsername(ctx context.Context, username string) (*model.AdminUser, error) {
	defer r.s.lock()()
	for _, a := range r.s.d.admins {
		if a.Username == username {
			return &a, nil
		}
	}
	return nil, notFound("admin", username)
}

func (r adminRepo) Create(ctx context.Context, a *model.AdminUser) error {
	defer r.s.lock()()
	for _, existing := range r.s.d.admins {
		if existing.Username == a.Username {
			return fmt.Errorf("create admin %s: duplicate key", a.Username)
		}
	}
	a.ID = uuid.NewString()
	a.CreatedAt = r.s.now()
	r.s.d.admins[a.ID] = *a
	return nil
}
