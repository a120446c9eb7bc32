package repository_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tarot/internal/database"
	"tarot/internal/model"
	"tarot/internal/quota"
	"tarot/internal/repository"
	"tarot/internal/service"
)

// openPostgres connects to TEST_DATABASE_URL with a non-UTC session time
// zone and applies the migrations.
func openPostgres(t *testing.T) (*pgxpool.Pool, repository.Store) {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set, skip postgres integration test")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["timezone"] = "America/Los_Angeles"

	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, database.Migrate(pool))
	return pool, repository.NewStore(pool)
}

func createUser(t *testing.T, st repository.Store) *model.User {
	t.Helper()
	u := &model.User{Provider: "google", ProviderID: uuid.NewString(), Email: "pg@example.com", Name: "PG"}
	created, err := st.Users().UpsertOAuth(context.Background(), u)
	require.NoError(t, err)
	require.True(t, created)
	return u
}

func createCycle(t *testing.T, st repository.Store, userID string, from time.Time, days int) *model.MembershipCycle {
	t.Helper()
	c := quota.MemberCycle(userID, from, days, model.SourceTest)
	require.NoError(t, st.Cycles().Create(context.Background(), &c))
	return &c
}

func TestPostgresMalformedTopicIDIsNotFound(t *testing.T) {
	_, st := openPostgres(t)
	u := createUser(t, st)
	svc := service.NewTopicService(st, zerolog.Nop())
	ctx := context.Background()

	_, _, err := svc.Get(ctx, u.ID, "missing")
	assert.ErrorIs(t, err, service.ErrTopicNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, u.ID, "missing"), service.ErrTopicNotFound)

	_, err = st.Topics().Get(ctx, uuid.NewString(), u.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPostgresCountEventsInCycle(t *testing.T) {
	_, st := openPostgres(t)
	ctx := context.Background()
	u := createUser(t, st)
	now := time.Now().UTC().Truncate(time.Microsecond)
	first := createCycle(t, st, u.ID, now.AddDate(0, 0, -30), 30)
	second := createCycle(t, st, u.ID, now, 30)

	topic := &model.Topic{UserID: u.ID, CycleID: &first.ID, Title: "Career"}
	require.NoError(t, st.Topics().Create(ctx, topic))
	for i, cycleID := range []string{first.ID, first.ID, first.ID, second.ID} {
		id := cycleID
		e := &model.TopicEvent{TopicID: topic.ID, UserID: u.ID, CycleID: &id, Title: "draw"}
		require.NoError(t, st.Topics().CreateEvent(ctx, e), "event %d", i)
	}

	n, err := st.Topics().CountEvents(ctx, topic.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	n, err = st.Topics().CountEventsInCycle(ctx, topic.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = st.Topics().CountEventsInCycle(ctx, topic.ID, second.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPostgresSnapshotLapsedTopics(t *testing.T) {
	_, st := openPostgres(t)
	ctx := context.Background()
	u := createUser(t, st)
	now := time.Now().UTC().Truncate(time.Microsecond)
	cycle := createCycle(t, st, u.ID, now.Add(-time.Hour), 1)

	topic := &model.Topic{UserID: u.ID, CycleID: &cycle.ID, Title: "Love"}
	require.NoError(t, st.Topics().Create(ctx, topic))
	for i := 0; i < 2; i++ {
		require.NoError(t, st.Topics().CreateEvent(ctx, &model.TopicEvent{TopicID: topic.ID, UserID: u.ID, CycleID: &cycle.ID}))
	}

	// Nothing has lapsed yet.
	n, err := st.Quotas().SnapshotLapsedTopics(ctx, u.ID, now)
	require.NoError(t, err)
	assert.Zero(t, n)

	lapsed := cycle.EndsAt.Add(time.Hour)
	n, err = st.Quotas().SnapshotLapsedTopics(ctx, u.ID, lapsed)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Events added on the free plan never move the frozen count.
	require.NoError(t, st.Topics().CreateEvent(ctx, &model.TopicEvent{TopicID: topic.ID, UserID: u.ID}))
	n, err = st.Quotas().SnapshotLapsedTopics(ctx, u.ID, lapsed.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	snap, err := st.Quotas().GetSnapshot(ctx, topic.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.EventCount)
}

func TestPostgresIncrementDailyStopsAtLimit(t *testing.T) {
	_, st := openPostgres(t)
	ctx := context.Background()
	u := createUser(t, st)
	day := quota.Day(time.Now())
	const limit = 5

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 3*limit; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := st.Usage().IncrementDaily(ctx, u.ID, day, limit)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, accepted)
	n, err := st.Usage().GetDaily(ctx, u.ID, day)
	require.NoError(t, err)
	assert.Equal(t, limit, n)
}

func TestPostgresDailyAnalyticsUseUTCDays(t *testing.T) {
	pool, st := openPostgres(t)
	ctx := context.Background()
	day := time.Date(2001, 2, 3, 0, 0, 0, 0, time.UTC)
	reset := func() {
		_, err := pool.Exec(ctx, `DELETE FROM page_views WHERE created_at >= $1 AND created_at < $2`, day, day.AddDate(0, 0, 2))
		require.NoError(t, err)
		_, err = pool.Exec(ctx, `DELETE FROM daily_analytics WHERE day >= $1 AND day < $2`, day, day.AddDate(0, 0, 2))
		require.NoError(t, err)
	}
	reset()
	t.Cleanup(reset)

	views := []model.PageView{
		{Path: "/", VisitorID: "late", CreatedAt: day.Add(23*time.Hour + 30*time.Minute)},
		{Path: "/", VisitorID: "early", CreatedAt: day.Add(24*time.Hour + 30*time.Minute)},
		{Path: "/", VisitorID: "early-again", CreatedAt: day.Add(25 * time.Hour)},
	}
	for i := range views {
		require.NoError(t, st.Analytics().RecordPageView(ctx, &views[i]))
	}

	rows, err := st.Analytics().ListDaily(ctx, day)
	require.NoError(t, err)
	got := map[string]model.DailyAnalytics{}
	for _, r := range rows {
		got[r.Day.UTC().Format(time.DateOnly)] = r
	}
	first := got["2001-02-03"]
	assert.Equal(t, 1, first.PageViews)
	assert.Equal(t, 1, first.UniqueVisitors)
	second := got["2001-02-04"]
	assert.Equal(t, 2, second.PageViews)
	assert.Equal(t, 2, second.UniqueVisitors)
}
