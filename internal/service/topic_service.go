package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tarot/internal/metrics"
	"tarot/internal/model"
	"tarot/internal/quota"
	"tarot/internal/repository"
)

type CreateTopicInput struct {
	Title    string
	Question string
}

type CreateEventInput struct {
	Title   string
	Content string
	Cards   json.RawMessage
}

// TopicService manages topics and their events under the plan quotas.
type TopicService interface {
	List(ctx context.Context, userID string) ([]model.Topic, error)
	Get(ctx context.Context, userID, topicID string) (*model.Topic, []model.TopicEvent, error)
	// CanCreateTopic reports whether Create would currently be allowed.
	CanCreateTopic(ctx context.Context, userID string) (quota.Decision, error)
	Create(ctx context.Context, userID string, in CreateTopicInput) (*model.Topic, error)
	Delete(ctx context.Context, userID, topicID string) error
	ListEvents(ctx context.Context, userID, topicID string) ([]model.TopicEvent, error)
	CreateEvent(ctx context.Context, userID, topicID string, in CreateEventInput) (*model.TopicEvent, error)
}

type topicService struct {
	store  repository.Store
	logger zerolog.Logger
	now    func() time.Time
}

func NewTopicService(store repository.Store, logger zerolog.Logger, opts ...Option) TopicService {
	o := buildOptions(opts)
	return &topicService{
		store:  store,
		logger: logger.With().Str("service", "TopicService").Logger(),
		now:    o.now,
	}
}

func (s *topicService) List(ctx context.Context, userID string) ([]model.Topic, error) {
	topics, err := s.store.Topics().ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list topics")
		return nil, err
	}
	return topics, nil
}

func (s *topicService) Get(ctx context.Context, userID, topicID string) (*model.Topic, []model.TopicEvent, error) {
	t, err := s.getTopic(ctx, s.store, userID, topicID)
	if err != nil {
		return nil, nil, err
	}
	events, err := s.store.Topics().ListEvents(ctx, t.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("topic_id", topicID).Msg("Failed to list topic events")
		return nil, nil, err
	}
	return t, events, nil
}

func (s *topicService) getTopic(ctx context.Context, st repository.Store, userID, topicID string) (*model.Topic, error) {
	if !validTopicID(topicID) {
		return nil, ErrTopicNotFound
	}
	t, err := st.Topics().Get(ctx, topicID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTopicNotFound
		}
		s.logger.Error().Err(err).Str("topic_id", topicID).Msg("Failed to fetch topic")
		return nil, err
	}
	return t, nil
}

func (s *topicService) topicDecision(ctx context.Context, st repository.Store, u *model.User, now time.Time) (*planState, quota.Decision, error) {
	ps, err := resolvePlan(ctx, st, u, now)
	if err != nil {
		return nil, quota.Decision{}, err
	}
	used, err := topicsUsed(ctx, st, u.ID, ps, now)
	if err != nil {
		return nil, quota.Decision{}, err
	}
	return ps, quota.TopicDecision(ps.Plan, used, ps.Cycle.TopicQuota), nil
}

func (s *topicService) CanCreateTopic(ctx context.Context, userID string) (quota.Decision, error) {
	now := s.now()
	var d quota.Decision
	err := s.store.WithTx(ctx, func(st repository.Store) error {
		u, err := lockUser(ctx, st, userID)
		if err != nil {
			return err
		}
		_, d, err = s.topicDecision(ctx, st, u, now)
		return err
	})
	return d, err
}

func (s *topicService) Create(ctx context.Context, userID string, in CreateTopicInput) (*model.Topic, error) {
	now := s.now()
	var topic *model.Topic
	err := s.store.WithTx(ctx, func(st repository.Store) error {
		u, err := lockUser(ctx, st, userID)
		if err != nil {
			return err
		}
		ps, d, err := s.topicDecision(ctx, st, u, now)
		if err != nil {
			return err
		}
		if !d.Allowed {
			return denied(d)
		}
		cycleID := ps.Cycle.ID
		t := &model.Topic{UserID: u.ID, CycleID: &cycleID, Title: in.Title, Question: in.Question}
		if err := st.Topics().Create(ctx, t); err != nil {
			return err
		}
		if ps.Plan == model.PlanFree {
			if _, err := st.Quotas().IncrementWeeklyTopicCount(ctx, u.ID, quota.WeekStart(now)); err != nil {
				return err
			}
		}
		topic = t
		return nil
	})
	if err != nil {
		s.logFailure(err, userID, "", "Failed to create topic")
		return nil, err
	}
	s.logger.Info().Str("user_id", userID).Str("topic_id", topic.ID).Msg("Topic created")
	return topic, nil
}

func (s *topicService) Delete(ctx context.Context, userID, topicID string) error {
	if !validTopicID(topicID) {
		return ErrTopicNotFound
	}
	err := s.store.Topics().SoftDelete(ctx, topicID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTopicNotFound
		}
		s.logger.Error().Err(err).Str("topic_id", topicID).Msg("Failed to delete topic")
		return err
	}
	return nil
}

func (s *topicService) ListEvents(ctx context.Context, userID, topicID string) ([]model.TopicEvent, error) {
	_, events, err := s.Get(ctx, userID, topicID)
	return events, err
}

func (s *topicService) CreateEvent(ctx context.Context, userID, topicID string, in CreateEventInput) (*model.TopicEvent, error) {
	now := s.now()
	var event *model.TopicEvent
	err := s.store.WithTx(ctx, func(st repository.Store) error {
		u, err := lockUser(ctx, st, userID)
		if err != nil {
			return err
		}
		t, err := s.getTopic(ctx, st, userID, topicID)
		if err != nil {
			return err
		}
		ps, err := resolvePlan(ctx, st, u, now)
		if err != nil {
			return err
		}
		// Members spend the current cycle's per-topic quota; free users count
		// every event the topic holds.
		var count int
		if ps.Plan == model.PlanMember {
			count, err = st.Topics().CountEventsInCycle(ctx, t.ID, ps.Cycle.ID)
		} else {
			count, err = st.Topics().CountEvents(ctx, t.ID)
		}
		if err != nil {
			return err
		}
		var snapshot *int
		if ps.Plan == model.PlanFree {
			snap, err := st.Quotas().GetSnapshot(ctx, t.ID)
			switch {
			case err == nil:
				snapshot = &snap.EventCount
			case !errors.Is(err, repository.ErrNotFound):
				return err
			}
		}
		d := quota.EventDecision(ps.Plan, count, ps.Cycle.EventQuotaPerTopic, snapshot)
		if !d.Allowed {
			return denied(d)
		}
		cycleID := ps.Cycle.ID
		e := &model.TopicEvent{
			TopicID: t.ID,
			UserID:  u.ID,
			CycleID: &cycleID,
			Title:   in.Title,
			Content: in.Content,
			Cards:   in.Cards,
		}
		if err := st.Topics().CreateEvent(ctx, e); err != nil {
			return err
		}
		event = e
		return nil
	})
	if err != nil {
		s.logFailure(err, userID, topicID, "Failed to create topic event")
		return nil, err
	}
	return event, nil
}

func (s *topicService) logFailure(err error, userID, topicID, msg string) {
	var qe *QuotaError
	if errors.As(err, &qe) {
		s.logger.Info().Str("user_id", userID).Str("topic_id", topicID).Str("reason", qe.Reason).Msg("Quota denied")
		return
	}
	if errors.Is(err, ErrTopicNotFound) || errors.Is(err, ErrUserNotFound) {
		return
	}
	s.logger.Error().Err(err).Str("user_id", userID).Str("topic_id", topicID).Msg(msg)
}

func denied(d quota.Decision) error {
	metrics.QuotaDenialsTotal.WithLabelValues(d.Reason).Inc()
	return &QuotaError{Reason: d.Reason, Limit: d.Limit, Used: d.Used, Remaining: d.Remaining}
}

// validTopicID reports whether id can name a topic row.
func validTopicID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
