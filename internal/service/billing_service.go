package service

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"tarot/internal/billing"
	"tarot/internal/metrics"
	"tarot/internal/model"
	"tarot/internal/quota"
	"tarot/internal/repository"
)

const DefaultProvider = "creem"

// BillingService creates checkouts and applies payment webhooks.
type BillingService interface {
	Checkout(ctx context.Context, userID, provider string) (string, error)
	// HandleWebhook verifies and applies one provider event. Duplicate events
	// are acknowledged without effect.
	HandleWebhook(ctx context.Context, provider string, payload []byte, header http.Header) error
}

type billingService struct {
	store       repository.Store
	providers   map[string]billing.Provider
	memberships MembershipService
	frontendURL string
	logger      zerolog.Logger
}

func NewBillingService(store repository.Store, providers []billing.Provider, memberships MembershipService, frontendURL string, logger zerolog.Logger) BillingService {
	byName := make(map[string]billing.Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &billingService{
		store:       store,
		providers:   byName,
		memberships: memberships,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logger:      logger.With().Str("service", "BillingService").Logger(),
	}
}

func (s *billingService) provider(name string) (billing.Provider, error) {
	if name == "" {
		name = DefaultProvider
	}
	p, ok := s.providers[name]
	if !ok {
		return nil, ErrProviderNotConfigured
	}
	return p, nil
}

func (s *billingService) Checkout(ctx context.Context, userID, provider string) (string, error) {
	p, err := s.provider(provider)
	if err != nil {
		return "", err
	}
	u, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}
	url, err := p.CreateCheckout(ctx, billing.CheckoutRequest{
		UserID:     u.ID,
		Email:      u.Email,
		SuccessURL: s.frontendURL + "/membership?status=success",
		CancelURL:  s.frontendURL + "/membership?status=cancel",
	})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("provider", p.Name()).Msg("Failed to create checkout")
		return "", err
	}
	return url, nil
}

// grantSource maps a paid event onto the cycle source it opens; ok is false
// for events that do not grant anything.
func grantSource(provider, eventType string) (model.CycleSource, bool) {
	switch eventType {
	case billing.EventOrderCompleted:
		if provider == "stripe" {
			return model.SourceStripe, true
		}
		return model.SourceCreem, true
	case billing.EventSubscriptionActivated, billing.EventSubscriptionRenewed:
		if provider == "stripe" {
			return model.SourceStripe, true
		}
		return model.SourceCreemSubscription, true
	}
	return "", false
}

func (s *billingService) HandleWebhook(ctx context.Context, provider string, payload []byte, header http.Header) error {
	p, err := s.provider(provider)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(provider, "unknown", "unconfigured").Inc()
		return err
	}
	ev, err := p.ParseWebhook(payload, header)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(p.Name(), "unknown", "rejected").Inc()
		s.logger.Warn().Err(err).Str("provider", p.Name()).Msg("Rejected webhook")
		return err
	}
	log := s.logger.With().Str("provider", ev.Provider).Str("event_id", ev.ID).Str("event_type", ev.Type).Logger()
	log.Info().Str("user_id", ev.UserID).Msg("Webhook received")

	source, grants := grantSource(ev.Provider, ev.Type)
	var (
		cycle     *model.MembershipCycle
		duplicate bool
	)
	// The dedupe row commits together with the grant it guards.
	markProcessed := func(st repository.Store) error {
		first, err := st.Webhooks().MarkProcessed(ctx, ev.Provider, ev.ID, ev.Type)
		if err != nil {
			return err
		}
		if !first {
			duplicate = true
		}
		return nil
	}
	switch {
	case !grants:
		err = s.store.WithTx(ctx, markProcessed)
	case ev.UserID == "":
		err = ErrUnattributedEvent
	default:
		_, cycle, err = s.memberships.GrantWith(ctx, ev.UserID, source, ev.Reference, func(st repository.Store, _ *model.User) (int, error) {
			if err := markProcessed(st); err != nil {
				return 0, err
			}
			if duplicate {
				return 0, ErrSkipGrant
			}
			return quota.PaidCycleDays, nil
		})
	}
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(ev.Provider, ev.Type, "error").Inc()
		log.Error().Err(err).Str("user_id", ev.UserID).Msg("Failed to apply webhook")
		return err
	}

	switch {
	case duplicate:
		metrics.WebhookEventsTotal.WithLabelValues(ev.Provider, ev.Type, "duplicate").Inc()
		log.Info().Msg("Duplicate webhook skipped")
	case cycle != nil:
		metrics.WebhookEventsTotal.WithLabelValues(ev.Provider, ev.Type, "granted").Inc()
		log.Info().Str("user_id", ev.UserID).Str("cycle_id", cycle.ID).Msg("Webhook granted membership")
	default:
		// Cancellations let the paid period run out on its own.
		metrics.WebhookEventsTotal.WithLabelValues(ev.Provider, ev.Type, "ignored").Inc()
		log.Info().Msg("Webhook acknowledged without changes")
	}
	return nil
}
