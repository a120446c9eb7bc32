package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
)

// Publisher defines an interface for publishing messages.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte, attrs map[string]string) (string, error)
}

// PubSubPublisher is an implementation of Publisher using Google Pub/Sub.
type PubSubPublisher struct {
	client *pubsub.Client
}

// NewPublisher creates a new PubSubPublisher for the GCP project.
func NewPublisher(ctx context.Context, projectID string) (*PubSubPublisher, error) {
	if projectID == "" {
		return nil, errors.New("pubsub: GCP project id is empty")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pub/Sub client: %w", err)
	}
	return &PubSubPublisher{client: client}, nil
}

// Publish sends the payload to the given Pub/Sub topic and returns the message ID.
func (p *PubSubPublisher) Publish(ctx context.Context, topic string, payload []byte, attrs map[string]string) (string, error) {
	t := p.client.Topic(topic)
	result := t.Publish(ctx, &pubsub.Message{Data: payload, Attributes: attrs})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to publish message to topic %s: %w", topic, err)
	}
	return id, nil
}

func (p *PubSubPublisher) Close() error {
	return p.client.Close()
}

// NoopPublisher drops every message. Used when no GCP project is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, topic string, payload []byte, attrs map[string]string) (string, error) {
	return "", nil
}

// MembershipEvent is emitted after a paid cycle opens.
type MembershipEvent struct {
	Type                string    `json:"type"`
	UserID              string    `json:"user_id"`
	CycleID             string    `json:"cycle_id"`
	Source              string    `json:"source"`
	Reference           string    `json:"reference,omitempty"`
	MembershipExpiresAt time.Time `json:"membership_expires_at"`
	OccurredAt          time.Time `json:"occurred_at"`
}

// MembershipNotifier publishes membership events to one topic. Publishing is
// best effort: failures are logged and never reach the caller.
type MembershipNotifier struct {
	publisher Publisher
	topic     string
	logger    zerolog.Logger
}

func NewMembershipNotifier(publisher Publisher, topic string, logger zerolog.Logger) *MembershipNotifier {
	return &MembershipNotifier{
		publisher: publisher,
		topic:     topic,
		logger:    logger.With().Str("component", "MembershipNotifier").Logger(),
	}
}

func (n *MembershipNotifier) Notify(ctx context.Context, ev MembershipEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		n.logger.Error().Err(err).Str("user_id", ev.UserID).Msg("Failed to marshal membership event")
		return
	}
	id, err := n.publisher.Publish(ctx, n.topic, payload, map[string]string{"type": ev.Type, "source": ev.Source})
	if err != nil {
		n.logger.Warn().Err(err).Str("user_id", ev.UserID).Str("topic", n.topic).Msg("Failed to publish membership event")
		return
	}
	n.logger.Debug().Str("message_id", id).Str("user_id", ev.UserID).Msg("Membership event published")
}
