// Package billing adapts payment providers to one checkout call and one
// normalised webhook event shape.
package billing

import (
	"context"
	"errors"
	"net/http"
)

// Normalised webhook event types.
const (
	EventOrderCompleted        = "order.completed"
	EventSubscriptionActivated = "subscription.activated"
	EventSubscriptionRenewed   = "subscription.renewed"
	EventSubscriptionCancelled = "subscription.cancelled"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedEvent   = errors.New("malformed webhook event")
)

// Event is a provider webhook reduced to what membership bookkeeping needs.
type Event struct {
	Provider string
	ID       string
	// Type is one of the Event* constants, or the raw provider type when it
	// has no mapping.
	Type string
	// UserID comes from checkout metadata; empty when the provider omitted it.
	UserID string
	// Reference is the provider object id (order, subscription, invoice).
	Reference string
}

// CheckoutRequest describes the buyer of a checkout session.
type CheckoutRequest struct {
	UserID     string
	Email      string
	SuccessURL string
	CancelURL  string
}

// Provider is a payment provider.
type Provider interface {
	Name() string
	CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error)
	// ParseWebhook verifies the signature and decodes the event.
	ParseWebhook(payload []byte, header http.Header) (*Event, error)
}
