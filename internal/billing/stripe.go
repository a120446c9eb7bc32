package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

const StripeSignatureHeader = "Stripe-Signature"

// StripeOptions configures the Stripe provider.
type StripeOptions struct {
	SecretKey     string
	WebhookSecret string
	PriceID       string
}

// Stripe sells the membership as a Stripe subscription. Checkout and
// subscription metadata both carry user_id so every later event can be
// attributed without a customer lookup.
type Stripe struct {
	opts StripeOptions
}

func NewStripe(opts StripeOptions) *Stripe {
	stripe.Key = opts.SecretKey
	return &Stripe{opts: opts}
}

func (s *Stripe) Name() string { return "stripe" }

func (s *Stripe) CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error) {
	if s.opts.PriceID == "" {
		return "", errors.New("stripe: price id not configured")
	}
	meta := map[string]string{"user_id": req.UserID}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(stripe.CheckoutSessionModeSubscription),
		LineItems:         []*stripe.CheckoutSessionLineItemParams{{Price: stripe.String(s.opts.PriceID), Quantity: stripe.Int64(1)}},
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.UserID),
		Metadata:          meta,
		SubscriptionData:  &stripe.CheckoutSessionSubscriptionDataParams{Metadata: meta},
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	params.Context = ctx
	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create checkout session: %w", err)
	}
	return sess.URL, nil
}

// stripeInvoice holds the invoice fields needed to recognise a renewal.
type stripeInvoice struct {
	ID            string            `json:"id"`
	BillingReason string            `json:"billing_reason"`
	Metadata      map[string]string `json:"metadata"`
	Parent        *struct {
		SubscriptionDetails *struct {
			Subscription string            `json:"subscription"`
			Metadata     map[string]string `json:"metadata"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

func (s *Stripe) ParseWebhook(payload []byte, header http.Header) (*Event, error) {
	if s.opts.WebhookSecret == "" {
		return nil, fmt.Errorf("%w: webhook secret not configured", ErrInvalidSignature)
	}
	event, err := webhook.ConstructEventWithOptions(payload, header.Get(StripeSignatureHeader), s.opts.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if event.Data == nil {
		return nil, fmt.Errorf("%w: missing data", ErrMalformedEvent)
	}

	ev := &Event{Provider: s.Name(), ID: event.ID, Type: string(event.Type)}
	switch event.Type {
	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		ev.UserID = cs.Metadata["user_id"]
		if ev.UserID == "" {
			ev.UserID = cs.ClientReferenceID
		}
		ev.Reference = cs.ID
		if cs.Mode == stripe.CheckoutSessionModeSubscription {
			ev.Type = EventSubscriptionActivated
			if cs.Subscription != nil && cs.Subscription.ID != "" {
				ev.Reference = cs.Subscription.ID
			}
		} else {
			ev.Type = EventOrderCompleted
		}
	case "invoice.paid":
		var inv stripeInvoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		// The first invoice of a subscription is covered by checkout.session.completed.
		if inv.BillingReason != "subscription_cycle" {
			return ev, nil
		}
		ev.Type = EventSubscriptionRenewed
		ev.Reference = inv.ID
		ev.UserID = inv.Metadata["user_id"]
		if inv.Parent != nil && inv.Parent.SubscriptionDetails != nil {
			if ev.UserID == "" {
				ev.UserID = inv.Parent.SubscriptionDetails.Metadata["user_id"]
			}
		}
	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		ev.Type = EventSubscriptionCancelled
		ev.UserID = sub.Metadata["user_id"]
		ev.Reference = sub.ID
	}
	return ev, nil
}
