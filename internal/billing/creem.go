package billing

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const CreemSignatureHeader = "creem-signature"

// creemEventTypes maps Creem's native names onto the normalised ones. The
// normalised names are accepted as-is too.
var creemEventTypes = map[string]string{
	"checkout.completed":    EventOrderCompleted,
	"subscription.active":   EventSubscriptionActivated,
	"subscription.paid":     EventSubscriptionRenewed,
	"subscription.canceled": EventSubscriptionCancelled,

	EventOrderCompleted:        EventOrderCompleted,
	EventSubscriptionActivated: EventSubscriptionActivated,
	EventSubscriptionRenewed:   EventSubscriptionRenewed,
	EventSubscriptionCancelled: EventSubscriptionCancelled,
}

// CreemOptions configures the Creem provider.
type CreemOptions struct {
	APIKey        string
	WebhookSecret string
	ProductID     string
	BaseURL       string
	HTTPClient    *http.Client
}

// Creem talks to the Creem REST API directly; there is no Go SDK.
type Creem struct {
	opts CreemOptions
	http *http.Client
}

func NewCreem(opts CreemOptions) *Creem {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Creem{opts: opts, http: client}
}

func (c *Creem) Name() string { return "creem" }

type creemCheckoutRequest struct {
	ProductID  string            `json:"product_id"`
	RequestID  string            `json:"request_id,omitempty"`
	SuccessURL string            `json:"success_url,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Customer   *creemCustomer    `json:"customer,omitempty"`
}

type creemCustomer struct {
	Email string `json:"email,omitempty"`
}

type creemCheckoutResponse struct {
	ID          string `json:"id"`
	CheckoutURL string `json:"checkout_url"`
}

func (c *Creem) CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error) {
	if c.opts.APIKey == "" || c.opts.ProductID == "" {
		return "", errors.New("creem: api key or product id not configured")
	}
	body := creemCheckoutRequest{
		ProductID:  c.opts.ProductID,
		RequestID:  req.UserID,
		SuccessURL: req.SuccessURL,
		Metadata:   map[string]string{"user_id": req.UserID},
	}
	if req.Email != "" {
		body.Customer = &creemCustomer{Email: req.Email}
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("creem: encode checkout: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/v1/checkouts", bytes.NewReader(buf))
	if err != nil {
		return "", fmt.Errorf("creem: build checkout request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.opts.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("creem: create checkout: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("creem: read checkout response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("creem: create checkout: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var out creemCheckoutResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("creem: decode checkout response: %w", err)
	}
	if out.CheckoutURL == "" {
		return "", errors.New("creem: checkout response has no url")
	}
	return out.CheckoutURL, nil
}

type creemObject struct {
	ID           string            `json:"id"`
	Metadata     map[string]string `json:"metadata"`
	Subscription *struct {
		ID       string            `json:"id"`
		Metadata map[string]string `json:"metadata"`
	} `json:"subscription"`
	Order *struct {
		ID string `json:"id"`
	} `json:"order"`
}

type creemEvent struct {
	ID        string      `json:"id"`
	EventType string      `json:"eventType"`
	Type      string      `json:"type"`
	Object    creemObject `json:"object"`
}

// SignCreemPayload returns the hex HMAC-SHA256 Creem puts in creem-signature.
func SignCreemPayload(payload []byte, secret string) string {
	return hex.EncodeToString(creemMAC(payload, secret))
}

func creemMAC(payload []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return mac.Sum(nil)
}

func (c *Creem) ParseWebhook(payload []byte, header http.Header) (*Event, error) {
	if c.opts.WebhookSecret == "" {
		return nil, fmt.Errorf("%w: webhook secret not configured", ErrInvalidSignature)
	}
	got, err := hex.DecodeString(strings.TrimSpace(header.Get(CreemSignatureHeader)))
	if err != nil || len(got) == 0 {
		return nil, ErrInvalidSignature
	}
	if !hmac.Equal(got, creemMAC(payload, c.opts.WebhookSecret)) {
		return nil, ErrInvalidSignature
	}

	var raw creemEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	rawType := raw.EventType
	if rawType == "" {
		rawType = raw.Type
	}
	if raw.ID == "" || rawType == "" {
		return nil, fmt.Errorf("%w: missing id or type", ErrMalformedEvent)
	}
	ev := &Event{Provider: c.Name(), ID: raw.ID, Type: rawType, Reference: raw.Object.ID}
	if mapped, ok := creemEventTypes[rawType]; ok {
		ev.Type = mapped
	}
	ev.UserID = raw.Object.Metadata["user_id"]
	if raw.Object.Subscription != nil {
		if ev.UserID == "" {
			ev.UserID = raw.Object.Subscription.Metadata["user_id"]
		}
		if ev.Type != EventOrderCompleted && raw.Object.Subscription.ID != "" {
			ev.Reference = raw.Object.Subscription.ID
		}
	}
	if ev.Type == EventOrderCompleted && raw.Object.Order != nil && raw.Object.Order.ID != "" {
		ev.Reference = raw.Object.Order.ID
	}
	return ev, nil
}
