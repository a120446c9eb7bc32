package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

func creemHeader(payload []byte, secret string) http.Header {
	h := http.Header{}
	h.Set(CreemSignatureHeader, SignCreemPayload(payload, secret))
	return h
}

func TestCreemParseWebhookMapsNativeNames(t *testing.T) {
	c := NewCreem(CreemOptions{WebhookSecret: "whsec"})

	tests := []struct {
		eventType string
		want      string
	}{
		{"checkout.completed", EventOrderCompleted},
		{"order.completed", EventOrderCompleted},
		{"subscription.active", EventSubscriptionActivated},
		{"subscription.paid", EventSubscriptionRenewed},
		{"subscription.renewed", EventSubscriptionRenewed},
		{"subscription.canceled", EventSubscriptionCancelled},
		{"refund.created", "refund.created"},
	}
	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			payload := []byte(fmt.Sprintf(`{"id":"evt_1","eventType":%q,"object":{"id":"obj_1","metadata":{"user_id":"u1"}}}`, tt.eventType))
			ev, err := c.ParseWebhook(payload, creemHeader(payload, "whsec"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev.Type)
			assert.Equal(t, "u1", ev.UserID)
			assert.Equal(t, "evt_1", ev.ID)
		})
	}
}

func TestCreemParseWebhookSubscriptionMetadata(t *testing.T) {
	c := NewCreem(CreemOptions{WebhookSecret: "whsec"})
	payload := []byte(`{"id":"evt_2","eventType":"subscription.paid","object":{"id":"obj","subscription":{"id":"sub_9","metadata":{"user_id":"u2"}}}}`)

	ev, err := c.ParseWebhook(payload, creemHeader(payload, "whsec"))
	require.NoError(t, err)
	assert.Equal(t, "u2", ev.UserID)
	assert.Equal(t, "sub_9", ev.Reference)
}

func TestCreemParseWebhookRejectsBadSignature(t *testing.T) {
	c := NewCreem(CreemOptions{WebhookSecret: "whsec"})
	payload := []byte(`{"id":"evt_1","eventType":"checkout.completed","object":{}}`)

	_, err := c.ParseWebhook(payload, creemHeader(payload, "other"))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = c.ParseWebhook(payload, http.Header{})
	assert.ErrorIs(t, err, ErrInvalidSignature)

	good := SignCreemPayload(payload, "whsec")
	for _, sig := range []string{"not-hex", good[:len(good)-2], good + "00", "zz" + good[2:]} {
		h := http.Header{}
		h.Set(CreemSignatureHeader, sig)
		_, err = c.ParseWebhook(payload, h)
		assert.ErrorIs(t, err, ErrInvalidSignature, sig)
	}
}

func TestCreemParseWebhookAcceptsUpperCaseHex(t *testing.T) {
	c := NewCreem(CreemOptions{WebhookSecret: "whsec"})
	payload := []byte(`{"id":"evt_1","eventType":"checkout.completed","object":{"id":"ch_1"}}`)
	h := http.Header{}
	h.Set(CreemSignatureHeader, " "+strings.ToUpper(SignCreemPayload(payload, "whsec"))+" ")

	ev, err := c.ParseWebhook(payload, h)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
}

func TestCreemParseWebhookMalformed(t *testing.T) {
	c := NewCreem(CreemOptions{WebhookSecret: "whsec"})
	payload := []byte(`{"eventType":"checkout.completed"}`)

	_, err := c.ParseWebhook(payload, creemHeader(payload, "whsec"))
	assert.ErrorIs(t, err, ErrMalformedEvent)
}

func TestCreemCreateCheckout(t *testing.T) {
	var got creemCheckoutRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkouts", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "ch_1", "checkout_url": "https://pay.example/ch_1"})
	}))
	defer srv.Close()

	c := NewCreem(CreemOptions{APIKey: "key", ProductID: "prod_1", BaseURL: srv.URL + "/"})
	url, err := c.CreateCheckout(context.Background(), CheckoutRequest{UserID: "u1", Email: "a@b.c", SuccessURL: "https://app/ok"})
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/ch_1", url)
	assert.Equal(t, "prod_1", got.ProductID)
	assert.Equal(t, "u1", got.Metadata["user_id"])
	assert.Equal(t, "a@b.c", got.Customer.Email)
}

func TestCreemCreateCheckoutUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad product", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewCreem(CreemOptions{APIKey: "key", ProductID: "prod_1", BaseURL: srv.URL})
	_, err := c.CreateCheckout(context.Background(), CheckoutRequest{UserID: "u1"})
	assert.ErrorContains(t, err, "status 400")
}

func signedStripe(t *testing.T, payload []byte, secret string) http.Header {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	h := http.Header{}
	h.Set(StripeSignatureHeader, signed.Header)
	return h
}

func TestStripeParseWebhook(t *testing.T) {
	s := NewStripe(StripeOptions{WebhookSecret: "whsec_test"})

	tests := []struct {
		name    string
		payload string
		typ     string
		userID  string
		ref     string
	}{
		{
			name:    "subscription checkout",
			payload: `{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1","object":"checkout.session","mode":"subscription","subscription":"sub_1","metadata":{"user_id":"u1"}}}}`,
			typ:     EventSubscriptionActivated,
			userID:  "u1",
			ref:     "sub_1",
		},
		{
			name:    "one-off checkout",
			payload: `{"id":"evt_2","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_2","object":"checkout.session","mode":"payment","client_reference_id":"u2"}}}`,
			typ:     EventOrderCompleted,
			userID:  "u2",
			ref:     "cs_2",
		},
		{
			name:    "renewal invoice",
			payload: `{"id":"evt_3","object":"event","type":"invoice.paid","data":{"object":{"id":"in_1","billing_reason":"subscription_cycle","parent":{"subscription_details":{"subscription":"sub_1","metadata":{"user_id":"u3"}}}}}}`,
			typ:     EventSubscriptionRenewed,
			userID:  "u3",
			ref:     "in_1",
		},
		{
			name:    "first invoice",
			payload: `{"id":"evt_4","object":"event","type":"invoice.paid","data":{"object":{"id":"in_2","billing_reason":"subscription_create"}}}`,
			typ:     "invoice.paid",
		},
		{
			name:    "subscription deleted",
			payload: `{"id":"evt_5","object":"event","type":"customer.subscription.deleted","data":{"object":{"id":"sub_1","object":"subscription","metadata":{"user_id":"u5"}}}}`,
			typ:     EventSubscriptionCancelled,
			userID:  "u5",
			ref:     "sub_1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := []byte(tt.payload)
			ev, err := s.ParseWebhook(payload, signedStripe(t, payload, "whsec_test"))
			require.NoError(t, err)
			assert.Equal(t, tt.typ, ev.Type)
			assert.Equal(t, tt.userID, ev.UserID)
			assert.Equal(t, tt.ref, ev.Reference)
		})
	}
}

func TestStripeParseWebhookBadSignature(t *testing.T) {
	s := NewStripe(StripeOptions{WebhookSecret: "whsec_test"})
	payload := []byte(`{"id":"evt_1","object":"event","type":"invoice.paid","data":{"object":{}}}`)

	_, err := s.ParseWebhook(payload, signedStripe(t, payload, "whsec_other"))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
