package handler

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"tarot/internal/api/v1/dto"
	"tarot/internal/service"
)

const maxWebhookBytes = 1 << 16

// BillingHandler starts checkouts and receives payment provider webhooks.
type BillingHandler struct {
	billing  service.BillingService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(billing service.BillingService, v *validator.Validate, logger zerolog.Logger) *BillingHandler {
	return &BillingHandler{
		billing:  billing,
		validate: v,
		logger:   logger.With().Str("handler", "BillingHandler").Logger(),
	}
}

// RegisterRoutes mounts checkout behind authMw and the signed webhook
// endpoints. The Stripe webhook is mounted only when Stripe is configured.
func (h *BillingHandler) RegisterRoutes(r chi.Router, authMw func(http.Handler) http.Handler, stripeEnabled bool) {
	r.With(authMw).Post("/checkout", h.checkout)
	r.Post("/creem-webhook", h.webhook("creem"))
	if stripeEnabled {
		r.Post("/stripe-webhook", h.webhook("stripe"))
	}
}

// checkout godoc
// @Summary Start a membership checkout
// @Tags billing
// @Accept json
// @Produce json
// @Param body body dto.CheckoutRequestDTO false "Provider"
// @Success 200 {object} dto.CheckoutResponseDTO
// @Router /api/checkout [post]
func (h *BillingHandler) checkout(w http.ResponseWriter, r *http.Request) {
	claims, ok := userClaims(w, r)
	if !ok {
		return
	}
	var req dto.CheckoutRequestDTO
	if !decode(w, r, h.validate, &req) {
		return
	}
	url, err := h.billing.Checkout(r.Context(), claims.ID, req.Provider)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to create checkout")
		return
	}
	writeJSON(w, http.StatusOK, dto.CheckoutResponseDTO{URL: url})
}

// webhook acknowledges every delivery with 200 so the provider never
// retries; failures are logged by the billing service.
func (h *BillingHandler) webhook(provider string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
		if err != nil {
			h.logger.Warn().Err(err).Str("provider", provider).Msg("Failed to read webhook body")
		} else if err := h.billing.HandleWebhook(r.Context(), provider, payload, r.Header); err != nil {
			h.logger.Warn().Err(err).Str("provider", provider).Msg("Webhook not applied")
		}
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
	}
}
