package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"tarot/internal/api/v1/dto"
	"tarot/internal/service"
)

// UsageHandler reports and consumes the caller's daily reading allowance.
type UsageHandler struct {
	usage  service.UsageService
	logger zerolog.Logger
}

// NewUsageHandler creates a new UsageHandler.
func NewUsageHandler(usage service.UsageService, logger zerolog.Logger) *UsageHandler {
	return &UsageHandler{usage: usage, logger: logger.With().Str("handler", "UsageHandler").Logger()}
}

// RegisterRoutes mounts the usage endpoints behind authMw.
func (h *UsageHandler) RegisterRoutes(r chi.Router, authMw func(http.Handler) http.Handler) {
	r.With(authMw).Get("/usage", h.status)
	r.With(authMw).Post("/usage/consume", h.consume)
}

func (h *UsageHandler) status(w http.ResponseWriter, r *http.Request) {
	claims, ok := userClaims(w, r)
	if !ok {
		return
	}
	u, err := h.usage.Status(r.Context(), claims.ID)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to load usage")
		return
	}
	writeJSON(w, http.StatusOK, dto.NewUsageResponse(u))
}

// consume godoc
// @Summary Consume one reading from today's allowance
// @Tags usage
// @Produce json
// @Success 200 {object} dto.UsageResponseDTO
// @Failure 429 {object} dto.ErrorResponseDTO
// @Router /api/usage/consume [post]
func (h *UsageHandler) consume(w http.ResponseWriter, r *http.Request) {
	claims, ok := userClaims(w, r)
	if !ok {
		return
	}
	u, err := h.usage.Consume(r.Context(), claims.ID)
	if errors.Is(err, service.ErrDailyLimitReached) {
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":  "Daily limit reached",
			"reason": "daily_limit_reached",
			"usage":  dto.NewUsageResponse(u),
		})
		return
	}
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to consume usage")
		return
	}
	writeJSON(w, http.StatusOK, dto.NewUsageResponse(u))
}
