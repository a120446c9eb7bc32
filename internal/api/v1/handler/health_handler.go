package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"tarot/internal/api/v1/dto"
)

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports liveness and database readiness.
type HealthHandler struct {
	db     Pinger
	logger zerolog.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db Pinger, logger zerolog.Logger) *HealthHandler {
	return &HealthHandler{db: db, logger: logger}
}

// RegisterRoutes mounts the unauthenticated health check.
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.health)
}

// health godoc
// @Summary Liveness and database check
// @Tags health
// @Produce json
// @Success 200 {object} dto.HealthResponseDTO
// @Router /api/health [get]
func (h *HealthHandler) health(w http.ResponseWriter, r *http.Request) {
	resp := dto.HealthResponseDTO{Status: "ok", Database: "ok"}
	if err := h.db.Ping(r.Context()); err != nil {
		h.logger.Warn().Err(err).Msg("Health check database ping failed")
		resp.Database = "error"
	}
	writeJSON(w, http.StatusOK, resp)
}
