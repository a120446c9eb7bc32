package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"tarot/internal/api/v1/dto"
	"tarot/internal/model"
	"tarot/internal/service"
)

// AnalyticsHandler records anonymous page views.
type AnalyticsHandler struct {
	analytics service.AnalyticsService
	validate  *validator.Validate
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(analytics service.AnalyticsService, v *validator.Validate) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics, validate: v}
}

// RegisterRoutes mounts the public page view beacon.
func (h *AnalyticsHandler) RegisterRoutes(r chi.Router) {
	r.Post("/analytics/pageview", h.pageView)
}

// pageView never fails the caller: bad payloads are dropped.
func (h *AnalyticsHandler) pageView(w http.ResponseWriter, r *http.Request) {
	var req dto.PageViewDTO
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err == nil && h.validate.Struct(&req) == nil {
		h.analytics.RecordPageView(r.Context(), model.PageView{
			Path:      req.Path,
			Referrer:  req.Referrer,
			VisitorID: req.VisitorID,
			UserAgent: r.UserAgent(),
		})
	}
	w.WriteHeader(http.StatusNoContent)
}
