package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"tarot/internal/api/v1/dto"
	"tarot/internal/middleware"
	"tarot/internal/service"
)

// ShareHandler creates public share links and serves shared readings.
type ShareHandler struct {
	shares      service.ShareService
	validate    *validator.Validate
	frontendURL string
	logger      zerolog.Logger
}

// NewShareHandler creates a new ShareHandler. Share URLs are built on frontendURL.
func NewShareHandler(shares service.ShareService, v *validator.Validate, frontendURL string, logger zerolog.Logger) *ShareHandler {
	return &ShareHandler{
		shares:      shares,
		validate:    v,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logger:      logger.With().Str("handler", "ShareHandler").Logger(),
	}
}

// RegisterRoutes mounts the share endpoints. Reading a share works without a session.
func (h *ShareHandler) RegisterRoutes(r chi.Router, optionalAuthMw func(http.Handler) http.Handler) {
	r.With(optionalAuthMw).Post("/share", h.create)
	r.Get("/share/{shareId}", h.view)
}

func (h *ShareHandler) create(w http.ResponseWriter, r *http.Request) {
	var req dto.ShareCreateDTO
	if !decode(w, r, h.validate, &req) {
		return
	}
	var userID *string
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok && claims.ID != "" {
		userID = &claims.ID
	}
	s, err := h.shares.Create(r.Context(), userID, service.CreateShareInput{
		Question:       req.Question,
		Spread:         req.Spread,
		Cards:          req.Cards,
		Interpretation: req.Interpretation,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to create share")
		return
	}
	writeJSON(w, http.StatusCreated, dto.ShareCreateResponseDTO{ID: s.ID, URL: h.frontendURL + "/share/" + s.ID})
}

func (h *ShareHandler) view(w http.ResponseWriter, r *http.Request) {
	s, err := h.shares.View(r.Context(), chi.URLParam(r, "shareId"))
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to load share")
		return
	}
	writeJSON(w, http.StatusOK, s)
}
