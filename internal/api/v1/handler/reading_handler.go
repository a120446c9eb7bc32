package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"tarot/internal/api/v1/dto"
	"tarot/internal/service"
)

// ReadingHandler serves LLM card interpretations.
type ReadingHandler struct {
	readings service.ReadingService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewReadingHandler creates a new ReadingHandler.
func NewReadingHandler(readings service.ReadingService, v *validator.Validate, logger zerolog.Logger) *ReadingHandler {
	return &ReadingHandler{
		readings: readings,
		validate: v,
		logger:   logger.With().Str("handler", "ReadingHandler").Logger(),
	}
}

// RegisterRoutes mounts the reading endpoints behind authMw.
func (h *ReadingHandler) RegisterRoutes(r chi.Router, authMw func(http.Handler) http.Handler) {
	r.With(authMw).Post("/tarot-reading", h.reading)
}

// reading godoc
// @Summary Interpret a spread
// @Tags reading
// @Accept json
// @Produce json
// @Param body body dto.ReadingRequestDTO true "Spread"
// @Success 200 {object} dto.ReadingResponseDTO
// @Failure 502 {object} dto.ErrorResponseDTO
// @Router /api/tarot-reading [post]
func (h *ReadingHandler) reading(w http.ResponseWriter, r *http.Request) {
	claims, ok := userClaims(w, r)
	if !ok {
		return
	}
	var req dto.ReadingRequestDTO
	if !decode(w, r, h.validate, &req) {
		return
	}
	in := service.ReadingInput{
		Question:   req.Question,
		Spread:     req.Spread,
		TopicTitle: req.TopicTitle,
		Cards:      make([]service.Card, 0, len(req.Cards)),
	}
	for _, c := range req.Cards {
		in.Cards = append(in.Cards, service.Card{Name: c.Name, Position: c.Position, Reversed: c.Reversed})
	}
	out, err := h.readings.Generate(r.Context(), claims.ID, in)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to generate reading")
		return
	}
	writeJSON(w, http.StatusOK, dto.ReadingResponseDTO{Reading: out.Text, Model: out.Model})
}
