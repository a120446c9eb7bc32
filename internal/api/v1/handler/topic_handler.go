package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"tarot/internal/api/v1/dto"
	"tarot/internal/model"
	"tarot/internal/service"
)

// TopicHandler serves topics and their events for the signed-in user.
type TopicHandler struct {
	topics   service.TopicService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewTopicHandler creates a new TopicHandler.
func NewTopicHandler(topics service.TopicService, v *validator.Validate, logger zerolog.Logger) *TopicHandler {
	return &TopicHandler{
		topics:   topics,
		validate: v,
		logger:   logger.With().Str("handler", "TopicHandler").Logger(),
	}
}

// RegisterRoutes mounts the topic routes; every route requires a user.
func (h *TopicHandler) RegisterRoutes(r chi.Router, authMw func(http.Handler) http.Handler) {
	r.Route("/topics", func(r chi.Router) {
		r.Use(authMw)
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{topicId}", h.get)
		r.Delete("/{topicId}", h.delete)
		r.Get("/{topicId}/events", h.listEvents)
		r.Post("/{topicId}/events", h.createEvent)
	})
}

func (h *TopicHandler) list(w http.ResponseWriter, r *http.Request) {
	claims, ok := userClaims(w, r)
	if !ok {
		return
	}
	topics, err := h.topics.List(r.Context(), claims.ID)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to list topics")
		return
	}
	if topics == nil {
		topics = []model.Topic{}
	}
	writeJSON(w, http.StatusOK, topics)
}

// create godoc
// @Summary Create a topic
// @Tags topics
// @Accept json
// @Produce json
// @Param body body dto.TopicCreateDTO true "Topic"
// @Success 201 {object} model.Topic
// @Failure 403 {object} dto.ErrorResponseDTO
// @Router /api/topics [post]
func (h *TopicHandler) create(w http.ResponseWriter, r *http.Request) {
	claims, ok := userClaims(w, r)
	if !ok {
		return
	}
	var req dto.TopicCreateDTO
	if !decode(w, r, h.validate, &req) {
		return
	}
	t, err := h.topics.Create(r.Context(), claims.ID, service.CreateTopicInput{Title: req.Title, Question: req.Question})
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to create topic")
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *TopicHandler) get(w http.ResponseWriter, r *http.Request) {
	claims, ok := userClaims(w, r)
	if !ok {
		return
	}
	t, events, err := h.topics.Get(r.Context(), claims.ID, chi.URLParam(r, "topicId"))
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to get topic")
		return
	}
	if events == nil {
		events = []model.TopicEvent{}
	}
	writeJSON(w, http.StatusOK, dto.TopicDetailResponseDTO{Topic: *t, Events: events})
}

func (h *TopicHandler) delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := userClaims(w, r)
	if !ok {
		return
	}
	if err := h.topics.Delete(r.Context(), claims.ID, chi.URLParam(r, "topicId")); err != nil {
		writeServiceError(w, h.logger, err, "Failed to delete topic")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TopicHandler) listEvents(w http.ResponseWriter, r *http.Request) {
	claims, ok := userClaims(w, r)
	if !ok {
		return
	}
	events, err := h.topics.ListEvents(r.Context(), claims.ID, chi.URLParam(r, "topicId"))
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to list events")
		return
	}
	if events == nil {
		events = []model.TopicEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *TopicHandler) createEvent(w http.ResponseWriter, r *http.Request) {
	claims, ok := userClaims(w, r)
	if !ok {
		return
	}
	var req dto.TopicEventCreateDTO
	if !decode(w, r, h.validate, &req) {
		return
	}
	ev, err := h.topics.CreateEvent(r.Context(), claims.ID, chi.URLParam(r, "topicId"), service.CreateEventInput{
		Title:   req.Title,
		Content: req.Content,
		Cards:   req.Cards,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to create event")
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}
