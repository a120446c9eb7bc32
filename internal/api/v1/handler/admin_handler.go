package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"tarot/internal/api/v1/dto"
	"tarot/internal/model"
	"tarot/internal/service"
)

// AdminHandler serves operator login, analytics and prompt management.
type AdminHandler struct {
	admins    service.AdminService
	analytics service.AnalyticsService
	prompts   service.PromptService
	validate  *validator.Validate
	tokenTTL  int
	logger    zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler. Issued admin tokens live for tokenTTLSeconds.
func NewAdminHandler(admins service.AdminService, analytics service.AnalyticsService, prompts service.PromptService, v *validator.Validate, tokenTTLSeconds int, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		admins:    admins,
		analytics: analytics,
		prompts:   prompts,
		validate:  v,
		tokenTTL:  tokenTTLSeconds,
		logger:    logger.With().Str("handler", "AdminHandler").Logger(),
	}
}

// RegisterRoutes mounts /admin. Login is public; everything else sits behind adminMw.
func (h *AdminHandler) RegisterRoutes(r chi.Router, adminMw func(http.Handler) http.Handler) {
	r.Post("/admin/login", h.login)
	r.Group(func(r chi.Router) {
		r.Use(adminMw)
		r.Get("/admin/analytics", h.dailyAnalytics)
		r.Get("/admin/prompts/{name}", h.getPrompt)
		r.Put("/admin/prompts/{name}", h.putPrompt)
	})
}

func (h *AdminHandler) login(w http.ResponseWriter, r *http.Request) {
	var req dto.AdminLoginDTO
	if !decode(w, r, h.validate, &req) {
		return
	}
	token, _, err := h.admins.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials", "")
		return
	}
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to log in")
		return
	}
	writeJSON(w, http.StatusOK, dto.AdminLoginResponseDTO{Token: token, ExpiresIn: h.tokenTTL})
}

func (h *AdminHandler) dailyAnalytics(w http.ResponseWriter, r *http.Request) {
	days, err := intQuery(r, "days", 30, 1, 365)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	rows, err := h.analytics.Daily(r.Context(), days)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to load analytics")
		return
	}
	if rows == nil {
		rows = []model.DailyAnalytics{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *AdminHandler) getPrompt(w http.ResponseWriter, r *http.Request) {
	p, err := h.prompts.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to load prompt")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *AdminHandler) putPrompt(w http.ResponseWriter, r *http.Request) {
	var req dto.PromptUpdateDTO
	if !decode(w, r, h.validate, &req) {
		return
	}
	p, err := h.prompts.Put(r.Context(), chi.URLParam(r, "name"), req.Content)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to save prompt")
		return
	}
	writeJSON(w, http.StatusOK, p)
}
