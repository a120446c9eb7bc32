package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"tarot/internal/api/v1/dto"
	"tarot/internal/service"
	"tarot/internal/util"
)

const (
	defaultCodeDurationDays  = 30
	defaultCodeExpiresInDays = 90
)

// CodeHandler serves code redemption for users and code generation for admins.
type CodeHandler struct {
	codes    service.CodeService
	auth     service.AuthService
	validate *validator.Validate
	secure   bool
	logger   zerolog.Logger
}

// NewCodeHandler creates a new CodeHandler.
func NewCodeHandler(codes service.CodeService, auth service.AuthService, v *validator.Validate, secure bool, logger zerolog.Logger) *CodeHandler {
	return &CodeHandler{
		codes:    codes,
		auth:     auth,
		validate: v,
		secure:   secure,
		logger:   logger.With().Str("handler", "CodeHandler").Logger(),
	}
}

// RegisterRoutes mounts redemption behind authMw and the admin endpoints behind adminMw.
func (h *CodeHandler) RegisterRoutes(r chi.Router, authMw, adminMw func(http.Handler) http.Handler) {
	r.With(adminMw).Post("/codes/generate", h.generate)
	r.With(adminMw).Get("/codes", h.list)
	r.With(authMw).Post("/codes/redeem", h.redeem)
}

func (h *CodeHandler) generate(w http.ResponseWriter, r *http.Request) {
	var req dto.CodeGenerateDTO
	if !decode(w, r, h.validate, &req) {
		return
	}
	in := service.GenerateCodesInput{
		Count:         req.Count,
		DurationDays:  req.DurationDays,
		ExpiresInDays: req.ExpiresInDays,
		Note:          req.Note,
	}
	if in.DurationDays == 0 {
		in.DurationDays = defaultCodeDurationDays
	}
	if in.ExpiresInDays == 0 {
		in.ExpiresInDays = defaultCodeExpiresInDays
	}
	codes, err := h.codes.Generate(r.Context(), in)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to generate codes")
		return
	}
	writeJSON(w, http.StatusCreated, codes)
}

func (h *CodeHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 100, 1, 500)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	offset, err := intQuery(r, "offset", 0, 0, 1<<30)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	codes, err := h.codes.List(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to list codes")
		return
	}
	writeJSON(w, http.StatusOK, codes)
}

// redeem godoc
// @Summary Redeem a membership code
// @Tags codes
// @Accept json
// @Produce json
// @Param body body dto.CodeRedeemDTO true "Code"
// @Success 200 {object} dto.CodeRedeemResponseDTO
// @Failure 400 {object} dto.CodeRedeemResponseDTO
// @Failure 404 {object} dto.CodeRedeemResponseDTO
// @Router /api/codes/redeem [post]
func (h *CodeHandler) redeem(w http.ResponseWriter, r *http.Request) {
	claims, ok := userClaims(w, r)
	if !ok {
		return
	}
	var req dto.CodeRedeemDTO
	if !decode(w, r, h.validate, &req) {
		return
	}
	u, err := h.codes.Redeem(r.Context(), claims.ID, req.Code)
	var re *service.RedeemError
	if errors.As(err, &re) {
		status := http.StatusBadRequest
		if re.Reason == service.RedeemNotFound {
			status = http.StatusNotFound
		}
		writeJSON(w, status, dto.CodeRedeemResponseDTO{OK: false, Reason: re.Reason})
		return
	}
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to redeem code")
		return
	}

	resp := dto.CodeRedeemResponseDTO{OK: true, MembershipExpiresAt: u.MembershipExpiresAt}
	if token, err := h.auth.IssueToken(u); err == nil {
		http.SetCookie(w, util.AuthCookie(token, time.Duration(h.auth.TokenTTLSeconds())*time.Second, h.secure))
		resp.Token = token
	} else {
		h.logger.Warn().Err(err).Str("user_id", u.ID).Msg("Failed to refresh token after redeem")
	}
	writeJSON(w, http.StatusOK, resp)
}
