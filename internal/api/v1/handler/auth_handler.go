package handler

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"tarot/internal/api/v1/dto"
	"tarot/internal/service"
	"tarot/internal/util"
)

const stateCookieTTL = 10 * time.Minute

// AuthHandler serves the OAuth login flow and the /me profile.
type AuthHandler struct {
	auth        service.AuthService
	plans       service.PlanService
	usage       service.UsageService
	frontendURL string
	secure      bool
	logger      zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler. secure controls the Secure flag on the session cookie.
func NewAuthHandler(auth service.AuthService, plans service.PlanService, usage service.UsageService, frontendURL string, secure bool, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:        auth,
		plans:       plans,
		usage:       usage,
		frontendURL: frontendURL,
		secure:      secure,
		logger:      logger.With().Str("handler", "AuthHandler").Logger(),
	}
}

// RegisterRoutes mounts the public auth routes and the authenticated /me route.
func (h *AuthHandler) RegisterRoutes(r chi.Router, authMw func(http.Handler) http.Handler) {
	r.Get("/auth/google", h.googleRedirect)
	r.Get("/auth/google/callback", h.googleCallback)
	r.Post("/auth/logout", h.logout)
	r.With(authMw).Get("/me", h.me)
}

func (h *AuthHandler) googleRedirect(w http.ResponseWriter, r *http.Request) {
	state, err := util.RandomHex(16)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to start login")
		return
	}
	target, err := h.auth.AuthCodeURL(state)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to start login")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     util.StateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *AuthHandler) googleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		h.redirectFailure(w, r, e)
		return
	}
	stateCookie, err := r.Cookie(util.StateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != q.Get("state") {
		h.logger.Warn().Msg("OAuth state mismatch")
		h.redirectFailure(w, r, "invalid_state")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: util.StateCookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true, Secure: h.secure})

	code := q.Get("code")
	if code == "" {
		h.redirectFailure(w, r, "missing_code")
		return
	}
	u, token, err := h.auth.Login(r.Context(), code)
	if err != nil {
		if errors.Is(err, service.ErrOAuthNotConfigured) {
			writeServiceError(w, h.logger, err, "Login failed")
			return
		}
		h.redirectFailure(w, r, "login_failed")
		return
	}
	h.logger.Info().Str("user_id", u.ID).Msg("User signed in")
	http.SetCookie(w, util.AuthCookie(token, time.Duration(h.auth.TokenTTLSeconds())*time.Second, h.secure))
	http.Redirect(w, r, h.frontendURL+"/auth/callback?token="+url.QueryEscape(token), http.StatusFound)
}

func (h *AuthHandler) redirectFailure(w http.ResponseWriter, r *http.Request, reason string) {
	http.Redirect(w, r, h.frontendURL+"/auth/callback?error="+url.QueryEscape(reason), http.StatusFound)
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, util.ClearAuthCookie(h.secure))
	w.WriteHeader(http.StatusNoContent)
}

// me godoc
// @Summary Current user with plan, quota and daily usage
// @Tags auth
// @Produce json
// @Success 200 {object} dto.MeResponseDTO
// @Failure 401 {object} dto.ErrorResponseDTO
// @Router /api/me [get]
func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	claims, ok := userClaims(w, r)
	if !ok {
		return
	}
	u, snap, err := h.plans.Snapshot(r.Context(), claims.ID)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to load profile")
		return
	}
	usage, err := h.usage.Status(r.Context(), claims.ID)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to load usage")
		return
	}

	resp := dto.MeResponseDTO{
		User:  dto.NewUserResponse(u),
		Plan:  snap.Plan,
		Quota: *snap,
		Usage: dto.NewUsageResponse(usage),
	}
	// The token caches membership_expires_at; refresh it after a grant.
	if !sameInstant(claims.MembershipExpiresAt, u.MembershipExpiresAt) {
		token, err := h.auth.IssueToken(u)
		if err != nil {
			writeServiceError(w, h.logger, err, "Failed to refresh token")
			return
		}
		http.SetCookie(w, util.AuthCookie(token, time.Duration(h.auth.TokenTTLSeconds())*time.Second, h.secure))
		resp.Token = token
	}
	writeJSON(w, http.StatusOK, resp)
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Unix() == b.Unix()
}
