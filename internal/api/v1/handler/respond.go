package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"tarot/internal/api/v1/dto"
	"tarot/internal/middleware"
	"tarot/internal/service"
	"tarot/internal/util"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, reason string) {
	writeJSON(w, status, dto.ErrorResponseDTO{Error: msg, Reason: reason})
}

// decode reads a JSON body into dst and validates it.
func decode(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload: "+err.Error(), "")
		return false
	}
	if err := v.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed: "+err.Error(), "")
		return false
	}
	return true
}

// userClaims returns the authenticated user's claims or writes a 401.
func userClaims(w http.ResponseWriter, r *http.Request) (*util.Claims, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok || claims.ID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized: user not found in context", "")
		return nil, false
	}
	return claims, true
}

// writeServiceError maps service errors onto the HTTP error taxonomy.
func writeServiceError(w http.ResponseWriter, logger zerolog.Logger, err error, action string) {
	var qe *service.QuotaError
	switch {
	case errors.As(err, &qe):
		writeError(w, http.StatusForbidden, "Quota exceeded", qe.Reason)
	case errors.Is(err, service.ErrDailyLimitReached):
		writeError(w, http.StatusTooManyRequests, "Daily limit reached", "daily_limit_reached")
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusUnauthorized, "User not found", "")
	case errors.Is(err, service.ErrTopicNotFound),
		errors.Is(err, service.ErrShareNotFound),
		errors.Is(err, service.ErrPromptNotFound):
		writeError(w, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, service.ErrProviderNotConfigured), errors.Is(err, service.ErrOAuthNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err.Error(), "")
	case errors.Is(err, service.ErrLLMUnavailable):
		writeError(w, http.StatusBadGateway, "Reading service unavailable", "llm_unavailable")
	default:
		logger.Error().Err(err).Msg(action)
		writeError(w, http.StatusInternalServerError, action, "")
	}
}

// intQuery parses an integer query parameter clamped to [min, max].
func intQuery(r *http.Request, name string, def, min, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min || n > max {
		return 0, fmt.Errorf("%s must be an integer between %d and %d", name, min, max)
	}
	return n, nil
}
