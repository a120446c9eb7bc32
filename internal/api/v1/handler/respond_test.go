package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"tarot/internal/service"
)

func TestWriteServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		reason string
	}{
		{"quota", &service.QuotaError{Reason: "pro_quota_exceeded"}, http.StatusForbidden, "pro_quota_exceeded"},
		{"daily limit", service.ErrDailyLimitReached, http.StatusTooManyRequests, "daily_limit_reached"},
		{"wrapped topic", fmt.Errorf("get: %w", service.ErrTopicNotFound), http.StatusNotFound, ""},
		{"unknown user", service.ErrUserNotFound, http.StatusUnauthorized, ""},
		{"llm", service.ErrLLMUnavailable, http.StatusBadGateway, "llm_unavailable"},
		{"provider", service.ErrProviderNotConfigured, http.StatusServiceUnavailable, ""},
		{"other", errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, zerolog.Nop(), tt.err, "Failed")
			assert.Equal(t, tt.status, rec.Code)
			if tt.reason != "" {
				assert.Contains(t, rec.Body.String(), `"reason":"`+tt.reason+`"`)
			}
		})
	}
}

func TestIntQuery(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/x?days=7&bad=abc&big=999", nil)

	n, err := intQuery(r, "days", 30, 1, 365)
	assert.NoError(t, err)
	assert.Equal(t, 7, n)

	n, err = intQuery(r, "missing", 30, 1, 365)
	assert.NoError(t, err)
	assert.Equal(t, 30, n)

	_, err = intQuery(r, "bad", 30, 1, 365)
	assert.Error(t, err)
	_, err = intQuery(r, "big", 30, 1, 365)
	assert.Error(t, err)
}
