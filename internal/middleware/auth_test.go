package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tarot/internal/model"
	"tarot/internal/util"
)

func newIssuer() *util.TokenIssuer {
	return util.NewTokenIssuer("secret", "tarot-api", time.Hour)
}

func userToken(t *testing.T, tokens *util.TokenIssuer) string {
	t.Helper()
	token, err := tokens.IssueUser(&model.User{ID: "u1", Email: "a@example.com"})
	require.NoError(t, err)
	return token
}

func captureClaims(got **util.Claims) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthMiddlewareBearerThenCookie(t *testing.T) {
	tokens := newIssuer()
	token := userToken(t, tokens)
	var got *util.Claims
	h := AuthMiddleware(tokens, zerolog.Nop())(captureClaims(&got))

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusNoContent},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: util.AuthCookieName, Value: token}) }, http.StatusNoContent},
		{"bearer wins over bad cookie", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+token)
			r.AddCookie(&http.Cookie{Name: util.AuthCookieName, Value: "garbage"})
		}, http.StatusNoContent},
		{"missing", func(r *http.Request) {}, http.StatusUnauthorized},
		{"garbage", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = nil
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusNoContent {
				require.NotNil(t, got)
				assert.Equal(t, "u1", got.ID)
			}
		})
	}
}

func TestAuthMiddlewareRejectsAdminToken(t *testing.T) {
	tokens := newIssuer()
	admin, err := tokens.IssueAdmin(&model.AdminUser{ID: "a1", Username: "root"}, time.Hour)
	require.NoError(t, err)
	var got *util.Claims
	h := AuthMiddleware(tokens, zerolog.Nop())(captureClaims(&got))

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOptionalAuthMiddleware(t *testing.T) {
	tokens := newIssuer()
	var got *util.Claims
	h := OptionalAuthMiddleware(tokens)(captureClaims(&got))

	req := httptest.NewRequest(http.MethodPost, "/api/share", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, got)

	req = httptest.NewRequest(http.MethodPost, "/api/share", nil)
	req.Header.Set("Authorization", "Bearer "+userToken(t, tokens))
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.ID)
}

func TestAdminMiddleware(t *testing.T) {
	tokens := newIssuer()
	admin, err := tokens.IssueAdmin(&model.AdminUser{ID: "a1", Username: "root"}, time.Hour)
	require.NoError(t, err)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := AdminMiddleware("s3cret", tokens, zerolog.Nop())(ok)

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"secret header", func(r *http.Request) { r.Header.Set(AdminSecretHeader, "s3cret") }, http.StatusOK},
		{"wrong secret", func(r *http.Request) { r.Header.Set(AdminSecretHeader, "guess") }, http.StatusForbidden},
		{"admin token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+admin) }, http.StatusOK},
		{"user token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+userToken(t, tokens)) }, http.StatusForbidden},
		{"nothing", func(r *http.Request) {}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/codes/generate", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestAdminMiddlewareEmptySecretNeverMatches(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := AdminMiddleware("", newIssuer(), zerolog.Nop())(ok)

	req := httptest.NewRequest(http.MethodPost, "/api/codes/generate", nil)
	req.Header.Set(AdminSecretHeader, "anything")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMetricsBasicAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	open := MetricsBasicAuth("", "")(ok)
	rec := httptest.NewRecorder()
	open.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	guarded := MetricsBasicAuth("admin", "secret123")(ok)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.SetBasicAuth("admin", "secret123")
	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
}
