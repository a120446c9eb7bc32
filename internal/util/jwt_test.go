package util

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tarot/internal/model"
)

func TestIssueAndValidateUserToken(t *testing.T) {
	expires := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)
	issuer := NewTokenIssuer("secret", "tarot-api", 7*24*time.Hour)
	user := &model.User{ID: "u-1", Email: "a@example.com", Name: "Ada", Avatar: "https://img", MembershipExpiresAt: &expires}

	token, err := issuer.IssueUser(user)
	require.NoError(t, err)

	claims, err := issuer.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.ID)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Equal(t, "Ada", claims.Name)
	assert.Equal(t, "https://img", claims.Avatar)
	require.NotNil(t, claims.MembershipExpiresAt)
	assert.True(t, expires.Equal(*claims.MembershipExpiresAt))
	assert.Empty(t, claims.Role)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestValidateRejects(t *testing.T) {
	issuer := NewTokenIssuer("secret", "tarot-api", time.Hour)
	user := &model.User{ID: "u-1"}

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewTokenIssuer("secret", "someone-else", time.Hour)
		token, err := other.IssueUser(user)
		require.NoError(t, err)
		_, err = issuer.ValidateJWT(token)
		assert.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenIssuer("other-secret", "tarot-api", time.Hour)
		token, err := other.IssueUser(user)
		require.NoError(t, err)
		_, err = issuer.ValidateJWT(token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		past := issuer.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) })
		token, err := past.IssueUser(user)
		require.NoError(t, err)
		_, err = issuer.ValidateJWT(token)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := issuer.ValidateJWT("not-a-token")
		assert.Error(t, err)
	})
}

func TestIssueAdminCarriesRole(t *testing.T) {
	issuer := NewTokenIssuer("secret", "tarot-api", time.Hour)
	token, err := issuer.IssueAdmin(&model.AdminUser{ID: "a-1", Username: "root"}, time.Hour)
	require.NoError(t, err)

	claims, err := issuer.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, "root", claims.Name)
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		header string
		cookie string
		want   string
	}{
		{"bearer only", "Bearer abc", "", "abc"},
		{"cookie only", "", "xyz", "xyz"},
		{"bearer wins over cookie", "Bearer abc", "xyz", "abc"},
		{"malformed header falls back to cookie", "Token abc", "xyz", "xyz"},
		{"nothing", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: AuthCookieName, Value: tt.cookie})
			}
			assert.Equal(t, tt.want, TokenFromRequest(r))
		})
	}
}

func TestAuthCookieAttributes(t *testing.T) {
	c := AuthCookie("tok", 7*24*time.Hour, true)
	assert.Equal(t, AuthCookieName, c.Name)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, 604800, c.MaxAge)
}

func TestNewRedemptionCode(t *testing.T) {
	a, err := NewRedemptionCode()
	require.NoError(t, err)
	b, err := NewRedemptionCode()
	require.NoError(t, err)
	assert.Len(t, a, 16)
	assert.Regexp(t, "^[0-9A-F]{16}$", a)
	assert.NotEqual(t, a, b)
}
