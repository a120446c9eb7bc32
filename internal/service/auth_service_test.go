package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"tarot/internal/util"
)

type fakeOAuth struct {
	profile *OAuthProfile
}

func (f *fakeOAuth) AuthCodeURL(state string) string { return "https://accounts.example/auth?state=" + state }

func (f *fakeOAuth) Exchange(ctx context.Context, code string) (*OAuthProfile, error) {
	return f.profile, nil
}

func TestLoginUpsertsUserAndIssuesToken(t *testing.T) {
	c := newClock()
	st := newTestStore(c)
	tokens := util.NewTokenIssuer("secret", "tarot-api", 7*24*time.Hour)
	provider := &fakeOAuth{profile: &OAuthProfile{Provider: "google", ProviderID: "g-1", Email: "a@example.com", Name: "A"}}
	svc := NewAuthService(st, provider, tokens, nopLogger)
	ctx := context.Background()

	u, token, err := svc.Login(ctx, "code")
	require.NoError(t, err)
	claims, err := tokens.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.ID)
	assert.Equal(t, "a@example.com", claims.Email)

	provider.profile.Name = "A. Renamed"
	again, _, err := svc.Login(ctx, "code")
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
	assert.Equal(t, "A. Renamed", st.User(u.ID).Name)

	assert.Equal(t, 7*24*3600, svc.TokenTTLSeconds())
}

func TestAuthWithoutProvider(t *testing.T) {
	c := newClock()
	svc := NewAuthService(newTestStore(c), nil, util.NewTokenIssuer("s", "i", time.Hour), nopLogger)

	_, err := svc.AuthCodeURL("state")
	assert.ErrorIs(t, err, ErrOAuthNotConfigured)
	_, _, err = svc.Login(context.Background(), "code")
	assert.ErrorIs(t, err, ErrOAuthNotConfigured)
}

func TestGoogleProviderExchange(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.Form.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "at", "token_type": "Bearer", "expires_in": 3600})
	})
	mux.HandleFunc("/oauth2/v2/userinfo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "123", "email": "g@example.com", "name": "G", "picture": "https://img/g.png"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewGoogleProvider(GoogleOptions{
		ClientID:     "cid",
		ClientSecret: "secret",
		RedirectURL:  "https://api.example/api/auth/google/callback",
		Endpoint:     &oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token", AuthStyle: oauth2.AuthStyleInParams},
		UserInfoURL:  srv.URL + "/",
	})

	assert.Contains(t, p.AuthCodeURL("xyz"), "state=xyz")

	profile, err := p.Exchange(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, &OAuthProfile{Provider: "google", ProviderID: "123", Email: "g@example.com", Name: "G", Avatar: "https://img/g.png"}, profile)
}
