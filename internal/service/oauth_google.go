package service

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	googleoauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// OAuthProfile is the identity returned by an OAuth provider.
type OAuthProfile struct {
	Provider   string
	ProviderID string
	Email      string
	Name       string
	Avatar     string
}

// OAuthProvider runs the authorization-code flow against one provider.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*OAuthProfile, error)
}

type GoogleOptions struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Endpoint and UserInfoURL override Google's endpoints in tests.
	Endpoint    *oauth2.Endpoint
	UserInfoURL string
}

type googleProvider struct {
	cfg         *oauth2.Config
	userInfoURL string
}

func NewGoogleProvider(opts GoogleOptions) OAuthProvider {
	endpoint := google.Endpoint
	if opts.Endpoint != nil {
		endpoint = *opts.Endpoint
	}
	return &googleProvider{
		cfg: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURL,
			Endpoint:     endpoint,
			Scopes: []string{
				googleoauth2.UserinfoEmailScope,
				googleoauth2.UserinfoProfileScope,
			},
		},
		userInfoURL: opts.UserInfoURL,
	}
}

func (g *googleProvider) AuthCodeURL(state string) string {
	return g.cfg.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (g *googleProvider) Exchange(ctx context.Context, code string) (*OAuthProfile, error) {
	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange google code: %w", err)
	}
	opts := []option.ClientOption{option.WithHTTPClient(g.cfg.Client(ctx, tok))}
	if g.userInfoURL != "" {
		opts = append(opts, option.WithEndpoint(g.userInfoURL))
	}
	svc, err := googleoauth2.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create google userinfo client: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("fetch google userinfo: %w", err)
	}
	return &OAuthProfile{
		Provider:   "google",
		ProviderID: info.Id,
		Email:      info.Email,
		Name:       info.Name,
		Avatar:     info.Picture,
	}, nil
}
