package service

import (
	"context"

	"github.com/rs/zerolog"

	"tarot/internal/model"
	"tarot/internal/repository"
	"tarot/internal/util"
)

// AuthService signs users in through OAuth and issues application tokens.
type AuthService interface {
	AuthCodeURL(state string) (string, error)
	// Login exchanges an authorization code, upserts the user and returns a
	// signed token.
	Login(ctx context.Context, code string) (*model.User, string, error)
	IssueToken(u *model.User) (string, error)
	TokenTTLSeconds() int
}

type authService struct {
	store    repository.Store
	provider OAuthProvider
	tokens   *util.TokenIssuer
	logger   zerolog.Logger
}

// NewAuthService creates the service; provider may be nil when OAuth is not
// configured.
func NewAuthService(store repository.Store, provider OAuthProvider, tokens *util.TokenIssuer, logger zerolog.Logger) AuthService {
	return &authService{
		store:    store,
		provider: provider,
		tokens:   tokens,
		logger:   logger.With().Str("service", "AuthService").Logger(),
	}
}

func (s *authService) AuthCodeURL(state string) (string, error) {
	if s.provider == nil {
		return "", ErrOAuthNotConfigured
	}
	return s.provider.AuthCodeURL(state), nil
}

func (s *authService) Login(ctx context.Context, code string) (*model.User, string, error) {
	if s.provider == nil {
		return nil, "", ErrOAuthNotConfigured
	}
	profile, err := s.provider.Exchange(ctx, code)
	if err != nil {
		s.logger.Error().Err(err).Msg("OAuth code exchange failed")
		return nil, "", err
	}
	u := &model.User{
		Provider:   profile.Provider,
		ProviderID: profile.ProviderID,
		Email:      profile.Email,
		Name:       profile.Name,
		Avatar:     profile.Avatar,
	}
	created, err := s.store.Users().UpsertOAuth(ctx, u)
	if err != nil {
		s.logger.Error().Err(err).Str("provider", profile.Provider).Msg("Failed to upsert user")
		return nil, "", err
	}
	if created {
		s.logger.Info().Str("user_id", u.ID).Str("provider", u.Provider).Msg("New user signed up")
	}
	token, err := s.tokens.IssueUser(u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

func (s *authService) IssueToken(u *model.User) (string, error) {
	return s.tokens.IssueUser(u)
}

func (s *authService) TokenTTLSeconds() int {
	return int(s.tokens.TTL().Seconds())
}
