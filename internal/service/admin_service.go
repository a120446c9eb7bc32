package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"tarot/internal/model"
	"tarot/internal/repository"
	"tarot/internal/util"
)

// AdminService authenticates operators.
type AdminService interface {
	Login(ctx context.Context, username, password string) (string, *model.AdminUser, error)
	CreateAdmin(ctx context.Context, username, password string) (*model.AdminUser, error)
}

type adminService struct {
	store  repository.Store
	tokens *util.TokenIssuer
	ttl    time.Duration
	logger zerolog.Logger
}

func NewAdminService(store repository.Store, tokens *util.TokenIssuer, ttl time.Duration, logger zerolog.Logger) AdminService {
	return &adminService{
		store:  store,
		tokens: tokens,
		ttl:    ttl,
		logger: logger.With().Str("service", "AdminService").Logger(),
	}
}

func (s *adminService) Login(ctx context.Context, username, password string) (string, *model.AdminUser, error) {
	a, err := s.store.Admins().GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn().Str("username", username).Msg("Admin login for unknown user")
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn().Str("username", username).Msg("Admin login with wrong password")
		return "", nil, ErrInvalidCredentials
	}
	token, err := s.tokens.IssueAdmin(a, s.ttl)
	if err != nil {
		return "", nil, err
	}
	return token, a, nil
}

func (s *adminService) CreateAdmin(ctx context.Context, username, password string) (*model.AdminUser, error) {
	if username == "" || len(password) < 8 {
		return nil, fmt.Errorf("create admin: username required and password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	a := &model.AdminUser{Username: username, PasswordHash: string(hash)}
	if err := s.store.Admins().Create(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info().Str("username", username).Msg("Admin user created")
	return a, nil
}
