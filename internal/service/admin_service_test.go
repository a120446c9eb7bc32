package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tarot/internal/util"
)

func TestAdminLogin(t *testing.T) {
	c := newClock()
	st := newTestStore(c)
	tokens := util.NewTokenIssuer("secret", "tarot-api", time.Hour)
	svc := NewAdminService(st, tokens, 12*time.Hour, nopLogger)
	ctx := context.Background()

	_, err := svc.CreateAdmin(ctx, "root", "correct horse")
	require.NoError(t, err)

	token, admin, err := svc.Login(ctx, "root", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "root", admin.Username)

	claims, err := tokens.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, util.RoleAdmin, claims.Role)

	_, _, err = svc.Login(ctx, "root", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "nobody", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreateAdminRejectsShortPassword(t *testing.T) {
	c := newClock()
	svc := NewAdminService(newTestStore(c), util.NewTokenIssuer("s", "i", time.Hour), time.Hour, nopLogger)

	_, err := svc.CreateAdmin(context.Background(), "root", "short")
	assert.Error(t, err)
}
