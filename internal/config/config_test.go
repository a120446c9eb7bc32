package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_CONNECTION_STRING", "postgres://localhost/tarot")
	t.Setenv("JWT_SECRET", "secret")
	unsetEnv(t, "ENV")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "tarot-api", cfg.JWTIssuer)
	assert.Equal(t, 7*24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, "https://api.creem.io", cfg.CreemAPIBaseURL)
	assert.Equal(t, "production", cfg.Environment)
	assert.False(t, cfg.IsDevelopment())
	assert.False(t, cfg.StripeEnabled())
}

func TestLoadDevelopmentIsOptIn(t *testing.T) {
	t.Setenv("DB_CONNECTION_STRING", "postgres://localhost/tarot")
	t.Setenv("JWT_SECRET", "secret")

	t.Setenv("ENV", "development")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsDevelopment())

	t.Setenv("ENV", "staging")
	cfg, err = Load()
	require.NoError(t, err)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("DB_CONNECTION_STRING", "postgres://localhost/tarot")
	unsetEnv(t, "JWT_SECRET")

	_, err := Load()
	assert.Error(t, err)
}

func TestSecretFieldsPointIntoConfig(t *testing.T) {
	cfg := &Config{}
	fields := cfg.SecretFields()

	*fields["JWT_SECRET"] = "changed"
	assert.Equal(t, "changed", cfg.JWTSecret)
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	prev, ok := os.LookupEnv(key)
	require.NoError(t, os.Unsetenv(key))
	t.Cleanup(func() {
		if ok {
			_ = os.Setenv(key, prev)
		}
	})
}
