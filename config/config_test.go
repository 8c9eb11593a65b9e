package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_URL", "postgres://localhost/consent")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 10*time.Second, cfg.Webhook.Timeout)
	assert.Equal(t, time.Hour, cfg.Worker.RetentionInterval)
	assert.Equal(t, "consent-scripts", cfg.Storage.Bucket)
	assert.False(t, cfg.Storage.Enabled())
	assert.False(t, cfg.Google.Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_URL", "postgres://localhost/consent")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", "9090")
	t.Setenv("PUBLIC_BASE_URL", "https://api.example.com/")
	t.Setenv("WEBHOOK_TIMEOUT", "3s")
	t.Setenv("STORAGE_ENDPOINT", "localhost:9000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "https://api.example.com", cfg.Server.PublicBaseURL)
	assert.Equal(t, 3*time.Second, cfg.Webhook.Timeout)
	assert.True(t, cfg.Storage.Enabled())
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DB_URL", "")
	t.Setenv("JWT_SECRET", "secret")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingEnv))
	assert.Contains(t, err.Error(), "DB_URL")
}
