package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("POSTGRES_DSN", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 24*60, cfg.Auth.AccessTokenTTLMinutes)
	assert.Equal(t, "*/5 * * * *", cfg.SLA.SweepSchedule)
	assert.Equal(t, 100, cfg.HTTP.RateLimitMax)
	assert.Equal(t, 15*time.Minute, cfg.HTTP.RateLimitWindow())
	assert.False(t, cfg.Tickets.EnforceTransitions)
	assert.Empty(t, cfg.Postgres.DSN)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("SLA_SWEEP_SCHEDULE", "@every 1m")
	t.Setenv("TICKETS_ENFORCE_TRANSITIONS", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.App.Addr())
	assert.Equal(t, "@every 1m", cfg.SLA.SweepSchedule)
	assert.True(t, cfg.Tickets.EnforceTransitions)
	assert.Equal(t, "https://a.example,https://b.example", cfg.HTTP.Origins())
}

func TestLoadRejectsDefaultSecretInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_JWT_SECRET", "")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")

	_, err := Load()
	assert.Error(t, err)
}
