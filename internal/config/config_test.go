package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEMA_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, time.Duration(0), cfg.GraceWindow)
	require.Equal(t, 100, cfg.Dispatch.BatchSize)
	require.Equal(t, uint(5), cfg.Delivery.MaxAttempts)
	require.Equal(t, time.Minute, cfg.Delivery.BackoffBase)
	require.Equal(t, 2.0, cfg.Delivery.BackoffFactor)
	require.Equal(t, time.Hour, cfg.Delivery.BackoffMax)
	require.Equal(t, EmailProviderLog, cfg.Email.Provider)
	require.Equal(t, PoolConfig{MaxOpenConns: 20, MaxIdleConns: 5, ConnMaxLifetime: 30 * time.Minute}, cfg.DBPool)
	require.Equal(t, "*", cfg.CORSAllowOrigins)
	require.True(t, cfg.SeedDefaultPolicies)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GEMA_JWT_SECRET", "secret")
	t.Setenv("GEMA_APP_PORT", ":9090")
	t.Setenv("GEMA_REMINDERS_GRACE_WINDOW", "15m")
	t.Setenv("GEMA_DELIVERY_MAX_ATTEMPTS", "3")
	t.Setenv("GEMA_DISPATCH_SCHEDULE", "*/5 * * * *")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddress())
	require.Equal(t, 15*time.Minute, cfg.GraceWindow)
	require.Equal(t, uint(3), cfg.Delivery.MaxAttempts)
	require.Equal(t, "*/5 * * * *", cfg.Dispatch.Schedule)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("GEMA_JWT_SECRET", "")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("GEMA_JWT_SECRET", "secret")
	t.Setenv("GEMA_DELIVERY_BACKOFF_BASE", "soon")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("GEMA_DELIVERY_BACKOFF_BASE", "1m")
	t.Setenv("GEMA_EMAIL_PROVIDER", "sendgrid")
	_, err = Load()
	require.Error(t, err)
}
