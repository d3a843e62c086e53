package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "production", cfg.AppEnv)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, 7*24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, "admin@arithaconsulting.com", cfg.PrimaryAdminEmail)
	assert.False(t, cfg.AllowOpenRegistration)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Len(t, cfg.Warnings(), 2)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("APP_ENV", "Development")
	t.Setenv("JWT_TTL", "1h")
	t.Setenv("BCRYPT_COST", "12")
	t.Setenv("PRIMARY_ADMIN_EMAIL", "root@example.com")
	t.Setenv("ALLOW_OPEN_REGISTRATION", "true")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, time.Hour, cfg.JWTTTL)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, "root@example.com", cfg.PrimaryAdminEmail)
	assert.True(t, cfg.AllowOpenRegistration)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 3, cfg.RedisDB)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		_, err := Load()
		require.ErrorContains(t, err, "JWT_SECRET is not set")
	})

	t.Run("short secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "short")
		_, err := Load()
		require.ErrorContains(t, err, "at least 32")
	})

	t.Run("invalid values", func(t *testing.T) {
		t.Setenv("JWT_SECRET", testSecret)
		t.Setenv("BCRYPT_COST", "2")
		t.Setenv("JWT_TTL", "soon")
		_, err := Load()
		require.ErrorContains(t, err, "JWT_TTL")
		require.ErrorContains(t, err, "BCRYPT_COST")
	})
}
