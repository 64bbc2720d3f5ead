package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "data/timetable.csv", cfg.TimetablePath)
	assert.Equal(t, 15*time.Minute, cfg.ReloadInterval)
	assert.Equal(t, 3, cfg.MaxHops)
	assert.False(t, cfg.RedisEnabled)
	assert.Equal(t, 120, cfg.RateLimitPerWindow)
	assert.Nil(t, cfg.RateLimitWhitelist)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("MAX_HOPS", "5")
	t.Setenv("TIMETABLE_RELOAD_INTERVAL", "30s")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("RATE_LIMIT_WHITELIST", "10.0.0.1, 10.0.0.2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, 5, cfg.MaxHops)
	assert.Equal(t, 30*time.Second, cfg.ReloadInterval)
	assert.True(t, cfg.RedisEnabled)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.RateLimitWhitelist)
}

func TestLoadIgnoresMalformedEnv(t *testing.T) {
	t.Setenv("MAX_HOPS", "lots")
	t.Setenv("TIMETABLE_RELOAD_INTERVAL", "soon")
	t.Setenv("REDIS_ENABLED", "sure")
	t.Setenv("LOG_LEVEL", "verbose")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.MaxHops)
	assert.Equal(t, 15*time.Minute, cfg.ReloadInterval)
	assert.False(t, cfg.RedisEnabled)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}
