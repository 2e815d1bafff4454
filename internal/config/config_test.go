package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "CANVAS_WIDTH", "CANVAS_HEIGHT", "COOLDOWN_MS", "CORS_ORIGIN", "DATABASE_URL", "REDIS_URL", "PLACE_RATE_LIMIT", "PLACE_RATE_WINDOW_MS", "TRUST_PROXY_HEADERS"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, 300, cfg.Width)
	assert.Equal(t, 150, cfg.Height)
	assert.Equal(t, 5*time.Second, cfg.Cooldown)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins())
	assert.Equal(t, 60, cfg.PlaceRateLimit)
	assert.Equal(t, time.Minute, cfg.PlaceRateWindow)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.TrustProxy)
	assert.Empty(t, cfg.Warnings)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("ENV", "production")
	t.Setenv("CANVAS_WIDTH", "64")
	t.Setenv("CANVAS_HEIGHT", "32")
	t.Setenv("COOLDOWN_MS", "250")
	t.Setenv("CORS_ORIGIN", "https://a.example, https://b.example")
	t.Setenv("TRUST_PROXY_HEADERS", "true")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 64, cfg.Width)
	assert.Equal(t, 32, cfg.Height)
	assert.Equal(t, 250*time.Millisecond, cfg.Cooldown)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins())
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.TrustProxy)
}

func TestLoad_InvalidBoolFallsBack(t *testing.T) {
	t.Setenv("TRUST_PROXY_HEADERS", "sometimes")

	cfg := Load()

	assert.False(t, cfg.TrustProxy)
	require.Len(t, cfg.Warnings, 1)
	assert.Contains(t, cfg.Warnings[0], "TRUST_PROXY_HEADERS")
}

func TestLoad_InvalidNumberFallsBack(t *testing.T) {
	t.Setenv("CANVAS_WIDTH", "wide")

	cfg := Load()

	assert.Equal(t, 300, cfg.Width)
	require.Len(t, cfg.Warnings, 1)
	assert.Contains(t, cfg.Warnings[0], "CANVAS_WIDTH")
}

func TestValidate(t *testing.T) {
	t.Setenv("CANVAS_WIDTH", "0")
	t.Setenv("COOLDOWN_MS", "-1")

	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "canvas size")
	assert.Contains(t, err.Error(), "cooldown")
}
