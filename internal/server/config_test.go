package server

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultConfig verifies the documented defaults.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Empty(t, cfg.HTTPAddr)
	assert.Equal(t, int64(64*1024), cfg.MaxMessageSize)
	assert.Equal(t, 250*time.Millisecond, cfg.AdmissionWindow)
	assert.Equal(t, 256, cfg.SendBufferSize)
	assert.Equal(t, slog.LevelInfo, cfg.Level())
}

// TestSanitizedConfig verifies that invalid values fall back to defaults.
func TestSanitizedConfig(t *testing.T) {
	cfg := Config{
		MaxMessageSize:  -1,
		AdmissionWindow: -time.Second,
		WriteRetries:    -2,
		RateLimit:       RateLimitConfig{Burst: -5},
	}.sanitized()

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, int64(64*1024), cfg.MaxMessageSize)
	assert.Equal(t, 250*time.Millisecond, cfg.AdmissionWindow)
	assert.Equal(t, 0, cfg.WriteRetries)
	assert.Equal(t, 20, cfg.RateLimit.Burst)
	assert.Equal(t, time.Second, cfg.RateLimit.RefillInterval)
}

// TestLoadConfigFile verifies YAML loading, including duration fields.
func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatmux.yaml")
	contents := `addr: ":7000"
http_addr: "127.0.0.1:8080"
admission_window: 2s
log_level: debug
allowed_origins:
  - "http://chat.example"
rate_limit:
  burst: 3
  refill_interval: 500ms
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, "127.0.0.1:8080", cfg.HTTPAddr)
	assert.Equal(t, 2*time.Second, cfg.AdmissionWindow)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	assert.Equal(t, []string{"http://chat.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 3, cfg.RateLimit.Burst)
	assert.Equal(t, 500*time.Millisecond, cfg.RateLimit.RefillInterval)
	assert.Equal(t, 256, cfg.SendBufferSize, "unset fields keep defaults")
}

// TestLoadConfigFileErrors covers missing and malformed files.
func TestLoadConfigFileErrors(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: [unterminated"), 0o600))
	_, err = LoadConfigFile(path)
	assert.Error(t, err)
}

// TestNewConfigFromEnv verifies environment overrides and that invalid
// numbers keep the defaults.
func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9100")
	t.Setenv("HTTP_ADDR", ":9101")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example, http://b.example")
	t.Setenv("MAX_MESSAGE_SIZE", "1024")
	t.Setenv("RATE_LIMIT_BURST", "not-a-number")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "3")
	t.Setenv("ADMISSION_WINDOW_MS", "750")
	t.Setenv("LOG_LEVEL", "warn")

	cfg := NewConfigFromEnv()

	assert.Equal(t, ":9100", cfg.Addr)
	assert.Equal(t, ":9101", cfg.HTTPAddr)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(1024), cfg.MaxMessageSize)
	assert.Equal(t, 20, cfg.RateLimit.Burst)
	assert.Equal(t, 3*time.Second, cfg.RateLimit.RefillInterval)
	assert.Equal(t, 750*time.Millisecond, cfg.AdmissionWindow)
	assert.Equal(t, slog.LevelWarn, cfg.Level())
}
