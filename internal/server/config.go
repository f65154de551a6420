// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the chat server.
package server

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int           `yaml:"burst"`
	RefillInterval time.Duration `yaml:"refill_interval"`
}

// Config holds the server configuration settings.
type Config struct {
	// Addr is the TCP address the chat listener binds to.
	Addr string `yaml:"addr"`
	// HTTPAddr serves health, metrics and the WebSocket endpoint. Empty disables it.
	HTTPAddr       string   `yaml:"http_addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// MaxMessageSize bounds a single inbound frame in bytes.
	MaxMessageSize int64 `yaml:"max_message_size"`
	// AdmissionWindow is how long a new connection has to send its username.
	AdmissionWindow time.Duration   `yaml:"admission_window"`
	SendBufferSize  int             `yaml:"send_buffer_size"`
	WriteTimeout    time.Duration   `yaml:"write_timeout"`
	WriteRetries    int             `yaml:"write_retries"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	LogLevel        string          `yaml:"log_level"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
}

const (
	defaultAddr            = ":9000"
	defaultMaxMessageSize  = 64 * 1024
	defaultAdmissionWindow = 250 * time.Millisecond
	defaultSendBufferSize  = 256
	defaultWriteTimeout    = 10 * time.Second
	defaultWriteRetries    = 3
	defaultShutdownTimeout = 5 * time.Second
)

// DefaultConfig returns a Config populated with default values for all settings.
func DefaultConfig() Config {
	return Config{
		Addr: defaultAddr,
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize:  defaultMaxMessageSize,
		AdmissionWindow: defaultAdmissionWindow,
		SendBufferSize:  defaultSendBufferSize,
		WriteTimeout:    defaultWriteTimeout,
		WriteRetries:    defaultWriteRetries,
		ShutdownTimeout: defaultShutdownTimeout,
		LogLevel:        "info",
		RateLimit: RateLimitConfig{
			Burst:          20,
			RefillInterval: time.Second,
		},
	}
}

// sanitized fills zero or negative settings with their defaults.
func (c Config) sanitized() Config {
	if c.Addr == "" {
		c.Addr = defaultAddr
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = defaultMaxMessageSize
	}
	if c.AdmissionWindow <= 0 {
		c.AdmissionWindow = defaultAdmissionWindow
	}
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = defaultSendBufferSize
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.WriteRetries < 0 {
		c.WriteRetries = 0
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 20
	}
	if c.RateLimit.RefillInterval <= 0 {
		c.RateLimit.RefillInterval = time.Second
	}
	c.AllowedOrigins = append([]string(nil), c.AllowedOrigins...)
	return c
}

// Level parses LogLevel, falling back to info.
func (c Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// LoadConfigFile reads a YAML configuration file. Settings missing from the
// file keep their defaults.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg.sanitized(), nil
}

// NewConfigFromEnv creates a Config from environment variables.
// Falls back to default values if environment variables are not set.
func NewConfigFromEnv() Config {
	cfg := DefaultConfig()
	ApplyEnv(&cfg)
	return cfg
}

// ApplyEnv overrides cfg with any settings present in the environment.
func ApplyEnv(cfg *Config) {
	if addr := os.Getenv("SERVER_ADDR"); addr != "" {
		cfg.Addr = addr
	}

	if addr := os.Getenv("HTTP_ADDR"); addr != "" {
		cfg.HTTPAddr = addr
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}

	if maxSize := os.Getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.MaxMessageSize = parseMaxMessageSize(maxSize, cfg.MaxMessageSize)
	}

	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}

	// RATE_LIMIT_REFILL_INTERVAL is in seconds
	if interval := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = time.Duration(parseIntValue(interval, int(cfg.RateLimit.RefillInterval/time.Second))) * time.Second
	}

	if window := os.Getenv("ADMISSION_WINDOW_MS"); window != "" {
		cfg.AdmissionWindow = time.Duration(parseIntValue(window, int(cfg.AdmissionWindow/time.Millisecond))) * time.Millisecond
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseMaxMessageSize(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}
