// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// DefaultBaseURL is the API gateway all vendors are reached through. It must
// include the vendor-required path prefix.
const DefaultBaseURL = "https://allapi.store/v1"

// Static errors for configuration validation.
var (
	// ErrBaseURLRequired is returned when GENSTUDIO_BASE_URL is blanked out.
	ErrBaseURLRequired = errors.New("config: base URL is required")
	// ErrInvalidBackoff is returned when the backoff multiplier is not above 1.
	ErrInvalidBackoff = errors.New("config: poll multiplier must be greater than 1")
)

// Config holds all configuration for the library.
type Config struct {
	// API settings
	APIKey  string `env:"GENSTUDIO_API_KEY" json:"-"` // Masked in JSON
	BaseURL string `env:"GENSTUDIO_BASE_URL, default=https://allapi.store/v1" json:"base_url"`

	// Polling settings
	PollInterval    time.Duration `env:"POLL_INTERVAL, default=2s" json:"poll_interval"`
	PollMaxAttempts int           `env:"POLL_MAX_ATTEMPTS, default=180" json:"poll_max_attempts"`
	PollMultiplier  float64       `env:"POLL_MULTIPLIER, default=1.1" json:"poll_multiplier"`

	// History settings
	HistoryLimit int `env:"HISTORY_LIMIT, default=100" json:"history_limit"`

	// Optional S3 settings for the persistent history log
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrBaseURLRequired
	}
	if c.PollMultiplier <= 1 {
		return ErrInvalidBackoff
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{BaseURL: %s, PollInterval: %s, PollMaxAttempts: %d, PollMultiplier: %g, HistoryLimit: %d, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.BaseURL,
		c.PollInterval,
		c.PollMaxAttempts,
		c.PollMultiplier,
		c.HistoryLimit,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
