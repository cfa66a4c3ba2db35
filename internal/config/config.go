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

// Static errors for configuration validation.
var (
	// ErrProjectIDRequired is returned when VEO_PROJECT_ID is not set.
	ErrProjectIDRequired = errors.New("config: VEO_PROJECT_ID is required")
	// ErrAccessTokenRequired is returned when neither VEO_ACCESS_TOKEN nor
	// VEO_ACCESS_TOKEN_COMMAND is set.
	ErrAccessTokenRequired = errors.New("config: VEO_ACCESS_TOKEN or VEO_ACCESS_TOKEN_COMMAND is required")
)

// Config holds all configuration for the application.
type Config struct {
	// Generation service settings
	ProjectID   string `env:"VEO_PROJECT_ID, required" json:"project_id"`
	Region      string `env:"VEO_REGION, default=us-central1" json:"region"`
	Model       string `env:"VEO_MODEL, default=veo-3.0-generate-preview" json:"model"`
	APIBaseURL  string `env:"VEO_API_BASE_URL" json:"api_base_url,omitempty"`
	AccessToken string `env:"VEO_ACCESS_TOKEN" json:"-"` // Masked in JSON
	// AccessTokenCommand is a shell command that prints a fresh bearer
	// token, e.g. "gcloud auth print-access-token". It takes precedence
	// over the static token.
	AccessTokenCommand string `env:"VEO_ACCESS_TOKEN_COMMAND" json:"-"` // Masked in JSON

	// Completion polling settings
	PollInterval    time.Duration `env:"POLL_INTERVAL, default=15s" json:"poll_interval"`
	PollMaxAttempts int           `env:"POLL_MAX_ATTEMPTS, default=240" json:"poll_max_attempts"`

	// Object store settings
	StoreRegion        string `env:"STORE_REGION, default=us-east-1" json:"store_region"`
	StoreEndpoint      string `env:"STORE_ENDPOINT" json:"store_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Multi-clip settings
	MaxConcurrentClips int    `env:"MAX_CONCURRENT_CLIPS, default=2" json:"max_concurrent_clips"`
	WorkDir            string `env:"WORK_DIR, default=/tmp/veoctl" json:"work_dir"`
	FFmpegPath         string `env:"FFMPEG_PATH" json:"ffmpeg_path,omitempty"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		// Map envconfig errors to our domain errors for required fields
		if strings.Contains(err.Error(), "VEO_PROJECT_ID") {
			return nil, ErrProjectIDRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	if cfg.AccessToken == "" && cfg.AccessTokenCommand == "" {
		return nil, ErrAccessTokenRequired
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.ProjectID == "" {
		return ErrProjectIDRequired
	}
	if c.AccessToken == "" && c.AccessTokenCommand == "" {
		return ErrAccessTokenRequired
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for piping.
// Otherwise, it outputs human-readable text logs. Logs go to stderr so
// stdout stays clean for the artifact path.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{ProjectID: %s, Region: %s, Model: %s, PollInterval: %s, PollMaxAttempts: %d, StoreRegion: %s, MaxConcurrentClips: %d, WorkDir: %s, LogFormat: %s, LogLevel: %s}",
		c.ProjectID,
		c.Region,
		c.Model,
		c.PollInterval,
		c.PollMaxAttempts,
		c.StoreRegion,
		c.MaxConcurrentClips,
		c.WorkDir,
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
