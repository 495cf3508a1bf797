// Package config provides relay daemon configuration loading from
// environment variables and .env files. It uses viper for flexible
// configuration management with sensible defaults.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the relay daemon's configuration.
// Priority: environment variables > .env file > defaults.
type Config struct {
	AppEnv         string        // Application environment (dev, staging, prod)
	HTTPAddr       string        // HTTP server bind address (e.g., ":8080")
	UpstreamURL    string        // Flag service base URL to sync from
	Environment    string        // Flag environment to serve (prod, dev, etc.)
	Reference      string        // Optional ref/branch of the flag configuration
	ClientToken    string        // Bearer token for upstream authentication
	SyncMode       string        // Sync mode: polling or streaming
	SyncInterval   time.Duration // Polling interval
	RequestTimeout time.Duration // Per-fetch timeout
	BundlePath     string        // Local bundle file; serves instead of upstream when set
	LogLevel       string        // zerolog level name
}

// Load reads configuration from environment variables and a .env file
// (if present). Environment variables take precedence.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env") // Optional; silently ignored if file doesn't exist
	_ = v.ReadInConfig()
	v.AutomaticEnv()

	setConfigDefaults(v)

	return &Config{
		AppEnv:         v.GetString("APP_ENV"),
		HTTPAddr:       v.GetString("APP_HTTP_ADDR"),
		UpstreamURL:    v.GetString("UPSTREAM_URL"),
		Environment:    v.GetString("ENVIRONMENT"),
		Reference:      v.GetString("REFERENCE"),
		ClientToken:    v.GetString("CLIENT_TOKEN"),
		SyncMode:       v.GetString("SYNC_MODE"),
		SyncInterval:   v.GetDuration("SYNC_INTERVAL"),
		RequestTimeout: v.GetDuration("REQUEST_TIMEOUT"),
		BundlePath:     v.GetString("BUNDLE_PATH"),
		LogLevel:       v.GetString("LOG_LEVEL"),
	}, nil
}

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("APP_HTTP_ADDR", ":8080")
	v.SetDefault("UPSTREAM_URL", "")
	v.SetDefault("ENVIRONMENT", "production")
	v.SetDefault("REFERENCE", "")
	v.SetDefault("CLIENT_TOKEN", "")
	v.SetDefault("SYNC_MODE", "polling")
	v.SetDefault("SYNC_INTERVAL", "30s")
	v.SetDefault("REQUEST_TIMEOUT", "10s")
	v.SetDefault("BUNDLE_PATH", "")
	v.SetDefault("LOG_LEVEL", "info")
}

// ValidationError describes a configuration validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed [%s]: %s", e.Field, e.Message)
}

// Validate checks that the configuration can actually run a relay.
// Intended to be called at startup to fail fast on misconfiguration.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return ValidationError{
			Field:   "APP_HTTP_ADDR",
			Message: "HTTP server address cannot be empty",
		}
	}

	if c.UpstreamURL == "" && c.BundlePath == "" {
		return ValidationError{
			Field:   "UPSTREAM_URL",
			Message: "either an upstream URL or a bundle path is required",
		}
	}

	if c.SyncMode != "polling" && c.SyncMode != "streaming" {
		return ValidationError{
			Field:   "SYNC_MODE",
			Message: fmt.Sprintf("must be 'polling' or 'streaming', got '%s'", c.SyncMode),
		}
	}

	if c.SyncInterval <= 0 {
		return ValidationError{
			Field:   "SYNC_INTERVAL",
			Message: "sync interval must be positive",
		}
	}

	if c.RequestTimeout <= 0 {
		return ValidationError{
			Field:   "REQUEST_TIMEOUT",
			Message: "request timeout must be positive",
		}
	}

	if c.Environment == "" {
		return ValidationError{
			Field:   "ENVIRONMENT",
			Message: "environment name cannot be empty",
		}
	}

	return nil
}
