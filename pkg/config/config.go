// Package config loads supabase-go settings from the environment.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var (
	ErrMissingURL = errors.New("SUPABASE_URL must be set")
	ErrMissingKey = errors.New("SUPABASE_KEY must be set")
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv    string
	LogLevel  string
	LogFormat string

	// Project
	URL    string
	Key    string
	Schema string

	// Auth
	AutoRefreshToken     bool
	ListenForAuthChanges bool
	SessionKey           string
	RefreshMargin        time.Duration

	// Session persistence; empty keeps sessions in memory.
	RedisURL string
	// SessionEncryptionKey is a base64 32-byte key sealing sessions in Redis.
	SessionEncryptionKey string

	// HTTP
	HTTPTimeout             time.Duration
	BreakerEnabled          bool
	BreakerFailureThreshold uint32
	BreakerTimeout          time.Duration
}

// Load reads configuration from the environment, after loading a .env file
// when one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:    getEnv("APP_ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		URL:    getEnv("SUPABASE_URL", ""),
		Key:    getEnv("SUPABASE_KEY", ""),
		Schema: getEnv("SUPABASE_SCHEMA", "public"),

		AutoRefreshToken:     getBoolEnv("SUPABASE_AUTO_REFRESH_TOKEN", true),
		ListenForAuthChanges: getBoolEnv("SUPABASE_LISTEN_AUTH_CHANGES", false),
		SessionKey:           getEnv("SUPABASE_SESSION_KEY", "supabase.auth.token"),
		RefreshMargin:        getDurationEnv("SUPABASE_REFRESH_MARGIN", 30*time.Second),

		RedisURL:             getEnv("REDIS_URL", ""),
		SessionEncryptionKey: getEnv("SUPABASE_SESSION_ENCRYPTION_KEY", ""),

		HTTPTimeout:             getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		BreakerEnabled:          getBoolEnv("BREAKER_ENABLED", true),
		BreakerFailureThreshold: uint32(getIntEnv("BREAKER_FAILURE_THRESHOLD", 5)),
		BreakerTimeout:          getDurationEnv("BREAKER_TIMEOUT", 30*time.Second),
	}

	return cfg, nil
}

// Validate reports missing project settings.
func (c *Config) Validate() error {
	if c.URL == "" {
		return ErrMissingURL
	}
	if c.Key == "" {
		return ErrMissingKey
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil && i >= 0 {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
