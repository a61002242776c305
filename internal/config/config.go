// Package config loads process-wide configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config carries everything the service reads from the environment.
// Lease TTL and the two freshness windows keep their historical env
// names; values are whole hours.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	// SessionDataDir is the directory of <session name>.json blobs.
	// When RedisURL is set the blobs are read from Redis instead.
	SessionDataDir string
	RedisURL       string

	LeaseTTL            time.Duration
	AutoVerifyTimeout   time.Duration
	ManualVerifyTimeout time.Duration

	LogLevel  string
	LogFormat string
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		SessionDataDir: getEnv("SESSION_DATA_DIR", "./auth"),
		RedisURL:       getEnv("REDIS_URL", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var err error
	if cfg.LeaseTTL, err = getEnvHours("TIMEOUT_EXP_SESSION", 24); err != nil {
		return nil, err
	}
	if cfg.AutoVerifyTimeout, err = getEnvHours("AUTO_VERIFY_TIMEOUT", 12); err != nil {
		return nil, err
	}
	if cfg.ManualVerifyTimeout, err = getEnvHours("MANUAL_VERIFY_TIMEOUT", 12); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvHours(key string, defaultHours int) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return time.Duration(defaultHours) * time.Hour, nil
	}

	hours, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a whole number of hours: %w", key, err)
	}
	if hours <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, hours)
	}
	return time.Duration(hours) * time.Hour, nil
}
