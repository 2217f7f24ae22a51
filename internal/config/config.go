package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	DatabaseURL string
	Port        string
	JWTSecret   string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	CleanupInterval time.Duration

	RateLimitAuthPerMin     int
	RateLimitMutationPerMin int
	RateLimitReadPerMin     int
	RateCounterRetention    time.Duration
	RateCounterMaxEntries   int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port: "8080", // default port
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	cfg.DatabaseURL = databaseURL

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}
	cfg.JWTSecret = jwtSecret

	accessMin, err := intEnv("ACCESS_TOKEN_TTL_MIN", 15)
	if err != nil {
		return nil, err
	}
	cfg.AccessTokenTTL = time.Duration(accessMin) * time.Minute

	refreshDays, err := intEnv("REFRESH_TOKEN_TTL_DAYS", 30)
	if err != nil {
		return nil, err
	}
	cfg.RefreshTokenTTL = time.Duration(refreshDays) * 24 * time.Hour

	cleanupHours, err := intEnv("CLEANUP_INTERVAL_HOURS", 6)
	if err != nil {
		return nil, err
	}
	cfg.CleanupInterval = time.Duration(cleanupHours) * time.Hour

	if cfg.RateLimitAuthPerMin, err = intEnv("RATE_LIMIT_AUTH_PER_MIN", 10); err != nil {
		return nil, err
	}
	if cfg.RateLimitMutationPerMin, err = intEnv("RATE_LIMIT_MUTATION_PER_MIN", 60); err != nil {
		return nil, err
	}
	if cfg.RateLimitReadPerMin, err = intEnv("RATE_LIMIT_READ_PER_MIN", 120); err != nil {
		return nil, err
	}

	retentionMin, err := intEnv("RATE_COUNTER_RETENTION_MIN", 5)
	if err != nil {
		return nil, err
	}
	cfg.RateCounterRetention = time.Duration(retentionMin) * time.Minute

	if cfg.RateCounterMaxEntries, err = intEnv("RATE_COUNTER_MAX_ENTRIES", 10000); err != nil {
		return nil, err
	}

	return cfg, nil
}

// intEnv reads an integer environment variable with a default for the unset case.
func intEnv(name string, def int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, raw)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", name, v)
	}
	return v, nil
}
