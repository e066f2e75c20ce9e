package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	RedisURL    string
	LogLevel    string
	LogFormat   string

	// VoteRateCapacity is the per-voter token bucket burst size.
	VoteRateCapacity int
	// VoteRatePerMinute is the per-voter sustained cast rate.
	VoteRatePerMinute int

	// SnapshotInterval is how often the leaderboard scheduler runs.
	SnapshotInterval time.Duration
	// BoostSyncInterval is how often expired boosts are swept.
	BoostSyncInterval time.Duration
}

func Load() (*Config, error) {
	// Best-effort: production passes real env vars, development uses .env.
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	var err error
	if cfg.VoteRateCapacity, err = getEnvInt("VOTE_RATE_CAPACITY", 10); err != nil {
		return nil, err
	}
	if cfg.VoteRatePerMinute, err = getEnvInt("VOTE_RATE_PER_MINUTE", 30); err != nil {
		return nil, err
	}
	if cfg.VoteRateCapacity < 1 || cfg.VoteRatePerMinute < 1 {
		return nil, fmt.Errorf("vote rate limits must be positive")
	}

	if cfg.SnapshotInterval, err = getEnvDuration("SNAPSHOT_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.BoostSyncInterval, err = getEnvDuration("BOOST_SYNC_INTERVAL", time.Minute); err != nil {
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

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return parsed, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration (e.g. 30s, 1h): %w", key, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return parsed, nil
}
