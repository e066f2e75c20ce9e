package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/challenges")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 10, cfg.VoteRateCapacity)
	assert.Equal(t, 30, cfg.VoteRatePerMinute)
	assert.Equal(t, time.Hour, cfg.SnapshotInterval)
	assert.Equal(t, time.Minute, cfg.BoostSyncInterval)
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_MissingRedisURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/challenges")
	t.Setenv("REDIS_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_URL")
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("VOTE_RATE_CAPACITY", "5")
	t.Setenv("VOTE_RATE_PER_MINUTE", "12")
	t.Setenv("SNAPSHOT_INTERVAL", "15m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.VoteRateCapacity)
	assert.Equal(t, 12, cfg.VoteRatePerMinute)
	assert.Equal(t, 15*time.Minute, cfg.SnapshotInterval)
}

func TestLoad_InvalidInteger(t *testing.T) {
	setRequired(t)
	t.Setenv("VOTE_RATE_CAPACITY", "ten")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VOTE_RATE_CAPACITY")
}

func TestLoad_InvalidDuration(t *testing.T) {
	setRequired(t)
	t.Setenv("SNAPSHOT_INTERVAL", "-5m")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SNAPSHOT_INTERVAL")
}

func TestLoad_ZeroRateRejected(t *testing.T) {
	setRequired(t)
	t.Setenv("VOTE_RATE_PER_MINUTE", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "positive")
}
