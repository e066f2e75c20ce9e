package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/KEN19920421/30sec-challenge-sub001/internal/domain"
	"github.com/KEN19920421/30sec-challenge-sub001/internal/metrics"
)

const (
	leaderboardCachePrefix = "leaderboard_cache:"
	leaderboardCacheTTL    = 30 * time.Second
)

// LeaderboardCache provides read-through leaderboard page caching:
// Redis → PostgreSQL. Snapshot rows are immutable per generation, so the
// short TTL only bounds how long a freshly replaced generation can be
// shadowed by the previous one.
type LeaderboardCache struct {
	rdb       goredis.Cmdable
	snapshots domain.SnapshotStore
}

var _ domain.SnapshotStore = (*LeaderboardCache)(nil)

// NewLeaderboardCache creates a read-through cache in front of snapshots.
func NewLeaderboardCache(client *Client, snapshots domain.SnapshotStore) *LeaderboardCache {
	return &LeaderboardCache{rdb: client.rdb, snapshots: snapshots}
}

func pageKey(challengeID uuid.UUID, period domain.Period, date time.Time, afterRank, limit int) string {
	return fmt.Sprintf("%s%s:%s:%s:%d:%d",
		leaderboardCachePrefix, challengeID, period, date.Format("2006-01-02"), afterRank, limit)
}

// ListPage serves a leaderboard page from Redis when possible, falling
// through to PostgreSQL on miss or Redis failure.
func (c *LeaderboardCache) ListPage(ctx context.Context, challengeID uuid.UUID, period domain.Period, date time.Time, afterRank, limit int) ([]domain.LeaderboardRow, error) {
	key := pageKey(challengeID, period, date, afterRank, limit)

	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var page []domain.LeaderboardRow
		if err := json.Unmarshal(data, &page); err != nil {
			slog.Warn("failed to unmarshal cached leaderboard page, falling through",
				"challenge_id", challengeID, "error", err)
		} else {
			metrics.LeaderboardCacheHits.Inc()
			return page, nil
		}
	} else if !errors.Is(err, goredis.Nil) {
		slog.Warn("leaderboard cache GET failed, falling through",
			"challenge_id", challengeID, "error", err)
	}

	page, err := c.snapshots.ListPage(ctx, challengeID, period, date, afterRank, limit)
	if err != nil {
		return nil, err
	}
	metrics.LeaderboardCacheMisses.Inc()

	// Populate the cache best-effort.
	if encoded, err := json.Marshal(page); err == nil {
		if err := c.rdb.Set(ctx, key, encoded, leaderboardCacheTTL).Err(); err != nil {
			slog.Warn("failed to populate leaderboard cache",
				"challenge_id", challengeID, "error", err)
		}
	}
	return page, nil
}

// ReplaceGeneration delegates to the underlying store. Cached pages for the
// replaced generation age out via TTL rather than explicit invalidation.
func (c *LeaderboardCache) ReplaceGeneration(ctx context.Context, challengeID uuid.UUID, period domain.Period, date time.Time, rows []domain.LeaderboardRow) error {
	return c.snapshots.ReplaceGeneration(ctx, challengeID, period, date, rows)
}

func (c *LeaderboardCache) LatestDate(ctx context.Context, challengeID uuid.UUID, period domain.Period) (time.Time, bool, error) {
	return c.snapshots.LatestDate(ctx, challengeID, period)
}
