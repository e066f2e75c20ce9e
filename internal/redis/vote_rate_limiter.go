package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
)

// rateLimitScript implements a token bucket per voter. It refills at `rate`
// tokens per minute up to `capacity`, then tries to take one token. Refill
// and take happen in one script execution so concurrent casts cannot both
// spend the last token.
// ARGV: [1]=now_ms, [2]=capacity, [3]=rate_per_minute
var rateLimitScript = goredis.NewScript(`
local tokens = tonumber(redis.call('HGET', KEYS[1], 'tokens'))
local last_refill = tonumber(redis.call('HGET', KEYS[1], 'last_refill')) or tonumber(ARGV[1])
if tokens == nil then tokens = tonumber(ARGV[2]) end
local elapsed_min = (tonumber(ARGV[1]) - last_refill) / 60000.0
tokens = math.min(tonumber(ARGV[2]), tokens + elapsed_min * tonumber(ARGV[3]))
local allowed = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
end
redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'last_refill', ARGV[1])
redis.call('EXPIRE', KEYS[1], 600)
return allowed
`)

// VoteRateLimiter implements token bucket rate limiting for vote casts.
type VoteRateLimiter struct {
	rdb      *goredis.Client
	clock    clockwork.Clock
	capacity int
	rate     int // tokens per minute
}

// NewVoteRateLimiter creates a new vote rate limiter.
// capacity: maximum burst size (tokens)
// rate: sustained rate (tokens per minute)
func NewVoteRateLimiter(client *Client, clock clockwork.Clock, capacity, rate int) *VoteRateLimiter {
	return &VoteRateLimiter{
		rdb:      client.rdb,
		clock:    clock,
		capacity: capacity,
		rate:     rate,
	}
}

// Allow reports whether the voter may cast right now, consuming one token
// when it returns true.
func (v *VoteRateLimiter) Allow(ctx context.Context, voterID uuid.UUID) (bool, error) {
	key := fmt.Sprintf("rate_limit:votes:%s", voterID)

	result, err := rateLimitScript.Run(ctx, v.rdb, []string{key},
		strconv.FormatInt(v.clock.Now().UnixMilli(), 10),
		strconv.Itoa(v.capacity),
		strconv.Itoa(v.rate),
	).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}
	return result == 1, nil
}
