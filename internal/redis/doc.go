// Package redis holds the Redis-backed collaborators: the per-voter token
// bucket rate limiter, the leaderboard page cache, and the circuit breaker
// hook guarding all of them. Redis is advisory here; the vote ledger and
// snapshots live in PostgreSQL and never depend on Redis being up.
package redis
