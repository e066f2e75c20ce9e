// Package metrics defines the Prometheus instruments exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Vote metrics
var (
	// VotesTotal counts cast attempts by outcome
	// (ok, duplicate, self_vote, not_votable, insufficient_super_votes, rate_limited, error).
	VotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "votes_total",
			Help: "Vote cast attempts by outcome",
		},
		[]string{"outcome"},
	)

	// SuperVotesTotal counts successfully recorded super votes.
	SuperVotesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "super_votes_total",
			Help: "Successfully recorded super votes",
		},
	)

	// VoteCastDuration tracks the latency of the atomic cast transaction.
	VoteCastDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vote_cast_duration_seconds",
			Help:    "Vote cast transaction duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
	)
)

// Queue metrics
var (
	// QueueBuildsTotal counts queue build requests by result (ok, empty, error).
	QueueBuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vote_queue_builds_total",
			Help: "Vote queue build requests by result",
		},
		[]string{"result"},
	)

	// QueueEntriesIssued counts queue entries handed out to voters.
	QueueEntriesIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vote_queue_entries_issued_total",
			Help: "Vote queue entries issued to voters",
		},
	)
)

// Boost metrics
var (
	// BoostPurchasesTotal counts boost purchases by tier.
	BoostPurchasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boost_purchases_total",
			Help: "Boost purchases by tier",
		},
		[]string{"tier"},
	)
)

// Snapshot metrics
var (
	// SnapshotRunsTotal counts snapshot runs by period and result (ok, conflict, error).
	SnapshotRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leaderboard_snapshot_runs_total",
			Help: "Leaderboard snapshot runs by period and result",
		},
		[]string{"period", "result"},
	)

	// SnapshotDuration tracks snapshot job duration per period.
	SnapshotDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leaderboard_snapshot_duration_seconds",
			Help:    "Leaderboard snapshot duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"period"},
	)
)

// Redis metrics
var (
	// LeaderboardCacheHits counts leaderboard pages served from Redis.
	LeaderboardCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leaderboard_cache_hits_total",
			Help: "Leaderboard pages served from the Redis cache",
		},
	)

	// LeaderboardCacheMisses counts leaderboard pages read from PostgreSQL.
	LeaderboardCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leaderboard_cache_misses_total",
			Help: "Leaderboard pages read from PostgreSQL",
		},
	)

	// CircuitBreakerStateChanges tracks breaker transitions by component and new state.
	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions by component and new state",
		},
		[]string{"component", "state"},
	)

	// CircuitBreakerState tracks current breaker state (0=closed, 1=half-open, 2=open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)

// WebSocket metrics
var (
	// WebsocketConnectedClients tracks connected score-stream clients.
	WebsocketConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connected_clients",
			Help: "Connected score stream clients across all challenges",
		},
	)
)
