// Package database implements the domain store interfaces on PostgreSQL via
// pgx. Constraints are the last line of defense: uniqueness and check
// violations are translated into the domain error taxonomy, never leaked raw.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("database connected", "min_conns", poolCfg.MinConns, "max_conns", poolCfg.MaxConns)
	return pool, nil
}

const (
	// migrationLockID is a PostgreSQL advisory lock ID coordinating schema
	// migrations across instances. Value: "30scha" in ASCII hex.
	migrationLockID             = 0x333073636861
	migrationLockReleaseTimeout = 5 * time.Second
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS challenges (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		title TEXT NOT NULL,
		phase TEXT NOT NULL DEFAULT 'active' CHECK (phase IN ('active', 'voting', 'completed')),
		voting_opens_at TIMESTAMPTZ NOT NULL,
		voting_closes_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS submissions (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		owner_id UUID NOT NULL,
		challenge_id UUID NOT NULL REFERENCES challenges(id) ON DELETE CASCADE,
		moderation_state TEXT NOT NULL DEFAULT 'pending' CHECK (moderation_state IN ('pending', 'approved', 'rejected')),
		hidden BOOLEAN NOT NULL DEFAULT FALSE,
		deleted BOOLEAN NOT NULL DEFAULT FALSE,
		up_votes INT NOT NULL DEFAULT 0,
		down_votes INT NOT NULL DEFAULT 0,
		super_vote_count INT NOT NULL DEFAULT 0,
		vote_count INT NOT NULL DEFAULT 0,
		wilson_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		boost_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_submissions_challenge_rank
		ON submissions (challenge_id, wilson_score DESC, vote_count DESC, created_at ASC)`,
	`CREATE TABLE IF NOT EXISTS votes (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		voter_id UUID NOT NULL,
		submission_id UUID NOT NULL REFERENCES submissions(id) ON DELETE CASCADE,
		challenge_id UUID NOT NULL REFERENCES challenges(id) ON DELETE CASCADE,
		value INT NOT NULL CHECK (value IN (1, -1)),
		is_super BOOLEAN NOT NULL DEFAULT FALSE,
		source TEXT NOT NULL DEFAULT 'organic' CHECK (source IN ('organic', 'rewarded_ad')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT votes_voter_submission_unique UNIQUE (voter_id, submission_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_votes_challenge_created ON votes (challenge_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS vote_queue (
		voter_id UUID NOT NULL,
		challenge_id UUID NOT NULL REFERENCES challenges(id) ON DELETE CASCADE,
		submission_id UUID NOT NULL REFERENCES submissions(id) ON DELETE CASCADE,
		position INT NOT NULL,
		is_voted BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (voter_id, challenge_id, submission_id),
		CONSTRAINT vote_queue_position_unique UNIQUE (voter_id, challenge_id, position)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_vote_queue_next_unvoted
		ON vote_queue (voter_id, challenge_id, is_voted, position)`,
	`CREATE TABLE IF NOT EXISTS submission_boosts (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		submission_id UUID NOT NULL REFERENCES submissions(id) ON DELETE CASCADE,
		purchaser_id UUID NOT NULL,
		tier TEXT NOT NULL CHECK (tier IN ('bronze', 'silver', 'gold')),
		boost_value DOUBLE PRECISION NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_submission_boosts_active
		ON submission_boosts (submission_id, expires_at)`,
	`CREATE TABLE IF NOT EXISTS leaderboard_snapshots (
		challenge_id UUID NOT NULL REFERENCES challenges(id) ON DELETE CASCADE,
		period TEXT NOT NULL CHECK (period IN ('daily', 'weekly', 'all_time')),
		snapshot_date DATE NOT NULL,
		submission_id UUID NOT NULL,
		rank INT NOT NULL,
		score DOUBLE PRECISION NOT NULL,
		vote_count INT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (challenge_id, period, snapshot_date, submission_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_leaderboard_snapshots_page
		ON leaderboard_snapshots (challenge_id, period, snapshot_date, rank)`,
	`CREATE TABLE IF NOT EXISTS super_vote_balances (
		user_id UUID NOT NULL,
		day DATE NOT NULL,
		remaining INT NOT NULL CHECK (remaining >= 0),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (user_id, day)
	)`,
	`CREATE TABLE IF NOT EXISTS coin_balances (
		user_id UUID PRIMARY KEY,
		balance INT NOT NULL DEFAULT 0 CHECK (balance >= 0),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS coin_transactions (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL,
		amount INT NOT NULL,
		reference TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_coin_transactions_user
		ON coin_transactions (user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS user_blocks (
		blocker_id UUID NOT NULL,
		blocked_id UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (blocker_id, blocked_id)
	)`,
}

// RunMigrations applies the schema under an advisory lock so concurrent
// instance startups serialize instead of racing DDL.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for migration: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), migrationLockReleaseTimeout)
		defer cancel()
		if _, err := conn.Exec(unlockCtx, "SELECT pg_advisory_unlock($1)", migrationLockID); err != nil {
			slog.Error("failed to release migration lock", "error", err)
		}
	}()

	slog.Info("running database migrations")
	for _, migration := range migrations {
		if _, err := conn.Exec(ctx, migration); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}

func HealthCheck(ctx context.Context, pool *pgxpool.Pool) error {
	return pool.Ping(ctx)
}
