package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/KEN19920421/30sec-challenge-sub001/internal/domain"
)

type SnapshotRepo struct {
	pool *pgxpool.Pool
}

func NewSnapshotRepo(pool *pgxpool.Pool) *SnapshotRepo {
	return &SnapshotRepo{pool: pool}
}

// snapshotLockKey derives a per-(challenge, period) advisory lock key from
// the challenge UUID's low 8 bytes XOR'd with the period. Collisions across
// unrelated keys only cost a spurious conflict, never a correctness issue.
func snapshotLockKey(challengeID uuid.UUID, period domain.Period) int64 {
	var key int64
	b := challengeID[8:]
	for i := 0; i < 8; i++ {
		key = key<<8 | int64(b[i])
	}
	for _, c := range []byte(period) {
		key ^= int64(c)
	}
	return key
}

// ReplaceGeneration swaps out a generation atomically: readers see either the
// old rows or the new, never a mix. pg_try_advisory_xact_lock makes a
// concurrent run for the same key back off instead of queueing behind us.
func (r *SnapshotRepo) ReplaceGeneration(ctx context.Context, challengeID uuid.UUID, period domain.Period, date time.Time, rows []domain.LeaderboardRow) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	var locked bool
	if err := tx.QueryRow(ctx, "SELECT pg_try_advisory_xact_lock($1)",
		snapshotLockKey(challengeID, period)).Scan(&locked); err != nil {
		return fmt.Errorf("failed to acquire snapshot lock: %w", err)
	}
	if !locked {
		return domain.ErrSnapshotConflict
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM leaderboard_snapshots
		WHERE challenge_id = $1 AND period = $2 AND snapshot_date = $3
	`, challengeID, period, date); err != nil {
		return fmt.Errorf("failed to clear snapshot generation: %w", err)
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO leaderboard_snapshots
				(challenge_id, period, snapshot_date, submission_id, rank, score, vote_count, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, challengeID, period, date, row.SubmissionID, row.Rank, row.Score, row.VoteCount, row.CreatedAt)
	}
	results := tx.SendBatch(ctx, batch)
	for range rows {
		if _, err := results.Exec(); err != nil {
			results.Close() //nolint:errcheck
			return fmt.Errorf("failed to insert snapshot row: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit snapshot transaction: %w", err)
	}
	return nil
}

func (r *SnapshotRepo) ListPage(ctx context.Context, challengeID uuid.UUID, period domain.Period, date time.Time, afterRank, limit int) ([]domain.LeaderboardRow, error) {
	queryRows, err := r.pool.Query(ctx, `
		SELECT challenge_id, period, snapshot_date, submission_id, rank, score, vote_count, created_at
		FROM leaderboard_snapshots
		WHERE challenge_id = $1 AND period = $2 AND snapshot_date = $3 AND rank > $4
		ORDER BY rank
		LIMIT $5
	`, challengeID, period, date, afterRank, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot page: %w", err)
	}
	defer queryRows.Close()

	var page []domain.LeaderboardRow
	for queryRows.Next() {
		var row domain.LeaderboardRow
		if err := queryRows.Scan(&row.ChallengeID, &row.Period, &row.SnapshotDate, &row.SubmissionID,
			&row.Rank, &row.Score, &row.VoteCount, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		page = append(page, row)
	}
	if err := queryRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read snapshot rows: %w", err)
	}
	return page, nil
}

func (r *SnapshotRepo) LatestDate(ctx context.Context, challengeID uuid.UUID, period domain.Period) (time.Time, bool, error) {
	// MAX over zero rows is NULL, hence the pointer scan target.
	var date *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT MAX(snapshot_date) FROM leaderboard_snapshots
		WHERE challenge_id = $1 AND period = $2
	`, challengeID, period).Scan(&date)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read latest snapshot date: %w", err)
	}
	if date == nil {
		return time.Time{}, false, nil
	}
	return *date, true, nil
}
