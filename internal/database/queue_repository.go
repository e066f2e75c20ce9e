package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/KEN19920421/30sec-challenge-sub001/internal/domain"
)

type QueueRepo struct {
	pool *pgxpool.Pool
}

func NewQueueRepo(pool *pgxpool.Pool) *QueueRepo {
	return &QueueRepo{pool: pool}
}

// ListEligible applies every exclusion rule in SQL: own submissions, blocks in
// either direction, and anything ever issued to this voter. Cold submissions
// first so low-exposure entries get eyeballs.
func (r *QueueRepo) ListEligible(ctx context.Context, voterID, challengeID uuid.UUID, limit int) ([]domain.QueueCandidate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.vote_count, s.boost_score, s.created_at
		FROM submissions s
		WHERE s.challenge_id = $2
			AND s.moderation_state = 'approved' AND NOT s.hidden AND NOT s.deleted
			AND s.owner_id <> $1
			AND NOT EXISTS (
				SELECT 1 FROM user_blocks b
				WHERE (b.blocker_id = $1 AND b.blocked_id = s.owner_id)
					OR (b.blocker_id = s.owner_id AND b.blocked_id = $1)
			)
			AND NOT EXISTS (
				SELECT 1 FROM vote_queue q
				WHERE q.voter_id = $1 AND q.challenge_id = $2 AND q.submission_id = s.id
			)
		ORDER BY s.vote_count ASC, s.created_at ASC
		LIMIT $3
	`, voterID, challengeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible submissions: %w", err)
	}
	defer rows.Close()

	var candidates []domain.QueueCandidate
	for rows.Next() {
		var c domain.QueueCandidate
		if err := rows.Scan(&c.SubmissionID, &c.VoteCount, &c.EffectiveBoost, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan candidate row: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read candidate rows: %w", err)
	}
	return candidates, nil
}

func (r *QueueRepo) MaxPosition(ctx context.Context, voterID, challengeID uuid.UUID) (int, error) {
	var max int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(position), 0) FROM vote_queue
		WHERE voter_id = $1 AND challenge_id = $2
	`, voterID, challengeID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to read max queue position: %w", err)
	}
	return max, nil
}

// AppendEntries is idempotent: a concurrent build that already inserted the
// same (voter, challenge, submission) key wins and ours is a no-op.
func (r *QueueRepo) AppendEntries(ctx context.Context, entries []domain.VoteQueueEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO vote_queue (voter_id, challenge_id, submission_id, position, is_voted, created_at)
			VALUES ($1, $2, $3, $4, FALSE, $5)
			ON CONFLICT (voter_id, challenge_id, submission_id) DO NOTHING
		`, e.VoterID, e.ChallengeID, e.SubmissionID, e.Position, e.CreatedAt)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range entries {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to append queue entry: %w", err)
		}
	}
	return nil
}

func (r *QueueRepo) ListPending(ctx context.Context, voterID, challengeID uuid.UUID, limit int) ([]domain.VoteQueueEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT voter_id, challenge_id, submission_id, position, is_voted, created_at
		FROM vote_queue
		WHERE voter_id = $1 AND challenge_id = $2 AND is_voted = FALSE
		ORDER BY position
		LIMIT $3
	`, voterID, challengeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending queue entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.VoteQueueEntry
	for rows.Next() {
		var e domain.VoteQueueEntry
		if err := rows.Scan(&e.VoterID, &e.ChallengeID, &e.SubmissionID, &e.Position, &e.IsVoted, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read queue entries: %w", err)
	}
	return entries, nil
}
