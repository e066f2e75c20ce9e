package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/KEN19920421/30sec-challenge-sub001/internal/domain"
	"github.com/KEN19920421/30sec-challenge-sub001/internal/metrics"
	"github.com/KEN19920421/30sec-challenge-sub001/internal/ranking"
)

// VoteRepo implements domain.VoteStore backed by PostgreSQL.
type VoteRepo struct {
	pool *pgxpool.Pool
}

func NewVoteRepo(pool *pgxpool.Pool) *VoteRepo {
	return &VoteRepo{pool: pool}
}

// CastVote executes the whole cast as one transaction. Ordering matters: the
// balance decrement goes first so an exhausted balance aborts before any row
// exists, and the unique constraint on (voter_id, submission_id) makes
// concurrent duplicate attempts fail deterministically instead of
// double-counting.
func (r *VoteRepo) CastVote(ctx context.Context, cmd domain.CastVoteCommand, now time.Time) (*domain.CastVoteResult, error) {
	start := time.Now()
	defer func() {
		metrics.VoteCastDuration.Observe(time.Since(start).Seconds())
	}()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin cast transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if cmd.IsSuper {
		if err := decrementBalance(ctx, tx, cmd.VoterID, now); err != nil {
			return nil, err
		}
	}

	var vote domain.Vote
	err = tx.QueryRow(ctx, `
		INSERT INTO votes (voter_id, submission_id, challenge_id, value, is_super, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, cmd.VoterID, cmd.SubmissionID, cmd.ChallengeID, cmd.Value, cmd.IsSuper, cmd.Source, now).
		Scan(&vote.ID, &vote.CreatedAt)
	if err != nil {
		if translated := translateConstraint(err); translated != err {
			return nil, translated
		}
		return nil, fmt.Errorf("failed to insert vote: %w", err)
	}
	vote.VoterID = cmd.VoterID
	vote.SubmissionID = cmd.SubmissionID
	vote.ChallengeID = cmd.ChallengeID
	vote.Value = cmd.Value
	vote.IsSuper = cmd.IsSuper
	vote.Source = cmd.Source

	upDelta, downDelta := 0, 0
	if cmd.Value > 0 {
		upDelta = 1
	} else {
		downDelta = 1
	}
	// Super weight only attaches to up-votes; the ledger rejects anything
	// else before it reaches the store.
	superDelta := 0
	if cmd.IsSuper && cmd.Value > 0 {
		superDelta = 1
	}

	var up, down, super, voteCount int
	err = tx.QueryRow(ctx, `
		UPDATE submissions
		SET up_votes = up_votes + $2,
			down_votes = down_votes + $3,
			super_vote_count = super_vote_count + $4,
			vote_count = vote_count + 1
		WHERE id = $1
		RETURNING up_votes, down_votes, super_vote_count, vote_count
	`, cmd.SubmissionID, upDelta, downDelta, superDelta).Scan(&up, &down, &super, &voteCount)
	if err != nil {
		return nil, fmt.Errorf("failed to update submission counters: %w", err)
	}

	score := ranking.ScoreWeighted(up, down, super)
	if _, err := tx.Exec(ctx, `
		UPDATE submissions SET wilson_score = $2 WHERE id = $1
	`, cmd.SubmissionID, score); err != nil {
		return nil, fmt.Errorf("failed to persist wilson score: %w", err)
	}

	// Consume the voter's queue entry if one was issued. Zero rows is fine:
	// a vote may target a submission reached outside the queue.
	if _, err := tx.Exec(ctx, `
		UPDATE vote_queue SET is_voted = TRUE
		WHERE voter_id = $1 AND submission_id = $2 AND is_voted = FALSE
	`, cmd.VoterID, cmd.SubmissionID); err != nil {
		return nil, fmt.Errorf("failed to consume queue entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit cast transaction: %w", err)
	}

	return &domain.CastVoteResult{Vote: vote, WilsonScore: score, VoteCount: voteCount}, nil
}

// decrementBalance lazily materializes today's free allowance, then takes one
// super vote. remaining > 0 in the WHERE clause makes exhaustion a zero-row
// update rather than a constraint explosion.
func decrementBalance(ctx context.Context, tx pgx.Tx, voterID uuid.UUID, now time.Time) error {
	day := now.UTC().Truncate(24 * time.Hour)

	if _, err := tx.Exec(ctx, `
		INSERT INTO super_vote_balances (user_id, day, remaining, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, day) DO NOTHING
	`, voterID, day, domain.DefaultDailySuperVotes, now); err != nil {
		return fmt.Errorf("failed to materialize super vote balance: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE super_vote_balances
		SET remaining = remaining - 1, updated_at = $3
		WHERE user_id = $1 AND day = $2 AND remaining > 0
	`, voterID, day, now)
	if err != nil {
		return fmt.Errorf("failed to decrement super vote balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientSuperVotes
	}
	return nil
}

// TallyWindow aggregates per-submission vote counts inside the window using
// a repeatable-read transaction, so a vote arriving mid-run is either fully
// included or fully excluded. A zero since means full history.
func (r *VoteRepo) TallyWindow(ctx context.Context, challengeID uuid.UUID, since time.Time) ([]domain.WindowTally, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin tally transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only

	var sinceArg *time.Time
	if !since.IsZero() {
		sinceArg = &since
	}

	rows, err := tx.Query(ctx, `
		SELECT s.id,
			COUNT(v.id) FILTER (WHERE v.value = 1),
			COUNT(v.id) FILTER (WHERE v.value = -1),
			COUNT(v.id) FILTER (WHERE v.is_super AND v.value = 1),
			s.created_at
		FROM submissions s
		LEFT JOIN votes v
			ON v.submission_id = s.id
			AND ($2::timestamptz IS NULL OR v.created_at >= $2)
		WHERE s.challenge_id = $1
			AND s.moderation_state = 'approved'
			AND NOT s.hidden AND NOT s.deleted
		GROUP BY s.id, s.created_at
	`, challengeID, sinceArg)
	if err != nil {
		return nil, fmt.Errorf("failed to tally vote window: %w", err)
	}
	defer rows.Close()

	var tallies []domain.WindowTally
	for rows.Next() {
		var t domain.WindowTally
		if err := rows.Scan(&t.SubmissionID, &t.UpVotes, &t.DownVotes, &t.SuperVotes, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tally row: %w", err)
		}
		tallies = append(tallies, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tally rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit tally transaction: %w", err)
	}
	return tallies, nil
}
