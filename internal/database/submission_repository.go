package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/KEN19920421/30sec-challenge-sub001/internal/domain"
)

type SubmissionRepo struct {
	pool *pgxpool.Pool
}

func NewSubmissionRepo(pool *pgxpool.Pool) *SubmissionRepo {
	return &SubmissionRepo{pool: pool}
}

const submissionColumns = `id, owner_id, challenge_id, moderation_state, hidden, deleted,
	up_votes, down_votes, super_vote_count, vote_count, wilson_score, boost_score, created_at`

func scanSubmission(row pgx.Row, s *domain.Submission) error {
	return row.Scan(&s.ID, &s.OwnerID, &s.ChallengeID, &s.Moderation, &s.Hidden, &s.Deleted,
		&s.UpVotes, &s.DownVotes, &s.SuperVoteCount, &s.VoteCount, &s.WilsonScore, &s.BoostScore, &s.CreatedAt)
}

func (r *SubmissionRepo) GetByID(ctx context.Context, submissionID uuid.UUID) (*domain.Submission, error) {
	var s domain.Submission
	err := scanSubmission(r.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, submissionID), &s)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSubmissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return &s, nil
}

func (r *SubmissionRepo) ListApprovedByChallenge(ctx context.Context, challengeID uuid.UUID) ([]domain.Submission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions
		WHERE challenge_id = $1 AND moderation_state = 'approved' AND NOT hidden AND NOT deleted
		ORDER BY wilson_score DESC, vote_count DESC, created_at ASC
	`, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var subs []domain.Submission
	for rows.Next() {
		var s domain.Submission
		if err := scanSubmission(rows, &s); err != nil {
			return nil, fmt.Errorf("failed to scan submission row: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read submission rows: %w", err)
	}
	return subs, nil
}

// CurrentRank computes the submission's live position among its challenge's
// visible submissions with a window function, using the same ordering as the
// ranking index so the planner can walk it.
func (r *SubmissionRepo) CurrentRank(ctx context.Context, submissionID uuid.UUID) (*domain.RankedSubmission, error) {
	var ranked domain.RankedSubmission
	err := r.pool.QueryRow(ctx, `
		SELECT id, rank, wilson_score, vote_count FROM (
			SELECT id, wilson_score, vote_count,
				ROW_NUMBER() OVER (
					ORDER BY wilson_score DESC, vote_count DESC, created_at ASC
				) AS rank
			FROM submissions
			WHERE challenge_id = (SELECT challenge_id FROM submissions WHERE id = $1)
				AND moderation_state = 'approved' AND NOT hidden AND NOT deleted
		) ranked
		WHERE id = $1
	`, submissionID).Scan(&ranked.SubmissionID, &ranked.Rank, &ranked.WilsonScore, &ranked.VoteCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSubmissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to compute current rank: %w", err)
	}
	return &ranked, nil
}
