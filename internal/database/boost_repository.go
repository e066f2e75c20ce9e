package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/KEN19920421/30sec-challenge-sub001/internal/domain"
)

type BoostRepo struct {
	pool *pgxpool.Pool
}

func NewBoostRepo(pool *pgxpool.Pool) *BoostRepo {
	return &BoostRepo{pool: pool}
}

func (r *BoostRepo) Insert(ctx context.Context, boost *domain.SubmissionBoost) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO submission_boosts (submission_id, purchaser_id, tier, boost_value, started_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, boost.SubmissionID, boost.PurchaserID, boost.Tier, boost.BoostValue, boost.StartedAt, boost.ExpiresAt).
		Scan(&boost.ID)
	if err != nil {
		return fmt.Errorf("failed to insert boost: %w", err)
	}
	return nil
}

func (r *BoostRepo) ListActive(ctx context.Context, submissionID uuid.UUID, now time.Time) ([]domain.SubmissionBoost, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, submission_id, purchaser_id, tier, boost_value, started_at, expires_at
		FROM submission_boosts
		WHERE submission_id = $1 AND expires_at > $2
		ORDER BY expires_at
	`, submissionID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list active boosts: %w", err)
	}
	defer rows.Close()

	var boosts []domain.SubmissionBoost
	for rows.Next() {
		var b domain.SubmissionBoost
		if err := rows.Scan(&b.ID, &b.SubmissionID, &b.PurchaserID, &b.Tier, &b.BoostValue, &b.StartedAt, &b.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan boost row: %w", err)
		}
		boosts = append(boosts, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read boost rows: %w", err)
	}
	return boosts, nil
}

// SyncBoostScores recomputes boost_score for every submission of the
// challenge in one statement. Expired boosts drop out of the sum, so a
// submission whose last boost lapsed gets written back to zero.
func (r *BoostRepo) SyncBoostScores(ctx context.Context, challengeID uuid.UUID, now time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE submissions s
		SET boost_score = COALESCE((
			SELECT SUM(b.boost_value)
			FROM submission_boosts b
			WHERE b.submission_id = s.id AND b.expires_at > $2
		), 0)
		WHERE s.challenge_id = $1
			AND s.boost_score <> COALESCE((
				SELECT SUM(b.boost_value)
				FROM submission_boosts b
				WHERE b.submission_id = s.id AND b.expires_at > $2
			), 0)
	`, challengeID, now)
	if err != nil {
		return fmt.Errorf("failed to sync boost scores: %w", err)
	}
	return nil
}
