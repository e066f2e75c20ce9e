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

type ChallengeRepo struct {
	pool *pgxpool.Pool
}

func NewChallengeRepo(pool *pgxpool.Pool) *ChallengeRepo {
	return &ChallengeRepo{pool: pool}
}

func (r *ChallengeRepo) GetByID(ctx context.Context, challengeID uuid.UUID) (*domain.Challenge, error) {
	var c domain.Challenge
	err := r.pool.QueryRow(ctx, `
		SELECT id, title, phase, voting_opens_at, voting_closes_at, created_at
		FROM challenges WHERE id = $1
	`, challengeID).Scan(&c.ID, &c.Title, &c.Phase, &c.VotingOpensAt, &c.VotingClosesAt, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrChallengeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}
	return &c, nil
}

func (r *ChallengeRepo) ListInVoting(ctx context.Context) ([]domain.Challenge, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, title, phase, voting_opens_at, voting_closes_at, created_at
		FROM challenges
		WHERE phase = 'voting' AND voting_closes_at > NOW()
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list voting challenges: %w", err)
	}
	defer rows.Close()

	var challenges []domain.Challenge
	for rows.Next() {
		var c domain.Challenge
		if err := rows.Scan(&c.ID, &c.Title, &c.Phase, &c.VotingOpensAt, &c.VotingClosesAt, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan challenge row: %w", err)
		}
		challenges = append(challenges, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read challenge rows: %w", err)
	}
	return challenges, nil
}
