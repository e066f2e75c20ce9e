package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/KEN19920421/30sec-challenge-sub001/internal/domain"
)

type BalanceRepo struct {
	pool *pgxpool.Pool
}

func NewBalanceRepo(pool *pgxpool.Pool) *BalanceRepo {
	return &BalanceRepo{pool: pool}
}

// Remaining reports today's super-vote balance without materializing a row.
// A missing row means the free allowance is still untouched.
func (r *BalanceRepo) Remaining(ctx context.Context, userID uuid.UUID, day time.Time) (int, error) {
	var remaining int
	err := r.pool.QueryRow(ctx, `
		SELECT remaining FROM super_vote_balances WHERE user_id = $1 AND day = $2
	`, userID, day.UTC().Truncate(24*time.Hour)).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DefaultDailySuperVotes, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read super vote balance: %w", err)
	}
	return remaining, nil
}

// CreditBonus adds ad-earned super votes on top of the day's allowance,
// materializing the row if this is the user's first balance touch today.
func (r *BalanceRepo) CreditBonus(ctx context.Context, userID uuid.UUID, day time.Time, amount int) (int, error) {
	var remaining int
	err := r.pool.QueryRow(ctx, `
		INSERT INTO super_vote_balances (user_id, day, remaining, updated_at)
		VALUES ($1, $2, $3 + $4, NOW())
		ON CONFLICT (user_id, day)
			DO UPDATE SET remaining = super_vote_balances.remaining + $4, updated_at = NOW()
		RETURNING remaining
	`, userID, day.UTC().Truncate(24*time.Hour), domain.DefaultDailySuperVotes, amount).Scan(&remaining)
	if err != nil {
		return 0, fmt.Errorf("failed to credit super vote bonus: %w", err)
	}
	return remaining, nil
}
