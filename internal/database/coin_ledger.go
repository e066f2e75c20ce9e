package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/KEN19920421/30sec-challenge-sub001/internal/domain"
)

// CoinLedgerRepo records coin movements as an append-only transaction log
// next to a per-user balance row. Debit and Credit each commit atomically,
// so a debit either lands with its log entry or not at all.
type CoinLedgerRepo struct {
	pool *pgxpool.Pool
}

func NewCoinLedger(pool *pgxpool.Pool) *CoinLedgerRepo {
	return &CoinLedgerRepo{pool: pool}
}

// Debit removes amount coins from the user's balance. The balance row guards
// against overdraft: zero rows updated means the balance is short and the
// caller gets domain.ErrInsufficientCoins.
func (r *CoinLedgerRepo) Debit(ctx context.Context, userID uuid.UUID, amount int, reference string) error {
	if amount <= 0 {
		return fmt.Errorf("debit amount must be positive, got %d", amount)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin debit transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE coin_balances
		SET balance = balance - $2, updated_at = NOW()
		WHERE user_id = $1 AND balance >= $2
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("failed to debit coins: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientCoins
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO coin_transactions (user_id, amount, reference)
		VALUES ($1, $2, $3)
	`, userID, -amount, reference); err != nil {
		return fmt.Errorf("failed to record debit: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit debit: %w", err)
	}
	return nil
}

// Credit adds amount coins to the user's balance, creating the balance row
// on first touch.
func (r *CoinLedgerRepo) Credit(ctx context.Context, userID uuid.UUID, amount int, reference string) error {
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive, got %d", amount)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin credit transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO coin_balances (user_id, balance, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id)
			DO UPDATE SET balance = coin_balances.balance + $2, updated_at = NOW()
	`, userID, amount); err != nil {
		return fmt.Errorf("failed to credit coins: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO coin_transactions (user_id, amount, reference)
		VALUES ($1, $2, $3)
	`, userID, amount, reference); err != nil {
		return fmt.Errorf("failed to record credit: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit credit: %w", err)
	}
	return nil
}
