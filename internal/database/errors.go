package database

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/KEN19920421/30sec-challenge-sub001/internal/domain"
	"github.com/KEN19920421/30sec-challenge-sub001/internal/retry"
)

const (
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
	pgSerializationFail   = "40001"
	pgDeadlockDetected    = "40P01"
	pgConnectionClassPref = "08"
)

// translateConstraint maps constraint violations onto the domain taxonomy.
// Everything else passes through untouched for the caller to wrap.
func translateConstraint(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgUniqueViolation:
		if pgErr.ConstraintName == "votes_voter_submission_unique" {
			return domain.ErrDuplicateVote
		}
	case pgCheckViolation:
		if strings.HasPrefix(pgErr.ConstraintName, "super_vote_balances") {
			return domain.ErrInsufficientSuperVotes
		}
	}
	return err
}

// ClassifyTransient is the retry classifier for storage operations: lock
// contention and connection drops are retried, everything else is permanent.
func ClassifyTransient(err error) retry.Action {
	if IsTransient(err) {
		return retry.Retry
	}
	return retry.Stop
}

func IsTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgSerializationFail || pgErr.Code == pgDeadlockDetected {
			return true
		}
		return strings.HasPrefix(pgErr.Code, pgConnectionClassPref)
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
