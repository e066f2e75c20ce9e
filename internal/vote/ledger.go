// Package vote implements the vote ledger: precondition checks and the
// atomic cast pipeline around the vote store.
package vote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/KEN19920421/30sec-challenge-sub001/internal/domain"
	"github.com/KEN19920421/30sec-challenge-sub001/internal/metrics"
)

// castTimeout bounds a single cast; votes sit in a user-facing tap path.
const castTimeout = 500 * time.Millisecond

// RateLimiter throttles casts per voter. Allow consumes a token and reports
// whether the cast may proceed.
type RateLimiter interface {
	Allow(ctx context.Context, voterID uuid.UUID) (bool, error)
}

// Ledger validates and records votes. Validation that can race (duplicate
// detection, balance exhaustion) is not decided here: the store enforces it
// inside the cast transaction and this layer only translates the outcome.
type Ledger struct {
	submissions domain.SubmissionRepository
	challenges  domain.ChallengeRepository
	votes       domain.VoteStore
	limiter     RateLimiter
	broadcaster domain.ScoreBroadcaster
	clock       clockwork.Clock
}

// NewLedger creates a vote ledger. limiter and broadcaster may be nil.
func NewLedger(
	submissions domain.SubmissionRepository,
	challenges domain.ChallengeRepository,
	votes domain.VoteStore,
	limiter RateLimiter,
	broadcaster domain.ScoreBroadcaster,
	clock clockwork.Clock,
) *Ledger {
	return &Ledger{
		submissions: submissions,
		challenges:  challenges,
		votes:       votes,
		limiter:     limiter,
		broadcaster: broadcaster,
		clock:       clock,
	}
}

// Cast records one vote for (cmd.VoterID, cmd.SubmissionID).
//
// Failure modes: domain.ErrSelfVote, domain.ErrSubmissionNotVotable,
// domain.ErrVoteRateLimited, domain.ErrDuplicateVote,
// domain.ErrInsufficientSuperVotes.
func (l *Ledger) Cast(ctx context.Context, cmd domain.CastVoteCommand) (*domain.CastVoteResult, error) {
	ctx, cancel := context.WithTimeout(ctx, castTimeout)
	defer cancel()

	if cmd.Value != 1 && cmd.Value != -1 {
		return nil, fmt.Errorf("vote value must be +1 or -1, got %d: %w", cmd.Value, domain.ErrSubmissionNotVotable)
	}
	// A super vote is a weighted up-vote. Letting it ride on a downvote would
	// add phantom up-weight to a negative ballot.
	if cmd.IsSuper && cmd.Value != 1 {
		return nil, fmt.Errorf("super vote must be an up-vote: %w", domain.ErrSubmissionNotVotable)
	}
	if cmd.Source == "" {
		cmd.Source = domain.SourceOrganic
	}

	sub, err := l.submissions.GetByID(ctx, cmd.SubmissionID)
	if err != nil {
		metrics.VotesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if sub.OwnerID == cmd.VoterID {
		metrics.VotesTotal.WithLabelValues("self_vote").Inc()
		return nil, domain.ErrSelfVote
	}
	if !sub.Votable() {
		metrics.VotesTotal.WithLabelValues("not_votable").Inc()
		return nil, domain.ErrSubmissionNotVotable
	}

	now := l.clock.Now()

	challenge, err := l.challenges.GetByID(ctx, sub.ChallengeID)
	if err != nil {
		metrics.VotesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if !challenge.VotingOpen(now) {
		metrics.VotesTotal.WithLabelValues("not_votable").Inc()
		return nil, fmt.Errorf("challenge %s voting window closed: %w", challenge.ID, domain.ErrSubmissionNotVotable)
	}

	if l.limiter != nil {
		allowed, err := l.limiter.Allow(ctx, cmd.VoterID)
		if err != nil {
			// Rate limiting is advisory; a broken limiter must not block votes.
			slog.WarnContext(ctx, "vote rate limiter unavailable, allowing cast", "voter_id", cmd.VoterID, "error", err)
		} else if !allowed {
			metrics.VotesTotal.WithLabelValues("rate_limited").Inc()
			return nil, domain.ErrVoteRateLimited
		}
	}

	cmd.ChallengeID = sub.ChallengeID
	result, err := l.votes.CastVote(ctx, cmd, now)
	if err != nil {
		metrics.VotesTotal.WithLabelValues(outcomeLabel(err)).Inc()
		return nil, err
	}

	metrics.VotesTotal.WithLabelValues("ok").Inc()
	if result.Vote.IsSuper {
		metrics.SuperVotesTotal.Inc()
	}

	if l.broadcaster != nil {
		l.broadcaster.BroadcastScore(sub.ChallengeID, sub.ID, result.WilsonScore, result.VoteCount)
	}

	slog.InfoContext(ctx, "vote cast",
		"voter_id", cmd.VoterID,
		"submission_id", cmd.SubmissionID,
		"value", cmd.Value,
		"is_super", cmd.IsSuper,
		"wilson_score", result.WilsonScore,
	)
	return result, nil
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrDuplicateVote):
		return "duplicate"
	case errors.Is(err, domain.ErrInsufficientSuperVotes):
		return "insufficient_super_votes"
	default:
		return "error"
	}
}
