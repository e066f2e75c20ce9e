package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/KEN19920421/30sec-challenge-sub001/internal/boost"
	"github.com/KEN19920421/30sec-challenge-sub001/internal/domain"
	"github.com/KEN19920421/30sec-challenge-sub001/internal/leaderboard"
	"github.com/KEN19920421/30sec-challenge-sub001/internal/queue"
	"github.com/KEN19920421/30sec-challenge-sub001/internal/vote"
)

// adBonusSuperVotes is the super votes credited per completed rewarded ad.
const adBonusSuperVotes = 1

// Service wires the use cases together.
type Service struct {
	ledger      *vote.Ledger
	builder     *queue.Builder
	boosts      *boost.Engine
	snapshotter *leaderboard.Snapshotter
	snapshots   domain.SnapshotStore
	submissions domain.SubmissionRepository
	challenges  domain.ChallengeRepository
	balances    domain.BalanceStore
	clock       clockwork.Clock

	// snapshotGroup collapses concurrent on-demand snapshot builds for the
	// same (challenge, period) when no generation exists yet.
	snapshotGroup singleflight.Group
}

func NewService(
	ledger *vote.Ledger,
	builder *queue.Builder,
	boosts *boost.Engine,
	snapshotter *leaderboard.Snapshotter,
	snapshots domain.SnapshotStore,
	submissions domain.SubmissionRepository,
	challenges domain.ChallengeRepository,
	balances domain.BalanceStore,
	clock clockwork.Clock,
) *Service {
	return &Service{
		ledger:      ledger,
		builder:     builder,
		boosts:      boosts,
		snapshotter: snapshotter,
		snapshots:   snapshots,
		submissions: submissions,
		challenges:  challenges,
		balances:    balances,
		clock:       clock,
	}
}

// CastVote records one vote through the ledger.
func (s *Service) CastVote(ctx context.Context, cmd domain.CastVoteCommand) (*domain.CastVoteResult, error) {
	return s.ledger.Cast(ctx, cmd)
}

// VoteQueue returns the voter's pending queue page for a challenge, building
// fresh entries when the pending set runs short.
func (s *Service) VoteQueue(ctx context.Context, voterID, challengeID uuid.UUID, size int) ([]domain.VoteQueueEntry, error) {
	challenge, err := s.challenges.GetByID(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if !challenge.VotingOpen(s.clock.Now()) {
		return nil, domain.ErrSubmissionNotVotable
	}
	return s.builder.Build(ctx, voterID, challengeID, size)
}

// PurchaseBoost buys a boost tier for a submission.
func (s *Service) PurchaseBoost(ctx context.Context, submissionID, purchaserID uuid.UUID, tier domain.BoostTier) (*domain.SubmissionBoost, error) {
	return s.boosts.Purchase(ctx, submissionID, purchaserID, tier)
}

// Leaderboard returns a frozen leaderboard page. When no generation exists
// yet for the key, one is built on demand; concurrent first readers share a
// single build.
func (s *Service) Leaderboard(ctx context.Context, challengeID uuid.UUID, period domain.Period, afterRank, limit int) ([]domain.LeaderboardRow, time.Time, error) {
	if !period.Valid() {
		return nil, time.Time{}, fmt.Errorf("invalid leaderboard period %q", period)
	}

	date, found, err := s.snapshots.LatestDate(ctx, challengeID, period)
	if err != nil {
		return nil, time.Time{}, err
	}

	if !found {
		key := challengeID.String() + "/" + string(period)
		_, err, _ := s.snapshotGroup.Do(key, func() (any, error) {
			_, err := s.snapshotter.Snapshot(ctx, challengeID, period, s.clock.Now())
			return nil, err
		})
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("on-demand snapshot failed: %w", err)
		}
		if date, found, err = s.snapshots.LatestDate(ctx, challengeID, period); err != nil {
			return nil, time.Time{}, err
		}
		if !found {
			// Challenge with no submissions at all.
			return nil, time.Time{}, nil
		}
	}

	rows, err := s.snapshots.ListPage(ctx, challengeID, period, date, afterRank, limit)
	if err != nil {
		return nil, time.Time{}, err
	}
	return rows, date, nil
}

// CurrentRank reads the live (non-frozen) rank of a submission.
func (s *Service) CurrentRank(ctx context.Context, submissionID uuid.UUID) (*domain.RankedSubmission, error) {
	return s.submissions.CurrentRank(ctx, submissionID)
}

// SuperVoteBalance reports the voter's remaining super votes today.
func (s *Service) SuperVoteBalance(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.balances.Remaining(ctx, userID, s.clock.Now())
}

// CreditAdBonus credits the rewarded-ad super-vote bonus to today's balance
// and returns the new remaining count.
func (s *Service) CreditAdBonus(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.balances.CreditBonus(ctx, userID, s.clock.Now(), adBonusSuperVotes)
}

// GetChallenge resolves a challenge, for surface-level validation.
func (s *Service) GetChallenge(ctx context.Context, challengeID uuid.UUID) (*domain.Challenge, error) {
	return s.challenges.GetByID(ctx, challengeID)
}
