package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// --- Enumerations ---

type ModerationState string

const (
	ModerationPending  ModerationState = "pending"
	ModerationApproved ModerationState = "approved"
	ModerationRejected ModerationState = "rejected"
)

type ChallengePhase string

const (
	PhaseActive    ChallengePhase = "active"
	PhaseVoting    ChallengePhase = "voting"
	PhaseCompleted ChallengePhase = "completed"
)

type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodAllTime Period = "all_time"
)

// Window returns the start of the vote-timestamp window for the period,
// relative to now. The zero time means no lower bound (all_time).
func (p Period) Window(now time.Time) time.Time {
	switch p {
	case PeriodDaily:
		return now.Add(-24 * time.Hour)
	case PeriodWeekly:
		return now.Add(-7 * 24 * time.Hour)
	default:
		return time.Time{}
	}
}

func (p Period) Valid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodAllTime:
		return true
	}
	return false
}

type VoteSource string

const (
	SourceOrganic    VoteSource = "organic"
	SourceRewardedAd VoteSource = "rewarded_ad"
)

type BoostTier string

const (
	TierBronze BoostTier = "bronze"
	TierSilver BoostTier = "silver"
	TierGold   BoostTier = "gold"
)

// --- Model types ---

type Challenge struct {
	ID             uuid.UUID      `db:"id"`
	Title          string         `db:"title"`
	Phase          ChallengePhase `db:"phase"`
	VotingOpensAt  time.Time      `db:"voting_opens_at"`
	VotingClosesAt time.Time      `db:"voting_closes_at"`
	CreatedAt      time.Time      `db:"created_at"`
}

// VotingOpen reports whether votes are accepted for the challenge at t.
func (c *Challenge) VotingOpen(t time.Time) bool {
	if c.Phase == PhaseCompleted {
		return false
	}
	return !t.Before(c.VotingOpensAt) && t.Before(c.VotingClosesAt)
}

// Submission's score fields are derived: only the vote store (inside the cast
// transaction) and the boost engine recompute them, never callers.
type Submission struct {
	ID             uuid.UUID       `db:"id"`
	OwnerID        uuid.UUID       `db:"owner_id"`
	ChallengeID    uuid.UUID       `db:"challenge_id"`
	Moderation     ModerationState `db:"moderation_state"`
	Hidden         bool            `db:"hidden"`
	Deleted        bool            `db:"deleted"`
	UpVotes        int             `db:"up_votes"`
	DownVotes      int             `db:"down_votes"`
	SuperVoteCount int             `db:"super_vote_count"`
	VoteCount      int             `db:"vote_count"`
	WilsonScore    float64         `db:"wilson_score"`
	BoostScore     float64         `db:"boost_score"`
	CreatedAt      time.Time       `db:"created_at"`
}

// Votable reports whether the submission itself accepts votes. Challenge
// phase is checked separately against the Challenge row.
func (s *Submission) Votable() bool {
	return s.Moderation == ModerationApproved && !s.Hidden && !s.Deleted
}

type Vote struct {
	ID           uuid.UUID  `db:"id"`
	VoterID      uuid.UUID  `db:"voter_id"`
	SubmissionID uuid.UUID  `db:"submission_id"`
	ChallengeID  uuid.UUID  `db:"challenge_id"`
	Value        int        `db:"value"` // +1 or -1
	IsSuper      bool       `db:"is_super"`
	Source       VoteSource `db:"source"`
	CreatedAt    time.Time  `db:"created_at"`
}

type VoteQueueEntry struct {
	VoterID      uuid.UUID `db:"voter_id"`
	ChallengeID  uuid.UUID `db:"challenge_id"`
	SubmissionID uuid.UUID `db:"submission_id"`
	Position     int       `db:"position"`
	IsVoted      bool      `db:"is_voted"`
	CreatedAt    time.Time `db:"created_at"`
}

type SubmissionBoost struct {
	ID           uuid.UUID `db:"id"`
	SubmissionID uuid.UUID `db:"submission_id"`
	PurchaserID  uuid.UUID `db:"purchaser_id"`
	Tier         BoostTier `db:"tier"`
	BoostValue   float64   `db:"boost_value"`
	StartedAt    time.Time `db:"started_at"`
	ExpiresAt    time.Time `db:"expires_at"`
}

// Active reports whether the boost still contributes at t. Expiry is binary;
// a boost contributes its full value until expires_at and nothing after.
func (b *SubmissionBoost) Active(t time.Time) bool {
	return b.ExpiresAt.After(t)
}

// LeaderboardRow is one frozen row of a leaderboard generation. Rows are
// written only by the snapshotter and never updated in place.
type LeaderboardRow struct {
	ChallengeID  uuid.UUID `db:"challenge_id"`
	Period       Period    `db:"period"`
	SnapshotDate time.Time `db:"snapshot_date"`
	SubmissionID uuid.UUID `db:"submission_id"`
	Rank         int       `db:"rank"`
	Score        float64   `db:"score"`
	VoteCount    int       `db:"vote_count"`
	CreatedAt    time.Time `db:"created_at"`
}

// DefaultDailySuperVotes is the free allowance materialized for a user's
// first super-vote interaction of a UTC day. Ad rewards credit on top.
const DefaultDailySuperVotes = 3

type SuperVoteBalance struct {
	UserID    uuid.UUID `db:"user_id"`
	Day       time.Time `db:"day"`
	Remaining int       `db:"remaining"`
	UpdatedAt time.Time `db:"updated_at"`
}

// --- Command and result types ---

// CastVoteCommand is the request-scoped input to the vote ledger. Day is the
// voter's balance day (UTC date of the cast), resolved by the caller so the
// whole cast uses one consistent clock reading.
type CastVoteCommand struct {
	VoterID      uuid.UUID
	SubmissionID uuid.UUID
	ChallengeID  uuid.UUID // resolved by the ledger from the submission row
	Value        int
	IsSuper      bool
	Source       VoteSource
}

// CastVoteResult carries the recorded vote and the submission's post-cast
// derived values, for broadcasting and response payloads.
type CastVoteResult struct {
	Vote        Vote
	WilsonScore float64
	VoteCount   int
}

// WindowTally is a per-submission vote tally restricted to a time window.
type WindowTally struct {
	SubmissionID uuid.UUID
	UpVotes      int
	DownVotes    int
	SuperVotes   int
	CreatedAt    time.Time // submission creation, for tie-breaking
}

// QueueCandidate is an eligible submission considered by the queue builder.
type QueueCandidate struct {
	SubmissionID   uuid.UUID
	VoteCount      int
	EffectiveBoost float64
	CreatedAt      time.Time
}

// RankedSubmission is a live (non-frozen) rank read.
type RankedSubmission struct {
	SubmissionID uuid.UUID
	Rank         int
	WilsonScore  float64
	VoteCount    int
}

// --- Store interfaces ---

type ChallengeRepository interface {
	GetByID(ctx context.Context, challengeID uuid.UUID) (*Challenge, error)
	ListInVoting(ctx context.Context) ([]Challenge, error)
}

type SubmissionRepository interface {
	GetByID(ctx context.Context, submissionID uuid.UUID) (*Submission, error)
	// ListApprovedByChallenge returns approved, non-hidden, non-deleted
	// submissions ordered by the display tie-break rule.
	ListApprovedByChallenge(ctx context.Context, challengeID uuid.UUID) ([]Submission, error)
	CurrentRank(ctx context.Context, submissionID uuid.UUID) (*RankedSubmission, error)
}

// VoteStore persists votes. CastVote is the single atomic unit of the voting
// mechanic: super-vote balance decrement, vote insert, counter updates, score
// recompute, and queue-entry consumption all commit or roll back together.
type VoteStore interface {
	CastVote(ctx context.Context, cmd CastVoteCommand, now time.Time) (*CastVoteResult, error)
	// TallyWindow aggregates votes per submission for a challenge, counting
	// only votes cast at or after since. A zero since means no lower bound.
	TallyWindow(ctx context.Context, challengeID uuid.UUID, since time.Time) ([]WindowTally, error)
}

type QueueStore interface {
	// ListEligible returns candidates for (voter, challenge): approved, not
	// the voter's own, not blocked in either direction, and never issued to
	// this voter before.
	ListEligible(ctx context.Context, voterID, challengeID uuid.UUID, limit int) ([]QueueCandidate, error)
	MaxPosition(ctx context.Context, voterID, challengeID uuid.UUID) (int, error)
	AppendEntries(ctx context.Context, entries []VoteQueueEntry) error
	ListPending(ctx context.Context, voterID, challengeID uuid.UUID, limit int) ([]VoteQueueEntry, error)
}

type BoostStore interface {
	Insert(ctx context.Context, boost *SubmissionBoost) error
	ListActive(ctx context.Context, submissionID uuid.UUID, now time.Time) ([]SubmissionBoost, error)
	// SyncBoostScores recomputes submissions.boost_score from the currently
	// active boosts of a challenge, zeroing expired ones.
	SyncBoostScores(ctx context.Context, challengeID uuid.UUID, now time.Time) error
}

type SnapshotStore interface {
	// ReplaceGeneration atomically replaces all rows for the key. It fails
	// with ErrSnapshotConflict when another run holds the key's lock.
	ReplaceGeneration(ctx context.Context, challengeID uuid.UUID, period Period, date time.Time, rows []LeaderboardRow) error
	ListPage(ctx context.Context, challengeID uuid.UUID, period Period, date time.Time, afterRank, limit int) ([]LeaderboardRow, error)
	LatestDate(ctx context.Context, challengeID uuid.UUID, period Period) (time.Time, bool, error)
}

type BalanceStore interface {
	Remaining(ctx context.Context, userID uuid.UUID, day time.Time) (int, error)
	// CreditBonus adds ad-earned super votes to the user's balance for day
	// and returns the new remaining count.
	CreditBonus(ctx context.Context, userID uuid.UUID, day time.Time, amount int) (int, error)
}

// CoinLedger is the external balance collaborator. Debits must be atomic on
// the collaborator's side; it reports ErrInsufficientCoins on short balance.
// Credit compensates a debit when the local write fails afterwards.
type CoinLedger interface {
	Debit(ctx context.Context, userID uuid.UUID, amount int, reference string) error
	Credit(ctx context.Context, userID uuid.UUID, amount int, reference string) error
}

// ScoreBroadcaster pushes live score updates to connected viewers.
type ScoreBroadcaster interface {
	BroadcastScore(challengeID, submissionID uuid.UUID, wilsonScore float64, voteCount int)
}
