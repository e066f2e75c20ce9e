package vote

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KEN19920421/30sec-challenge-sub001/internal/domain"
	"github.com/KEN19920421/30sec-challenge-sub001/internal/ranking"
)

// --- Fakes ---

type fakeSubmissions struct {
	subs map[uuid.UUID]*domain.Submission
}

func (f *fakeSubmissions) GetByID(_ context.Context, id uuid.UUID) (*domain.Submission, error) {
	if s, ok := f.subs[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, domain.ErrSubmissionNotFound
}

func (f *fakeSubmissions) ListApprovedByChallenge(context.Context, uuid.UUID) ([]domain.Submission, error) {
	return nil, nil
}

func (f *fakeSubmissions) CurrentRank(context.Context, uuid.UUID) (*domain.RankedSubmission, error) {
	return nil, domain.ErrSubmissionNotFound
}

type fakeChallenges struct {
	challenges map[uuid.UUID]*domain.Challenge
}

func (f *fakeChallenges) GetByID(_ context.Context, id uuid.UUID) (*domain.Challenge, error) {
	if c, ok := f.challenges[id]; ok {
		return c, nil
	}
	return nil, domain.ErrChallengeNotFound
}

func (f *fakeChallenges) ListInVoting(context.Context) ([]domain.Challenge, error) { return nil, nil }

// fakeVoteStore mimics the transactional store: on any failure nothing is
// mutated, so the all-or-nothing contract can be asserted from tests.
type fakeVoteStore struct {
	subs     *fakeSubmissions
	votes    map[string]domain.Vote
	balances map[uuid.UUID]int
}

func voteKey(voterID, submissionID uuid.UUID) string {
	return voterID.String() + "/" + submissionID.String()
}

func (f *fakeVoteStore) CastVote(_ context.Context, cmd domain.CastVoteCommand, now time.Time) (*domain.CastVoteResult, error) {
	key := voteKey(cmd.VoterID, cmd.SubmissionID)
	if _, exists := f.votes[key]; exists {
		return nil, domain.ErrDuplicateVote
	}
	if cmd.IsSuper {
		if f.balances[cmd.VoterID] <= 0 {
			return nil, domain.ErrInsufficientSuperVotes
		}
		f.balances[cmd.VoterID]--
	}

	v := domain.Vote{
		ID:           uuid.New(),
		VoterID:      cmd.VoterID,
		SubmissionID: cmd.SubmissionID,
		ChallengeID:  cmd.ChallengeID,
		Value:        cmd.Value,
		IsSuper:      cmd.IsSuper,
		Source:       cmd.Source,
		CreatedAt:    now,
	}
	f.votes[key] = v

	sub := f.subs.subs[cmd.SubmissionID]
	if cmd.Value > 0 {
		sub.UpVotes++
	} else {
		sub.DownVotes++
	}
	if cmd.IsSuper {
		sub.SuperVoteCount++
	}
	sub.VoteCount = sub.UpVotes + sub.DownVotes
	sub.WilsonScore = ranking.ScoreWeighted(sub.UpVotes, sub.DownVotes, sub.SuperVoteCount)

	return &domain.CastVoteResult{Vote: v, WilsonScore: sub.WilsonScore, VoteCount: sub.VoteCount}, nil
}

func (f *fakeVoteStore) TallyWindow(context.Context, uuid.UUID, time.Time) ([]domain.WindowTally, error) {
	return nil, nil
}

type fakeBroadcaster struct {
	updates int
}

func (f *fakeBroadcaster) BroadcastScore(uuid.UUID, uuid.UUID, float64, int) { f.updates++ }

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, uuid.UUID) (bool, error) { return false, nil }

// --- Fixture ---

type fixture struct {
	ledger    *Ledger
	store     *fakeVoteStore
	bcast     *fakeBroadcaster
	clock     *clockwork.FakeClock
	voter     uuid.UUID
	owner     uuid.UUID
	sub       *domain.Submission
	challenge *domain.Challenge
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	now := time.Date(2026, 5, 10, 15, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)

	challenge := &domain.Challenge{
		ID:             uuid.New(),
		Phase:          domain.PhaseVoting,
		VotingOpensAt:  now.Add(-time.Hour),
		VotingClosesAt: now.Add(24 * time.Hour),
	}
	owner := uuid.New()
	sub := &domain.Submission{
		ID:          uuid.New(),
		OwnerID:     owner,
		ChallengeID: challenge.ID,
		Moderation:  domain.ModerationApproved,
		CreatedAt:   now.Add(-2 * time.Hour),
	}

	subs := &fakeSubmissions{subs: map[uuid.UUID]*domain.Submission{sub.ID: sub}}
	challenges := &fakeChallenges{challenges: map[uuid.UUID]*domain.Challenge{challenge.ID: challenge}}
	store := &fakeVoteStore{
		subs:     subs,
		votes:    make(map[string]domain.Vote),
		balances: make(map[uuid.UUID]int),
	}
	bcast := &fakeBroadcaster{}

	return &fixture{
		ledger:    NewLedger(subs, challenges, store, nil, bcast, clock),
		store:     store,
		bcast:     bcast,
		clock:     clock,
		voter:     uuid.New(),
		owner:     owner,
		sub:       sub,
		challenge: challenge,
	}
}

// --- Tests ---

func TestCast_RecordsVoteAndRecomputesScore(t *testing.T) {
	f := newFixture(t)

	result, err := f.ledger.Cast(context.Background(), domain.CastVoteCommand{
		VoterID:      f.voter,
		SubmissionID: f.sub.ID,
		Value:        1,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.VoteCount)
	assert.InDelta(t, ranking.Score(1, 0), result.WilsonScore, 1e-9)
	assert.Equal(t, domain.SourceOrganic, result.Vote.Source)
	assert.Equal(t, 1, f.bcast.updates)
	assert.Equal(t, 1, f.sub.UpVotes)
}

func TestCast_SecondAttemptIsDuplicate(t *testing.T) {
	f := newFixture(t)
	cmd := domain.CastVoteCommand{VoterID: f.voter, SubmissionID: f.sub.ID, Value: 1}

	_, err := f.ledger.Cast(context.Background(), cmd)
	require.NoError(t, err)

	_, err = f.ledger.Cast(context.Background(), cmd)
	assert.ErrorIs(t, err, domain.ErrDuplicateVote)

	// Exactly one vote row and no double counting.
	assert.Len(t, f.store.votes, 1)
	assert.Equal(t, 1, f.sub.VoteCount)
}

func TestCast_SelfVoteRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.Cast(context.Background(), domain.CastVoteCommand{
		VoterID:      f.owner,
		SubmissionID: f.sub.ID,
		Value:        1,
	})
	assert.ErrorIs(t, err, domain.ErrSelfVote)
	assert.Empty(t, f.store.votes)
}

func TestCast_UnapprovedSubmissionNotVotable(t *testing.T) {
	f := newFixture(t)
	f.sub.Moderation = domain.ModerationPending

	_, err := f.ledger.Cast(context.Background(), domain.CastVoteCommand{
		VoterID:      f.voter,
		SubmissionID: f.sub.ID,
		Value:        1,
	})
	assert.ErrorIs(t, err, domain.ErrSubmissionNotVotable)
}

func TestCast_ClosedVotingWindowNotVotable(t *testing.T) {
	f := newFixture(t)
	f.challenge.VotingClosesAt = f.clock.Now().Add(-time.Minute)

	_, err := f.ledger.Cast(context.Background(), domain.CastVoteCommand{
		VoterID:      f.voter,
		SubmissionID: f.sub.ID,
		Value:        -1,
	})
	assert.ErrorIs(t, err, domain.ErrSubmissionNotVotable)
}

func TestCast_CompletedChallengeFrozen(t *testing.T) {
	f := newFixture(t)
	f.challenge.Phase = domain.PhaseCompleted

	_, err := f.ledger.Cast(context.Background(), domain.CastVoteCommand{
		VoterID:      f.voter,
		SubmissionID: f.sub.ID,
		Value:        1,
	})
	assert.ErrorIs(t, err, domain.ErrSubmissionNotVotable)
	assert.Empty(t, f.store.votes)
}

func TestCast_SuperVoteWithZeroBalance(t *testing.T) {
	f := newFixture(t)
	f.store.balances[f.voter] = 0

	_, err := f.ledger.Cast(context.Background(), domain.CastVoteCommand{
		VoterID:      f.voter,
		SubmissionID: f.sub.ID,
		Value:        1,
		IsSuper:      true,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientSuperVotes)

	// All-or-nothing: no vote row, no counter mutation.
	assert.Empty(t, f.store.votes)
	assert.Equal(t, 0, f.sub.VoteCount)
	assert.Equal(t, 0, f.sub.SuperVoteCount)
	assert.Equal(t, 0, f.bcast.updates)
}

func TestCast_SuperVoteDecrementsBalanceOnce(t *testing.T) {
	f := newFixture(t)
	f.store.balances[f.voter] = 2

	result, err := f.ledger.Cast(context.Background(), domain.CastVoteCommand{
		VoterID:      f.voter,
		SubmissionID: f.sub.ID,
		Value:        1,
		IsSuper:      true,
		Source:       domain.SourceRewardedAd,
	})
	require.NoError(t, err)

	assert.True(t, result.Vote.IsSuper)
	assert.Equal(t, domain.SourceRewardedAd, result.Vote.Source)
	assert.Equal(t, 1, f.store.balances[f.voter])
	assert.Equal(t, 1, f.sub.SuperVoteCount)
	// Super vote counts as three equivalent up-votes in the score.
	assert.InDelta(t, ranking.Score(3, 0), result.WilsonScore, 1e-9)
}

func TestCast_SuperDownvoteRejected(t *testing.T) {
	f := newFixture(t)
	f.store.balances[f.voter] = 3

	_, err := f.ledger.Cast(context.Background(), domain.CastVoteCommand{
		VoterID:      f.voter,
		SubmissionID: f.sub.ID,
		Value:        -1,
		IsSuper:      true,
	})
	assert.ErrorIs(t, err, domain.ErrSubmissionNotVotable)

	// The super weight must never attach to a downvote: no row, no balance
	// spend, and the score stays where it was.
	assert.Empty(t, f.store.votes)
	assert.Equal(t, 3, f.store.balances[f.voter])
	assert.Equal(t, 0, f.sub.SuperVoteCount)
	assert.Zero(t, f.sub.WilsonScore)
}

func TestCast_InvalidValueRejected(t *testing.T) {
	f := newFixture(t)

	for _, v := range []int{0, 2, -2, 42} {
		_, err := f.ledger.Cast(context.Background(), domain.CastVoteCommand{
			VoterID:      f.voter,
			SubmissionID: f.sub.ID,
			Value:        v,
		})
		assert.ErrorIs(t, err, domain.ErrSubmissionNotVotable, "value %d", v)
	}
}

func TestCast_RateLimited(t *testing.T) {
	f := newFixture(t)
	limited := NewLedger(
		f.store.subs,
		&fakeChallenges{challenges: map[uuid.UUID]*domain.Challenge{f.challenge.ID: f.challenge}},
		f.store, denyLimiter{}, nil, f.clock,
	)

	_, err := limited.Cast(context.Background(), domain.CastVoteCommand{
		VoterID:      f.voter,
		SubmissionID: f.sub.ID,
		Value:        1,
	})
	assert.ErrorIs(t, err, domain.ErrVoteRateLimited)
	assert.Empty(t, f.store.votes)
}

func TestCast_DownvoteLowersScoreBelowUpvoteOnly(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.Cast(context.Background(), domain.CastVoteCommand{
		VoterID: f.voter, SubmissionID: f.sub.ID, Value: 1,
	})
	require.NoError(t, err)
	scoreAfterUp := f.sub.WilsonScore

	_, err = f.ledger.Cast(context.Background(), domain.CastVoteCommand{
		VoterID: uuid.New(), SubmissionID: f.sub.ID, Value: -1,
	})
	require.NoError(t, err)

	assert.Less(t, f.sub.WilsonScore, scoreAfterUp)
	assert.Equal(t, 2, f.sub.VoteCount)
}
