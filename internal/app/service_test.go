package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KEN19920421/30sec-challenge-sub001/internal/domain"
	"github.com/KEN19920421/30sec-challenge-sub001/internal/leaderboard"
	"github.com/KEN19920421/30sec-challenge-sub001/internal/queue"
)

// --- Fakes ---

type fakeChallenges struct {
	challenge *domain.Challenge
}

func (f *fakeChallenges) GetByID(_ context.Context, id uuid.UUID) (*domain.Challenge, error) {
	if f.challenge != nil && f.challenge.ID == id {
		return f.challenge, nil
	}
	return nil, domain.ErrChallengeNotFound
}

func (f *fakeChallenges) ListInVoting(context.Context) ([]domain.Challenge, error) {
	if f.challenge == nil {
		return nil, nil
	}
	return []domain.Challenge{*f.challenge}, nil
}

type fakeTallies struct {
	mu      sync.Mutex
	tallies []domain.WindowTally
	calls   int
}

func (f *fakeTallies) CastVote(context.Context, domain.CastVoteCommand, time.Time) (*domain.CastVoteResult, error) {
	return nil, nil
}

func (f *fakeTallies) TallyWindow(context.Context, uuid.UUID, time.Time) ([]domain.WindowTally, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.tallies, nil
}

type fakeSnapshots struct {
	mu          sync.Mutex
	generations map[string][]domain.LeaderboardRow
}

func snapKey(challengeID uuid.UUID, period domain.Period, date time.Time) string {
	return fmt.Sprintf("%s/%s/%s", challengeID, period, date.Format("2006-01-02"))
}

func (f *fakeSnapshots) ReplaceGeneration(_ context.Context, challengeID uuid.UUID, period domain.Period, date time.Time, rows []domain.LeaderboardRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.generations == nil {
		f.generations = make(map[string][]domain.LeaderboardRow)
	}
	if len(rows) > 0 {
		f.generations[snapKey(challengeID, period, date)] = rows
	}
	return nil
}

func (f *fakeSnapshots) ListPage(_ context.Context, challengeID uuid.UUID, period domain.Period, date time.Time, afterRank, limit int) ([]domain.LeaderboardRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.LeaderboardRow
	for _, r := range f.generations[snapKey(challengeID, period, date)] {
		if r.Rank > afterRank {
			out = append(out, r)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeSnapshots) LatestDate(_ context.Context, challengeID uuid.UUID, period domain.Period) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest time.Time
	found := false
	for key, rows := range f.generations {
		if len(rows) == 0 {
			continue
		}
		if key[:len(challengeID.String())] != challengeID.String() {
			continue
		}
		if rows[0].Period != period {
			continue
		}
		if rows[0].SnapshotDate.After(latest) {
			latest = rows[0].SnapshotDate
			found = true
		}
	}
	return latest, found, nil
}

type fakeBalances struct {
	remaining int
	lastDay   time.Time
}

func (f *fakeBalances) Remaining(_ context.Context, _ uuid.UUID, day time.Time) (int, error) {
	f.lastDay = day
	return f.remaining, nil
}

func (f *fakeBalances) CreditBonus(_ context.Context, _ uuid.UUID, day time.Time, amount int) (int, error) {
	f.lastDay = day
	f.remaining += amount
	return f.remaining, nil
}

type stubQueueStore struct{}

func (stubQueueStore) ListEligible(context.Context, uuid.UUID, uuid.UUID, int) ([]domain.QueueCandidate, error) {
	return nil, nil
}
func (stubQueueStore) MaxPosition(context.Context, uuid.UUID, uuid.UUID) (int, error) {
	return 0, nil
}
func (stubQueueStore) AppendEntries(context.Context, []domain.VoteQueueEntry) error { return nil }
func (stubQueueStore) ListPending(context.Context, uuid.UUID, uuid.UUID, int) ([]domain.VoteQueueEntry, error) {
	return nil, nil
}

// --- Fixture ---

func newTestService(votingOpen bool) (*Service, *fakeTallies, *fakeSnapshots, *fakeBalances, uuid.UUID) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)

	challengeID := uuid.New()
	challenge := &domain.Challenge{
		ID:             challengeID,
		Phase:          domain.PhaseVoting,
		VotingOpensAt:  now.Add(-time.Hour),
		VotingClosesAt: now.Add(time.Hour),
	}
	if !votingOpen {
		challenge.VotingClosesAt = now.Add(-time.Minute)
	}

	tallies := &fakeTallies{}
	snaps := &fakeSnapshots{}
	balances := &fakeBalances{remaining: domain.DefaultDailySuperVotes}
	challenges := &fakeChallenges{challenge: challenge}

	svc := NewService(
		nil,
		queue.NewBuilder(stubQueueStore{}, clock),
		nil,
		leaderboard.NewSnapshotter(tallies, snaps, clock),
		snaps,
		nil,
		challenges,
		balances,
		clock,
	)
	return svc, tallies, snaps, balances, challengeID
}

// --- Tests ---

func TestLeaderboard_BuildsGenerationOnDemand(t *testing.T) {
	svc, tallies, snaps, _, challengeID := newTestService(true)
	subID := uuid.New()
	tallies.tallies = []domain.WindowTally{
		{SubmissionID: subID, UpVotes: 18, DownVotes: 2, CreatedAt: time.Now()},
	}

	rows, date, err := svc.Leaderboard(context.Background(), challengeID, domain.PeriodAllTime, 0, 50)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, subID, rows[0].SubmissionID)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC), date)
	assert.Len(t, snaps.generations, 1)
}

func TestLeaderboard_ServesExistingGenerationWithoutRebuild(t *testing.T) {
	svc, tallies, _, _, challengeID := newTestService(true)
	tallies.tallies = []domain.WindowTally{
		{SubmissionID: uuid.New(), UpVotes: 4, CreatedAt: time.Now()},
	}

	_, _, err := svc.Leaderboard(context.Background(), challengeID, domain.PeriodDaily, 0, 50)
	require.NoError(t, err)
	first := tallies.calls

	_, _, err = svc.Leaderboard(context.Background(), challengeID, domain.PeriodDaily, 0, 50)
	require.NoError(t, err)
	assert.Equal(t, first, tallies.calls, "second read must not rebuild the snapshot")
}

func TestLeaderboard_EmptyChallenge(t *testing.T) {
	svc, _, _, _, challengeID := newTestService(true)

	rows, _, err := svc.Leaderboard(context.Background(), challengeID, domain.PeriodWeekly, 0, 50)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestLeaderboard_InvalidPeriod(t *testing.T) {
	svc, _, _, _, challengeID := newTestService(true)

	_, _, err := svc.Leaderboard(context.Background(), challengeID, domain.Period("monthly"), 0, 50)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monthly")
}

func TestVoteQueue_ClosedVotingRejected(t *testing.T) {
	svc, _, _, _, challengeID := newTestService(false)

	_, err := svc.VoteQueue(context.Background(), uuid.New(), challengeID, 10)
	assert.ErrorIs(t, err, domain.ErrSubmissionNotVotable)
}

func TestVoteQueue_UnknownChallenge(t *testing.T) {
	svc, _, _, _, _ := newTestService(true)

	_, err := svc.VoteQueue(context.Background(), uuid.New(), uuid.New(), 10)
	assert.ErrorIs(t, err, domain.ErrChallengeNotFound)
}

func TestSuperVoteBalance_UsesCurrentDay(t *testing.T) {
	svc, _, _, balances, _ := newTestService(true)

	remaining, err := svc.SuperVoteBalance(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultDailySuperVotes, remaining)
	assert.Equal(t, time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC), balances.lastDay)
}

func TestCreditAdBonus_AddsOneSuperVote(t *testing.T) {
	svc, _, _, _, _ := newTestService(true)

	remaining, err := svc.CreditAdBonus(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultDailySuperVotes+1, remaining)
}
