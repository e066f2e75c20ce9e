// Package queue builds each voter's ordered, deduplicated queue of
// submissions. The selection policy is the fairness guarantee of the voting
// mechanic: cold-start submissions are prioritized, paid boosts get a capped
// share of slots, and an issued entry is never re-issued or re-ordered.
package queue

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/KEN19920421/30sec-challenge-sub001/internal/domain"
	"github.com/KEN19920421/30sec-challenge-sub001/internal/metrics"
)

// boostShare caps boosted submissions at one slot in four, so a boost raises
// exposure odds without letting paid entries dominate a page.
const boostShare = 4

// overfetchFactor pulls extra candidates so stratification has material to
// choose from even when part of the pool is boosted.
const overfetchFactor = 3

type Builder struct {
	store domain.QueueStore
	clock clockwork.Clock
	group singleflight.Group
}

func NewBuilder(store domain.QueueStore, clock clockwork.Clock) *Builder {
	return &Builder{store: store, clock: clock}
}

// Build returns up to size pending entries for (voterID, challengeID),
// appending newly eligible submissions when the pending page runs short.
// Re-invocation is idempotent: existing entries keep their positions and new
// ones are only appended. A short or empty page is not an error; the caller
// re-polls as new submissions arrive.
func (b *Builder) Build(ctx context.Context, voterID, challengeID uuid.UUID, size int) ([]domain.VoteQueueEntry, error) {
	if size <= 0 {
		return nil, fmt.Errorf("queue size must be positive, got %d", size)
	}

	key := voterID.String() + "/" + challengeID.String()
	v, err, _ := b.group.Do(key, func() (any, error) {
		return b.build(ctx, voterID, challengeID, size)
	})
	if err != nil {
		metrics.QueueBuildsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	entries := v.([]domain.VoteQueueEntry)
	if len(entries) == 0 {
		metrics.QueueBuildsTotal.WithLabelValues("empty").Inc()
	} else {
		metrics.QueueBuildsTotal.WithLabelValues("ok").Inc()
	}
	return entries, nil
}

func (b *Builder) build(ctx context.Context, voterID, challengeID uuid.UUID, size int) ([]domain.VoteQueueEntry, error) {
	pending, err := b.store.ListPending(ctx, voterID, challengeID, size)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending entries: %w", err)
	}
	if len(pending) >= size {
		return pending[:size], nil
	}

	need := size - len(pending)
	candidates, err := b.store.ListEligible(ctx, voterID, challengeID, need*overfetchFactor)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible submissions: %w", err)
	}
	if len(candidates) == 0 {
		return pending, nil
	}

	picked := stratify(candidates, need)

	maxPos, err := b.store.MaxPosition(ctx, voterID, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to read max position: %w", err)
	}

	now := b.clock.Now()
	entries := make([]domain.VoteQueueEntry, 0, len(picked))
	for i, c := range picked {
		entries = append(entries, domain.VoteQueueEntry{
			VoterID:      voterID,
			ChallengeID:  challengeID,
			SubmissionID: c.SubmissionID,
			Position:     maxPos + 1 + i,
			IsVoted:      false,
			CreatedAt:    now,
		})
	}
	if err := b.store.AppendEntries(ctx, entries); err != nil {
		return nil, fmt.Errorf("failed to append queue entries: %w", err)
	}

	metrics.QueueEntriesIssued.Add(float64(len(entries)))
	return append(pending, entries...), nil
}

// Next returns the voter's next unvoted entry, or domain.ErrQueueExhausted
// when every issued entry has been consumed.
func (b *Builder) Next(ctx context.Context, voterID, challengeID uuid.UUID) (*domain.VoteQueueEntry, error) {
	pending, err := b.store.ListPending(ctx, voterID, challengeID, 1)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, domain.ErrQueueExhausted
	}
	return &pending[0], nil
}

// stratify orders candidates by exposure need and interleaves a capped number
// of boosted submissions: at most one slot in boostShare goes to the boosted
// lane, the rest to the lowest-vote-count candidates.
func stratify(candidates []domain.QueueCandidate, need int) []domain.QueueCandidate {
	boosted := make([]domain.QueueCandidate, 0, len(candidates))
	cold := make([]domain.QueueCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.EffectiveBoost > 0 {
			boosted = append(boosted, c)
		} else {
			cold = append(cold, c)
		}
	}

	// Exposure need: fewest votes first, earlier submissions breaking ties.
	sort.SliceStable(cold, func(i, j int) bool {
		if cold[i].VoteCount != cold[j].VoteCount {
			return cold[i].VoteCount < cold[j].VoteCount
		}
		return cold[i].CreatedAt.Before(cold[j].CreatedAt)
	})
	// Boosted lane: strongest boost first.
	sort.SliceStable(boosted, func(i, j int) bool {
		return boosted[i].EffectiveBoost > boosted[j].EffectiveBoost
	})

	boostCap := need / boostShare
	picked := make([]domain.QueueCandidate, 0, need)
	boostUsed := 0
	for len(picked) < need && (len(cold) > 0 || len(boosted) > 0) {
		slot := len(picked)
		takeBoost := slot%boostShare == boostShare-1 && boostUsed < boostCap && len(boosted) > 0
		if !takeBoost && len(cold) == 0 {
			// Cold lane drained; boosted entries fill the remainder.
			takeBoost = len(boosted) > 0
		}
		if takeBoost {
			picked = append(picked, boosted[0])
			boosted = boosted[1:]
			boostUsed++
		} else {
			picked = append(picked, cold[0])
			cold = cold[1:]
		}
	}
	return picked
}
