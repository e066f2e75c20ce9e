package boost

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/KEN19920421/30sec-challenge-sub001/internal/domain"
)

const defaultSweepInterval = time.Minute

// Sweeper periodically recomputes submissions' boost_score columns so expired
// boosts fall out of feed ordering even when no new purchase touches the row.
type Sweeper struct {
	store      domain.BoostStore
	challenges domain.ChallengeRepository
	clock      clockwork.Clock
	interval   time.Duration
}

// NewSweeper creates a sweeper. A non-positive interval falls back to the
// default of one minute.
func NewSweeper(store domain.BoostStore, challenges domain.ChallengeRepository, clock clockwork.Clock, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Sweeper{store: store, challenges: challenges, clock: clock, interval: interval}
}

// Run starts the sweep loop. It blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	challenges, err := s.challenges.ListInVoting(ctx)
	if err != nil {
		slog.WarnContext(ctx, "boost sweep: challenge listing failed", "error", err)
		return
	}

	now := s.clock.Now()
	for i := range challenges {
		if err := s.store.SyncBoostScores(ctx, challenges[i].ID, now); err != nil {
			slog.WarnContext(ctx, "boost sweep: sync failed",
				"challenge_id", challenges[i].ID, "error", err)
		}
	}
}
