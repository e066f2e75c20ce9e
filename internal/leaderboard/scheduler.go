package leaderboard

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/KEN19920421/30sec-challenge-sub001/internal/domain"
)

const defaultSnapshotInterval = time.Hour

var allPeriods = []domain.Period{domain.PeriodDaily, domain.PeriodWeekly, domain.PeriodAllTime}

// Scheduler runs periodic snapshot batches for every challenge currently in
// its voting phase. It never blocks live vote casting: the snapshotter reads
// through its own transaction and a conflicting concurrent run is skipped.
type Scheduler struct {
	snapshotter *Snapshotter
	challenges  domain.ChallengeRepository
	clock       clockwork.Clock
	interval    time.Duration
}

// NewScheduler creates a scheduler. A non-positive interval falls back to the
// default of one hour.
func NewScheduler(snapshotter *Snapshotter, challenges domain.ChallengeRepository, clock clockwork.Clock, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = defaultSnapshotInterval
	}
	return &Scheduler{
		snapshotter: snapshotter,
		challenges:  challenges,
		clock:       clock,
		interval:    interval,
	}
}

// Run blocks until ctx is cancelled. A cancellation mid-batch stops before
// the next (challenge, period) key; the in-flight key's transaction rolls
// back in the store, never leaving a half-written generation.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.runBatch(ctx)
		}
	}
}

func (s *Scheduler) runBatch(ctx context.Context) {
	challenges, err := s.challenges.ListInVoting(ctx)
	if err != nil {
		slog.WarnContext(ctx, "snapshot batch: challenge listing failed", "error", err)
		return
	}

	asOf := s.clock.Now()
	for i := range challenges {
		for _, period := range allPeriods {
			if ctx.Err() != nil {
				return
			}

			rows, err := s.snapshotter.Snapshot(ctx, challenges[i].ID, period, asOf)
			switch {
			case errors.Is(err, domain.ErrSnapshotConflict):
				slog.InfoContext(ctx, "snapshot already running, skipping",
					"challenge_id", challenges[i].ID, "period", period)
			case err != nil:
				slog.ErrorContext(ctx, "snapshot failed",
					"challenge_id", challenges[i].ID, "period", period, "error", err)
			default:
				slog.DebugContext(ctx, "snapshot frozen",
					"challenge_id", challenges[i].ID, "period", period, "rows", rows)
			}
		}
	}
}
