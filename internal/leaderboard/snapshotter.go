// Package leaderboard freezes immutable per-period rankings. A snapshot is a
// generation of rows for one (challenge, period, date) key; re-running the
// same key replaces the generation wholesale instead of duplicating rows.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/KEN19920421/30sec-challenge-sub001/internal/domain"
	"github.com/KEN19920421/30sec-challenge-sub001/internal/metrics"
	"github.com/KEN19920421/30sec-challenge-sub001/internal/ranking"
)

type Snapshotter struct {
	votes     domain.VoteStore
	snapshots domain.SnapshotStore
	clock     clockwork.Clock
}

func NewSnapshotter(votes domain.VoteStore, snapshots domain.SnapshotStore, clock clockwork.Clock) *Snapshotter {
	return &Snapshotter{votes: votes, snapshots: snapshots, clock: clock}
}

// Snapshot freezes the ranking for (challengeID, period, asOf). The period
// window applies to vote timestamps: a weekly snapshot scores only votes cast
// in the trailing seven days before asOf, regardless of when the job runs.
// Returns the number of rows written.
func (s *Snapshotter) Snapshot(ctx context.Context, challengeID uuid.UUID, period domain.Period, asOf time.Time) (int, error) {
	if !period.Valid() {
		return 0, fmt.Errorf("invalid period %q", period)
	}

	start := s.clock.Now()
	since := period.Window(asOf)

	tallies, err := s.votes.TallyWindow(ctx, challengeID, since)
	if err != nil {
		metrics.SnapshotRunsTotal.WithLabelValues(string(period), "error").Inc()
		return 0, fmt.Errorf("failed to tally votes: %w", err)
	}

	rows := Rank(challengeID, period, dateOf(asOf), tallies)
	for i := range rows {
		rows[i].CreatedAt = start
	}

	if err := s.snapshots.ReplaceGeneration(ctx, challengeID, period, dateOf(asOf), rows); err != nil {
		result := "error"
		if isConflict(err) {
			result = "conflict"
		}
		metrics.SnapshotRunsTotal.WithLabelValues(string(period), result).Inc()
		return 0, err
	}

	metrics.SnapshotRunsTotal.WithLabelValues(string(period), "ok").Inc()
	metrics.SnapshotDuration.WithLabelValues(string(period)).Observe(s.clock.Since(start).Seconds())
	return len(rows), nil
}

// Rank scores windowed tallies and orders them by the display tie-break rule
// (score desc, windowed vote count desc, created_at asc). Pure.
func Rank(challengeID uuid.UUID, period domain.Period, date time.Time, tallies []domain.WindowTally) []domain.LeaderboardRow {
	type scored struct {
		tally domain.WindowTally
		score float64
		count int
	}

	items := make([]scored, 0, len(tallies))
	for _, t := range tallies {
		items = append(items, scored{
			tally: t,
			score: ranking.ScoreWeighted(t.UpVotes, t.DownVotes, t.SuperVotes),
			count: t.UpVotes + t.DownVotes,
		})
	}

	ranking.Sort(items, func(it scored) ranking.Entry {
		return ranking.Entry{Score: it.score, VoteCount: it.count, CreatedAt: it.tally.CreatedAt}
	})

	rows := make([]domain.LeaderboardRow, 0, len(items))
	for i, it := range items {
		rows = append(rows, domain.LeaderboardRow{
			ChallengeID:  challengeID,
			Period:       period,
			SnapshotDate: date,
			SubmissionID: it.tally.SubmissionID,
			Rank:         i + 1,
			Score:        it.score,
			VoteCount:    it.count,
		})
	}
	return rows
}

// dateOf truncates to the UTC calendar date the snapshot is keyed on.
func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func isConflict(err error) bool {
	return errors.Is(err, domain.ErrSnapshotConflict)
}
