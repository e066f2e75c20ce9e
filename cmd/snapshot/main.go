package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/KEN19920421/30sec-challenge-sub001/internal/database"
	"github.com/KEN19920421/30sec-challenge-sub001/internal/domain"
	"github.com/KEN19920421/30sec-challenge-sub001/internal/leaderboard"
)

var allPeriods = []domain.Period{domain.PeriodDaily, domain.PeriodWeekly, domain.PeriodAllTime}

func main() {
	var (
		databaseURL = flag.String("database", os.Getenv("DATABASE_URL"), "PostgreSQL URL (or set DATABASE_URL env)")
		challengeID = flag.String("challenge", "", "Snapshot a single challenge instead of all in voting")
		verbose     = flag.Bool("verbose", false, "Verbose logging")
	)
	flag.Parse()

	if *databaseURL == "" {
		log.Fatal("Database URL required (--database or DATABASE_URL env)")
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.Connect(ctx, *databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := run(ctx, pool, *challengeID); err != nil {
		log.Fatalf("Snapshot run failed: %v", err)
	}
}

func run(ctx context.Context, pool *pgxpool.Pool, singleChallenge string) error {
	voteRepo := database.NewVoteRepo(pool)
	snapshotRepo := database.NewSnapshotRepo(pool)
	challengeRepo := database.NewChallengeRepo(pool)
	snapshotter := leaderboard.NewSnapshotter(voteRepo, snapshotRepo, clockwork.NewRealClock())

	challenges, err := resolveChallenges(ctx, challengeRepo, singleChallenge)
	if err != nil {
		return err
	}
	if len(challenges) == 0 {
		slog.Info("No challenges in voting, nothing to snapshot")
		return nil
	}

	start := time.Now()
	asOf := start
	var frozen, skipped, failed int

	for i := range challenges {
		for _, period := range allPeriods {
			rows, err := snapshotter.Snapshot(ctx, challenges[i].ID, period, asOf)
			switch {
			case errors.Is(err, domain.ErrSnapshotConflict):
				slog.Info("Snapshot already running, skipping",
					"challenge_id", challenges[i].ID, "period", period)
				skipped++
			case err != nil:
				slog.Error("Snapshot failed",
					"challenge_id", challenges[i].ID, "period", period, "error", err)
				failed++
			default:
				slog.Debug("Snapshot frozen",
					"challenge_id", challenges[i].ID, "period", period, "rows", rows)
				frozen++
			}
		}
	}

	slog.Info("Snapshot run summary",
		"challenges", len(challenges),
		"frozen", frozen,
		"skipped", skipped,
		"failed", failed,
		"duration_ms", time.Since(start).Milliseconds())

	if failed > 0 {
		return fmt.Errorf("%d snapshot(s) failed", failed)
	}
	return nil
}

func resolveChallenges(ctx context.Context, repo *database.ChallengeRepo, singleChallenge string) ([]domain.Challenge, error) {
	if singleChallenge == "" {
		challenges, err := repo.ListInVoting(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list challenges: %w", err)
		}
		return challenges, nil
	}

	id, err := uuid.Parse(singleChallenge)
	if err != nil {
		return nil, fmt.Errorf("invalid challenge ID %q: %w", singleChallenge, err)
	}
	challenge, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load challenge %s: %w", id, err)
	}
	return []domain.Challenge{*challenge}, nil
}
