package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/KEN19920421/30sec-challenge-sub001/internal/app"
	"github.com/KEN19920421/30sec-challenge-sub001/internal/boost"
	"github.com/KEN19920421/30sec-challenge-sub001/internal/config"
	"github.com/KEN19920421/30sec-challenge-sub001/internal/database"
	"github.com/KEN19920421/30sec-challenge-sub001/internal/leaderboard"
	"github.com/KEN19920421/30sec-challenge-sub001/internal/logging"
	"github.com/KEN19920421/30sec-challenge-sub001/internal/queue"
	"github.com/KEN19920421/30sec-challenge-sub001/internal/redis"
	"github.com/KEN19920421/30sec-challenge-sub001/internal/server"
	"github.com/KEN19920421/30sec-challenge-sub001/internal/vote"
	"github.com/KEN19920421/30sec-challenge-sub001/internal/websocket"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.RunMigrations(ctx, pool); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	return pool
}

func setupRedis(cfg *config.Config) *redis.Client {
	client, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *server.Server, hub *websocket.Hub, cancelJobs context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("shutdown signal received, cleaning up")

		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		hub.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("application starting", "env", cfg.AppEnv, "port", cfg.Port)

	pool := setupDB(cfg)
	defer pool.Close()

	redisClient := setupRedis(cfg)
	defer func() { _ = redisClient.Close() }()

	// Repositories
	challengeRepo := database.NewChallengeRepo(pool)
	submissionRepo := database.NewSubmissionRepo(pool)
	voteRepo := database.NewVoteRepo(pool)
	queueRepo := database.NewQueueRepo(pool)
	boostRepo := database.NewBoostRepo(pool)
	snapshotRepo := database.NewSnapshotRepo(pool)
	balanceRepo := database.NewBalanceRepo(pool)

	snapshots := redis.NewLeaderboardCache(redisClient, snapshotRepo)
	limiter := redis.NewVoteRateLimiter(redisClient, clock, cfg.VoteRateCapacity, cfg.VoteRatePerMinute)

	// Domain components
	hub := websocket.NewHub()
	ledger := vote.NewLedger(submissionRepo, challengeRepo, voteRepo, limiter, hub, clock)
	builder := queue.NewBuilder(queueRepo, clock)
	boostEngine := boost.NewEngine(boostRepo, submissionRepo, database.NewCoinLedger(pool), clock)
	snapshotter := leaderboard.NewSnapshotter(voteRepo, snapshots, clock)

	appSvc := app.NewService(ledger, builder, boostEngine, snapshotter, snapshots,
		submissionRepo, challengeRepo, balanceRepo, clock)

	// Background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	scheduler := leaderboard.NewScheduler(snapshotter, challengeRepo, clock, cfg.SnapshotInterval)
	go scheduler.Run(jobCtx)
	sweeper := boost.NewSweeper(boostRepo, challengeRepo, clock, cfg.BoostSyncInterval)
	go sweeper.Run(jobCtx)

	srv := server.NewServer(cfg, appSvc, hub, pool, redisClient)
	done := runGracefulShutdown(srv, hub, cancelJobs)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	<-done
}
