package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/KEN19920421/30sec-challenge-sub001/internal/config"
	"github.com/KEN19920421/30sec-challenge-sub001/internal/domain"
	"github.com/KEN19920421/30sec-challenge-sub001/internal/websocket"
)

// AppService is the application surface the handlers depend on.
type AppService interface {
	CastVote(ctx context.Context, cmd domain.CastVoteCommand) (*domain.CastVoteResult, error)
	VoteQueue(ctx context.Context, voterID, challengeID uuid.UUID, size int) ([]domain.VoteQueueEntry, error)
	PurchaseBoost(ctx context.Context, submissionID, purchaserID uuid.UUID, tier domain.BoostTier) (*domain.SubmissionBoost, error)
	Leaderboard(ctx context.Context, challengeID uuid.UUID, period domain.Period, afterRank, limit int) ([]domain.LeaderboardRow, time.Time, error)
	CurrentRank(ctx context.Context, submissionID uuid.UUID) (*domain.RankedSubmission, error)
	SuperVoteBalance(ctx context.Context, userID uuid.UUID) (int, error)
	CreditAdBonus(ctx context.Context, userID uuid.UUID) (int, error)
	GetChallenge(ctx context.Context, challengeID uuid.UUID) (*domain.Challenge, error)
}

// pinger is the minimal dependency health checks need.
type pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	app       AppService
	hub       *websocket.Hub
	db        pinger
	redis     pinger
	startTime time.Time
}

func NewServer(cfg *config.Config, app AppService, hub *websocket.Hub, db, redis pinger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	srv := &Server{
		echo:      e,
		config:    cfg,
		app:       app,
		hub:       hub,
		db:        db,
		redis:     redis,
		startTime: time.Now(),
	}
	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
