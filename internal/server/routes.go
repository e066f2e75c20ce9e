package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Voting
	s.echo.POST("/api/challenges/:id/votes", s.handleCastVote)
	s.echo.GET("/api/challenges/:id/queue", s.handleVoteQueue)

	// Boosts
	s.echo.POST("/api/submissions/:id/boosts", s.handlePurchaseBoost)

	// Reads
	s.echo.GET("/api/challenges/:id/leaderboard", s.handleLeaderboard)
	s.echo.GET("/api/submissions/:id/rank", s.handleCurrentRank)

	// Super-vote balance
	s.echo.GET("/api/users/me/super-votes", s.handleSuperVoteBalance)
	s.echo.POST("/api/users/me/super-votes/ad-bonus", s.handleAdBonus)

	// Live score stream
	s.echo.GET("/ws/challenges/:id", s.handleScoreStream)
}
