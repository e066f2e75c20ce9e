package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/KEN19920421/30sec-challenge-sub001/internal/database"
	"github.com/KEN19920421/30sec-challenge-sub001/internal/domain"
	"github.com/KEN19920421/30sec-challenge-sub001/internal/retry"
)

const (
	defaultQueueSize       = 10
	maxQueueSize           = 50
	defaultLeaderboardPage = 50
	maxLeaderboardPage     = 100
)

// castRetryPolicy retries transient storage failures (serialization, dropped
// connections) behind a single user tap. Domain rejections are permanent and
// stop immediately.
var castRetryPolicy = retry.Policy{
	MaxAttempts:    3,
	InitialBackoff: 25 * time.Millisecond,
}

// voterID resolves the caller identity set by the gateway.
func voterID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Request().Header.Get("X-User-ID"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid X-User-ID header")
	}
	return id, nil
}

func pathUUID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// mapDomainError translates the error taxonomy into an HTTP response.
func mapDomainError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrSelfVote):
		return c.JSON(http.StatusForbidden, errBody("self_vote", "you cannot vote on your own submission"))
	case errors.Is(err, domain.ErrDuplicateVote):
		return c.JSON(http.StatusConflict, errBody("duplicate_vote", "you already voted on this submission"))
	case errors.Is(err, domain.ErrInsufficientSuperVotes):
		return c.JSON(http.StatusConflict, errBody("insufficient_super_votes", "no super votes remaining today"))
	case errors.Is(err, domain.ErrInsufficientCoins):
		return c.JSON(http.StatusPaymentRequired, errBody("insufficient_coins", "coin balance too low"))
	case errors.Is(err, domain.ErrSubmissionNotVotable):
		return c.JSON(http.StatusUnprocessableEntity, errBody("not_votable", "submission is not accepting votes"))
	case errors.Is(err, domain.ErrVoteRateLimited):
		return c.JSON(http.StatusTooManyRequests, errBody("rate_limited", "voting too fast, slow down"))
	case errors.Is(err, domain.ErrQueueExhausted):
		return c.JSON(http.StatusNotFound, errBody("queue_exhausted", "no submissions left to vote on"))
	case errors.Is(err, domain.ErrSnapshotConflict):
		return c.JSON(http.StatusConflict, errBody("snapshot_in_progress", "leaderboard is being rebuilt, retry shortly"))
	case errors.Is(err, domain.ErrSubmissionNotFound):
		return c.JSON(http.StatusNotFound, errBody("submission_not_found", "submission not found"))
	case errors.Is(err, domain.ErrChallengeNotFound):
		return c.JSON(http.StatusNotFound, errBody("challenge_not_found", "challenge not found"))
	}

	slog.Error("unhandled request error", "error", err, "path", c.Path())
	return c.JSON(http.StatusInternalServerError, errBody("internal", "internal error"))
}

func errBody(code, message string) map[string]string {
	return map[string]string{"code": code, "message": message}
}

// --- Voting ---

type castVoteRequest struct {
	SubmissionID uuid.UUID `json:"submission_id"`
	Value        int       `json:"value"`
	IsSuper      bool      `json:"is_super"`
	Source       string    `json:"source"`
}

type castVoteResponse struct {
	VoteID      uuid.UUID `json:"vote_id"`
	WilsonScore float64   `json:"wilson_score"`
	VoteCount   int       `json:"vote_count"`
}

func (s *Server) handleCastVote(c echo.Context) error {
	voter, err := voterID(c)
	if err != nil {
		return err
	}
	challengeID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	var req castVoteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.SubmissionID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "submission_id is required")
	}
	if req.Value != 1 && req.Value != -1 {
		return echo.NewHTTPError(http.StatusBadRequest, "value must be 1 or -1")
	}
	if req.IsSuper && req.Value != 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "super votes must be up-votes")
	}

	cmd := domain.CastVoteCommand{
		VoterID:      voter,
		SubmissionID: req.SubmissionID,
		ChallengeID:  challengeID,
		Value:        req.Value,
		IsSuper:      req.IsSuper,
		Source:       domain.VoteSource(req.Source),
	}

	result, err := retry.Do(c.Request().Context(), castRetryPolicy, database.ClassifyTransient,
		func() (*domain.CastVoteResult, error) {
			return s.app.CastVote(c.Request().Context(), cmd)
		})
	if err != nil {
		return mapDomainError(c, err)
	}

	return c.JSON(http.StatusCreated, castVoteResponse{
		VoteID:      result.Vote.ID,
		WilsonScore: result.WilsonScore,
		VoteCount:   result.VoteCount,
	})
}

type queueEntryResponse struct {
	SubmissionID uuid.UUID `json:"submission_id"`
	Position     int       `json:"position"`
}

func (s *Server) handleVoteQueue(c echo.Context) error {
	voter, err := voterID(c)
	if err != nil {
		return err
	}
	challengeID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	size := defaultQueueSize
	if raw := c.QueryParam("size"); raw != "" {
		size, err = strconv.Atoi(raw)
		if err != nil || size < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "size must be a positive integer")
		}
	}
	if size > maxQueueSize {
		size = maxQueueSize
	}

	entries, err := s.app.VoteQueue(c.Request().Context(), voter, challengeID, size)
	if err != nil {
		return mapDomainError(c, err)
	}

	page := make([]queueEntryResponse, 0, len(entries))
	for _, e := range entries {
		page = append(page, queueEntryResponse{SubmissionID: e.SubmissionID, Position: e.Position})
	}
	return c.JSON(http.StatusOK, map[string]any{"entries": page})
}

// --- Boosts ---

type purchaseBoostRequest struct {
	Tier domain.BoostTier `json:"tier"`
}

type purchaseBoostResponse struct {
	BoostID    uuid.UUID `json:"boost_id"`
	Tier       string    `json:"tier"`
	BoostValue float64   `json:"boost_value"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func (s *Server) handlePurchaseBoost(c echo.Context) error {
	purchaser, err := voterID(c)
	if err != nil {
		return err
	}
	submissionID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	var req purchaseBoostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	b, err := s.app.PurchaseBoost(c.Request().Context(), submissionID, purchaser, req.Tier)
	if err != nil {
		if errors.Is(err, domain.ErrSubmissionNotFound) || isDomainSentinel(err) {
			return mapDomainError(c, err)
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusCreated, purchaseBoostResponse{
		BoostID:    b.ID,
		Tier:       string(b.Tier),
		BoostValue: b.BoostValue,
		ExpiresAt:  b.ExpiresAt,
	})
}

// isDomainSentinel reports whether err maps to a taxonomy status. Anything
// else from the boost path is a caller mistake (unknown tier) or internal.
func isDomainSentinel(err error) bool {
	for _, sentinel := range []error{
		domain.ErrSelfVote, domain.ErrDuplicateVote, domain.ErrInsufficientSuperVotes,
		domain.ErrInsufficientCoins, domain.ErrSubmissionNotVotable, domain.ErrVoteRateLimited,
		domain.ErrQueueExhausted, domain.ErrSnapshotConflict,
		domain.ErrSubmissionNotFound, domain.ErrChallengeNotFound,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// --- Reads ---

type leaderboardRowResponse struct {
	SubmissionID uuid.UUID `json:"submission_id"`
	Rank         int       `json:"rank"`
	Score        float64   `json:"score"`
	VoteCount    int       `json:"vote_count"`
}

func (s *Server) handleLeaderboard(c echo.Context) error {
	challengeID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	period := domain.Period(c.QueryParam("period"))
	if period == "" {
		period = domain.PeriodAllTime
	}
	if !period.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "period must be daily, weekly or all_time")
	}

	afterRank := 0
	if raw := c.QueryParam("after_rank"); raw != "" {
		if afterRank, err = strconv.Atoi(raw); err != nil || afterRank < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "after_rank must be a non-negative integer")
		}
	}
	limit := defaultLeaderboardPage
	if raw := c.QueryParam("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
	}
	if limit > maxLeaderboardPage {
		limit = maxLeaderboardPage
	}

	rows, date, err := s.app.Leaderboard(c.Request().Context(), challengeID, period, afterRank, limit)
	if err != nil {
		return mapDomainError(c, err)
	}

	page := make([]leaderboardRowResponse, 0, len(rows))
	for _, r := range rows {
		page = append(page, leaderboardRowResponse{
			SubmissionID: r.SubmissionID,
			Rank:         r.Rank,
			Score:        r.Score,
			VoteCount:    r.VoteCount,
		})
	}

	body := map[string]any{"period": period, "rows": page}
	if !date.IsZero() {
		body["snapshot_date"] = date.Format("2006-01-02")
	}
	return c.JSON(http.StatusOK, body)
}

func (s *Server) handleCurrentRank(c echo.Context) error {
	submissionID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	ranked, err := s.app.CurrentRank(c.Request().Context(), submissionID)
	if err != nil {
		return mapDomainError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"submission_id": ranked.SubmissionID,
		"rank":          ranked.Rank,
		"wilson_score":  ranked.WilsonScore,
		"vote_count":    ranked.VoteCount,
	})
}

// --- Super-vote balance ---

func (s *Server) handleSuperVoteBalance(c echo.Context) error {
	user, err := voterID(c)
	if err != nil {
		return err
	}
	remaining, err := s.app.SuperVoteBalance(c.Request().Context(), user)
	if err != nil {
		return mapDomainError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int{"remaining": remaining})
}

func (s *Server) handleAdBonus(c echo.Context) error {
	user, err := voterID(c)
	if err != nil {
		return err
	}
	remaining, err := s.app.CreditAdBonus(c.Request().Context(), user)
	if err != nil {
		return mapDomainError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int{"remaining": remaining})
}
