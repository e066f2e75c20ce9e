// Package boost applies paid visibility boosts to submissions. Boost weight
// is additive and time-limited; it never feeds into the Wilson score, which
// stays a pure function of votes.
package boost

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/KEN19920421/30sec-challenge-sub001/internal/domain"
	"github.com/KEN19920421/30sec-challenge-sub001/internal/metrics"
)

// TierSpec is the price and effect of one boost tier.
type TierSpec struct {
	CostCoins  int
	Duration   time.Duration
	BoostValue float64
}

// tiers is the boost catalog. Values are visibility weights consumed by the
// queue builder, not vote equivalents.
var tiers = map[domain.BoostTier]TierSpec{
	domain.TierBronze: {CostCoins: 50, Duration: time.Hour, BoostValue: 10},
	domain.TierSilver: {CostCoins: 120, Duration: 6 * time.Hour, BoostValue: 25},
	domain.TierGold:   {CostCoins: 400, Duration: 24 * time.Hour, BoostValue: 60},
}

// Engine purchases boosts and reads effective boost weights.
type Engine struct {
	store       domain.BoostStore
	submissions domain.SubmissionRepository
	coins       domain.CoinLedger
	clock       clockwork.Clock
}

func NewEngine(store domain.BoostStore, submissions domain.SubmissionRepository, coins domain.CoinLedger, clock clockwork.Clock) *Engine {
	return &Engine{store: store, submissions: submissions, coins: coins, clock: clock}
}

// Purchase debits the tier price and activates a boost on the submission.
// The debit happens first; if the local insert fails the coins are credited
// back so the purchaser is never charged for a boost that does not exist.
func (e *Engine) Purchase(ctx context.Context, submissionID, purchaserID uuid.UUID, tier domain.BoostTier) (*domain.SubmissionBoost, error) {
	spec, ok := tiers[tier]
	if !ok {
		return nil, fmt.Errorf("unknown boost tier %q", tier)
	}

	sub, err := e.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.Deleted || sub.Moderation == domain.ModerationRejected {
		return nil, domain.ErrSubmissionNotVotable
	}

	reference := fmt.Sprintf("boost:%s:%s", tier, submissionID)
	if err := e.coins.Debit(ctx, purchaserID, spec.CostCoins, reference); err != nil {
		return nil, fmt.Errorf("failed to debit %d coins: %w", spec.CostCoins, err)
	}

	now := e.clock.Now()
	b := &domain.SubmissionBoost{
		ID:           uuid.New(),
		SubmissionID: submissionID,
		PurchaserID:  purchaserID,
		Tier:         tier,
		BoostValue:   spec.BoostValue,
		StartedAt:    now,
		ExpiresAt:    now.Add(spec.Duration),
	}
	if err := e.store.Insert(ctx, b); err != nil {
		if creditErr := e.coins.Credit(ctx, purchaserID, spec.CostCoins, reference); creditErr != nil {
			slog.ErrorContext(ctx, "failed to refund boost purchase",
				"purchaser_id", purchaserID, "amount", spec.CostCoins, "error", creditErr)
		}
		return nil, fmt.Errorf("failed to insert boost: %w", err)
	}

	metrics.BoostPurchasesTotal.WithLabelValues(string(tier)).Inc()
	slog.InfoContext(ctx, "boost purchased",
		"submission_id", submissionID, "purchaser_id", purchaserID,
		"tier", tier, "expires_at", b.ExpiresAt)
	return b, nil
}

// EffectiveBoost sums the values of the submission's non-expired boosts.
// Expiry is binary per boost; an expired boost contributes exactly 0.
func (e *Engine) EffectiveBoost(ctx context.Context, submissionID uuid.UUID) (float64, error) {
	now := e.clock.Now()
	active, err := e.store.ListActive(ctx, submissionID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list active boosts: %w", err)
	}

	var sum float64
	for i := range active {
		if active[i].Active(now) {
			sum += active[i].BoostValue
		}
	}
	return sum, nil
}
