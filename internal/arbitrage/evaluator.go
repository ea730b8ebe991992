// Package arbitrage prices matched market pairs and keeps the shared book
// of live opportunities. An opportunity exists when buying YES on one
// venue and NO on the other costs less than the guaranteed payout net of
// both venues' fees.
package arbitrage

import (
	"time"

	"github.com/crossvenue/arbscan/pkg/types"
	"go.uber.org/zap"
)

// Defaults applied by NewEvaluator for unset config fields.
const (
	DefaultThresholdPct      = 2.0
	DefaultFeePerLeg         = 0.005
	DefaultDerivedPenaltyPct = 1.0
	DefaultMaxEndTimeGap     = 30 * 24 * time.Hour
)

// Config holds evaluator configuration. Thresholds are net edge in
// percentage points; fees are fractions of notional per leg.
type Config struct {
	ThresholdPct float64
	FeePerLeg    float64

	// DerivedPenaltyPct is added to the threshold when the NO leg of a
	// direction was derived from a one-sided book, since derived quotes
	// hide the real spread.
	DerivedPenaltyPct float64

	// MaxEndTimeGap bounds how far apart the two resolution deadlines may
	// be. Markets further apart are not the same event, whatever their
	// titles say.
	MaxEndTimeGap time.Duration

	Logger *zap.Logger
}

// Evaluator prices pairs. It is stateless and safe for concurrent use.
type Evaluator struct {
	cfg    Config
	logger *zap.Logger
}

// NewEvaluator creates an evaluator, filling unset config fields with the
// package defaults.
func NewEvaluator(cfg Config) *Evaluator {
	if cfg.ThresholdPct == 0 {
		cfg.ThresholdPct = DefaultThresholdPct
	}
	if cfg.FeePerLeg == 0 {
		cfg.FeePerLeg = DefaultFeePerLeg
	}
	if cfg.DerivedPenaltyPct == 0 {
		cfg.DerivedPenaltyPct = DefaultDerivedPenaltyPct
	}
	if cfg.MaxEndTimeGap == 0 {
		cfg.MaxEndTimeGap = DefaultMaxEndTimeGap
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Evaluator{cfg: cfg, logger: logger}
}

// Evaluate prices both directions of a pair and returns the better
// opportunity at or above the effective threshold, or nil. At most one
// direction is ever returned for a pair.
func (e *Evaluator) Evaluate(pair types.MatchPair) *types.Opportunity {
	EvaluationsTotal.Inc()

	a, b := pair.A, pair.B
	if a == nil || b == nil {
		SkipsTotal.WithLabelValues("missing_snapshot").Inc()
		return nil
	}

	if !a.EndTime.IsZero() && !b.EndTime.IsZero() {
		gap := a.EndTime.Sub(b.EndTime)
		if gap < 0 {
			gap = -gap
		}
		if gap > e.cfg.MaxEndTimeGap {
			SkipsTotal.WithLabelValues("end_time_gap").Inc()
			e.logger.Debug("end-time-gap-too-wide",
				zap.String("a", a.Key()),
				zap.String("b", b.Key()),
				zap.Duration("gap", gap))
			return nil
		}
	}

	best := e.direction(pair, types.DirectionAYesBNo)
	if alt := e.direction(pair, types.DirectionBYesANo); alt != nil && (best == nil || alt.EdgePct > best.EdgePct) {
		best = alt
	}
	if best == nil {
		return nil
	}

	OpportunitiesFoundTotal.WithLabelValues(string(best.Direction)).Inc()
	EdgePct.Observe(best.EdgePct)

	e.logger.Info("opportunity-found",
		zap.String("a", a.Key()),
		zap.String("b", b.Key()),
		zap.String("direction", string(best.Direction)),
		zap.Float64("combined", best.CombinedPrice),
		zap.Float64("edge-pct", best.EdgePct),
		zap.Float64("confidence", best.Confidence))

	return best
}

// EvaluateAll prices every pair and collects the emissions.
func (e *Evaluator) EvaluateAll(pairs []types.MatchPair) []*types.Opportunity {
	var opps []*types.Opportunity
	for _, pair := range pairs {
		if opp := e.Evaluate(pair); opp != nil {
			opps = append(opps, opp)
		}
	}
	return opps
}

// direction prices one leg assignment. The YES ask comes from one side
// and the NO ask from the other; both must be real, in-range quotes.
func (e *Evaluator) direction(pair types.MatchPair, dir types.Direction) *types.Opportunity {
	yes, no := pair.A, pair.B
	if dir == types.DirectionBYesANo {
		yes, no = pair.B, pair.A
	}

	yesAsk := yes.Ask(types.SideYes)
	noAsk := no.Ask(types.SideNo)
	if !validQuote(yesAsk) || !validQuote(noAsk) {
		SkipsTotal.WithLabelValues("missing_quote").Inc()
		return nil
	}

	combined := yesAsk + noAsk
	edgePct := (1 - combined - 2*e.cfg.FeePerLeg) * 100

	if edgePct < e.EffectiveThreshold(no.Derived) {
		SkipsTotal.WithLabelValues("below_threshold").Inc()
		return nil
	}

	askSizeMin := minPositive(yes.AskSize(types.SideYes), no.AskSize(types.SideNo))

	return types.NewOpportunity(pair.A, pair.B, dir, combined, edgePct, askSizeMin, pair.Confidence)
}

// EffectiveThreshold is the configured threshold, raised by the derived
// penalty when the NO leg's book was derived rather than fetched.
func (e *Evaluator) EffectiveThreshold(derivedNoLeg bool) float64 {
	if derivedNoLeg {
		return e.cfg.ThresholdPct + e.cfg.DerivedPenaltyPct
	}
	return e.cfg.ThresholdPct
}

func validQuote(p float64) bool {
	return p > 0 && p < 1
}

// minPositive treats zero as "size unknown": it returns the smaller of
// the known sizes, or zero when neither is known.
func minPositive(x, y float64) float64 {
	switch {
	case x > 0 && y > 0 && x < y:
		return x
	case x > 0 && y > 0:
		return y
	case x > 0:
		return x
	default:
		return y
	}
}
