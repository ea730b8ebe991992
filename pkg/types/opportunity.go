package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Direction names which market's YES leg is bought. The other market
// supplies the NO leg.
type Direction string

const (
	DirectionAYesBNo Direction = "A_YES_B_NO"
	DirectionBYesANo Direction = "B_YES_A_NO"
)

// Opportunity is a priced cross-venue arbitrage: buying YES on one venue
// and NO on another costs less than the guaranteed 1.0 payout net of fees.
type Opportunity struct {
	ID        string          `json:"id"`
	MarketA   *MarketSnapshot `json:"market_a"`
	MarketB   *MarketSnapshot `json:"market_b"`
	Direction Direction       `json:"direction"`

	// CombinedPrice is the sum of the two ask legs. EdgePct is
	// (1 - combined - 2*fee) * 100, already net of fees.
	CombinedPrice float64 `json:"combined_price"`
	EdgePct       float64 `json:"edge_pct"`

	// AskSizeMin is the smaller of the two top-of-book sizes, or zero when
	// neither venue exposes size.
	AskSizeMin float64 `json:"ask_size_min,omitempty"`

	// Confidence is carried over from the match that produced the pair.
	Confidence float64 `json:"confidence"`

	FirstSeenAt    time.Time `json:"first_seen_at"`
	LastSeenAt     time.Time `json:"last_seen_at"`
	LastNotifiedAt time.Time `json:"last_notified_at,omitempty"`
}

// NewOpportunity stamps identity and timestamps on a freshly evaluated
// opportunity.
func NewOpportunity(a, b *MarketSnapshot, dir Direction, combined, edgePct, askSizeMin, confidence float64) *Opportunity {
	now := time.Now()
	return &Opportunity{
		ID:            uuid.New().String(),
		MarketA:       a,
		MarketB:       b,
		Direction:     dir,
		CombinedPrice: combined,
		EdgePct:       edgePct,
		AskSizeMin:    askSizeMin,
		Confidence:    confidence,
		FirstSeenAt:   now,
		LastSeenAt:    now,
	}
}

// OpportunityKey builds the identity an opportunity for this pair and
// direction would carry, without evaluating it.
func OpportunityKey(a, b *MarketSnapshot, dir Direction) string {
	return fmt.Sprintf("%s:%s|%s:%s|%s",
		a.Venue, a.VenueMarketID,
		b.Venue, b.VenueMarketID,
		dir)
}

// Key identifies an opportunity across scans. Two evaluations of the same
// market pair in the same direction share a key regardless of price.
func (o *Opportunity) Key() string {
	return OpportunityKey(o.MarketA, o.MarketB, o.Direction)
}

// Legs returns the snapshot whose YES is bought and the snapshot whose NO
// is bought, in that order.
func (o *Opportunity) Legs() (yes, no *MarketSnapshot) {
	if o.Direction == DirectionAYesBNo {
		return o.MarketA, o.MarketB
	}
	return o.MarketB, o.MarketA
}
