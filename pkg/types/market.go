package types

import (
	"time"
)

// MarketSnapshot is a point-in-time view of one binary market on one venue.
// Prices are fractions of a unit payout: a YES ask of 0.40 costs 0.40 per
// 1.00 of exposure.
type MarketSnapshot struct {
	Venue         Venue  `json:"venue"`
	VenueMarketID string `json:"venue_market_id"`
	Title         string `json:"title"`

	YesBid float64 `json:"yes_bid,omitempty"`
	YesAsk float64 `json:"yes_ask"`
	NoBid  float64 `json:"no_bid,omitempty"`
	NoAsk  float64 `json:"no_ask"`

	// AskSizeYes and AskSizeNo are the quantities available at top-of-book.
	// Zero means the venue did not expose size.
	AskSizeYes float64 `json:"ask_size_yes,omitempty"`
	AskSizeNo  float64 `json:"ask_size_no,omitempty"`

	LiquidityUSD float64 `json:"liquidity_usd,omitempty"`
	Volume24hUSD float64 `json:"volume_24h_usd,omitempty"`

	// Derived marks snapshots whose NO side was computed from the YES book
	// because the venue only exposes one side. Derived quotes hide real
	// spread, so the evaluator holds them to a stricter threshold.
	Derived bool `json:"derived,omitempty"`

	// EndTime is the event's resolution deadline. Zero means unknown.
	EndTime time.Time `json:"end_time,omitempty"`

	URL string `json:"url,omitempty"`

	FetchedAt time.Time `json:"fetched_at"`
}

// Key returns the snapshot's identity across the whole scanner.
func (m *MarketSnapshot) Key() string {
	return string(m.Venue) + ":" + m.VenueMarketID
}

// HasQuotes reports whether both asks are present and inside (0,1).
// Snapshots failing this check are dropped before evaluation.
func (m *MarketSnapshot) HasQuotes() bool {
	return m.YesAsk > 0 && m.YesAsk < 1 && m.NoAsk > 0 && m.NoAsk < 1
}

// DeriveNoSide fills the NO book from the YES book (no_ask = 1 - yes_bid,
// no_bid = 1 - yes_ask) and marks the snapshot derived. It is a no-op when
// the YES side is empty.
func (m *MarketSnapshot) DeriveNoSide() {
	if m.YesBid <= 0 && m.YesAsk <= 0 {
		return
	}
	if m.YesBid > 0 {
		m.NoAsk = 1 - m.YesBid
	}
	if m.YesAsk > 0 {
		m.NoBid = 1 - m.YesAsk
	}
	m.Derived = true
}

// Ask returns the buy price for the given side.
func (m *MarketSnapshot) Ask(side Side) float64 {
	if side == SideYes {
		return m.YesAsk
	}
	return m.NoAsk
}

// AskSize returns the top-of-book quantity for the given side. Zero means
// the venue did not expose size.
func (m *MarketSnapshot) AskSize(side Side) float64 {
	if side == SideYes {
		return m.AskSizeYes
	}
	return m.AskSizeNo
}
