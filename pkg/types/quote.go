package types

import "time"

// QuoteUpdate is a differential top-of-book update from a venue stream.
// A MarketSnapshot is reconstructed from the latest YES and NO updates
// keyed by VenueMarketID.
type QuoteUpdate struct {
	Venue         Venue
	VenueMarketID string
	Side          Side
	BestBid       float64
	BestAsk       float64
	Timestamp     time.Time
}
