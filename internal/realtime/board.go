package realtime

import (
	"sync"
	"time"

	"github.com/crossvenue/arbscan/pkg/types"
)

// liveQuote holds the latest streamed levels for one market. Sides arrive
// independently; a side never streamed stays absent rather than zero.
type liveQuote struct {
	yesBid, yesAsk float64
	noBid, noAsk   float64
	hasYes, hasNo  bool
	updatedAt      time.Time
}

// Board is the shared live-quote store every venue worker writes into.
// Evaluations overlay board quotes onto scan-time snapshots, so a pair is
// always priced with the freshest data either side has produced.
type Board struct {
	mu     sync.RWMutex
	quotes map[string]liveQuote
}

// NewBoard creates an empty board.
func NewBoard() *Board {
	return &Board{quotes: make(map[string]liveQuote)}
}

// Apply folds one stream update into the board. All updates for a market
// pass through its venue's single ingest loop, so per-market ordering is
// the stream's arrival order.
func (b *Board) Apply(u types.QuoteUpdate) {
	key := string(u.Venue) + ":" + u.VenueMarketID

	b.mu.Lock()
	defer b.mu.Unlock()

	lq := b.quotes[key]
	switch u.Side {
	case types.SideYes:
		lq.yesBid, lq.yesAsk = u.BestBid, u.BestAsk
		lq.hasYes = true
	case types.SideNo:
		lq.noBid, lq.noAsk = u.BestBid, u.BestAsk
		lq.hasNo = true
	}
	if u.Timestamp.After(lq.updatedAt) {
		lq.updatedAt = u.Timestamp
	}
	b.quotes[key] = lq
}

// Overlay returns a copy of snap with live quotes folded in, or snap itself
// when the board holds nothing for it. A leg whose NO book was derived at
// scan time is re-derived from the live YES book and stays marked derived;
// a streamed NO book clears the mark.
func (b *Board) Overlay(snap *types.MarketSnapshot) *types.MarketSnapshot {
	if snap == nil {
		return nil
	}

	b.mu.RLock()
	lq, ok := b.quotes[snap.Key()]
	b.mu.RUnlock()
	if !ok {
		return snap
	}

	merged := *snap
	if lq.hasYes {
		merged.YesBid, merged.YesAsk = lq.yesBid, lq.yesAsk
	}
	switch {
	case lq.hasNo:
		merged.NoBid, merged.NoAsk = lq.noBid, lq.noAsk
		merged.Derived = false
	case merged.Derived && lq.hasYes:
		merged.DeriveNoSide()
	}
	if lq.updatedAt.After(merged.FetchedAt) {
		merged.FetchedAt = lq.updatedAt
	}
	return &merged
}

// Len returns the number of markets with at least one live side.
func (b *Board) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.quotes)
}
