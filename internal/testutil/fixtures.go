package testutil

import (
	"sync"
	"time"

	"github.com/crossvenue/arbscan/pkg/types"
)

// CreateTestSnapshot creates a market snapshot with sane bids derived
// from the given asks and an end time 30 days out.
func CreateTestSnapshot(venue types.Venue, id, title string, yesAsk, noAsk float64) *types.MarketSnapshot {
	snap := &types.MarketSnapshot{
		Venue:         venue,
		VenueMarketID: id,
		Title:         title,
		YesAsk:        yesAsk,
		NoAsk:         noAsk,
		Volume24hUSD:  10000,
		LiquidityUSD:  5000,
		EndTime:       time.Now().Add(30 * 24 * time.Hour),
		FetchedAt:     time.Now(),
	}
	if yesAsk > 0.02 {
		snap.YesBid = yesAsk - 0.02
	}
	if noAsk > 0.02 {
		snap.NoBid = noAsk - 0.02
	}
	return snap
}

// CreateDerivedSnapshot creates a snapshot whose NO side was synthesized
// from the YES book.
func CreateDerivedSnapshot(venue types.Venue, id, title string, yesBid, yesAsk float64) *types.MarketSnapshot {
	snap := &types.MarketSnapshot{
		Venue:         venue,
		VenueMarketID: id,
		Title:         title,
		YesBid:        yesBid,
		YesAsk:        yesAsk,
		Volume24hUSD:  10000,
		EndTime:       time.Now().Add(30 * 24 * time.Hour),
		FetchedAt:     time.Now(),
	}
	snap.DeriveNoSide()
	return snap
}

// CreateTestPair pairs two snapshots with the given match confidence.
func CreateTestPair(a, b *types.MarketSnapshot, confidence float64) types.MatchPair {
	return types.MatchPair{A: a, B: b, Confidence: confidence}
}

// CreateTestQuote creates a quote update for the YES side.
func CreateTestQuote(venue types.Venue, id string, bid, ask float64) types.QuoteUpdate {
	return types.QuoteUpdate{
		Venue:         venue,
		VenueMarketID: id,
		Side:          types.SideYes,
		BestBid:       bid,
		BestAsk:       ask,
		Timestamp:     time.Now(),
	}
}

// FakeCache is a deterministic in-memory cache for tests. Unlike the
// ristretto-backed cache it admits every write immediately and ignores
// TTLs.
type FakeCache struct {
	mu      sync.Mutex
	entries map[string]interface{}
}

// NewFakeCache creates an empty FakeCache.
func NewFakeCache() *FakeCache {
	return &FakeCache{entries: make(map[string]interface{})}
}

// Get retrieves a value.
func (f *FakeCache) Get(key string) (interface{}, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.entries[key]
	return v, ok
}

// Set stores a value. The TTL is ignored.
func (f *FakeCache) Set(key string, value interface{}, _ time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = value
	return true
}

// Delete removes a value.
func (f *FakeCache) Delete(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, key)
}

// Clear removes everything.
func (f *FakeCache) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = make(map[string]interface{})
}

// Close is a no-op.
func (f *FakeCache) Close() {}
