package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossvenue/arbscan/internal/arbitrage"
	"github.com/crossvenue/arbscan/pkg/types"
)

type recordingSink struct {
	mu       sync.Mutex
	name     string
	err      error
	attempts int
	sent     []string
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Send(_ context.Context, opp *types.Opportunity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, opp.Key())
	return nil
}

func (s *recordingSink) sentKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

func leg(venue types.Venue, id, title string, yesAsk, noAsk float64) *types.MarketSnapshot {
	return &types.MarketSnapshot{
		Venue:         venue,
		VenueMarketID: id,
		Title:         title,
		YesBid:        yesAsk - 0.02,
		YesAsk:        yesAsk,
		NoBid:         noAsk - 0.02,
		NoAsk:         noAsk,
		FetchedAt:     time.Now(),
	}
}

func testOpp(idA, idB string, askSizeMin float64) *types.Opportunity {
	a := leg(types.VenuePoly, idA, "Will Trump win the 2028 presidential election?", 0.40, 0.70)
	b := leg(types.VenueKalshi, idB, "Trump wins 2028 presidential election?", 0.50, 0.55)
	return types.NewOpportunity(a, b, types.DirectionAYesBNo, 0.95, 4.0, askSizeMin, 0.85)
}

func TestBroker_CooldownSuppressesRepeats(t *testing.T) {
	sink := &recordingSink{name: "test"}
	book := arbitrage.NewBook()
	b := New(Config{}, book, sink)

	base := time.Now()
	current := base
	b.now = func() time.Time { return current }

	opp := testOpp("p1", "k1", 80)

	b.Notify(context.Background(), opp)
	require.Len(t, sink.sentKeys(), 1)

	// One minute later: inside the five-minute window, silent drop.
	current = base.Add(60 * time.Second)
	b.Notify(context.Background(), opp)
	assert.Len(t, sink.sentKeys(), 1)

	// 400 seconds later: outside the window, fires again.
	current = base.Add(400 * time.Second)
	b.Notify(context.Background(), opp)
	assert.Len(t, sink.sentKeys(), 2)
}

func TestBroker_FailedSinkDoesNotBlockOthers(t *testing.T) {
	failing := &recordingSink{name: "down", err: errors.New("dial tcp: refused")}
	working := &recordingSink{name: "up"}
	b := New(Config{}, arbitrage.NewBook(), failing, working)

	opp := testOpp("p1", "k1", 0)
	b.Notify(context.Background(), opp)

	assert.Equal(t, 1, failing.attempts)
	assert.Empty(t, failing.sentKeys())
	assert.Equal(t, []string{opp.Key()}, working.sentKeys())
}

func TestBroker_StampsBookOnNotify(t *testing.T) {
	sink := &recordingSink{name: "test"}
	book := arbitrage.NewBook()
	b := New(Config{}, book, sink)

	at := time.Now().Add(time.Minute)
	b.now = func() time.Time { return at }

	opp := testOpp("p1", "k1", 0)
	book.ReplaceAll([]*types.Opportunity{opp})

	b.Notify(context.Background(), opp)

	stored := book.Get(opp.Key())
	require.NotNil(t, stored)
	assert.Equal(t, at, stored.LastNotifiedAt)
}

func TestBroker_NotifyKeysSkipsGoneKeys(t *testing.T) {
	sink := &recordingSink{name: "test"}
	book := arbitrage.NewBook()
	b := New(Config{}, book, sink)

	opp := testOpp("p1", "k1", 0)
	book.ReplaceAll([]*types.Opportunity{opp})

	b.NotifyKeys(context.Background(), []string{opp.Key(), "POLY:gone|KALSHI:gone|A_YES_B_NO"})
	assert.Equal(t, []string{opp.Key()}, sink.sentKeys())
}

func TestBroker_IndependentKeysIndependentWindows(t *testing.T) {
	sink := &recordingSink{name: "test"}
	b := New(Config{}, arbitrage.NewBook(), sink)

	first := testOpp("p1", "k1", 0)
	second := testOpp("p2", "k2", 0)

	b.Notify(context.Background(), first)
	b.Notify(context.Background(), second)
	require.Len(t, sink.sentKeys(), 2)

	b.Notify(context.Background(), first)
	b.Notify(context.Background(), second)
	assert.Len(t, sink.sentKeys(), 2)
}

func TestBroker_NilOpportunityIgnored(t *testing.T) {
	sink := &recordingSink{name: "test"}
	b := New(Config{}, arbitrage.NewBook(), sink)

	b.Notify(context.Background(), nil)
	assert.Empty(t, sink.sentKeys())
}
