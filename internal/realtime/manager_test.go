package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crossvenue/arbscan/internal/arbitrage"
	"github.com/crossvenue/arbscan/internal/scanner"
	"github.com/crossvenue/arbscan/internal/venues"
	"github.com/crossvenue/arbscan/pkg/types"
)

func volSnap(venue types.Venue, id string, volume float64) *types.MarketSnapshot {
	return &types.MarketSnapshot{
		Venue:         venue,
		VenueMarketID: id,
		Title:         id,
		Volume24hUSD:  volume,
	}
}

func TestSubscriptionTargets(t *testing.T) {
	catalog := []*types.MarketSnapshot{
		volSnap(types.VenuePoly, "m3", 100),
		volSnap(types.VenuePoly, "m1", 300),
		volSnap(types.VenuePoly, "m2", 200),
	}

	targets := subscriptionTargets(catalog, []string{"m9", "m2"}, 2)
	assert.Equal(t, []string{"m1", "m2", "m9"}, targets)

	// The input catalog order must survive for other consumers.
	assert.Equal(t, "m3", catalog[0].VenueMarketID)

	assert.Equal(t, []string{"m5"}, subscriptionTargets(nil, []string{"m5"}, 10))
	assert.Empty(t, subscriptionTargets(nil, nil, 10))
}

func TestManager_OnScanResubscribesWorkers(t *testing.T) {
	streamer := newFakeStreamer()
	book := arbitrage.NewBook()
	evaluator := arbitrage.NewEvaluator(arbitrage.Config{})
	table := scanner.NewPairTable(nil)

	m := NewManager(Config{TopN: 2, Logger: zap.NewNop()},
		map[types.Venue]venues.Streamer{types.VenuePoly: streamer},
		stubPairs{table}, evaluator, book)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = m.Run(ctx) }()
	streamer.waitOpened(t)

	// m9 participates in a live opportunity and must stay subscribed even
	// though its volume would not make the top-N cut.
	a := snapWithQuotes(types.VenuePoly, "m9", 0.40, 0.62, false)
	b := snapWithQuotes(types.VenueKalshi, "k1", 0.50, 0.52, false)
	seed := evaluator.Evaluate(types.MatchPair{A: a, B: b, Confidence: 0.9})
	require.NotNil(t, seed)
	book.ReplaceAll([]*types.Opportunity{seed})

	m.OnScan(&scanner.ScanResult{
		Catalogs: map[types.Venue][]*types.MarketSnapshot{
			types.VenuePoly: {
				volSnap(types.VenuePoly, "m1", 300),
				volSnap(types.VenuePoly, "m2", 200),
				volSnap(types.VenuePoly, "m9", 1),
			},
		},
	})

	require.Eventually(t, func() bool {
		last := streamer.stream.lastSubscribe()
		return len(last) == 3 && last[0] == "m1" && last[1] == "m2" && last[2] == "m9"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestManager_EventsFlowFromWorkers(t *testing.T) {
	pair := flatPair()
	streamer := newFakeStreamer()
	book := arbitrage.NewBook()
	evaluator := arbitrage.NewEvaluator(arbitrage.Config{})
	table := scanner.NewPairTable([]types.MatchPair{pair})

	m := NewManager(Config{Logger: zap.NewNop()},
		map[types.Venue]venues.Streamer{types.VenuePoly: streamer},
		stubPairs{table}, evaluator, book)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = m.Run(ctx) }()
	streamer.waitOpened(t)

	streamer.push(types.QuoteUpdate{
		Venue:         types.VenuePoly,
		VenueMarketID: "p1",
		Side:          types.SideYes,
		BestBid:       0.38,
		BestAsk:       0.40,
		Timestamp:     time.Now(),
	})

	ev := waitEvent(t, m.Events())
	assert.Equal(t, EventRising, ev.Type)
	assert.Equal(t, 1, m.Board().Len())
}

func TestManager_NoStreamersIdlesUntilCancel(t *testing.T) {
	m := NewManager(Config{Logger: zap.NewNop()}, nil, stubPairs{scanner.NewPairTable(nil)},
		arbitrage.NewEvaluator(arbitrage.Config{}), arbitrage.NewBook())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("manager did not stop after cancel")
	}
}
