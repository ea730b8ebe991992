// Package realtime re-prices matched pairs from venue streams between
// scans. Each venue with a feed gets one worker; workers share a live
// quote board and reconcile the opportunity book on every threshold
// crossing.
package realtime

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/crossvenue/arbscan/internal/arbitrage"
	"github.com/crossvenue/arbscan/internal/scanner"
	"github.com/crossvenue/arbscan/internal/venues"
	"github.com/crossvenue/arbscan/pkg/types"
)

// DefaultTopN is how many markets per venue, by 24h volume, are streamed
// when the config does not say otherwise.
const DefaultTopN = 150

const eventBuffer = 64

// EventType marks which way an opportunity crossed the threshold.
type EventType string

const (
	EventRising  EventType = "rising"
	EventFalling EventType = "falling"
)

// Event is one threshold crossing produced by a live update.
type Event struct {
	Type        EventType
	Key         string
	Opportunity *types.Opportunity
	At          time.Time
}

// PairSource yields the pair table published by the last scan. Satisfied
// by *scanner.Scanner.
type PairSource interface {
	Pairs() *scanner.PairTable
}

// Config holds realtime configuration.
type Config struct {
	// TopN is the per-venue count of highest-volume markets to stream.
	TopN int
	// Logger for worker events.
	Logger *zap.Logger
}

// Manager owns one worker per streaming venue and the shared board.
type Manager struct {
	cfg     Config
	board   *Board
	book    *arbitrage.Book
	workers map[types.Venue]*Worker
	order   []types.Venue
	events  chan Event
	logger  *zap.Logger
}

// NewManager builds workers for every venue present in streamers. Venues
// without a feed are simply absent; the polling scan covers them.
func NewManager(cfg Config, streamers map[types.Venue]venues.Streamer, pairs PairSource, evaluator *arbitrage.Evaluator, book *arbitrage.Book) *Manager {
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultTopN
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	m := &Manager{
		cfg:     cfg,
		board:   NewBoard(),
		book:    book,
		workers: make(map[types.Venue]*Worker, len(streamers)),
		events:  make(chan Event, eventBuffer),
		logger:  cfg.Logger,
	}
	for _, venue := range types.AllVenues() {
		streamer, ok := streamers[venue]
		if !ok {
			continue
		}
		m.workers[venue] = newWorker(venue, streamer, m.board, pairs, evaluator, book, m.events, cfg.Logger)
		m.order = append(m.order, venue)
	}
	return m
}

// Run starts every worker and blocks until ctx is cancelled. With no
// streaming venues configured it just waits, so the caller's lifecycle
// stays uniform.
func (m *Manager) Run(ctx context.Context) error {
	if len(m.workers) == 0 {
		m.logger.Info("realtime-disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	m.logger.Info("realtime-starting",
		zap.Int("venues", len(m.workers)),
		zap.Int("top-n", m.cfg.TopN))

	g, gctx := errgroup.WithContext(ctx)
	for _, venue := range m.order {
		w := m.workers[venue]
		g.Go(func() error { return w.Run(gctx) })
	}
	return g.Wait()
}

// Events delivers threshold crossings. Events are dropped, with a counter,
// when the consumer falls behind.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// Board exposes the shared live-quote store.
func (m *Manager) Board() *Board {
	return m.board
}

// OnScan refreshes every worker's subscription targets: the venue's top-N
// markets by 24h volume plus every market in a live opportunity.
func (m *Manager) OnScan(result *scanner.ScanResult) {
	if result == nil {
		return
	}
	live := m.liveMarketIDs()
	for _, venue := range m.order {
		targets := subscriptionTargets(result.Catalogs[venue], live[venue], m.cfg.TopN)
		m.workers[venue].Resubscribe(targets)
	}
}

// liveMarketIDs collects per venue the markets participating in a current
// opportunity.
func (m *Manager) liveMarketIDs() map[types.Venue][]string {
	out := make(map[types.Venue][]string)
	for _, opp := range m.book.Snapshot().Opportunities {
		for _, snap := range []*types.MarketSnapshot{opp.MarketA, opp.MarketB} {
			out[snap.Venue] = append(out[snap.Venue], snap.VenueMarketID)
		}
	}
	return out
}

func subscriptionTargets(catalog []*types.MarketSnapshot, live []string, topN int) []string {
	sorted := append([]*types.MarketSnapshot(nil), catalog...)
	venues.SortByVolume(sorted)
	if len(sorted) > topN {
		sorted = sorted[:topN]
	}

	set := make(map[string]struct{}, len(sorted)+len(live))
	for _, snap := range sorted {
		set[snap.VenueMarketID] = struct{}{}
	}
	for _, id := range live {
		set[id] = struct{}{}
	}

	targets := make([]string, 0, len(set))
	for id := range set {
		targets = append(targets, id)
	}
	sort.Strings(targets)
	return targets
}
