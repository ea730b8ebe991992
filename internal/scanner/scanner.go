// Package scanner runs the periodic cross-venue scan: fetch every catalog in
// parallel, match markets across venue pairs, evaluate matched pairs for
// arbitrage and publish the merged results atomically. One scan iteration is
// the unit of failure; a bad venue degrades the scan, it never aborts it.
package scanner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/crossvenue/arbscan/internal/arbitrage"
	"github.com/crossvenue/arbscan/internal/matching"
	"github.com/crossvenue/arbscan/internal/venues"
	"github.com/crossvenue/arbscan/pkg/types"
)

// Defaults for Config fields left zero.
const (
	DefaultInterval         = 15 * time.Second
	DefaultFetchTimeout     = 15 * time.Second
	DefaultBookFillTimeout  = 10 * time.Second
	DefaultCoolOff          = 30 * time.Second
	DefaultFailureThreshold = 5
	DefaultMissedScans      = 20
)

// Config holds scanner configuration.
type Config struct {
	// Interval is the time between scan starts.
	Interval time.Duration
	// FetchTimeout bounds a single catalog fetch.
	FetchTimeout time.Duration
	// BookFillTimeout bounds a single top-of-book fill for a matched leg.
	BookFillTimeout time.Duration
	// CoolOff is the pause taken once FailureThreshold consecutive scans
	// have failed.
	CoolOff time.Duration
	// FailureThreshold is the consecutive-failure count that triggers a
	// cool-off.
	FailureThreshold int
	// MissedScans is how many consecutive scans an opportunity may be
	// absent before it leaves the book. Values below two drop absentees
	// immediately.
	MissedScans int
	// Logger for scan events.
	Logger *zap.Logger
}

// Scanner orchestrates scan iterations over a fixed set of venue adapters.
type Scanner struct {
	cfg       Config
	adapters  []venues.Adapter
	byVenue   map[types.Venue]venues.Adapter
	matcher   *matching.Matcher
	evaluator *arbitrage.Evaluator
	book      *arbitrage.Book
	logger    *zap.Logger

	state     atomic.Pointer[State]
	pairTable atomic.Pointer[PairTable]
	results   chan *ScanResult
	scanCount atomic.Uint64

	mu       sync.Mutex
	disabled map[types.Venue]string

	consecutiveFailures int
	missedScans         map[string]int
}

// New creates a scanner over the given adapters. Adapter order is preserved
// and determines the order venue pairs are matched in, which keeps repeated
// scans over identical upstream responses byte-identical.
func New(cfg Config, adapters []venues.Adapter, matcher *matching.Matcher, evaluator *arbitrage.Evaluator, book *arbitrage.Book) *Scanner {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.BookFillTimeout <= 0 {
		cfg.BookFillTimeout = DefaultBookFillTimeout
	}
	if cfg.CoolOff <= 0 {
		cfg.CoolOff = DefaultCoolOff
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.MissedScans <= 0 {
		cfg.MissedScans = DefaultMissedScans
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	byVenue := make(map[types.Venue]venues.Adapter, len(adapters))
	for _, a := range adapters {
		byVenue[a.Venue()] = a
	}

	s := &Scanner{
		cfg:         cfg,
		adapters:    adapters,
		byVenue:     byVenue,
		matcher:     matcher,
		evaluator:   evaluator,
		book:        book,
		logger:      cfg.Logger,
		results:     make(chan *ScanResult, 4),
		disabled:    make(map[types.Venue]string),
		missedScans: make(map[string]int),
	}
	s.pairTable.Store(NewPairTable(nil))
	return s
}

// Run scans once immediately, then on every tick until ctx is cancelled.
// Ticks that fire while a scan is still running are coalesced into the next
// one rather than queued.
func (s *Scanner) Run(ctx context.Context) error {
	s.logger.Info("scanner-starting",
		zap.Duration("interval", s.cfg.Interval),
		zap.Int("venues", len(s.adapters)))

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.iterate(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scanner-stopping")
			return ctx.Err()
		case <-ticker.C:
			s.iterate(ctx)
			select {
			case <-ticker.C:
				TicksSkippedTotal.Inc()
			default:
			}
		}
	}
}

// Results delivers one ScanResult per completed iteration. Results are
// dropped, with a warning, when the consumer falls behind.
func (s *Scanner) Results() <-chan *ScanResult {
	return s.results
}

// State returns the most recently published scan state, or nil before the
// first scan completes.
func (s *Scanner) State() *State {
	return s.state.Load()
}

// Pairs returns the pair table published by the last scan. Safe for
// concurrent lock-free reads.
func (s *Scanner) Pairs() *PairTable {
	return s.pairTable.Load()
}

// iterate runs one scan, tracks the consecutive-failure count and fans the
// result out to consumers.
func (s *Scanner) iterate(ctx context.Context) {
	result := s.ScanOnce(ctx)
	if result == nil && ctx.Err() != nil {
		return
	}

	if result == nil || result.AllFailed() {
		s.consecutiveFailures++
		s.logger.Warn("scan-failed",
			zap.Int("consecutive-failures", s.consecutiveFailures))
	} else {
		s.consecutiveFailures = 0
	}

	if result != nil {
		select {
		case s.results <- result:
		default:
			s.logger.Warn("results-channel-full",
				zap.Uint64("scan-count", result.ScanCount))
		}
	}

	if s.consecutiveFailures >= s.cfg.FailureThreshold {
		CoolOffsTotal.Inc()
		s.logger.Warn("scan-cool-off",
			zap.Int("consecutive-failures", s.consecutiveFailures),
			zap.Duration("cool-off", s.cfg.CoolOff))
		select {
		case <-ctx.Done():
		case <-time.After(s.cfg.CoolOff):
		}
	}
}

// ScanOnce runs a single scan iteration and returns its result. It never
// panics out; an unexpected failure is logged, counted and reported as nil.
// Cancellation of ctx also returns nil.
func (s *Scanner) ScanOnce(ctx context.Context) (result *ScanResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			ScansTotal.WithLabelValues("panic").Inc()
			s.logger.Error("scan-panic", zap.Any("panic", r))
			result = nil
		}
	}()
	defer func() {
		ScanDuration.Observe(time.Since(start).Seconds())
	}()

	catalogs, states := s.fetchCatalogs(ctx)
	if ctx.Err() != nil {
		return nil
	}

	pairs := s.matchAll(catalogs)
	pairs = s.fillQuotes(ctx, pairs)
	opps := s.evaluator.EvaluateAll(pairs)
	opps = s.carryAbsent(opps)
	newKeys := s.book.ReplaceAll(opps)

	s.pairTable.Store(NewPairTable(pairs))

	count := s.scanCount.Add(1)
	state := &State{
		ScanCount:    count,
		LastScanAt:   start,
		LastScanMS:   time.Since(start).Milliseconds(),
		Venues:       states,
		ThresholdPct: s.evaluator.EffectiveThreshold(false),
	}
	s.state.Store(state)

	result = &ScanResult{
		ScanCount:     count,
		StartedAt:     start,
		Duration:      time.Since(start),
		Venues:        states,
		Catalogs:      catalogs,
		Pairs:         pairs,
		Opportunities: opps,
		NewKeys:       newKeys,
	}

	if result.AllFailed() {
		ScansTotal.WithLabelValues("failed").Inc()
	} else {
		ScansTotal.WithLabelValues("ok").Inc()
	}

	s.logger.Info("scan-complete",
		zap.Uint64("scan-count", count),
		zap.Int("pairs", len(pairs)),
		zap.Int("opportunities", len(opps)),
		zap.Int("new-opportunities", len(newKeys)),
		zap.Duration("duration", time.Since(start)))
	return result
}

// fetchCatalogs lists every enabled venue's markets in parallel. Each fetch
// gets its own timeout; a failed venue is recorded as ERROR and excluded from
// matching, it never fails the scan.
func (s *Scanner) fetchCatalogs(ctx context.Context) (map[types.Venue][]*types.MarketSnapshot, map[types.Venue]VenueState) {
	catalogs := make(map[types.Venue][]*types.MarketSnapshot, len(s.adapters))
	states := make(map[types.Venue]VenueState, len(s.adapters))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, adapter := range s.adapters {
		g.Go(func() error {
			venue := adapter.Venue()
			if reason, off := s.disabledReason(venue); off {
				mu.Lock()
				states[venue] = VenueState{Status: types.VenueStatusDisabled, Error: reason}
				mu.Unlock()
				return nil
			}

			fctx, cancel := context.WithTimeout(gctx, s.cfg.FetchTimeout)
			defer cancel()

			snaps, err := adapter.ListMarkets(fctx)
			now := time.Now()

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				status := types.VenueStatusError
				if errors.Is(err, types.ErrAuthenticationFailed) {
					s.disableVenue(venue, err)
					status = types.VenueStatusDisabled
				} else {
					s.logger.Warn("venue-catalog-failed",
						zap.String("venue", string(venue)),
						zap.Error(err))
				}
				states[venue] = VenueState{Status: status, Error: err.Error(), FetchedAt: now}
				VenueUp.WithLabelValues(string(venue)).Set(0)
				return nil
			}

			catalogs[venue] = snaps
			states[venue] = VenueState{Status: types.VenueStatusOK, Markets: len(snaps), FetchedAt: now}
			VenueUp.WithLabelValues(string(venue)).Set(1)
			CatalogMarkets.WithLabelValues(string(venue)).Set(float64(len(snaps)))
			return nil
		})
	}
	_ = g.Wait()

	return catalogs, states
}

// matchAll runs the matcher over every unordered pair of venues that both
// produced a non-empty catalog, in adapter order.
func (s *Scanner) matchAll(catalogs map[types.Venue][]*types.MarketSnapshot) []types.MatchPair {
	var pairs []types.MatchPair
	for i := 0; i < len(s.adapters); i++ {
		for j := i + 1; j < len(s.adapters); j++ {
			a := catalogs[s.adapters[i].Venue()]
			b := catalogs[s.adapters[j].Venue()]
			if len(a) == 0 || len(b) == 0 {
				continue
			}
			pairs = append(pairs, s.matcher.Match(a, b)...)
		}
	}
	return pairs
}

// fillQuotes fetches top-of-book for matched legs whose catalog snapshot
// carries no usable quotes. Legs that cannot be filled stay as they are; the
// evaluator skips the affected directions.
func (s *Scanner) fillQuotes(ctx context.Context, pairs []types.MatchPair) []types.MatchPair {
	for i := range pairs {
		pairs[i].A = s.fillLeg(ctx, pairs[i].A)
		pairs[i].B = s.fillLeg(ctx, pairs[i].B)
	}
	return pairs
}

// fillLeg overlays fresh top-of-book quotes onto a copy of the catalog
// snapshot. The catalog snapshot itself is shared with the pair table and
// must not be mutated.
func (s *Scanner) fillLeg(ctx context.Context, snap *types.MarketSnapshot) *types.MarketSnapshot {
	if snap == nil || snap.HasQuotes() {
		return snap
	}
	adapter, ok := s.byVenue[snap.Venue]
	if !ok {
		return snap
	}

	fctx, cancel := context.WithTimeout(ctx, s.cfg.BookFillTimeout)
	defer cancel()

	book, err := adapter.TopOfBook(fctx, snap.VenueMarketID)
	if err != nil {
		if errors.Is(err, types.ErrAuthenticationFailed) {
			s.disableVenue(snap.Venue, err)
		}
		QuoteFillsTotal.WithLabelValues(string(snap.Venue), "error").Inc()
		s.logger.Debug("quote-fill-failed",
			zap.String("market", snap.Key()),
			zap.Error(err))
		return snap
	}

	merged := *snap
	merged.YesBid = book.YesBid
	merged.YesAsk = book.YesAsk
	merged.NoBid = book.NoBid
	merged.NoAsk = book.NoAsk
	merged.AskSizeYes = book.AskSizeYes
	merged.AskSizeNo = book.AskSizeNo
	merged.Derived = book.Derived
	merged.FetchedAt = book.FetchedAt
	QuoteFillsTotal.WithLabelValues(string(snap.Venue), "ok").Inc()
	return &merged
}

// carryAbsent keeps recently live opportunities through short gaps. A key
// must be absent from MissedScans consecutive scans before it leaves the
// book, so one failed fetch or a borderline evaluation does not churn the
// board. Carried entries keep their last evaluated prices.
func (s *Scanner) carryAbsent(opps []*types.Opportunity) []*types.Opportunity {
	if s.cfg.MissedScans <= 1 {
		return opps
	}

	seen := make(map[string]struct{}, len(opps))
	for _, opp := range opps {
		seen[opp.Key()] = struct{}{}
	}

	missed := make(map[string]int)
	for _, prior := range s.book.Snapshot().Opportunities {
		key := prior.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		n := s.missedScans[key] + 1
		if n >= s.cfg.MissedScans {
			continue
		}
		missed[key] = n
		opps = append(opps, prior)
	}
	s.missedScans = missed

	return opps
}

// disabledReason reports whether a venue has been disabled for the process
// lifetime and why.
func (s *Scanner) disabledReason(venue types.Venue) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reason, ok := s.disabled[venue]
	return reason, ok
}

// disableVenue takes a venue out of rotation permanently. Credential
// failures do not heal without a restart, so there is no retry path.
func (s *Scanner) disableVenue(venue types.Venue, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.disabled[venue]; ok {
		return
	}
	s.disabled[venue] = err.Error()
	s.logger.Error("venue-disabled",
		zap.String("venue", string(venue)),
		zap.Error(err))
}
