// Package matching decides when a market on one venue refers to the same
// real-world event as a market on another. Matching is two-tier: an
// editorial manual map pins known pairs at full confidence, then an
// inverted-index candidate search scores the rest with a weighted
// similarity under hard veto constraints. Titles alone are treacherous
// in this domain; the constraints exist because near-identical titles
// routinely describe different years, strikes, or opposite directions.
package matching

import (
	"sort"
	"sync"
	"time"

	"github.com/crossvenue/arbscan/pkg/types"
	"go.uber.org/zap"
)

const defaultMinSimilarity = 0.35

// Config holds the matcher settings.
type Config struct {
	// MinSimilarity is the auto-tier acceptance floor per venue pair,
	// keyed by PairKey. Pairs without an entry use Default.
	MinSimilarity map[string]float64
	// Default is the floor for venue pairs with no explicit entry.
	Default float64
	Logger  *zap.Logger
}

// Matcher matches markets across venue pairs. It is safe for concurrent
// Match calls; the keyword cache is the only shared state.
type Matcher struct {
	cfg      Config
	mappings []types.ManualMapping
	logger   *zap.Logger

	mu       sync.Mutex
	keywords map[string]cachedKeywords
}

type cachedKeywords struct {
	title string
	kw    *Keywords
}

// New creates a matcher over the given manual mappings.
func New(cfg Config, mappings []types.ManualMapping) *Matcher {
	if cfg.Default <= 0 {
		cfg.Default = defaultMinSimilarity
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Matcher{
		cfg:      cfg,
		mappings: mappings,
		logger:   logger,
		keywords: make(map[string]cachedKeywords),
	}
}

// PairKey returns the canonical configuration key for a venue pair,
// identical in both argument orders.
func PairKey(a, b types.Venue) string {
	if string(a) < string(b) {
		return string(a) + "-" + string(b)
	}
	return string(b) + "-" + string(a)
}

// Match pairs markets of catalogA with markets of catalogB. Manual
// mappings claim their markets first; the automatic tier then assigns
// each remaining A-side market its best-scoring unclaimed candidate at
// or above the pair's similarity floor. No market appears in two pairs
// of the same call.
func (m *Matcher) Match(catalogA, catalogB []*types.MarketSnapshot) []types.MatchPair {
	if len(catalogA) == 0 || len(catalogB) == 0 {
		return nil
	}

	venueA, venueB := catalogA[0].Venue, catalogB[0].Venue
	pairKey := PairKey(venueA, venueB)

	start := time.Now()
	defer func() {
		MatchDuration.WithLabelValues(pairKey).Observe(time.Since(start).Seconds())
	}()

	claimed := make(map[string]struct{})
	pairs := m.manualTier(catalogA, catalogB, venueA, venueB, claimed)
	pairs = m.autoTier(catalogA, catalogB, venueA, venueB, claimed, pairs)

	m.logger.Debug("matching-complete",
		zap.String("venue-pair", pairKey),
		zap.Int("catalog-a", len(catalogA)),
		zap.Int("catalog-b", len(catalogB)),
		zap.Int("pairs", len(pairs)))

	return pairs
}

// manualTier emits a full-confidence pair for every mapping outcome whose
// two sides are both present in the input catalogs, claiming both markets
// so the automatic tier leaves them alone.
func (m *Matcher) manualTier(catalogA, catalogB []*types.MarketSnapshot, venueA, venueB types.Venue, claimed map[string]struct{}) []types.MatchPair {
	var pairs []types.MatchPair
	if len(m.mappings) == 0 {
		return pairs
	}

	byIDA := indexByID(catalogA)
	byIDB := indexByID(catalogB)

	for _, mapping := range m.mappings {
		for _, key := range sortedOutcomeKeys(mapping.Outcomes) {
			outcome := mapping.Outcomes[key]

			refA, okA := outcome[venueA]
			refB, okB := outcome[venueB]
			if !okA || !okB {
				continue
			}

			snapA, foundA := byIDA[refA.VenueMarketID]
			snapB, foundB := byIDB[refB.VenueMarketID]
			if !foundA || !foundB {
				continue
			}

			if _, taken := claimed[snapA.Key()]; taken {
				continue
			}
			if _, taken := claimed[snapB.Key()]; taken {
				continue
			}

			pairs = append(pairs, types.MatchPair{A: snapA, B: snapB, Confidence: 1.0})
			claimed[snapA.Key()] = struct{}{}
			claimed[snapB.Key()] = struct{}{}
			PairsMatchedTotal.WithLabelValues(PairKey(venueA, venueB), "manual").Inc()

			m.logger.Debug("manual-pair",
				zap.String("slug", mapping.Slug),
				zap.String("outcome", key),
				zap.String("a", snapA.Key()),
				zap.String("b", snapB.Key()))
		}
	}

	return pairs
}

// autoTier scores each unclaimed A-side market against the candidates the
// inverted index yields, keeping the best pair at or above the floor.
func (m *Matcher) autoTier(catalogA, catalogB []*types.MarketSnapshot, venueA, venueB types.Venue, claimed map[string]struct{}, pairs []types.MatchPair) []types.MatchPair {
	floor := m.floorFor(venueA, venueB)

	kwB := make([]*Keywords, len(catalogB))
	for i, snap := range catalogB {
		if _, taken := claimed[snap.Key()]; taken {
			continue
		}
		kwB[i] = m.keywordsFor(snap)
	}
	idx := buildIndex(kwB)

	for _, snapA := range catalogA {
		if _, taken := claimed[snapA.Key()]; taken {
			continue
		}

		kwA := m.keywordsFor(snapA)
		candidates := idx.candidates(kwA)
		CandidatesPerMarket.Observe(float64(len(candidates)))

		bestScore := 0.0
		bestIdx := -1
		for _, j := range candidates {
			if _, taken := claimed[catalogB[j].Key()]; taken {
				continue
			}

			score, reason := similarity(kwA, kwB[j], snapA.Title, catalogB[j].Title)
			if reason != "" {
				RejectsTotal.WithLabelValues(reason).Inc()
				continue
			}
			if score > bestScore {
				bestScore, bestIdx = score, j
			}
		}

		if bestIdx < 0 {
			continue
		}
		if bestScore < floor {
			RejectsTotal.WithLabelValues("below_threshold").Inc()
			continue
		}

		snapB := catalogB[bestIdx]
		pairs = append(pairs, types.MatchPair{A: snapA, B: snapB, Confidence: bestScore})
		claimed[snapA.Key()] = struct{}{}
		claimed[snapB.Key()] = struct{}{}
		PairsMatchedTotal.WithLabelValues(PairKey(venueA, venueB), "auto").Inc()

		m.logger.Debug("auto-pair",
			zap.String("a", snapA.Key()),
			zap.String("b", snapB.Key()),
			zap.Float64("score", bestScore))
	}

	return pairs
}

// keywordsFor returns the cached extraction for a market, re-extracting
// only when the title changed since the last round.
func (m *Matcher) keywordsFor(snap *types.MarketSnapshot) *Keywords {
	key := snap.Key()

	m.mu.Lock()
	defer m.mu.Unlock()

	if cached, ok := m.keywords[key]; ok && cached.title == snap.Title {
		return cached.kw
	}

	kw := Extract(snap.Title)
	m.keywords[key] = cachedKeywords{title: snap.Title, kw: kw}

	return kw
}

func (m *Matcher) floorFor(a, b types.Venue) float64 {
	if v, ok := m.cfg.MinSimilarity[PairKey(a, b)]; ok && v > 0 {
		return v
	}
	return m.cfg.Default
}

func indexByID(catalog []*types.MarketSnapshot) map[string]*types.MarketSnapshot {
	byID := make(map[string]*types.MarketSnapshot, len(catalog))
	for _, snap := range catalog {
		byID[snap.VenueMarketID] = snap
	}
	return byID
}

func sortedOutcomeKeys(outcomes map[string]types.MappingOutcome) []string {
	keys := make([]string, 0, len(outcomes))
	for key := range outcomes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
