package scanner

import (
	"time"

	"github.com/crossvenue/arbscan/pkg/types"
)

// VenueState is the health of one venue as of the last scan that touched it.
type VenueState struct {
	Status    types.VenueStatus `json:"status"`
	Markets   int               `json:"markets"`
	Error     string            `json:"error,omitempty"`
	FetchedAt time.Time         `json:"fetched_at,omitempty"`
}

// State is the scan-side view published after every iteration. The dashboard
// serves it verbatim; readers get an immutable snapshot and must not mutate it.
type State struct {
	ScanCount    uint64                     `json:"scan_count"`
	LastScanAt   time.Time                  `json:"last_scan_at"`
	LastScanMS   int64                      `json:"last_scan_ms"`
	Venues       map[types.Venue]VenueState `json:"venues"`
	ThresholdPct float64                    `json:"threshold_pct"`
}

// ScanResult is the fan-out payload for one completed iteration. It carries
// everything downstream consumers need without re-reading shared state: the
// notifier takes NewKeys, the realtime workers take Pairs and Catalogs, the
// dashboard hub takes the counts.
type ScanResult struct {
	ScanCount     uint64
	StartedAt     time.Time
	Duration      time.Duration
	Venues        map[types.Venue]VenueState
	Catalogs      map[types.Venue][]*types.MarketSnapshot
	Pairs         []types.MatchPair
	Opportunities []*types.Opportunity
	NewKeys       []string
}

// AllFailed reports whether no venue produced a catalog this iteration.
// Disabled venues do not count as failures; a scan over nothing but
// disabled venues is a configuration problem, not an outage.
func (r *ScanResult) AllFailed() bool {
	failed := 0
	for _, vs := range r.Venues {
		switch vs.Status {
		case types.VenueStatusOK:
			return false
		case types.VenueStatusError:
			failed++
		case types.VenueStatusDisabled:
		}
	}
	return failed > 0
}

// AllUnreachable reports whether every venue is in ERROR or DISABLED state.
// The daemon uses it to abort startup when nothing can be scanned at all.
func (r *ScanResult) AllUnreachable() bool {
	for _, vs := range r.Venues {
		if vs.Status == types.VenueStatusOK {
			return false
		}
	}
	return len(r.Venues) > 0
}

// PairTable is an immutable index from market key to the matched pairs that
// touch it. The scanner publishes a fresh table after every scan; realtime
// workers read the current one lock-free through Scanner.Pairs.
type PairTable struct {
	byKey map[string][]types.MatchPair
}

// NewPairTable indexes matched pairs by the markets they touch.
func NewPairTable(pairs []types.MatchPair) *PairTable {
	t := &PairTable{byKey: make(map[string][]types.MatchPair, len(pairs)*2)}
	for _, p := range pairs {
		if p.A == nil || p.B == nil {
			continue
		}
		t.byKey[p.A.Key()] = append(t.byKey[p.A.Key()], p)
		t.byKey[p.B.Key()] = append(t.byKey[p.B.Key()], p)
	}
	return t
}

// Touching returns the matched pairs with a leg on the given market, or nil.
func (t *PairTable) Touching(venue types.Venue, venueMarketID string) []types.MatchPair {
	if t == nil {
		return nil
	}
	return t.byKey[string(venue)+":"+venueMarketID]
}

// Len returns the number of distinct markets with at least one pair.
func (t *PairTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.byKey)
}
