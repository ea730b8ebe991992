package arbitrage

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crossvenue/arbscan/pkg/types"
)

// edgeTolerance is the edge movement, in percentage points, below which a
// re-evaluated opportunity keeps its identity instead of being treated as
// a fresh surfacing.
const edgeTolerance = 0.5

// BookSnapshot is an immutable view of the live opportunities, sorted by
// edge descending. Readers must not mutate it.
type BookSnapshot struct {
	Opportunities []*types.Opportunity `json:"opportunities"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// Book is the shared opportunity state. Writers (the scan loop and the
// realtime workers) mutate under a lock and publish a rebuilt snapshot;
// readers load the latest snapshot without locking.
type Book struct {
	mu       sync.Mutex
	byKey    map[string]*types.Opportunity
	snapshot atomic.Pointer[BookSnapshot]
}

// NewBook creates an empty book with an empty published snapshot.
func NewBook() *Book {
	b := &Book{byKey: make(map[string]*types.Opportunity)}
	b.snapshot.Store(&BookSnapshot{UpdatedAt: time.Now()})
	return b
}

// ReplaceAll swaps in the result of a full scan. An incoming opportunity
// whose key already exists keeps the prior first-seen timestamp and
// identity when its edge moved less than the tolerance; a larger move
// resurfaces it as new. Notification timestamps survive any key match.
// Keys absent from the incoming set are dropped. Returns the keys that
// were not present before, for the notification path.
func (b *Book) ReplaceAll(opps []*types.Opportunity) (newKeys []string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	next := make(map[string]*types.Opportunity, len(opps))
	for _, opp := range opps {
		key := opp.Key()
		prior, ok := b.byKey[key]
		if !ok {
			newKeys = append(newKeys, key)
			BookChangesTotal.WithLabelValues("added").Inc()
			next[key] = opp
			continue
		}

		delta := opp.EdgePct - prior.EdgePct
		if delta < 0 {
			delta = -delta
		}
		if delta < edgeTolerance {
			opp.ID = prior.ID
			opp.FirstSeenAt = prior.FirstSeenAt
		}
		opp.LastNotifiedAt = prior.LastNotifiedAt
		next[key] = opp
	}

	for key := range b.byKey {
		if _, ok := next[key]; !ok {
			BookChangesTotal.WithLabelValues("dropped").Inc()
		}
	}

	b.byKey = next
	b.publishLocked()

	sort.Strings(newKeys)
	return newKeys
}

// Upsert applies one realtime evaluation. It reports a rising edge: true
// when the key was not live before this call.
func (b *Book) Upsert(opp *types.Opportunity) (rising bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := opp.Key()
	prior, ok := b.byKey[key]
	if ok {
		delta := opp.EdgePct - prior.EdgePct
		if delta < 0 {
			delta = -delta
		}
		if delta < edgeTolerance {
			opp.ID = prior.ID
			opp.FirstSeenAt = prior.FirstSeenAt
		}
		opp.LastNotifiedAt = prior.LastNotifiedAt
	} else {
		BookChangesTotal.WithLabelValues("added").Inc()
	}

	b.byKey[key] = opp
	b.publishLocked()

	return !ok
}

// Remove drops a key whose edge fell back below threshold. It reports
// whether the key was live.
func (b *Book) Remove(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.byKey[key]; !ok {
		return false
	}

	delete(b.byKey, key)
	BookChangesTotal.WithLabelValues("dropped").Inc()
	b.publishLocked()

	return true
}

// MarkNotified stamps the live entry for key, if any, and republishes so
// dashboards see the notification time.
func (b *Book) MarkNotified(key string, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	opp, ok := b.byKey[key]
	if !ok {
		return
	}

	opp.LastNotifiedAt = at
	b.publishLocked()
}

// Get returns the live opportunity for key, or nil.
func (b *Book) Get(key string) *types.Opportunity {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.byKey[key]
}

// Snapshot returns the latest published view. Safe without locking.
func (b *Book) Snapshot() *BookSnapshot {
	return b.snapshot.Load()
}

// Len reports the number of live opportunities.
func (b *Book) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.byKey)
}

// publishLocked rebuilds and swaps the snapshot. Sorted by edge
// descending with the key as tie-break, so identical books publish
// identical orderings.
func (b *Book) publishLocked() {
	opps := make([]*types.Opportunity, 0, len(b.byKey))
	for _, opp := range b.byKey {
		opps = append(opps, opp)
	}

	sort.Slice(opps, func(i, j int) bool {
		if opps[i].EdgePct != opps[j].EdgePct {
			return opps[i].EdgePct > opps[j].EdgePct
		}
		return opps[i].Key() < opps[j].Key()
	})

	b.snapshot.Store(&BookSnapshot{Opportunities: opps, UpdatedAt: time.Now()})
	ActiveOpportunities.Set(float64(len(opps)))
}
