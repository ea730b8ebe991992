package arbitrage

import (
	"testing"
	"time"

	"github.com/crossvenue/arbscan/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bookOpp(idA, idB string, edgePct float64) *types.Opportunity {
	a := quotedSnap(types.VenuePoly, idA, 0.40, 0.70)
	b := quotedSnap(types.VenueKalshi, idB, 0.50, 0.55)
	combined := 1 - 0.01 - edgePct/100
	return types.NewOpportunity(a, b, types.DirectionAYesBNo, combined, edgePct, 0, 0.9)
}

func TestBook_ReplaceAllReportsNewKeys(t *testing.T) {
	book := NewBook()

	first := bookOpp("a1", "b1", 4.0)
	newKeys := book.ReplaceAll([]*types.Opportunity{first})

	require.Len(t, newKeys, 1)
	assert.Equal(t, first.Key(), newKeys[0])

	// Same key again is not new.
	newKeys = book.ReplaceAll([]*types.Opportunity{bookOpp("a1", "b1", 4.1)})
	assert.Empty(t, newKeys)

	// A different pair is.
	newKeys = book.ReplaceAll([]*types.Opportunity{
		bookOpp("a1", "b1", 4.1),
		bookOpp("a2", "b2", 3.0),
	})
	require.Len(t, newKeys, 1)
	assert.Equal(t, bookOpp("a2", "b2", 3.0).Key(), newKeys[0])
}

func TestBook_SmallEdgeMovePreservesIdentity(t *testing.T) {
	book := NewBook()

	first := bookOpp("a1", "b1", 4.0)
	first.FirstSeenAt = time.Now().Add(-time.Hour)
	book.ReplaceAll([]*types.Opportunity{first})

	second := bookOpp("a1", "b1", 4.4)
	book.ReplaceAll([]*types.Opportunity{second})

	live := book.Get(first.Key())
	require.NotNil(t, live)
	assert.Equal(t, first.ID, live.ID)
	assert.Equal(t, first.FirstSeenAt, live.FirstSeenAt)
	assert.InDelta(t, 4.4, live.EdgePct, 1e-9)
	assert.False(t, live.FirstSeenAt.After(live.LastSeenAt))
}

func TestBook_LargeEdgeMoveResurfaces(t *testing.T) {
	book := NewBook()

	first := bookOpp("a1", "b1", 4.0)
	first.FirstSeenAt = time.Now().Add(-time.Hour)
	book.ReplaceAll([]*types.Opportunity{first})

	second := bookOpp("a1", "b1", 4.5)
	book.ReplaceAll([]*types.Opportunity{second})

	live := book.Get(first.Key())
	require.NotNil(t, live)
	assert.NotEqual(t, first.ID, live.ID)
	assert.True(t, live.FirstSeenAt.After(first.FirstSeenAt))
}

func TestBook_NotificationTimeSurvivesMerge(t *testing.T) {
	book := NewBook()
	notifiedAt := time.Now().Add(-2 * time.Minute)

	first := bookOpp("a1", "b1", 4.0)
	book.ReplaceAll([]*types.Opportunity{first})
	book.MarkNotified(first.Key(), notifiedAt)

	// Carried through both a small and a large edge move.
	book.ReplaceAll([]*types.Opportunity{bookOpp("a1", "b1", 4.2)})
	assert.Equal(t, notifiedAt, book.Get(first.Key()).LastNotifiedAt)

	book.ReplaceAll([]*types.Opportunity{bookOpp("a1", "b1", 9.0)})
	assert.Equal(t, notifiedAt, book.Get(first.Key()).LastNotifiedAt)
}

func TestBook_AbsentKeysDrop(t *testing.T) {
	book := NewBook()

	book.ReplaceAll([]*types.Opportunity{
		bookOpp("a1", "b1", 4.0),
		bookOpp("a2", "b2", 3.0),
	})
	require.Equal(t, 2, book.Len())

	book.ReplaceAll([]*types.Opportunity{bookOpp("a1", "b1", 4.0)})

	assert.Equal(t, 1, book.Len())
	assert.Nil(t, book.Get(bookOpp("a2", "b2", 3.0).Key()))
}

func TestBook_SnapshotSortedByEdge(t *testing.T) {
	book := NewBook()

	book.ReplaceAll([]*types.Opportunity{
		bookOpp("a1", "b1", 2.5),
		bookOpp("a2", "b2", 6.0),
		bookOpp("a3", "b3", 4.0),
	})

	snap := book.Snapshot()
	require.Len(t, snap.Opportunities, 3)
	assert.InDelta(t, 6.0, snap.Opportunities[0].EdgePct, 1e-9)
	assert.InDelta(t, 4.0, snap.Opportunities[1].EdgePct, 1e-9)
	assert.InDelta(t, 2.5, snap.Opportunities[2].EdgePct, 1e-9)
}

func TestBook_SnapshotIsStable(t *testing.T) {
	book := NewBook()
	book.ReplaceAll([]*types.Opportunity{bookOpp("a1", "b1", 4.0)})

	before := book.Snapshot()
	book.ReplaceAll([]*types.Opportunity{
		bookOpp("a1", "b1", 4.0),
		bookOpp("a2", "b2", 3.0),
	})

	// The previously loaded snapshot is unaffected by later writes.
	assert.Len(t, before.Opportunities, 1)
	assert.Len(t, book.Snapshot().Opportunities, 2)
}

func TestBook_UpsertRisingEdge(t *testing.T) {
	book := NewBook()

	first := bookOpp("a1", "b1", 4.0)
	assert.True(t, book.Upsert(first))

	// Re-upserting the same key is not a rising edge.
	assert.False(t, book.Upsert(bookOpp("a1", "b1", 4.2)))
	assert.Equal(t, 1, book.Len())

	// Identity preserved across the small move.
	assert.Equal(t, first.ID, book.Get(first.Key()).ID)
}

func TestBook_RemoveFallingEdge(t *testing.T) {
	book := NewBook()

	opp := bookOpp("a1", "b1", 4.0)
	book.Upsert(opp)

	assert.True(t, book.Remove(opp.Key()))
	assert.False(t, book.Remove(opp.Key()))
	assert.Equal(t, 0, book.Len())
	assert.Empty(t, book.Snapshot().Opportunities)
}

func TestBook_EmptySnapshotAtStart(t *testing.T) {
	book := NewBook()

	snap := book.Snapshot()
	require.NotNil(t, snap)
	assert.Empty(t, snap.Opportunities)
	assert.False(t, snap.UpdatedAt.IsZero())
}
