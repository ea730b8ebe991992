package venues

import (
	"context"
	"sort"
	"time"

	"github.com/crossvenue/arbscan/pkg/types"
	"github.com/crossvenue/arbscan/pkg/websocket"
	"go.uber.org/zap"
)

// Adapter translates one venue's REST API into the scanner's common
// market vocabulary.
//
// ListMarkets walks the venue's catalog with pagination and returns
// snapshots ordered by 24h volume descending. Adapters own response
// caching: within the cache TTL the previous result is served without a
// network call, and on a transient failure the last good result is served
// instead of an error. A failure with no cached copy surfaces as a
// NetworkUnavailable or NetworkTimeout VenueError.
//
// TopOfBook fetches the current book for one market. Venues that expose
// only the YES side derive the NO book and mark the snapshot Derived.
type Adapter interface {
	Venue() types.Venue
	ListMarkets(ctx context.Context) ([]*types.MarketSnapshot, error)
	TopOfBook(ctx context.Context, venueMarketID string) (*types.MarketSnapshot, error)
}

// Streamer is implemented by adapters with a realtime quote feed. Venues
// without one are covered by the polling path alone.
type Streamer interface {
	// OpenStream connects the venue's feed and delivers price changes to
	// onUpdate until the stream dies or is closed. Updates for one market
	// arrive in order.
	OpenStream(ctx context.Context, onUpdate func(types.QuoteUpdate)) (Stream, error)
}

// Stream is one venue's live quote feed.
type Stream interface {
	// Subscribe replaces the subscription set. The stream diffs the new
	// set against the current one and sends subscribe and unsubscribe
	// frames only for the difference. After a reconnect the full current
	// set is replayed.
	Subscribe(ids []string) error

	// Dead is closed once, after reconnection is exhausted.
	Dead() <-chan struct{}

	Close() error
}

// StreamConfig carries the WebSocket tuning shared by every venue stream.
// Zero fields fall back to the defaults below.
type StreamConfig struct {
	URL                   string
	DialTimeout           time.Duration
	PingInterval          time.Duration
	PongTimeout           time.Duration
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectMaxAttempts  int
	MessageBufferSize     int
}

// ClientConfig builds the per-connection WebSocket config for one venue.
// The OnConnect hook is left for the caller to fill.
func (sc StreamConfig) ClientConfig(venue types.Venue, logger *zap.Logger) websocket.Config {
	if sc.DialTimeout <= 0 {
		sc.DialTimeout = 10 * time.Second
	}
	if sc.PingInterval <= 0 {
		sc.PingInterval = 10 * time.Second
	}
	if sc.PongTimeout <= 0 {
		sc.PongTimeout = 3 * sc.PingInterval
	}
	if sc.ReconnectInitialDelay <= 0 {
		sc.ReconnectInitialDelay = time.Second
	}
	if sc.ReconnectMaxDelay <= 0 {
		sc.ReconnectMaxDelay = 60 * time.Second
	}
	if sc.ReconnectMaxAttempts <= 0 {
		sc.ReconnectMaxAttempts = 10
	}
	if sc.MessageBufferSize <= 0 {
		sc.MessageBufferSize = 1000
	}

	return websocket.Config{
		URL:                   sc.URL,
		Venue:                 string(venue),
		DialTimeout:           sc.DialTimeout,
		PingInterval:          sc.PingInterval,
		PongTimeout:           sc.PongTimeout,
		ReconnectInitialDelay: sc.ReconnectInitialDelay,
		ReconnectMaxDelay:     sc.ReconnectMaxDelay,
		ReconnectMaxAttempts:  sc.ReconnectMaxAttempts,
		MessageBufferSize:     sc.MessageBufferSize,
		Logger:                logger,
	}
}

// SortByVolume orders snapshots by 24h volume descending, breaking ties
// by market ID so repeated fetches produce the same order.
func SortByVolume(snaps []*types.MarketSnapshot) {
	sort.Slice(snaps, func(i, j int) bool {
		if snaps[i].Volume24hUSD != snaps[j].Volume24hUSD {
			return snaps[i].Volume24hUSD > snaps[j].Volume24hUSD
		}
		return snaps[i].VenueMarketID < snaps[j].VenueMarketID
	})
}

// DiffSubscriptions splits a desired subscription set against the current
// one into the ids to subscribe and the ids to unsubscribe. Both results
// are sorted so the frames sent downstream are deterministic.
func DiffSubscriptions(current map[string]struct{}, next []string) (add, remove []string) {
	nextSet := make(map[string]struct{}, len(next))
	for _, id := range next {
		if _, seen := nextSet[id]; seen {
			continue
		}
		nextSet[id] = struct{}{}
		if _, ok := current[id]; !ok {
			add = append(add, id)
		}
	}

	for id := range current {
		if _, ok := nextSet[id]; !ok {
			remove = append(remove, id)
		}
	}

	sort.Strings(add)
	sort.Strings(remove)

	return add, remove
}
