// Package kalshi adapts Kalshi's trade API to the common venue
// contract. Catalog and book prices arrive as integer cents with both
// sides quoted, so nothing on this venue is derived.
package kalshi

import (
	"context"
	"time"

	"github.com/crossvenue/arbscan/internal/venues"
	"github.com/crossvenue/arbscan/pkg/cache"
	"github.com/crossvenue/arbscan/pkg/types"
	"go.uber.org/zap"
)

const bookTTL = 10 * time.Second

// Config holds the adapter settings.
type Config struct {
	BaseURL  string
	MaxPages int
	CacheTTL time.Duration
	Cache    cache.Cache
	Stream   venues.StreamConfig
	Logger   *zap.Logger
}

// Adapter implements venues.Adapter and venues.Streamer for Kalshi.
type Adapter struct {
	client  *Client
	catalog *venues.CatalogCache
	cache   cache.Cache
	stream  venues.StreamConfig
	logger  *zap.Logger
}

// NewAdapter creates a Kalshi adapter.
func NewAdapter(cfg Config) *Adapter {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("kalshi")

	return &Adapter{
		client:  NewClient(cfg.BaseURL, cfg.MaxPages, logger),
		catalog: venues.NewCatalogCache(types.VenueKalshi, cfg.Cache, cfg.CacheTTL, logger),
		cache:   cfg.Cache,
		stream:  cfg.Stream,
		logger:  logger,
	}
}

// Venue returns the venue code.
func (a *Adapter) Venue() types.Venue {
	return types.VenueKalshi
}

// ListMarkets returns the open-market catalog, served from cache within
// the TTL and from the stale copy on transient upstream failure.
func (a *Adapter) ListMarkets(ctx context.Context) ([]*types.MarketSnapshot, error) {
	return a.catalog.Fetch(ctx, a.client.FetchMarkets)
}

// TopOfBook refreshes a single market. The venue has no standalone book
// endpoint; the market detail carries current best prices on both sides.
func (a *Adapter) TopOfBook(ctx context.Context, venueMarketID string) (*types.MarketSnapshot, error) {
	key := "book:" + string(types.VenueKalshi) + ":" + venueMarketID
	if a.cache != nil {
		if cached, ok := a.cache.Get(key); ok {
			if snap, ok := cached.(*types.MarketSnapshot); ok {
				return snap, nil
			}
		}
	}

	snap, err := a.client.FetchMarket(ctx, venueMarketID)
	if err != nil {
		return nil, err
	}

	if a.cache != nil {
		a.cache.Set(key, snap, bookTTL)
	}

	return snap, nil
}

// OpenStream starts the ticker feed for this venue.
func (a *Adapter) OpenStream(ctx context.Context, onUpdate func(types.QuoteUpdate)) (venues.Stream, error) {
	return openStream(ctx, a.stream, onUpdate, a.logger)
}
