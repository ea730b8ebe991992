// Package opinion adapts the Opinion REST API to the common venue
// contract. The venue has no realtime feed, so it is covered by the
// polling path alone, and its catalog carries no quotes: books are
// fetched per market for matched candidates only.
package opinion

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
	APIKey   string
	MaxPages int
	CacheTTL time.Duration
	Cache    cache.Cache
	Logger   *zap.Logger
}

// Adapter implements venues.Adapter for Opinion.
type Adapter struct {
	client  *Client
	catalog *venues.CatalogCache
	cache   cache.Cache
	logger  *zap.Logger
}

// NewAdapter creates an Opinion adapter.
func NewAdapter(cfg Config) *Adapter {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("opinion")

	return &Adapter{
		client:  NewClient(cfg.BaseURL, cfg.APIKey, cfg.MaxPages, logger),
		catalog: venues.NewCatalogCache(types.VenueOpinion, cfg.Cache, cfg.CacheTTL, logger),
		cache:   cfg.Cache,
		logger:  logger,
	}
}

// Venue returns the venue code.
func (a *Adapter) Venue() types.Venue {
	return types.VenueOpinion
}

// ListMarkets returns the activated-market catalog, served from cache
// within the TTL and from the stale copy on transient upstream failure.
func (a *Adapter) ListMarkets(ctx context.Context) ([]*types.MarketSnapshot, error) {
	return a.catalog.Fetch(ctx, a.client.FetchMarkets)
}

// TopOfBook fetches both sides of one market's book.
func (a *Adapter) TopOfBook(ctx context.Context, venueMarketID string) (*types.MarketSnapshot, error) {
	key := "book:" + string(types.VenueOpinion) + ":" + venueMarketID
	if a.cache != nil {
		if cached, ok := a.cache.Get(key); ok {
			if snap, ok := cached.(*types.MarketSnapshot); ok {
				return snap, nil
			}
		}
	}

	snap, err := a.client.FetchBook(ctx, venueMarketID)
	if err != nil {
		return nil, err
	}

	if a.cache != nil {
		a.cache.Set(key, snap, bookTTL)
	}

	return snap, nil
}
