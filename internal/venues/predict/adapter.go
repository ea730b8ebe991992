// Package predict adapts the Predict REST and WebSocket APIs to the
// common venue contract. Every endpoint wants the same x-api-key
// header, and both book sides arrive quoted, so nothing here is derived.
package predict

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
	Stream   venues.StreamConfig
	Logger   *zap.Logger
}

// Adapter implements venues.Adapter and venues.Streamer for Predict.
type Adapter struct {
	client  *Client
	catalog *venues.CatalogCache
	cache   cache.Cache
	apiKey  string
	stream  venues.StreamConfig
	logger  *zap.Logger
}

// NewAdapter creates a Predict adapter.
func NewAdapter(cfg Config) *Adapter {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("predict")

	return &Adapter{
		client:  NewClient(cfg.BaseURL, cfg.APIKey, cfg.MaxPages, logger),
		catalog: venues.NewCatalogCache(types.VenuePredict, cfg.Cache, cfg.CacheTTL, logger),
		cache:   cfg.Cache,
		apiKey:  cfg.APIKey,
		stream:  cfg.Stream,
		logger:  logger,
	}
}

// Venue returns the venue code.
func (a *Adapter) Venue() types.Venue {
	return types.VenuePredict
}

// ListMarkets returns the open-market catalog, served from cache within
// the TTL and from the stale copy on transient upstream failure.
func (a *Adapter) ListMarkets(ctx context.Context) ([]*types.MarketSnapshot, error) {
	return a.catalog.Fetch(ctx, a.client.FetchMarkets)
}

// TopOfBook refreshes a single market from its detail endpoint.
func (a *Adapter) TopOfBook(ctx context.Context, venueMarketID string) (*types.MarketSnapshot, error) {
	key := "book:" + string(types.VenuePredict) + ":" + venueMarketID
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

// OpenStream starts the price level feed for this venue.
func (a *Adapter) OpenStream(ctx context.Context, onUpdate func(types.QuoteUpdate)) (venues.Stream, error) {
	return openStream(ctx, a.stream, a.apiKey, onUpdate, a.logger)
}
