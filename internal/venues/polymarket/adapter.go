package polymarket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/crossvenue/arbscan/internal/venues"
	"github.com/crossvenue/arbscan/pkg/cache"
	"github.com/crossvenue/arbscan/pkg/types"
	"go.uber.org/zap"
)

const bookTTL = 10 * time.Second

// Config configures the Polymarket adapter.
type Config struct {
	BaseURL  string
	ClobURL  string
	MaxPages int
	CacheTTL time.Duration
	PoolSize int
	Cache    cache.Cache
	Stream   venues.StreamConfig
	Logger   *zap.Logger
}

// Adapter is the Polymarket venue adapter. The catalog comes from the
// Gamma API; books and the realtime feed speak the CLOB API, addressed by
// token id, so the adapter keeps the market to token correspondence from
// the last catalog fetch.
type Adapter struct {
	client   *Client
	catalog  *venues.CatalogCache
	tokens   *tokenMap
	cache    cache.Cache
	stream   venues.StreamConfig
	poolSize int
	logger   *zap.Logger
}

// NewAdapter creates a Polymarket adapter.
func NewAdapter(cfg Config) *Adapter {
	logger := cfg.Logger.Named("polymarket")

	return &Adapter{
		client:   NewClient(cfg.BaseURL, cfg.ClobURL, cfg.MaxPages, logger),
		catalog:  venues.NewCatalogCache(types.VenuePoly, cfg.Cache, cfg.CacheTTL, logger),
		tokens:   newTokenMap(),
		cache:    cfg.Cache,
		stream:   cfg.Stream,
		poolSize: cfg.PoolSize,
		logger:   logger,
	}
}

// Venue returns the venue identifier.
func (a *Adapter) Venue() types.Venue {
	return types.VenuePoly
}

// ListMarkets returns the active binary catalog ordered by 24h volume.
func (a *Adapter) ListMarkets(ctx context.Context) ([]*types.MarketSnapshot, error) {
	return a.catalog.Fetch(ctx, func(ctx context.Context) ([]*types.MarketSnapshot, error) {
		snaps, yesAssets, err := a.client.FetchMarkets(ctx)
		if err != nil {
			return nil, err
		}

		a.tokens.replace(yesAssets)

		return snaps, nil
	})
}

// TopOfBook fetches the YES book for one market from the CLOB API and
// derives the NO side.
func (a *Adapter) TopOfBook(ctx context.Context, venueMarketID string) (*types.MarketSnapshot, error) {
	asset, ok := a.tokens.assetFor(venueMarketID)
	if !ok {
		return nil, types.NewVenueError(types.VenuePoly, "top_of_book",
			fmt.Errorf("%w: unknown market %s", types.ErrParse, venueMarketID))
	}

	bookKey := "book:" + string(types.VenuePoly) + ":" + venueMarketID
	if v, found := a.cache.Get(bookKey); found {
		if snap, isSnap := v.(*types.MarketSnapshot); isSnap {
			return snap, nil
		}
	}

	bid, ask, askSize, err := a.client.FetchBook(ctx, asset)
	if err != nil {
		return nil, err
	}

	snap := &types.MarketSnapshot{
		Venue:         types.VenuePoly,
		VenueMarketID: venueMarketID,
		YesBid:        bid,
		YesAsk:        ask,
		AskSizeYes:    askSize,
		FetchedAt:     time.Now(),
	}
	snap.DeriveNoSide()

	a.cache.Set(bookKey, snap, bookTTL)

	return snap, nil
}

// OpenStream connects the CLOB market feed. Updates carry the YES side;
// callers subscribe by market id and the stream translates to token ids.
func (a *Adapter) OpenStream(ctx context.Context, onUpdate func(types.QuoteUpdate)) (venues.Stream, error) {
	return openStream(ctx, a.stream, a.poolSize, a.tokens, onUpdate, a.logger)
}

// tokenMap holds the market id to YES token id correspondence from the
// last catalog fetch, plus the reverse direction for routing stream
// frames back to markets.
type tokenMap struct {
	mu        sync.RWMutex
	yesAsset  map[string]string
	marketIDs map[string]string
}

func newTokenMap() *tokenMap {
	return &tokenMap{
		yesAsset:  make(map[string]string),
		marketIDs: make(map[string]string),
	}
}

func (tm *tokenMap) replace(yesAssets map[string]string) {
	marketIDs := make(map[string]string, len(yesAssets))
	for marketID, asset := range yesAssets {
		marketIDs[asset] = marketID
	}

	tm.mu.Lock()
	tm.yesAsset = yesAssets
	tm.marketIDs = marketIDs
	tm.mu.Unlock()
}

func (tm *tokenMap) assetFor(marketID string) (string, bool) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	asset, ok := tm.yesAsset[marketID]
	return asset, ok
}

func (tm *tokenMap) market(asset string) (string, bool) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	marketID, ok := tm.marketIDs[asset]
	return marketID, ok
}
