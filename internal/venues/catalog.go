package venues

import (
	"context"
	"time"

	"github.com/crossvenue/arbscan/pkg/cache"
	"github.com/crossvenue/arbscan/pkg/types"
	"go.uber.org/zap"
)

const minStaleFor = 10 * time.Minute

// CatalogCache layers the shared TTL cache over a venue's catalog fetch.
// Within the TTL the last result is served without a network call. When a
// fetch fails, the last good copy is served for up to ten TTLs instead,
// so a flaky venue degrades to slightly old data rather than an empty
// scan. Only a failure with no cached copy at all propagates.
type CatalogCache struct {
	venue    types.Venue
	cache    cache.Cache
	ttl      time.Duration
	staleFor time.Duration
	logger   *zap.Logger
}

// NewCatalogCache creates a catalog cache for one venue.
func NewCatalogCache(venue types.Venue, c cache.Cache, ttl time.Duration, logger *zap.Logger) *CatalogCache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}

	staleFor := 10 * ttl
	if staleFor < minStaleFor {
		staleFor = minStaleFor
	}

	return &CatalogCache{
		venue:    venue,
		cache:    c,
		ttl:      ttl,
		staleFor: staleFor,
		logger:   logger,
	}
}

// Fetch returns the cached catalog when fresh, otherwise runs fetch and
// caches the result under both the fresh and the stale key.
func (cc *CatalogCache) Fetch(ctx context.Context, fetch func(context.Context) ([]*types.MarketSnapshot, error)) ([]*types.MarketSnapshot, error) {
	if snaps, ok := cc.lookup(cc.freshKey()); ok {
		return snaps, nil
	}

	snaps, err := fetch(ctx)
	if err != nil {
		stale, ok := cc.lookup(cc.staleKey())
		if !ok {
			return nil, err
		}

		CacheFallbacksTotal.WithLabelValues(string(cc.venue)).Inc()
		cc.logger.Warn("serving-stale-catalog",
			zap.String("venue", string(cc.venue)),
			zap.Int("markets", len(stale)),
			zap.Error(err))

		return stale, nil
	}

	CatalogSize.WithLabelValues(string(cc.venue)).Set(float64(len(snaps)))
	cc.cache.Set(cc.freshKey(), snaps, cc.ttl)
	cc.cache.Set(cc.staleKey(), snaps, cc.staleFor)

	return snaps, nil
}

func (cc *CatalogCache) lookup(key string) ([]*types.MarketSnapshot, bool) {
	v, ok := cc.cache.Get(key)
	if !ok {
		return nil, false
	}

	snaps, ok := v.([]*types.MarketSnapshot)

	return snaps, ok
}

func (cc *CatalogCache) freshKey() string {
	return "catalog:" + string(cc.venue)
}

func (cc *CatalogCache) staleKey() string {
	return "catalog-stale:" + string(cc.venue)
}
