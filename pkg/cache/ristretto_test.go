package cache

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/crossvenue/arbscan/pkg/types"
)

func TestRistrettoCache(t *testing.T) {
	logger := zap.NewNop()
	cacheInterface, err := NewRistrettoCache(&RistrettoConfig{
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
		Logger:      logger,
	})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	defer cacheInterface.Close()

	// Cast to RistrettoCache for Wait.
	cache := cacheInterface.(*RistrettoCache)

	t.Run("set-and-get", func(t *testing.T) {
		key := "catalog:POLY"
		value := []*types.MarketSnapshot{
			{Venue: types.VenuePoly, VenueMarketID: "m1", Title: "Test market"},
		}

		success := cache.Set(key, value, 1*time.Hour)
		if !success {
			t.Error("expected Set to succeed")
		}

		// Wait for Ristretto to process pending writes.
		cache.Wait()

		retrieved, found := cache.Get(key)
		if !found {
			t.Fatal("expected key to be found")
		}

		snaps, ok := retrieved.([]*types.MarketSnapshot)
		if !ok {
			t.Fatalf("cached value has type %T", retrieved)
		}
		if len(snaps) != 1 || snaps[0].VenueMarketID != "m1" {
			t.Errorf("cached catalog mismatch: %+v", snaps)
		}
	})

	t.Run("get-missing-key", func(t *testing.T) {
		_, found := cache.Get("catalog:KALSHI")
		if found {
			t.Error("expected key to not be found")
		}
	})

	t.Run("delete", func(t *testing.T) {
		key := "book:POLY:m2"
		cache.Set(key, "cached-book", 1*time.Hour)
		cache.Wait()

		cache.Delete(key)
		cache.Wait()

		_, found := cache.Get(key)
		if found {
			t.Error("expected key to be deleted")
		}
	})

	t.Run("ttl-expiry", func(t *testing.T) {
		key := "catalog:PREDICT"
		cache.Set(key, "short-lived", 50*time.Millisecond)
		cache.Wait()

		time.Sleep(100 * time.Millisecond)

		_, found := cache.Get(key)
		if found {
			t.Error("expected key to expire")
		}
	})

	t.Run("clear", func(t *testing.T) {
		cache.Set("a", 1, time.Hour)
		cache.Set("b", 2, time.Hour)
		cache.Wait()

		cache.Clear()

		if _, found := cache.Get("a"); found {
			t.Error("expected cache to be empty after Clear")
		}
	})
}
