package websocket

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func poolFactory(url string) func(int) Config {
	return func(shard int) Config {
		return Config{
			URL:                   url,
			Venue:                 "POLY",
			DialTimeout:           time.Second,
			PongTimeout:           15 * time.Second,
			PingInterval:          10 * time.Second,
			ReconnectInitialDelay: 10 * time.Millisecond,
			ReconnectMaxDelay:     50 * time.Millisecond,
			ReconnectBackoffMult:  2.0,
			ReconnectMaxAttempts:  2,
			MessageBufferSize:     10,
			Logger:                zap.NewNop(),
		}
	}
}

func TestNewPool(t *testing.T) {
	p := NewPool(4, poolFactory("wss://example.test/ws"), zap.NewNop())

	if len(p.clients) != 4 {
		t.Fatalf("len(clients) = %d, want 4", len(p.clients))
	}
	for i, c := range p.clients {
		if c == nil {
			t.Errorf("client %d is nil", i)
		}
	}
	// Multiplexed buffer is the sum of shard buffers.
	if cap(p.messageChan) != 40 {
		t.Errorf("messageChan capacity = %d, want 40", cap(p.messageChan))
	}
}

func TestPool_ClientForIsStable(t *testing.T) {
	p := NewPool(5, poolFactory("wss://example.test/ws"), zap.NewNop())

	keys := []string{"asset-1", "asset-2", "asset-3", "0xdeadbeef", "KXPRES-24"}
	for _, key := range keys {
		first := p.ClientFor(key)
		for i := 0; i < 10; i++ {
			if p.ClientFor(key) != first {
				t.Fatalf("ClientFor(%q) not stable", key)
			}
		}
	}
}

func TestPool_ClientForDistributes(t *testing.T) {
	p := NewPool(4, poolFactory("wss://example.test/ws"), zap.NewNop())

	seen := make(map[*Client]int)
	for i := 0; i < 400; i++ {
		key := "market-" + string(rune('a'+i%26)) + string(rune('0'+i%10))
		seen[p.ClientFor(key)]++
	}

	// With 4 shards and varied keys, more than one shard must be used.
	if len(seen) < 2 {
		t.Errorf("all keys landed on %d shard(s)", len(seen))
	}
}
