// Package notify fans opportunity alerts out to configured sinks with
// per-opportunity cooldown deduplication. Sinks are best-effort: a failed
// dispatch is logged and skipped, never retried; the next scan re-presents
// the opportunity once the cooldown expires.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crossvenue/arbscan/internal/arbitrage"
	"github.com/crossvenue/arbscan/pkg/types"
)

// DefaultCooldown is the minimum gap between two notifications for the
// same opportunity key.
const DefaultCooldown = 5 * time.Minute

// pruneAbove bounds the dedup map; entries old enough to be inert are
// swept once the map grows past it.
const pruneAbove = 1024

// Sink delivers one formatted notification.
type Sink interface {
	Name() string
	Send(ctx context.Context, opp *types.Opportunity) error
}

// Config holds broker configuration.
type Config struct {
	// Cooldown is the per-key suppression window.
	Cooldown time.Duration
	// Logger for dispatch events.
	Logger *zap.Logger
}

// Broker dedupes opportunity notifications and dispatches them to sinks.
type Broker struct {
	cfg    Config
	book   *arbitrage.Book
	sinks  []Sink
	logger *zap.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time

	now func() time.Time
}

// New creates a broker over the given sinks. The book is stamped with the
// notification time so the dashboard can show it.
func New(cfg Config, book *arbitrage.Book, sinks ...Sink) *Broker {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Broker{
		cfg:      cfg,
		book:     book,
		sinks:    sinks,
		logger:   cfg.Logger,
		lastSent: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Notify dispatches one opportunity unless its key was notified within the
// cooldown window. Suppression is silent apart from a counter.
func (b *Broker) Notify(ctx context.Context, opp *types.Opportunity) {
	if opp == nil {
		return
	}
	key := opp.Key()
	now := b.now()

	b.mu.Lock()
	last, seen := b.lastSent[key]
	if seen && now.Sub(last) < b.cfg.Cooldown {
		b.mu.Unlock()
		SuppressedTotal.Inc()
		return
	}
	b.lastSent[key] = now
	if len(b.lastSent) > pruneAbove {
		b.pruneLocked(now)
	}
	b.mu.Unlock()

	b.book.MarkNotified(key, now)
	for _, sink := range b.sinks {
		if err := sink.Send(ctx, opp); err != nil {
			SendsTotal.WithLabelValues(sink.Name(), "error").Inc()
			b.logger.Warn("notification-send-failed",
				zap.String("sink", sink.Name()),
				zap.String("key", key),
				zap.Error(err))
			continue
		}
		SendsTotal.WithLabelValues(sink.Name(), "ok").Inc()
		b.logger.Info("notification-sent",
			zap.String("sink", sink.Name()),
			zap.String("key", key),
			zap.Float64("edge-pct", opp.EdgePct))
	}
}

// NotifyKeys dispatches the opportunities behind freshly surfaced book
// keys. Keys already gone from the book are skipped.
func (b *Broker) NotifyKeys(ctx context.Context, keys []string) {
	for _, key := range keys {
		b.Notify(ctx, b.book.Get(key))
	}
}

// pruneLocked drops entries old enough that they can no longer suppress
// anything. Callers hold b.mu.
func (b *Broker) pruneLocked(now time.Time) {
	cutoff := now.Add(-2 * b.cfg.Cooldown)
	for key, at := range b.lastSent {
		if at.Before(cutoff) {
			delete(b.lastSent, key)
		}
	}
}
