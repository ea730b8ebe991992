package realtime

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crossvenue/arbscan/internal/arbitrage"
	"github.com/crossvenue/arbscan/internal/venues"
	"github.com/crossvenue/arbscan/pkg/types"
)

const updateQueueSize = 1024

// Worker ingests one venue's stream. The ingest loop applies updates to the
// board and marks markets dirty; a separate evaluation loop drains the dirty
// set, so a slow evaluation never blocks quote ingestion.
type Worker struct {
	venue     types.Venue
	streamer  venues.Streamer
	board     *Board
	pairs     PairSource
	evaluator *arbitrage.Evaluator
	book      *arbitrage.Book
	events    chan<- Event
	logger    *zap.Logger

	updates chan types.QuoteUpdate
	resub   chan []string

	mu    sync.Mutex
	dirty map[string]struct{}
	wake  chan struct{}
}

func newWorker(venue types.Venue, streamer venues.Streamer, board *Board, pairs PairSource, evaluator *arbitrage.Evaluator, book *arbitrage.Book, events chan<- Event, logger *zap.Logger) *Worker {
	return &Worker{
		venue:     venue,
		streamer:  streamer,
		board:     board,
		pairs:     pairs,
		evaluator: evaluator,
		book:      book,
		events:    events,
		logger:    logger,
		updates:   make(chan types.QuoteUpdate, updateQueueSize),
		resub:     make(chan []string, 1),
		dirty:     make(map[string]struct{}),
		wake:      make(chan struct{}, 1),
	}
}

// Run opens the venue stream and processes updates until ctx is cancelled
// or the stream dies. A dead stream is terminal for the worker; the polling
// scan keeps covering the venue, so the process stays up.
func (w *Worker) Run(ctx context.Context) error {
	stream, err := w.streamer.OpenStream(ctx, w.enqueue)
	if err != nil {
		StreamDeathsTotal.WithLabelValues(string(w.venue)).Inc()
		w.logger.Error("stream-open-failed",
			zap.String("venue", string(w.venue)),
			zap.Error(err))
		return nil
	}
	defer stream.Close()

	go w.evalLoop(ctx)

	w.logger.Info("realtime-worker-started", zap.String("venue", string(w.venue)))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stream.Dead():
			StreamDeathsTotal.WithLabelValues(string(w.venue)).Inc()
			w.logger.Error("subscription-died",
				zap.String("venue", string(w.venue)))
			return nil
		case ids := <-w.resub:
			if err := stream.Subscribe(ids); err != nil {
				w.logger.Warn("resubscribe-failed",
					zap.String("venue", string(w.venue)),
					zap.Int("markets", len(ids)),
					zap.Error(err))
				continue
			}
			SubscribedMarkets.WithLabelValues(string(w.venue)).Set(float64(len(ids)))
			w.logger.Debug("subscriptions-updated",
				zap.String("venue", string(w.venue)),
				zap.Int("markets", len(ids)))
		case u := <-w.updates:
			w.board.Apply(u)
			UpdatesTotal.WithLabelValues(string(w.venue)).Inc()
			w.markDirty(u.VenueMarketID)
		}
	}
}

// Resubscribe hands the worker a replacement target set. The latest set
// wins; an unapplied older one is discarded.
func (w *Worker) Resubscribe(ids []string) {
	for {
		select {
		case w.resub <- ids:
			return
		default:
			select {
			case <-w.resub:
			default:
			}
		}
	}
}

// enqueue is the stream callback. It must never block the stream's read
// loop; when the queue is full the update is dropped and the next scan
// repairs any staleness.
func (w *Worker) enqueue(u types.QuoteUpdate) {
	select {
	case w.updates <- u:
	default:
		UpdatesDroppedTotal.WithLabelValues(string(w.venue)).Inc()
	}
}

func (w *Worker) markDirty(venueMarketID string) {
	w.mu.Lock()
	w.dirty[venueMarketID] = struct{}{}
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// evalLoop drains the dirty set in batches. Multiple updates to one market
// between batches collapse into a single re-evaluation against the latest
// board state.
func (w *Worker) evalLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.wake:
			for {
				w.mu.Lock()
				if len(w.dirty) == 0 {
					w.mu.Unlock()
					break
				}
				batch := w.dirty
				w.dirty = make(map[string]struct{}, len(batch))
				w.mu.Unlock()

				ids := make([]string, 0, len(batch))
				for id := range batch {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				for _, id := range ids {
					w.evaluateMarket(id)
				}
			}
		}
	}
}

// evaluateMarket re-prices every pair touching the market with live quotes
// overlaid on both legs, then reconciles the book: a fresh opportunity is
// upserted, anything the evaluation no longer supports is removed.
func (w *Worker) evaluateMarket(venueMarketID string) {
	table := w.pairs.Pairs()
	for _, p := range table.Touching(w.venue, venueMarketID) {
		live := types.MatchPair{
			A:          w.board.Overlay(p.A),
			B:          w.board.Overlay(p.B),
			Confidence: p.Confidence,
		}
		opp := w.evaluator.Evaluate(live)

		keys := [2]string{
			types.OpportunityKey(p.A, p.B, types.DirectionAYesBNo),
			types.OpportunityKey(p.A, p.B, types.DirectionBYesANo),
		}
		if opp == nil {
			for _, key := range keys {
				w.drop(key)
			}
			continue
		}

		rising := w.book.Upsert(opp)
		for _, key := range keys {
			if key != opp.Key() {
				w.drop(key)
			}
		}
		if rising {
			EdgeCrossingsTotal.WithLabelValues(string(w.venue), "rising").Inc()
			w.logger.Info("opportunity-rising",
				zap.String("key", opp.Key()),
				zap.Float64("edge-pct", opp.EdgePct))
			w.emit(Event{Type: EventRising, Key: opp.Key(), Opportunity: opp, At: time.Now()})
		}
	}
}

// drop removes a book entry the latest evaluation no longer supports and
// publishes the falling edge.
func (w *Worker) drop(key string) {
	prior := w.book.Get(key)
	if prior == nil {
		return
	}
	if !w.book.Remove(key) {
		return
	}
	EdgeCrossingsTotal.WithLabelValues(string(w.venue), "falling").Inc()
	w.logger.Info("opportunity-falling", zap.String("key", key))
	w.emit(Event{Type: EventFalling, Key: key, Opportunity: prior, At: time.Now()})
}

func (w *Worker) emit(ev Event) {
	select {
	case w.events <- ev:
	default:
		EventsDroppedTotal.Inc()
	}
}
