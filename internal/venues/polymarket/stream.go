package polymarket

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/crossvenue/arbscan/internal/venues"
	"github.com/crossvenue/arbscan/pkg/types"
	"github.com/crossvenue/arbscan/pkg/websocket"
	"go.uber.org/zap"
)

// MaxAssetsPerConnection caps one connection's subscribe set; the feed
// silently stops acking subscriptions past it.
const MaxAssetsPerConnection = 200

// wsMessage is one event on the CLOB market channel. Frames arrive as
// arrays of these; heartbeats are empty arrays and control messages are
// plain objects.
type wsMessage struct {
	EventType string    `json:"event_type"`
	AssetID   string    `json:"asset_id"`
	Market    string    `json:"market"`
	Timestamp string    `json:"timestamp"`
	Bids      []wsLevel `json:"bids,omitempty"`
	Asks      []wsLevel `json:"asks,omitempty"`
}

type wsLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// Stream is the CLOB market-channel feed. Subscriptions are sharded
// across pooled connections by token id because the venue caps assets per
// connection. Quote state is tracked per token so partial price_change
// events still produce complete updates.
type Stream struct {
	pool     *websocket.Pool
	tokens   *tokenMap
	onUpdate func(types.QuoteUpdate)
	logger   *zap.Logger

	mu        sync.Mutex
	shardSubs []map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func openStream(ctx context.Context, cfg venues.StreamConfig, poolSize int, tokens *tokenMap, onUpdate func(types.QuoteUpdate), logger *zap.Logger) (*Stream, error) {
	if cfg.URL == "" {
		cfg.URL = DefaultWSURL
	}
	if poolSize <= 0 {
		poolSize = 2
	}

	streamCtx, cancel := context.WithCancel(ctx)

	s := &Stream{
		tokens:    tokens,
		onUpdate:  onUpdate,
		logger:    logger,
		shardSubs: make([]map[string]struct{}, poolSize),
		ctx:       streamCtx,
		cancel:    cancel,
	}
	for i := range s.shardSubs {
		s.shardSubs[i] = make(map[string]struct{})
	}

	s.pool = websocket.NewPool(poolSize, func(shard int) websocket.Config {
		clientCfg := cfg.ClientConfig(types.VenuePoly, logger)
		clientCfg.OnConnect = func(_ context.Context, client *websocket.Client) error {
			return s.replayShard(shard, client)
		}
		return clientCfg
	}, logger)

	err := s.pool.Start()
	if err != nil {
		cancel()
		return nil, types.NewVenueError(types.VenuePoly, "subscribe", err)
	}

	s.wg.Add(1)
	go s.run()

	return s, nil
}

// Subscribe replaces the subscription set with the given market ids.
// Ids are translated to YES token ids, sharded, and diffed per shard so
// only the changed assets generate frames. Write failures are logged and
// repaired by the replay on the next reconnect.
func (s *Stream) Subscribe(marketIDs []string) error {
	desired := make([]map[string]struct{}, len(s.shardSubs))
	for i := range desired {
		desired[i] = make(map[string]struct{})
	}

	for _, marketID := range marketIDs {
		asset, ok := s.tokens.assetFor(marketID)
		if !ok {
			s.logger.Debug("no-token-for-market", zap.String("market-id", marketID))
			continue
		}
		desired[s.pool.ShardFor(asset)][asset] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for shard := range s.shardSubs {
		assets := make([]string, 0, len(desired[shard]))
		for asset := range desired[shard] {
			assets = append(assets, asset)
		}

		add, remove := venues.DiffSubscriptions(s.shardSubs[shard], assets)
		if len(add) == 0 && len(remove) == 0 {
			continue
		}

		free := MaxAssetsPerConnection - (len(s.shardSubs[shard]) - len(remove))
		if len(add) > free {
			s.logger.Warn("subscription-cap-reached",
				zap.Int("shard", shard),
				zap.Int("dropped", len(add)-free))
			add = add[:free]
		}

		initial := len(s.shardSubs[shard]) == 0
		client := s.pool.ClientAt(shard)

		if len(remove) > 0 {
			err := client.SendJSON(map[string]interface{}{
				"assets_ids": remove,
				"operation":  "unsubscribe",
			})
			if err != nil {
				s.logger.Warn("unsubscribe-write-failed",
					zap.Int("shard", shard),
					zap.Error(err))
			}
			for _, asset := range remove {
				delete(s.shardSubs[shard], asset)
			}
		}

		if len(add) > 0 {
			var frame map[string]interface{}
			if initial {
				frame = map[string]interface{}{
					"assets_ids": add,
					"type":       "market",
				}
			} else {
				frame = map[string]interface{}{
					"assets_ids": add,
					"operation":  "subscribe",
				}
			}

			err := client.SendJSON(frame)
			if err != nil {
				s.logger.Warn("subscribe-write-failed",
					zap.Int("shard", shard),
					zap.Error(err))
			}
			for _, asset := range add {
				s.shardSubs[shard][asset] = struct{}{}
			}
		}

		s.logger.Info("subscriptions-updated",
			zap.Int("shard", shard),
			zap.Int("added", len(add)),
			zap.Int("removed", len(remove)),
			zap.Int("total", len(s.shardSubs[shard])))
	}

	websocket.SubscriptionCount.WithLabelValues(string(types.VenuePoly)).Set(float64(s.subscribedLocked()))

	return nil
}

func (s *Stream) subscribedLocked() int {
	total := 0
	for _, subs := range s.shardSubs {
		total += len(subs)
	}
	return total
}

// replayShard resends the shard's full subscription set after a
// reconnect.
func (s *Stream) replayShard(shard int, client *websocket.Client) error {
	s.mu.Lock()
	assets := make([]string, 0, len(s.shardSubs[shard]))
	for asset := range s.shardSubs[shard] {
		assets = append(assets, asset)
	}
	s.mu.Unlock()

	if len(assets) == 0 {
		return nil
	}

	err := client.SendJSON(map[string]interface{}{
		"assets_ids": assets,
		"type":       "market",
	})
	if err != nil {
		return fmt.Errorf("replay subscriptions: %w", err)
	}

	s.logger.Info("subscriptions-replayed",
		zap.Int("shard", shard),
		zap.Int("count", len(assets)))

	return nil
}

// Dead is closed when any shard exhausts its reconnect budget.
func (s *Stream) Dead() <-chan struct{} {
	return s.pool.Dead()
}

// Close shuts the feed down.
func (s *Stream) Close() error {
	s.cancel()
	err := s.pool.Close()
	s.wg.Wait()
	return err
}

// run consumes pooled frames, tracks per-token quote state, and emits
// updates. A single goroutine owns the state, which keeps updates for one
// market in arrival order.
func (s *Stream) run() {
	defer s.wg.Done()

	type bookState struct {
		bid     float64
		ask     float64
		askSize float64
	}
	books := make(map[string]bookState)

	for {
		select {
		case <-s.ctx.Done():
			return
		case frame, ok := <-s.pool.MessageChan():
			if !ok {
				return
			}

			var msgs []wsMessage
			err := json.Unmarshal(frame, &msgs)
			if err != nil {
				s.logUnparseable(frame, err)
				continue
			}

			for i := range msgs {
				msg := &msgs[i]

				marketID, known := s.tokens.market(msg.AssetID)
				if !known {
					continue
				}

				st := books[msg.AssetID]
				switch msg.EventType {
				case "book":
					if price, _, ok := bestLevel(msg.Bids); ok {
						st.bid = price
					}
					if price, size, ok := bestLevel(msg.Asks); ok {
						st.ask = price
						st.askSize = size
					}
				case "price_change":
					// Carries the new best levels with zero sizes; keep
					// the last known sizes.
					if price, _, ok := bestLevel(msg.Bids); ok {
						st.bid = price
					}
					if price, size, ok := bestLevel(msg.Asks); ok {
						st.ask = price
						if size > 0 {
							st.askSize = size
						}
					}
				default:
					continue
				}
				books[msg.AssetID] = st

				if st.bid == 0 && st.ask == 0 {
					continue
				}

				s.onUpdate(types.QuoteUpdate{
					Venue:         types.VenuePoly,
					VenueMarketID: marketID,
					Side:          types.SideYes,
					BestBid:       st.bid,
					BestAsk:       st.ask,
					Timestamp:     time.Now(),
				})
			}
		}
	}
}

func (s *Stream) logUnparseable(frame []byte, err error) {
	// Heartbeats are empty arrays; subscription acks are plain objects.
	if len(frame) < 10 {
		s.logger.Debug("websocket-heartbeat-received", zap.Int("bytes", len(frame)))
		return
	}

	var control map[string]interface{}
	if json.Unmarshal(frame, &control) == nil {
		s.logger.Debug("websocket-control-message", zap.Int("bytes", len(frame)))
		return
	}

	preview := frame
	if len(preview) > 100 {
		preview = preview[:100]
	}
	s.logger.Debug("websocket-unparseable-message",
		zap.Error(err),
		zap.ByteString("preview", preview))
}

func bestLevel(levels []wsLevel) (price, size float64, ok bool) {
	if len(levels) == 0 {
		return 0, 0, false
	}

	price, err := strconv.ParseFloat(levels[0].Price, 64)
	if err != nil {
		return 0, 0, false
	}
	size, _ = strconv.ParseFloat(levels[0].Size, 64)

	return price, size, true
}
