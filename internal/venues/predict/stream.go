package predict

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/crossvenue/arbscan/internal/venues"
	"github.com/crossvenue/arbscan/pkg/types"
	"github.com/crossvenue/arbscan/pkg/websocket"
	"go.uber.org/zap"
)

const channelPrefix = "price_level::"

// wsOp is the client-to-server frame. Channels name one market side
// each, so a market subscription is two channels.
type wsOp struct {
	Op       string   `json:"op"`
	Channels []string `json:"channels"`
}

// wsUpdate is a server-to-client quote frame. Frames without a channel
// are acks and keepalives.
type wsUpdate struct {
	Channel string  `json:"channel"`
	Data    wsQuote `json:"data"`
}

type wsQuote struct {
	Bid  float64 `json:"bid"`
	Ask  float64 `json:"ask"`
	Size float64 `json:"size"`
}

// Stream receives per-side price level updates over a single
// connection authenticated with the REST API key.
type Stream struct {
	client   *websocket.Client
	onUpdate func(types.QuoteUpdate)
	logger   *zap.Logger

	mu   sync.Mutex
	subs map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func openStream(ctx context.Context, cfg venues.StreamConfig, apiKey string, onUpdate func(types.QuoteUpdate), logger *zap.Logger) (*Stream, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	s := &Stream{
		onUpdate: onUpdate,
		logger:   logger,
		subs:     make(map[string]struct{}),
		ctx:      streamCtx,
		cancel:   cancel,
	}

	if cfg.URL == "" {
		cfg.URL = DefaultWSURL
	}
	wsCfg := cfg.ClientConfig(types.VenuePredict, logger)
	if apiKey != "" {
		wsCfg.Header = http.Header{}
		wsCfg.Header.Set("x-api-key", apiKey)
	}
	wsCfg.OnConnect = s.replay

	s.client = websocket.NewClient(wsCfg)
	if err := s.client.Start(); err != nil {
		cancel()
		return nil, types.NewVenueError(types.VenuePredict, "subscribe", err)
	}

	s.wg.Add(1)
	go s.run()

	return s, nil
}

// Subscribe reconciles the live set with markets, translating each
// market into its YES and NO channels.
func (s *Stream) Subscribe(markets []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	add, remove := venues.DiffSubscriptions(s.subs, markets)

	if len(remove) > 0 {
		if err := s.send("unsubscribe", remove); err != nil {
			s.logger.Warn("unsubscribe-failed",
				zap.Int("markets", len(remove)),
				zap.Error(err))
		}
		for _, id := range remove {
			delete(s.subs, id)
		}
	}

	if len(add) > 0 {
		if err := s.send("subscribe", add); err != nil {
			s.logger.Warn("subscribe-failed",
				zap.Int("markets", len(add)),
				zap.Error(err))
		}
		for _, id := range add {
			s.subs[id] = struct{}{}
		}
	}

	websocket.SubscriptionCount.WithLabelValues(string(types.VenuePredict)).Set(float64(len(s.subs)))

	return nil
}

// Dead closes when the underlying connection has given up reconnecting.
func (s *Stream) Dead() <-chan struct{} {
	return s.client.Dead()
}

// Close stops the stream and the connection.
func (s *Stream) Close() error {
	s.cancel()
	err := s.client.Close()
	s.wg.Wait()
	return err
}

func (s *Stream) send(op string, markets []string) error {
	return s.client.SendJSON(wsOp{
		Op:       op,
		Channels: channelsFor(markets),
	})
}

// replay resends the full subscription set after a reconnect.
func (s *Stream) replay(_ context.Context, client *websocket.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.subs) == 0 {
		return nil
	}

	markets := make([]string, 0, len(s.subs))
	for id := range s.subs {
		markets = append(markets, id)
	}

	s.logger.Info("replaying-subscriptions",
		zap.String("venue", string(types.VenuePredict)),
		zap.Int("markets", len(markets)))

	return client.SendJSON(wsOp{
		Op:       "subscribe",
		Channels: channelsFor(markets),
	})
}

func (s *Stream) run() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case raw, ok := <-s.client.MessageChan():
			if !ok {
				return
			}
			s.handleFrame(raw)
		}
	}
}

func (s *Stream) handleFrame(raw []byte) {
	var upd wsUpdate
	if err := json.Unmarshal(raw, &upd); err != nil {
		s.logger.Debug("unparseable-frame",
			zap.String("venue", string(types.VenuePredict)),
			zap.Int("bytes", len(raw)))
		return
	}

	if upd.Channel == "" {
		// Acks and keepalives carry no channel.
		return
	}

	id, side, ok := parseChannel(upd.Channel)
	if !ok {
		s.logger.Debug("unknown-channel", zap.String("channel", upd.Channel))
		return
	}

	s.mu.Lock()
	_, subscribed := s.subs[id]
	s.mu.Unlock()
	if !subscribed {
		return
	}

	bid := clampPrice(upd.Data.Bid)
	ask := clampPrice(upd.Data.Ask)
	if bid == 0 && ask == 0 {
		return
	}

	s.onUpdate(types.QuoteUpdate{
		Venue:         types.VenuePredict,
		VenueMarketID: id,
		Side:          side,
		BestBid:       bid,
		BestAsk:       ask,
		Timestamp:     time.Now(),
	})
}

// channelsFor expands market ids into their YES and NO channel names,
// keeping the two sides of one market adjacent.
func channelsFor(markets []string) []string {
	channels := make([]string, 0, 2*len(markets))
	for _, id := range markets {
		channels = append(channels,
			channelPrefix+id+"_YES",
			channelPrefix+id+"_NO")
	}
	return channels
}

// parseChannel splits "price_level::<id>_<SIDE>" back into its parts.
// Market ids may contain underscores, so the side is taken from the
// last separator.
func parseChannel(channel string) (string, types.Side, bool) {
	rest, found := strings.CutPrefix(channel, channelPrefix)
	if !found {
		return "", "", false
	}

	sep := strings.LastIndex(rest, "_")
	if sep <= 0 {
		return "", "", false
	}

	id := rest[:sep]
	switch rest[sep+1:] {
	case "YES":
		return id, types.SideYes, true
	case "NO":
		return id, types.SideNo, true
	default:
		return "", "", false
	}
}
