package kalshi

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"

	"github.com/crossvenue/arbscan/internal/venues"
	"github.com/crossvenue/arbscan/pkg/types"
	"github.com/crossvenue/arbscan/pkg/websocket"
	"go.uber.org/zap"
)

// wsCommand is the command envelope the feed expects. Every command
// carries a client-chosen id echoed back in acks.
type wsCommand struct {
	ID     int64       `json:"id"`
	Cmd    string      `json:"cmd"`
	Params wsCmdParams `json:"params"`
}

type wsCmdParams struct {
	Channels      []string `json:"channels"`
	MarketTickers []string `json:"market_tickers"`
}

// wsEnvelope is the server-to-client frame. Only ticker payloads are
// consumed; acks and errors are logged.
type wsEnvelope struct {
	ID   int64           `json:"id"`
	Type string          `json:"type"`
	Msg  json.RawMessage `json:"msg"`
}

type wsTicker struct {
	MarketTicker string `json:"market_ticker"`
	YesBid       int    `json:"yes_bid"`
	YesAsk       int    `json:"yes_ask"`
	Ts           int64  `json:"ts"`
}

type wsError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Stream receives ticker updates over a single connection. Each ticker
// frame fans out as a YES update plus the complementary NO update, since
// the two sides of a Kalshi book are exact mirrors.
type Stream struct {
	client   *websocket.Client
	onUpdate func(types.QuoteUpdate)
	logger   *zap.Logger

	mu   sync.Mutex
	subs map[string]struct{}

	msgID atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func openStream(ctx context.Context, cfg venues.StreamConfig, onUpdate func(types.QuoteUpdate), logger *zap.Logger) (*Stream, error) {
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
	wsCfg := cfg.ClientConfig(types.VenueKalshi, logger)
	wsCfg.OnConnect = s.replay

	s.client = websocket.NewClient(wsCfg)
	if err := s.client.Start(); err != nil {
		cancel()
		return nil, types.NewVenueError(types.VenueKalshi, "subscribe", err)
	}

	s.wg.Add(1)
	go s.run()

	return s, nil
}

// Subscribe reconciles the live set with markets, sending subscribe and
// unsubscribe commands for the difference only.
func (s *Stream) Subscribe(markets []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	add, remove := venues.DiffSubscriptions(s.subs, markets)

	if len(remove) > 0 {
		if err := s.send("unsubscribe", remove); err != nil {
			s.logger.Warn("unsubscribe-failed",
				zap.Int("tickers", len(remove)),
				zap.Error(err))
		}
		for _, ticker := range remove {
			delete(s.subs, ticker)
		}
	}

	if len(add) > 0 {
		if err := s.send("subscribe", add); err != nil {
			s.logger.Warn("subscribe-failed",
				zap.Int("tickers", len(add)),
				zap.Error(err))
		}
		for _, ticker := range add {
			s.subs[ticker] = struct{}{}
		}
	}

	websocket.SubscriptionCount.WithLabelValues(string(types.VenueKalshi)).Set(float64(len(s.subs)))

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

func (s *Stream) send(cmd string, tickers []string) error {
	return s.client.SendJSON(wsCommand{
		ID:  s.msgID.Add(1),
		Cmd: cmd,
		Params: wsCmdParams{
			Channels:      []string{"ticker"},
			MarketTickers: tickers,
		},
	})
}

// replay resends the full subscription set after a reconnect.
func (s *Stream) replay(_ context.Context, client *websocket.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.subs) == 0 {
		return nil
	}

	tickers := make([]string, 0, len(s.subs))
	for ticker := range s.subs {
		tickers = append(tickers, ticker)
	}

	s.logger.Info("replaying-subscriptions",
		zap.String("venue", string(types.VenueKalshi)),
		zap.Int("tickers", len(tickers)))

	return client.SendJSON(wsCommand{
		ID:  s.msgID.Add(1),
		Cmd: "subscribe",
		Params: wsCmdParams{
			Channels:      []string{"ticker"},
			MarketTickers: tickers,
		},
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
	var env wsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.logger.Debug("unparseable-frame",
			zap.String("venue", string(types.VenueKalshi)),
			zap.Int("bytes", len(raw)))
		return
	}

	switch env.Type {
	case "ticker":
		s.handleTicker(env.Msg)
	case "subscribed", "unsubscribed", "ok":
		s.logger.Debug("command-ack", zap.Int64("id", env.ID), zap.String("type", env.Type))
	case "error":
		var e wsError
		if err := json.Unmarshal(env.Msg, &e); err == nil {
			s.logger.Warn("feed-error",
				zap.Int64("id", env.ID),
				zap.Int("code", e.Code),
				zap.String("msg", e.Msg))
		}
	default:
		s.logger.Debug("unhandled-frame-type", zap.String("type", env.Type))
	}
}

func (s *Stream) handleTicker(msg json.RawMessage) {
	var t wsTicker
	if err := json.Unmarshal(msg, &t); err != nil {
		s.logger.Debug("unparseable-ticker", zap.Error(err))
		return
	}
	if t.MarketTicker == "" {
		return
	}

	s.mu.Lock()
	_, subscribed := s.subs[t.MarketTicker]
	s.mu.Unlock()
	if !subscribed {
		return
	}

	yesBid := centsToFraction(t.YesBid)
	yesAsk := centsToFraction(t.YesAsk)
	if yesBid == 0 && yesAsk == 0 {
		return
	}

	ts := time.Now()
	if t.Ts > 0 {
		ts = time.Unix(t.Ts, 0)
	}

	s.onUpdate(types.QuoteUpdate{
		Venue:         types.VenueKalshi,
		VenueMarketID: t.MarketTicker,
		Side:          types.SideYes,
		BestBid:       yesBid,
		BestAsk:       yesAsk,
		Timestamp:     ts,
	})

	// The NO book is the mirror image of the YES book, so one ticker
	// frame refreshes both sides.
	var noBid, noAsk float64
	if yesAsk > 0 {
		noBid = 1 - yesAsk
	}
	if yesBid > 0 {
		noAsk = 1 - yesBid
	}
	s.onUpdate(types.QuoteUpdate{
		Venue:         types.VenueKalshi,
		VenueMarketID: t.MarketTicker,
		Side:          types.SideNo,
		BestBid:       noBid,
		BestAsk:       noAsk,
		Timestamp:     ts,
	})
}
