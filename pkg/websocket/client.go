package websocket

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client maintains a single persistent WebSocket session with heartbeats
// and automatic reconnection. Frame semantics (subscription envelopes,
// payload parsing) belong to the venue adapter: the client hands raw frames
// out on MessageChan and replays the adapter's OnConnect hook after every
// successful dial.
type Client struct {
	url          string
	conn         *websocket.Conn
	logger       *zap.Logger
	reconnectMgr *ReconnectManager
	config       Config
	messageChan  chan []byte
	dead         chan struct{}
	deadOnce     sync.Once
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	mu           sync.RWMutex
	writeMu      sync.Mutex
	connected    atomic.Bool
	lastPongTime atomic.Int64
	connStart    atomic.Int64 // Unix timestamp of connection start
}

// Config holds WebSocket client configuration.
type Config struct {
	URL    string
	Venue  string // metrics label
	Header http.Header

	DialTimeout           time.Duration
	PongTimeout           time.Duration
	PingInterval          time.Duration
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectBackoffMult  float64
	ReconnectMaxAttempts  int
	MessageBufferSize     int

	// OnConnect runs after every successful dial, including reconnects.
	// Venue adapters use it to replay their subscription frames.
	OnConnect func(ctx context.Context, c *Client) error

	Logger *zap.Logger
}

// NewClient creates a new WebSocket client.
func NewClient(cfg Config) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	if cfg.ReconnectBackoffMult <= 1 {
		cfg.ReconnectBackoffMult = 2.0
	}

	reconnectCfg := ReconnectConfig{
		InitialDelay:      cfg.ReconnectInitialDelay,
		MaxDelay:          cfg.ReconnectMaxDelay,
		BackoffMultiplier: cfg.ReconnectBackoffMult,
		JitterPercent:     0.2,
		MaxAttempts:       cfg.ReconnectMaxAttempts,
	}

	return &Client{
		url:          cfg.URL,
		logger:       cfg.Logger,
		reconnectMgr: NewReconnectManager(reconnectCfg, cfg.Logger),
		config:       cfg,
		messageChan:  make(chan []byte, cfg.MessageBufferSize),
		dead:         make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start dials the endpoint and launches the read, ping, and reconnect
// loops. The initial dial failing is returned to the caller; later drops
// are handled by the reconnect loop.
func (c *Client) Start() error {
	c.logger.Info("websocket-client-starting", zap.String("url", c.url))

	err := c.connect(c.ctx)
	if err != nil {
		return fmt.Errorf("initial connection: %w", err)
	}

	if err := c.runOnConnect(c.ctx); err != nil {
		c.mu.RLock()
		if c.conn != nil {
			c.conn.Close()
		}
		c.mu.RUnlock()
		c.markDisconnected()
		return fmt.Errorf("initial subscribe: %w", err)
	}

	c.wg.Add(3)
	go c.readLoop()
	go c.pingLoop()
	go c.reconnectLoop()

	return nil
}

// connect establishes a WebSocket connection.
func (c *Client) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.config.DialTimeout,
	}

	c.logger.Info("connecting-to-websocket", zap.String("url", c.url))

	conn, _, err := dialer.DialContext(ctx, c.url, c.config.Header)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	conn.SetPongHandler(func(string) error {
		c.lastPongTime.Store(time.Now().Unix())
		return nil
	})

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	now := time.Now()
	c.connected.Store(true)
	c.lastPongTime.Store(now.Unix())
	c.connStart.Store(now.Unix())
	ActiveConnections.WithLabelValues(c.config.Venue).Inc()

	c.logger.Info("websocket-connected")

	return nil
}

func (c *Client) runOnConnect(ctx context.Context) error {
	if c.config.OnConnect == nil {
		return nil
	}
	return c.config.OnConnect(ctx, c)
}

// SendJSON marshals v and writes it as a single text frame. Writes are
// serialized; gorilla connections allow one concurrent writer only.
func (c *Client) SendJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || !c.connected.Load() {
		return fmt.Errorf("not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// readLoop reads raw frames and forwards them without blocking.
func (c *Client) readLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		if conn == nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.ctx.Done():
				return
			default:
			}

			c.logger.Warn("read-error", zap.Error(err))
			c.markDisconnected()
			return
		}

		MessagesReceivedTotal.WithLabelValues(c.config.Venue).Inc()

		select {
		case c.messageChan <- message:
		default:
			c.logger.Warn("message-channel-full", zap.Int("bytes", len(message)))
			MessagesDroppedTotal.WithLabelValues(c.config.Venue, "channel_full").Inc()
		}
	}
}

// pingLoop sends periodic protocol pings and enforces the pong deadline.
func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if !c.connected.Load() {
				continue
			}

			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()

			if conn == nil {
				continue
			}

			// A peer silent past the pong deadline is dead even when
			// the TCP session lingers.
			if c.config.PongTimeout > 0 {
				last := time.Unix(c.lastPongTime.Load(), 0)
				if time.Since(last) > c.config.PongTimeout {
					c.logger.Warn("pong-deadline-exceeded",
						zap.Time("last-pong", last))
					conn.Close()
					continue
				}
			}

			err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second))
			if err != nil {
				c.logger.Warn("ping-error", zap.Error(err))
			}
		}
	}
}

// reconnectLoop re-establishes dropped connections with backoff. When the
// attempt budget is exhausted the client is declared dead: Dead() closes
// and no further reconnects happen.
func (c *Client) reconnectLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		if c.connected.Load() {
			time.Sleep(time.Second)
			continue
		}

		c.logger.Warn("connection-lost-initiating-reconnect")

		err := c.reconnectMgr.Reconnect(c.ctx, c.connect)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.logger.Error("reconnection-failed", zap.Error(err))
			c.markDead()
			return
		}

		err = c.runOnConnect(c.ctx)
		if err != nil {
			c.logger.Error("resubscribe-failed", zap.Error(err))
			c.connected.Store(false)
			continue
		}

		c.logger.Info("reconnection-complete-restarting-read-loop")

		c.wg.Add(1)
		go c.readLoop()
	}
}

func (c *Client) markDisconnected() {
	startTime := c.connStart.Load()
	if startTime > 0 {
		duration := time.Since(time.Unix(startTime, 0)).Seconds()
		ConnectionDuration.WithLabelValues(c.config.Venue).Observe(duration)
	}

	if c.connected.Swap(false) {
		ActiveConnections.WithLabelValues(c.config.Venue).Dec()
	}
}

func (c *Client) markDead() {
	c.deadOnce.Do(func() {
		StreamsDiedTotal.WithLabelValues(c.config.Venue).Inc()
		close(c.dead)
	})
}

// MessageChan returns the channel carrying raw inbound frames.
func (c *Client) MessageChan() <-chan []byte {
	return c.messageChan
}

// Dead is closed once reconnection attempts are exhausted. It fires at
// most once per client lifetime.
func (c *Client) Dead() <-chan struct{} {
	return c.dead
}

// Connected reports whether the session is currently established.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Close gracefully closes the client.
func (c *Client) Close() error {
	c.logger.Info("closing-websocket-client")

	c.cancel()

	c.mu.RLock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.mu.RUnlock()

	c.wg.Wait()

	close(c.messageChan)

	if c.connected.Swap(false) {
		ActiveConnections.WithLabelValues(c.config.Venue).Dec()
	}

	c.logger.Info("websocket-client-closed")

	return nil
}
