package httpserver

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Dashboard clients never send payloads, only control frames.
	maxMessageSize = 512

	clientSendBuffer = 64
	broadcastBuffer  = 256
)

// Event is the frame pushed to dashboard clients.
type Event struct {
	Type string    `json:"type"`
	Data any       `json:"data"`
	At   time.Time `json:"at"`
}

//nolint:gochecknoglobals // shared upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is a read-only local tool; any origin may watch.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Hub manages dashboard websocket clients and broadcasts events to
// them. The clients map is owned by the Run goroutine; everyone else
// talks to it through channels.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	stopOnce   sync.Once
	count      atomic.Int64
	logger     *zap.Logger
}

// NewHub creates a hub. Call Run before accepting connections.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, broadcastBuffer),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run is the hub's main loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.publishCount()
			h.logger.Debug("dashboard-client-connected", zap.Int("clients", len(h.clients)))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.publishCount()
			h.logger.Debug("dashboard-client-disconnected", zap.Int("clients", len(h.clients)))

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client is not draining its buffer, cut it loose.
					delete(h.clients, client)
					close(client.send)
					WSSlowClientDropsTotal.Inc()
				}
			}
			h.publishCount()

		case <-h.done:
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.publishCount()
			return
		}
	}
}

// Stop disconnects all clients and ends the Run loop. Idempotent.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Broadcast marshals an event and queues it for every connected client.
// Never blocks; the event is dropped when the hub is saturated.
func (h *Hub) Broadcast(eventType string, data any) {
	payload, err := json.Marshal(Event{Type: eventType, Data: data, At: time.Now()})
	if err != nil {
		h.logger.Error("broadcast-marshal-failed", zap.String("type", eventType), zap.Error(err))
		return
	}

	select {
	case h.broadcast <- payload:
		WSBroadcastsTotal.Inc()
	default:
		h.logger.Warn("broadcast-queue-full", zap.String("type", eventType))
	}
}

// ClientCount reports how many dashboard clients are connected.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

func (h *Hub) publishCount() {
	h.count.Store(int64(len(h.clients)))
	WSClients.Set(float64(len(h.clients)))
}

// HandleWS upgrades GET /ws requests and seeds the new client with the
// current state frame.
func (h *Hub) HandleWS(state *stateHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("websocket-upgrade-failed", zap.Error(err))
			return
		}

		client := h.newClient(conn)
		if client == nil {
			return
		}

		initial, err := json.Marshal(Event{Type: "state", Data: state.snapshot(), At: time.Now()})
		if err != nil {
			h.logger.Error("initial-state-marshal-failed", zap.Error(err))
			return
		}
		select {
		case client.send <- initial:
		default:
		}
	}
}

// Client is one connected dashboard websocket.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// newClient registers a client and starts its pumps. Returns nil when
// the hub has already stopped.
func (h *Hub) newClient(conn *websocket.Conn) *Client {
	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return nil
	}

	go client.writePump()
	go client.readPump()

	return client
}

// writePump pushes queued frames to the connection and keeps it alive
// with pings. It exits when the hub closes the send channel.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection so close and pong frames are seen. The
// dashboard is read-only, any data frames are ignored.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
