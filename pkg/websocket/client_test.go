package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func testConfig(url string) Config {
	return Config{
		URL:                   url,
		Venue:                 "POLY",
		DialTimeout:           5 * time.Second,
		PongTimeout:           15 * time.Second,
		PingInterval:          10 * time.Second,
		ReconnectInitialDelay: 50 * time.Millisecond,
		ReconnectMaxDelay:     200 * time.Millisecond,
		ReconnectBackoffMult:  2.0,
		ReconnectMaxAttempts:  3,
		MessageBufferSize:     100,
		Logger:                zap.NewNop(),
	}
}

func TestNewClient(t *testing.T) {
	cfg := testConfig("wss://example.test/ws")
	c := NewClient(cfg)

	if c == nil {
		t.Fatal("expected non-nil client")
	}
	if c.url != cfg.URL {
		t.Errorf("url = %q, want %q", c.url, cfg.URL)
	}
	if c.reconnectMgr == nil {
		t.Error("expected non-nil reconnect manager")
	}
	if cap(c.messageChan) != cfg.MessageBufferSize {
		t.Errorf("message channel capacity = %d, want %d", cap(c.messageChan), cfg.MessageBufferSize)
	}
	if c.Connected() {
		t.Error("client connected before Start")
	}

	select {
	case <-c.Dead():
		t.Error("Dead() fired before any reconnect attempt")
	default:
	}
}

func TestSendJSON_NotConnected(t *testing.T) {
	c := NewClient(testConfig("wss://example.test/ws"))

	err := c.SendJSON(map[string]string{"type": "market"})
	if err == nil {
		t.Error("expected error when sending on unconnected client")
	}
}

func TestClient_ReceivesFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	done := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"channel":"ticker"}`)); err != nil {
			t.Errorf("server write: %v", err)
			return
		}
		<-done
	}))
	defer srv.Close()
	defer close(done)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	c := NewClient(testConfig(wsURL))
	if err := c.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer c.Close()

	if !c.Connected() {
		t.Error("Connected() = false after Start")
	}

	select {
	case frame := <-c.MessageChan():
		if string(frame) != `{"channel":"ticker"}` {
			t.Errorf("frame = %q", frame)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received within 2s")
	}
}

func TestClient_OnConnectRunsOnStart(t *testing.T) {
	upgrader := websocket.Upgrader{}
	done := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		<-done
	}))
	defer srv.Close()
	defer close(done)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	ran := make(chan struct{}, 1)
	cfg := testConfig(wsURL)
	cfg.OnConnect = func(_ context.Context, _ *Client) error {
		ran <- struct{}{}
		return nil
	}

	c := NewClient(cfg)
	if err := c.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer c.Close()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("OnConnect did not run on Start")
	}
}

func TestClient_OnConnectFailurePropagates(t *testing.T) {
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	cfg := testConfig(wsURL)
	cfg.OnConnect = func(_ context.Context, _ *Client) error {
		return errors.New("subscribe rejected")
	}

	c := NewClient(cfg)
	err := c.Start()
	if err == nil {
		c.Close()
		t.Fatal("expected Start to surface OnConnect failure")
	}
}
