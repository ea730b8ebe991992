package polymarket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/crossvenue/arbscan/internal/venues"
	"github.com/crossvenue/arbscan/pkg/types"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// frameServer records every JSON frame a stream sends and replies to
// subscribe frames with a book event for tok1.
func frameServer(t *testing.T) (*httptest.Server, chan map[string]interface{}) {
	t.Helper()

	frames := make(chan map[string]interface{}, 16)
	upgrader := gws.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			var frame map[string]interface{}
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			frames <- frame

			if frame["type"] == "market" || frame["operation"] == "subscribe" {
				evt := `[{"event_type":"book","asset_id":"tok1","market":"0x1","timestamp":"1724500000000","bids":[{"price":"0.44","size":"100"}],"asks":[{"price":"0.46","size":"50"}]}]`
				_ = conn.WriteMessage(gws.TextMessage, []byte(evt))
			}
		}
	}))
	t.Cleanup(srv.Close)

	return srv, frames
}

func waitFrame(t *testing.T, frames chan map[string]interface{}) map[string]interface{} {
	t.Helper()
	select {
	case frame := <-frames:
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func assetIDs(frame map[string]interface{}) []string {
	raw, _ := frame["assets_ids"].([]interface{})
	ids := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			ids = append(ids, s)
		}
	}
	return ids
}

func TestStream_SubscribeAndReceive(t *testing.T) {
	srv, frames := frameServer(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	tokens := newTokenMap()
	tokens.replace(map[string]string{"m1": "tok1"})

	updates := make(chan types.QuoteUpdate, 16)
	stream, err := openStream(context.Background(), venues.StreamConfig{URL: wsURL}, 1, tokens,
		func(u types.QuoteUpdate) { updates <- u }, zap.NewNop())
	require.NoError(t, err)
	defer stream.Close()

	require.NoError(t, stream.Subscribe([]string{"m1"}))

	// Initial subscription frame uses the market type envelope.
	frame := waitFrame(t, frames)
	assert.Equal(t, "market", frame["type"])
	assert.Equal(t, []string{"tok1"}, assetIDs(frame))

	select {
	case u := <-updates:
		assert.Equal(t, types.VenuePoly, u.Venue)
		assert.Equal(t, "m1", u.VenueMarketID)
		assert.Equal(t, types.SideYes, u.Side)
		assert.Equal(t, 0.44, u.BestBid)
		assert.Equal(t, 0.46, u.BestAsk)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for quote update")
	}
}

func TestStream_DiffsSubscriptions(t *testing.T) {
	srv, frames := frameServer(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	tokens := newTokenMap()
	tokens.replace(map[string]string{"m1": "tok1", "m2": "tok2"})

	stream, err := openStream(context.Background(), venues.StreamConfig{URL: wsURL}, 1, tokens,
		func(types.QuoteUpdate) {}, zap.NewNop())
	require.NoError(t, err)
	defer stream.Close()

	require.NoError(t, stream.Subscribe([]string{"m1"}))
	first := waitFrame(t, frames)
	assert.Equal(t, "market", first["type"])

	// Replace m1 with m2: one unsubscribe, one dynamic subscribe.
	require.NoError(t, stream.Subscribe([]string{"m2"}))

	unsub := waitFrame(t, frames)
	assert.Equal(t, "unsubscribe", unsub["operation"])
	assert.Equal(t, []string{"tok1"}, assetIDs(unsub))

	sub := waitFrame(t, frames)
	assert.Equal(t, "subscribe", sub["operation"])
	assert.Equal(t, []string{"tok2"}, assetIDs(sub))

	// Repeating the same set sends nothing; close and drain to prove it.
	require.NoError(t, stream.Subscribe([]string{"m2"}))
	select {
	case frame := <-frames:
		t.Fatalf("unexpected frame for unchanged set: %v", frame)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestStream_SkipsUnknownMarkets(t *testing.T) {
	srv, frames := frameServer(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	tokens := newTokenMap()
	tokens.replace(map[string]string{"m1": "tok1"})

	stream, err := openStream(context.Background(), venues.StreamConfig{URL: wsURL}, 1, tokens,
		func(types.QuoteUpdate) {}, zap.NewNop())
	require.NoError(t, err)
	defer stream.Close()

	require.NoError(t, stream.Subscribe([]string{"unknown-market"}))

	select {
	case frame := <-frames:
		t.Fatalf("unexpected frame for unknown market: %v", frame)
	case <-time.After(200 * time.Millisecond):
	}
}
