package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossvenue/arbscan/pkg/types"
)

func TestTelegramSink_SendsMarkdownMessage(t *testing.T) {
	var got telegramMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/bot123:abc/sendMessage" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		json.NewEncoder(w).Encode(telegramResponse{OK: true})
	}))
	defer server.Close()

	sink, err := NewTelegramSink(TelegramConfig{
		BotToken: "123:abc",
		ChatID:   "42",
		BaseURL:  server.URL,
	})
	require.NoError(t, err)
	assert.Equal(t, "telegram", sink.Name())

	require.NoError(t, sink.Send(context.Background(), testOpp("p1", "k1", 80)))

	assert.Equal(t, "42", got.ChatID)
	assert.Equal(t, "MarkdownV2", got.ParseMode)
	assert.True(t, got.DisableWebPagePreview)
	assert.Contains(t, got.Text, "*Cross\\-venue arbitrage*")
	assert.Contains(t, got.Text, "Will Trump win the 2028 presidential election?")
	assert.Contains(t, got.Text, "Edge: *4\\.00%*")
	assert.Contains(t, got.Text, "Size cap: 80\\.00")
}

func TestTelegramSink_APIErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(telegramResponse{
			OK:          false,
			ErrorCode:   400,
			Description: "Bad Request: chat not found",
		})
	}))
	defer server.Close()

	sink, err := NewTelegramSink(TelegramConfig{BotToken: "123:abc", ChatID: "42", BaseURL: server.URL})
	require.NoError(t, err)

	err = sink.Send(context.Background(), testOpp("p1", "k1", 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "chat not found")
}

func TestNewTelegramSink_RequiresCredentials(t *testing.T) {
	_, err := NewTelegramSink(TelegramConfig{BotToken: "123:abc"})
	assert.ErrorIs(t, err, types.ErrConfig)

	_, err = NewTelegramSink(TelegramConfig{ChatID: "42"})
	assert.ErrorIs(t, err, types.ErrConfig)
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, "Will BTC close \\> $100k?\\!", escapeMarkdown("Will BTC close > $100k?!"))
	assert.Equal(t, "a\\_b\\*c\\.d", escapeMarkdown("a_b*c.d"))
	assert.Equal(t, "plain title", escapeMarkdown("plain title"))
}
