package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/crossvenue/arbscan/pkg/types"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramConfig holds the bot credentials.
type TelegramConfig struct {
	BotToken string
	ChatID   string
	// BaseURL overrides the Telegram API endpoint, for tests.
	BaseURL string
}

// TelegramSink posts MarkdownV2 alerts through the Telegram Bot API.
type TelegramSink struct {
	cfg    TelegramConfig
	client *http.Client
}

type telegramMessage struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

// NewTelegramSink creates a telegram sink. Token and chat id must both be
// set; enabling is the config layer's decision.
func NewTelegramSink(cfg TelegramConfig) (*TelegramSink, error) {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return nil, fmt.Errorf("%w: telegram sink needs bot_token and chat_id", types.ErrConfig)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = telegramAPIBase
	}
	return &TelegramSink{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Name implements Sink.
func (t *TelegramSink) Name() string { return "telegram" }

// Send implements Sink.
func (t *TelegramSink) Send(ctx context.Context, opp *types.Opportunity) error {
	payload := telegramMessage{
		ChatID:                t.cfg.ChatID,
		Text:                  formatTelegram(opp),
		ParseMode:             "MarkdownV2",
		DisableWebPagePreview: true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.cfg.BaseURL, t.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	var tgResp telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&tgResp); err != nil {
		return fmt.Errorf("decode telegram response: %w", err)
	}
	if !tgResp.OK {
		return fmt.Errorf("telegram API error %d: %s", tgResp.ErrorCode, tgResp.Description)
	}
	return nil
}

// formatTelegram renders the alert. Every dynamic value goes through
// MarkdownV2 escaping; only the literal markup here is allowed through.
func formatTelegram(opp *types.Opportunity) string {
	yes, no := opp.Legs()

	var sb strings.Builder
	sb.WriteString("*Cross\\-venue arbitrage*\n")
	fmt.Fprintf(&sb, "YES %s: %s\n", escapeMarkdown(string(yes.Venue)), escapeMarkdown(yes.Title))
	fmt.Fprintf(&sb, "NO %s: %s\n", escapeMarkdown(string(no.Venue)), escapeMarkdown(no.Title))
	fmt.Fprintf(&sb, "Asks %s \\+ %s \\= %s\n",
		escapeMarkdown(fmt.Sprintf("%.4f", yes.Ask(types.SideYes))),
		escapeMarkdown(fmt.Sprintf("%.4f", no.Ask(types.SideNo))),
		escapeMarkdown(fmt.Sprintf("%.4f", opp.CombinedPrice)))
	fmt.Fprintf(&sb, "Edge: *%s%%*\n", escapeMarkdown(fmt.Sprintf("%.2f", opp.EdgePct)))
	if opp.AskSizeMin > 0 {
		fmt.Fprintf(&sb, "Size cap: %s\n", escapeMarkdown(fmt.Sprintf("%.2f", opp.AskSizeMin)))
	}
	fmt.Fprintf(&sb, "Confidence: %s", escapeMarkdown(fmt.Sprintf("%.2f", opp.Confidence)))
	return sb.String()
}

//nolint:gochecknoglobals // static replacer
var markdownEscaper = strings.NewReplacer(
	"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]", "(", "\\(", ")", "\\)",
	"~", "\\~", "`", "\\`", ">", "\\>", "#", "\\#", "+", "\\+", "-", "\\-",
	"=", "\\=", "|", "\\|", "{", "\\{", "}", "\\}", ".", "\\.", "!", "\\!",
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
