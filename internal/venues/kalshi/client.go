package kalshi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/crossvenue/arbscan/internal/venues"
	"github.com/crossvenue/arbscan/pkg/types"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the trade API serving catalogs and books.
	DefaultBaseURL = "https://api.elections.kalshi.com/trade-api/v2"
	// DefaultWSURL is the market data feed.
	DefaultWSURL = "wss://api.elections.kalshi.com/trade-api/ws/v2"

	// MaxPageSize is the venue's documented cap per catalog page.
	MaxPageSize = 1000

	defaultMaxPages = 10
)

// kalshiMarket is one market in the catalog payload. Prices are integer
// cents; both book sides are present.
type kalshiMarket struct {
	Ticker       string `json:"ticker"`
	EventTicker  string `json:"event_ticker"`
	Title        string `json:"title"`
	Status       string `json:"status"`
	YesBid       int    `json:"yes_bid"`
	YesAsk       int    `json:"yes_ask"`
	NoBid        int    `json:"no_bid"`
	NoAsk        int    `json:"no_ask"`
	Volume24h    int    `json:"volume_24h"`
	Liquidity    int    `json:"liquidity"`
	OpenInterest int    `json:"open_interest"`
	CloseTime    string `json:"close_time"`
}

type marketsResponse struct {
	Markets []kalshiMarket `json:"markets"`
	Cursor  string         `json:"cursor"`
}

type marketResponse struct {
	Market kalshiMarket `json:"market"`
}

// Client fetches the Kalshi catalog and books. Market data endpoints are
// unauthenticated.
type Client struct {
	rest     *venues.RESTClient
	maxPages int
	logger   *zap.Logger
}

// NewClient creates a Kalshi REST client.
func NewClient(baseURL string, maxPages int, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	return &Client{
		rest: venues.NewRESTClient(venues.RESTConfig{
			Venue:   types.VenueKalshi,
			BaseURL: baseURL,
			RPS:     10,
			Burst:   5,
			Logger:  logger,
		}),
		maxPages: maxPages,
		logger:   logger,
	}
}

// FetchMarkets walks /markets with the cursor token until the venue
// stops returning one or the page cap is reached.
func (c *Client) FetchMarkets(ctx context.Context) ([]*types.MarketSnapshot, error) {
	var snaps []*types.MarketSnapshot
	cursor := ""

	for page := 0; page < c.maxPages; page++ {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(MaxPageSize))
		params.Set("status", "open")
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		var resp marketsResponse
		err := c.rest.GetJSON(ctx, "list_markets", "/markets", params, &resp)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", page, err)
		}

		for i := range resp.Markets {
			snap, convErr := toSnapshot(&resp.Markets[i])
			if convErr != nil {
				venues.ParseErrorsTotal.WithLabelValues(string(types.VenueKalshi)).Inc()
				c.logger.Debug("dropping-market",
					zap.String("ticker", resp.Markets[i].Ticker),
					zap.Error(convErr))
				continue
			}
			snaps = append(snaps, snap)
		}

		cursor = resp.Cursor
		if cursor == "" || len(resp.Markets) == 0 {
			break
		}
	}

	venues.SortByVolume(snaps)

	c.logger.Debug("fetched-markets",
		zap.String("venue", string(types.VenueKalshi)),
		zap.Int("count", len(snaps)))

	return snaps, nil
}

// FetchMarket fetches a single market's current state by ticker.
func (c *Client) FetchMarket(ctx context.Context, ticker string) (*types.MarketSnapshot, error) {
	var resp marketResponse
	err := c.rest.GetJSON(ctx, "top_of_book", "/markets/"+url.PathEscape(ticker), nil, &resp)
	if err != nil {
		return nil, err
	}

	snap, err := toSnapshot(&resp.Market)
	if err != nil {
		venues.ParseErrorsTotal.WithLabelValues(string(types.VenueKalshi)).Inc()
		return nil, types.NewVenueError(types.VenueKalshi, "top_of_book", err)
	}

	return snap, nil
}

// toSnapshot converts the cents payload to the common fractional form.
func toSnapshot(m *kalshiMarket) (*types.MarketSnapshot, error) {
	if m.Ticker == "" {
		return nil, fmt.Errorf("%w: missing ticker", types.ErrParse)
	}
	if m.Title == "" {
		return nil, fmt.Errorf("%w: market %s has no title", types.ErrParse, m.Ticker)
	}

	snap := &types.MarketSnapshot{
		Venue:         types.VenueKalshi,
		VenueMarketID: m.Ticker,
		Title:         m.Title,
		YesBid:        centsToFraction(m.YesBid),
		YesAsk:        centsToFraction(m.YesAsk),
		NoBid:         centsToFraction(m.NoBid),
		NoAsk:         centsToFraction(m.NoAsk),
		Volume24hUSD:  float64(m.Volume24h),
		LiquidityUSD:  float64(m.Liquidity) / 100,
		URL:           "https://kalshi.com/markets/" + strings.ToLower(m.Ticker),
		FetchedAt:     time.Now(),
	}

	if m.CloseTime != "" {
		if closeTime, err := time.Parse(time.RFC3339, m.CloseTime); err == nil {
			snap.EndTime = closeTime
		}
	}

	return snap, nil
}

func centsToFraction(cents int) float64 {
	if cents <= 0 || cents >= 100 {
		return 0
	}
	return float64(cents) / 100
}
