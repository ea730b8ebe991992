package predict

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/crossvenue/arbscan/internal/venues"
	"github.com/crossvenue/arbscan/pkg/types"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the REST API root. All endpoints require an
	// x-api-key header.
	DefaultBaseURL = "https://api.predictmarket.io"
	// DefaultWSURL is the realtime price feed.
	DefaultWSURL = "wss://stream.predictmarket.io/ws"

	// MaxPageSize is the venue's cap per catalog page.
	MaxPageSize = 200

	defaultMaxPages = 25
)

// predictMarket is one catalog entry. Outcomes are positional: index 0 is
// the YES outcome, index 1 is NO, each with its own top-of-book quote.
type predictMarket struct {
	ID        string           `json:"id"`
	Question  string           `json:"question"`
	Slug      string           `json:"slug"`
	Status    string           `json:"status"`
	EndDate   string           `json:"endDate"`
	Volume24h float64          `json:"volume24h"`
	Liquidity float64          `json:"liquidity"`
	Outcomes  []predictOutcome `json:"outcomes"`
}

type predictOutcome struct {
	Label string  `json:"label"`
	Bid   float64 `json:"bid"`
	Ask   float64 `json:"ask"`
	Size  float64 `json:"size"`
}

type marketsPage struct {
	Data       []predictMarket `json:"data"`
	NextCursor string          `json:"nextCursor"`
}

type marketDetail struct {
	Data predictMarket `json:"data"`
}

// Client fetches the Predict catalog and market details.
type Client struct {
	rest     *venues.RESTClient
	maxPages int
	logger   *zap.Logger
}

// NewClient creates a Predict REST client. apiKey is required by the
// venue for all endpoints.
func NewClient(baseURL, apiKey string, maxPages int, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	header := http.Header{}
	if apiKey != "" {
		header.Set("x-api-key", apiKey)
	}

	return &Client{
		rest: venues.NewRESTClient(venues.RESTConfig{
			Venue:   types.VenuePredict,
			BaseURL: baseURL,
			Header:  header,
			RPS:     8,
			Burst:   4,
			Logger:  logger,
		}),
		maxPages: maxPages,
		logger:   logger,
	}
}

// FetchMarkets walks /v1/markets with the cursor token until the venue
// stops returning one or the page cap is reached.
func (c *Client) FetchMarkets(ctx context.Context) ([]*types.MarketSnapshot, error) {
	var snaps []*types.MarketSnapshot
	cursor := ""

	for page := 0; page < c.maxPages; page++ {
		params := url.Values{}
		params.Set("status", "OPEN")
		params.Set("limit", strconv.Itoa(MaxPageSize))
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		var resp marketsPage
		err := c.rest.GetJSON(ctx, "list_markets", "/v1/markets", params, &resp)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", page, err)
		}

		for i := range resp.Data {
			snap, convErr := toSnapshot(&resp.Data[i])
			if convErr != nil {
				venues.ParseErrorsTotal.WithLabelValues(string(types.VenuePredict)).Inc()
				c.logger.Debug("dropping-market",
					zap.String("id", resp.Data[i].ID),
					zap.Error(convErr))
				continue
			}
			snaps = append(snaps, snap)
		}

		cursor = resp.NextCursor
		if cursor == "" || len(resp.Data) == 0 {
			break
		}
	}

	venues.SortByVolume(snaps)

	c.logger.Debug("fetched-markets",
		zap.String("venue", string(types.VenuePredict)),
		zap.Int("count", len(snaps)))

	return snaps, nil
}

// FetchMarket fetches a single market's current state by id.
func (c *Client) FetchMarket(ctx context.Context, id string) (*types.MarketSnapshot, error) {
	var resp marketDetail
	err := c.rest.GetJSON(ctx, "top_of_book", "/v1/markets/"+url.PathEscape(id), nil, &resp)
	if err != nil {
		return nil, err
	}

	snap, err := toSnapshot(&resp.Data)
	if err != nil {
		venues.ParseErrorsTotal.WithLabelValues(string(types.VenuePredict)).Inc()
		return nil, types.NewVenueError(types.VenuePredict, "top_of_book", err)
	}

	return snap, nil
}

// toSnapshot converts a catalog entry, requiring the two positional
// outcomes that make a market binary.
func toSnapshot(m *predictMarket) (*types.MarketSnapshot, error) {
	if m.ID == "" {
		return nil, fmt.Errorf("%w: missing market id", types.ErrParse)
	}
	if m.Question == "" {
		return nil, fmt.Errorf("%w: market %s has no question", types.ErrParse, m.ID)
	}
	if len(m.Outcomes) != 2 {
		return nil, fmt.Errorf("%w: market %s has %d outcomes, want 2", types.ErrParse, m.ID, len(m.Outcomes))
	}

	yes, no := m.Outcomes[0], m.Outcomes[1]

	snap := &types.MarketSnapshot{
		Venue:         types.VenuePredict,
		VenueMarketID: m.ID,
		Title:         m.Question,
		YesBid:        clampPrice(yes.Bid),
		YesAsk:        clampPrice(yes.Ask),
		NoBid:         clampPrice(no.Bid),
		NoAsk:         clampPrice(no.Ask),
		AskSizeYes:    yes.Size,
		AskSizeNo:     no.Size,
		Volume24hUSD:  m.Volume24h,
		LiquidityUSD:  m.Liquidity,
		URL:           "https://predictmarket.io/m/" + m.Slug,
		FetchedAt:     time.Now(),
	}

	if m.EndDate != "" {
		if endTime, err := time.Parse(time.RFC3339, m.EndDate); err == nil {
			snap.EndTime = endTime
		}
	}

	return snap, nil
}

// clampPrice zeroes prices outside (0,1); the venue reports 0 for an
// empty side and occasionally 1 for a settled one.
func clampPrice(p float64) float64 {
	if p <= 0 || p >= 1 {
		return 0
	}
	return p
}
