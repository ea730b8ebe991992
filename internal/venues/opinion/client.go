package opinion

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
	// DefaultBaseURL is the REST API root. Requests carry the key in an
	// apikey header.
	DefaultBaseURL = "https://api.opinion.trade"

	// MaxPageSize is the venue's cap on the first parameter.
	MaxPageSize = 100

	defaultMaxPages = 20
)

// opinionMarket is one catalog entry. The API is loose with types:
// numeric ids, epoch-millisecond close times, and volumes as decimal
// strings. The catalog carries no quotes; books come from the orderbook
// endpoint per market.
type opinionMarket struct {
	MarketID    int64  `json:"marketId"`
	MarketTitle string `json:"marketTitle"`
	Status      string `json:"status"`
	CloseAt     int64  `json:"closeAt"`
	Volume24h   string `json:"volume24h"`
	TotalVolume string `json:"totalVolume"`
	QuoteToken  string `json:"quoteToken"`
}

type pageInfo struct {
	EndCursor   string `json:"endCursor"`
	HasNextPage bool   `json:"hasNextPage"`
}

type marketsResponse struct {
	Markets  []opinionMarket `json:"markets"`
	PageInfo pageInfo        `json:"pageInfo"`
}

// bookSide is one side of the orderbook payload, string-encoded like the
// rest of the API.
type bookSide struct {
	BestBid string `json:"bestBid"`
	BestAsk string `json:"bestAsk"`
	AskSize string `json:"askSize"`
}

type orderbookResponse struct {
	MarketID int64    `json:"marketId"`
	Yes      bookSide `json:"yes"`
	No       bookSide `json:"no"`
}

// Client fetches the Opinion catalog and orderbooks.
type Client struct {
	rest     *venues.RESTClient
	maxPages int
	logger   *zap.Logger
}

// NewClient creates an Opinion REST client.
func NewClient(baseURL, apiKey string, maxPages int, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	header := http.Header{}
	if apiKey != "" {
		header.Set("apikey", apiKey)
	}

	return &Client{
		rest: venues.NewRESTClient(venues.RESTConfig{
			Venue:   types.VenueOpinion,
			BaseURL: baseURL,
			Header:  header,
			RPS:     5,
			Burst:   3,
			Logger:  logger,
		}),
		maxPages: maxPages,
		logger:   logger,
	}
}

// FetchMarkets walks /api/v2/markets with relay-style pagination until
// hasNextPage goes false or the page cap is reached. Returned snapshots
// have no quotes; TopOfBook fills them for matched markets only.
func (c *Client) FetchMarkets(ctx context.Context) ([]*types.MarketSnapshot, error) {
	var snaps []*types.MarketSnapshot
	cursor := ""

	for page := 0; page < c.maxPages; page++ {
		params := url.Values{}
		params.Set("status", "activated")
		params.Set("first", strconv.Itoa(MaxPageSize))
		if cursor != "" {
			params.Set("after", cursor)
		}

		var resp marketsResponse
		err := c.rest.GetJSON(ctx, "list_markets", "/api/v2/markets", params, &resp)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", page, err)
		}

		for i := range resp.Markets {
			snap, convErr := toSnapshot(&resp.Markets[i])
			if convErr != nil {
				venues.ParseErrorsTotal.WithLabelValues(string(types.VenueOpinion)).Inc()
				c.logger.Debug("dropping-market",
					zap.Int64("market-id", resp.Markets[i].MarketID),
					zap.Error(convErr))
				continue
			}
			snaps = append(snaps, snap)
		}

		if !resp.PageInfo.HasNextPage || resp.PageInfo.EndCursor == "" {
			break
		}
		cursor = resp.PageInfo.EndCursor
	}

	venues.SortByVolume(snaps)

	c.logger.Debug("fetched-markets",
		zap.String("venue", string(types.VenueOpinion)),
		zap.Int("count", len(snaps)))

	return snaps, nil
}

// FetchBook fetches both sides of one market's orderbook.
func (c *Client) FetchBook(ctx context.Context, venueMarketID string) (*types.MarketSnapshot, error) {
	var resp orderbookResponse
	path := "/api/v2/markets/" + url.PathEscape(venueMarketID) + "/orderbook"
	err := c.rest.GetJSON(ctx, "top_of_book", path, nil, &resp)
	if err != nil {
		return nil, err
	}

	snap := &types.MarketSnapshot{
		Venue:         types.VenueOpinion,
		VenueMarketID: venueMarketID,
		YesBid:        parsePrice(resp.Yes.BestBid),
		YesAsk:        parsePrice(resp.Yes.BestAsk),
		NoBid:         parsePrice(resp.No.BestBid),
		NoAsk:         parsePrice(resp.No.BestAsk),
		AskSizeYes:    parseSize(resp.Yes.AskSize),
		AskSizeNo:     parseSize(resp.No.AskSize),
		FetchedAt:     time.Now(),
	}

	if snap.YesAsk == 0 && snap.NoAsk == 0 {
		venues.ParseErrorsTotal.WithLabelValues(string(types.VenueOpinion)).Inc()
		return nil, types.NewVenueError(types.VenueOpinion, "top_of_book",
			fmt.Errorf("%w: empty book for market %s", types.ErrParse, venueMarketID))
	}

	return snap, nil
}

// toSnapshot converts a catalog entry, tolerating the string-typed
// numeric fields.
func toSnapshot(m *opinionMarket) (*types.MarketSnapshot, error) {
	if m.MarketID <= 0 {
		return nil, fmt.Errorf("%w: missing market id", types.ErrParse)
	}
	if m.MarketTitle == "" {
		return nil, fmt.Errorf("%w: market %d has no title", types.ErrParse, m.MarketID)
	}

	id := strconv.FormatInt(m.MarketID, 10)

	snap := &types.MarketSnapshot{
		Venue:         types.VenueOpinion,
		VenueMarketID: id,
		Title:         m.MarketTitle,
		Volume24hUSD:  parseSize(m.Volume24h),
		URL:           "https://app.opinion.trade/markets/" + id,
		FetchedAt:     time.Now(),
	}

	if m.CloseAt > 0 {
		snap.EndTime = time.UnixMilli(m.CloseAt)
	}

	return snap, nil
}

// parsePrice decodes a string price, zeroing anything outside (0,1).
func parsePrice(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 || v >= 1 {
		return 0
	}
	return v
}

// parseSize decodes a string quantity, zeroing anything negative or
// malformed.
func parseSize(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
