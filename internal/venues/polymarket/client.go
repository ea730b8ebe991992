package polymarket

import (
	"context"
	"encoding/json"
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
	// DefaultBaseURL is the Gamma API serving the market catalog.
	DefaultBaseURL = "https://gamma-api.polymarket.com"
	// DefaultClobURL is the CLOB API serving per-token books.
	DefaultClobURL = "https://clob.polymarket.com"
	// DefaultWSURL is the CLOB market data feed.
	DefaultWSURL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"

	// MaxBatchSize is the page size per catalog request, matching the
	// official client's batch size.
	MaxBatchSize = 100

	defaultMaxPages = 50
)

// gammaMarket is the Gamma API market payload. Outcomes and token ids
// arrive as JSON-encoded strings nested inside the JSON document.
type gammaMarket struct {
	ID           string  `json:"id"`
	Question     string  `json:"question"`
	Slug         string  `json:"slug"`
	Active       bool    `json:"active"`
	Closed       bool    `json:"closed"`
	EndDate      string  `json:"endDate"`
	Outcomes     string  `json:"outcomes"`     // "[\"Yes\", \"No\"]"
	ClobTokenIDs string  `json:"clobTokenIds"` // "[\"123...\", \"456...\"]"
	BestBid      float64 `json:"bestBid"`
	BestAsk      float64 `json:"bestAsk"`
	Volume24hr   float64 `json:"volume24hr"`
	Liquidity    string  `json:"liquidity"`
}

// clobBook is the CLOB book payload with string-encoded levels.
type clobBook struct {
	Market string      `json:"market"`
	Bids   []clobLevel `json:"bids"`
	Asks   []clobLevel `json:"asks"`
}

type clobLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// Client fetches the Polymarket catalog from the Gamma API and books
// from the CLOB API. Neither endpoint requires authentication.
type Client struct {
	gamma    *venues.RESTClient
	clob     *venues.RESTClient
	maxPages int
	logger   *zap.Logger
}

// NewClient creates a Polymarket REST client.
func NewClient(baseURL, clobURL string, maxPages int, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if clobURL == "" {
		clobURL = DefaultClobURL
	}
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	return &Client{
		gamma: venues.NewRESTClient(venues.RESTConfig{
			Venue:   types.VenuePoly,
			BaseURL: baseURL,
			RPS:     15,
			Burst:   5,
			Logger:  logger,
		}),
		clob: venues.NewRESTClient(venues.RESTConfig{
			Venue:   types.VenuePoly,
			BaseURL: clobURL,
			RPS:     30,
			Burst:   10,
			Logger:  logger,
		}),
		maxPages: maxPages,
		logger:   logger,
	}
}

// FetchMarkets walks the catalog with limit and offset until a short page
// or the page cap, converting payloads to snapshots. Markets that fail
// validation are dropped and counted. The returned map carries the market
// id to YES token id correspondence needed for book fetches and stream
// subscriptions.
func (c *Client) FetchMarkets(ctx context.Context) ([]*types.MarketSnapshot, map[string]string, error) {
	var snaps []*types.MarketSnapshot
	yesAssets := make(map[string]string)

	for page := 0; page < c.maxPages; page++ {
		params := url.Values{}
		params.Set("active", "true")
		params.Set("closed", "false")
		params.Set("limit", strconv.Itoa(MaxBatchSize))
		params.Set("offset", strconv.Itoa(page*MaxBatchSize))
		params.Set("order", "volume24hr")
		params.Set("ascending", "false")

		var batch []gammaMarket
		err := c.gamma.GetJSON(ctx, "list_markets", "/markets", params, &batch)
		if err != nil {
			return nil, nil, fmt.Errorf("fetch page %d: %w", page, err)
		}

		for i := range batch {
			snap, yesAsset, convErr := toSnapshot(&batch[i])
			if convErr != nil {
				venues.ParseErrorsTotal.WithLabelValues(string(types.VenuePoly)).Inc()
				c.logger.Debug("dropping-market",
					zap.String("market-id", batch[i].ID),
					zap.Error(convErr))
				continue
			}

			snaps = append(snaps, snap)
			yesAssets[snap.VenueMarketID] = yesAsset
		}

		if len(batch) < MaxBatchSize {
			break
		}
	}

	venues.SortByVolume(snaps)

	c.logger.Debug("fetched-markets",
		zap.String("venue", string(types.VenuePoly)),
		zap.Int("count", len(snaps)))

	return snaps, yesAssets, nil
}

// FetchBook fetches the top of the CLOB book for one token. The first
// level of each ladder is the best.
func (c *Client) FetchBook(ctx context.Context, assetID string) (bid, ask, askSize float64, err error) {
	params := url.Values{}
	params.Set("token_id", assetID)

	var book clobBook
	err = c.clob.GetJSON(ctx, "top_of_book", "/book", params, &book)
	if err != nil {
		return 0, 0, 0, err
	}

	if len(book.Bids) > 0 {
		bid, _ = parseLevel(book.Bids[0])
	}
	if len(book.Asks) > 0 {
		ask, askSize = parseLevel(book.Asks[0])
	}

	if bid == 0 && ask == 0 {
		return 0, 0, 0, types.NewVenueError(types.VenuePoly, "top_of_book",
			fmt.Errorf("%w: empty book for token %s", types.ErrParse, assetID))
	}

	return bid, ask, askSize, nil
}

func parseLevel(level clobLevel) (price, size float64) {
	price, _ = strconv.ParseFloat(level.Price, 64)
	size, _ = strconv.ParseFloat(level.Size, 64)
	return price, size
}

// toSnapshot converts a Gamma payload to the common snapshot plus the
// YES token id. Markets without a binary outcome pair are rejected.
func toSnapshot(g *gammaMarket) (*types.MarketSnapshot, string, error) {
	if g.ID == "" {
		return nil, "", fmt.Errorf("%w: missing market id", types.ErrParse)
	}
	if g.Question == "" {
		return nil, "", fmt.Errorf("%w: market %s has no question", types.ErrParse, g.ID)
	}

	var outcomes []string
	if err := json.Unmarshal([]byte(g.Outcomes), &outcomes); err != nil {
		return nil, "", fmt.Errorf("%w: market %s outcomes: %v", types.ErrParse, g.ID, err)
	}
	if len(outcomes) != 2 {
		return nil, "", fmt.Errorf("%w: market %s is not binary (%d outcomes)", types.ErrParse, g.ID, len(outcomes))
	}

	var tokenIDs []string
	if err := json.Unmarshal([]byte(g.ClobTokenIDs), &tokenIDs); err != nil {
		return nil, "", fmt.Errorf("%w: market %s clobTokenIds: %v", types.ErrParse, g.ID, err)
	}
	if len(tokenIDs) < 1 || tokenIDs[0] == "" {
		return nil, "", fmt.Errorf("%w: market %s has no YES token", types.ErrParse, g.ID)
	}

	snap := &types.MarketSnapshot{
		Venue:         types.VenuePoly,
		VenueMarketID: g.ID,
		Title:         g.Question,
		YesBid:        g.BestBid,
		YesAsk:        g.BestAsk,
		Volume24hUSD:  g.Volume24hr,
		FetchedAt:     time.Now(),
	}

	// The catalog exposes only the YES book.
	snap.DeriveNoSide()

	if liq, err := strconv.ParseFloat(g.Liquidity, 64); err == nil {
		snap.LiquidityUSD = liq
	}

	if g.EndDate != "" {
		if endTime, err := time.Parse(time.RFC3339, g.EndDate); err == nil {
			snap.EndTime = endTime
		}
	}

	if g.Slug != "" {
		snap.URL = "https://polymarket.com/market/" + strings.TrimPrefix(g.Slug, "/")
	}

	return snap, tokenIDs[0], nil
}
