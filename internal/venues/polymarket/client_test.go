package polymarket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/crossvenue/arbscan/pkg/types"
	"go.uber.org/zap"
)

func gammaJSON(id string, volume float64) string {
	return fmt.Sprintf(`{"id":"%s","question":"Will Bitcoin hit $100K by 2026?","slug":"btc-100k-%s","active":true,"closed":false,"endDate":"2026-12-31T00:00:00Z","outcomes":"[\"Yes\", \"No\"]","clobTokenIds":"[\"%s-yes\", \"%s-no\"]","bestBid":0.44,"bestAsk":0.46,"volume24hr":%g,"liquidity":"1234.5"}`,
		id, id, id, id, volume)
}

func TestToSnapshot(t *testing.T) {
	tests := []struct {
		name    string
		market  gammaMarket
		wantErr bool
	}{
		{
			name: "valid binary market",
			market: gammaMarket{
				ID:           "m1",
				Question:     "Will Bitcoin hit $100K by 2026?",
				Slug:         "btc-100k",
				EndDate:      "2026-12-31T00:00:00Z",
				Outcomes:     `["Yes", "No"]`,
				ClobTokenIDs: `["tok-yes", "tok-no"]`,
				BestBid:      0.44,
				BestAsk:      0.46,
				Volume24hr:   50000,
				Liquidity:    "1234.5",
			},
		},
		{
			name:    "missing id",
			market:  gammaMarket{Question: "q", Outcomes: `["Yes","No"]`, ClobTokenIDs: `["a","b"]`},
			wantErr: true,
		},
		{
			name:    "missing question",
			market:  gammaMarket{ID: "m2", Outcomes: `["Yes","No"]`, ClobTokenIDs: `["a","b"]`},
			wantErr: true,
		},
		{
			name:    "unparseable outcomes",
			market:  gammaMarket{ID: "m3", Question: "q", Outcomes: `not json`, ClobTokenIDs: `["a","b"]`},
			wantErr: true,
		},
		{
			name:    "not binary",
			market:  gammaMarket{ID: "m4", Question: "q", Outcomes: `["A","B","C"]`, ClobTokenIDs: `["a","b","c"]`},
			wantErr: true,
		},
		{
			name:    "missing tokens",
			market:  gammaMarket{ID: "m5", Question: "q", Outcomes: `["Yes","No"]`, ClobTokenIDs: `[]`},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, yesAsset, err := toSnapshot(&tt.market)

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, types.ErrParse) {
					t.Errorf("error = %v, want ErrParse", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("toSnapshot() error = %v", err)
			}
			if yesAsset != "tok-yes" {
				t.Errorf("yesAsset = %s, want tok-yes", yesAsset)
			}
			if snap.Venue != types.VenuePoly {
				t.Errorf("venue = %s, want POLY", snap.Venue)
			}
			if snap.YesAsk != 0.46 || snap.YesBid != 0.44 {
				t.Errorf("yes book = %v/%v, want 0.44/0.46", snap.YesBid, snap.YesAsk)
			}

			// NO side derived from YES.
			if !snap.Derived {
				t.Error("snapshot should be marked derived")
			}
			if snap.NoAsk != 1-0.44 {
				t.Errorf("no_ask = %v, want %v", snap.NoAsk, 1-0.44)
			}
			if snap.NoBid != 1-0.46 {
				t.Errorf("no_bid = %v, want %v", snap.NoBid, 1-0.46)
			}

			if snap.LiquidityUSD != 1234.5 {
				t.Errorf("liquidity = %v, want 1234.5", snap.LiquidityUSD)
			}
			if snap.EndTime.Year() != 2026 {
				t.Errorf("end time year = %d, want 2026", snap.EndTime.Year())
			}
			if !strings.Contains(snap.URL, "btc-100k") {
				t.Errorf("url = %s, want slug link", snap.URL)
			}
		})
	}
}

func TestToSnapshot_ToleratesBadOptionalFields(t *testing.T) {
	m := gammaMarket{
		ID:           "m1",
		Question:     "q",
		Outcomes:     `["Yes","No"]`,
		ClobTokenIDs: `["a","b"]`,
		EndDate:      "soon",
		Liquidity:    "n/a",
	}

	snap, _, err := toSnapshot(&m)
	if err != nil {
		t.Fatalf("toSnapshot() error = %v", err)
	}
	if !snap.EndTime.IsZero() {
		t.Error("unparseable end date should stay zero")
	}
	if snap.LiquidityUSD != 0 {
		t.Error("unparseable liquidity should stay zero")
	}
}

func TestFetchMarkets_Pagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("active"); got != "true" {
			t.Errorf("active = %s, want true", got)
		}
		if got := r.URL.Query().Get("closed"); got != "false" {
			t.Errorf("closed = %s, want false", got)
		}

		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		var markets []string
		switch offset {
		case 0:
			for i := 0; i < MaxBatchSize; i++ {
				markets = append(markets, gammaJSON(fmt.Sprintf("m%03d", i), float64(10000-i)))
			}
		case MaxBatchSize:
			markets = append(markets, gammaJSON("tail-a", 5), gammaJSON("tail-b", 7))
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, "[%s]", strings.Join(markets, ","))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, 0, zap.NewNop())

	snaps, yesAssets, err := client.FetchMarkets(context.Background())
	if err != nil {
		t.Fatalf("FetchMarkets() error = %v", err)
	}

	if len(snaps) != MaxBatchSize+2 {
		t.Fatalf("len = %d, want %d", len(snaps), MaxBatchSize+2)
	}
	if len(yesAssets) != MaxBatchSize+2 {
		t.Fatalf("yesAssets len = %d, want %d", len(yesAssets), MaxBatchSize+2)
	}

	// Volume descending across pages.
	if snaps[0].VenueMarketID != "m000" {
		t.Errorf("first market = %s, want m000", snaps[0].VenueMarketID)
	}
	last := snaps[len(snaps)-1]
	if last.VenueMarketID != "tail-a" {
		t.Errorf("last market = %s, want tail-a (lowest volume)", last.VenueMarketID)
	}

	if yesAssets["tail-a"] != "tail-a-yes" {
		t.Errorf("token for tail-a = %s, want tail-a-yes", yesAssets["tail-a"])
	}
}

func TestFetchMarkets_RespectsPageCap(t *testing.T) {
	var pages int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		var markets []string
		for i := 0; i < MaxBatchSize; i++ {
			markets = append(markets, gammaJSON(fmt.Sprintf("p%d-m%03d", pages, i), 100))
		}
		fmt.Fprintf(w, "[%s]", strings.Join(markets, ","))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, 2, zap.NewNop())

	snaps, _, err := client.FetchMarkets(context.Background())
	if err != nil {
		t.Fatalf("FetchMarkets() error = %v", err)
	}
	if pages != 2 {
		t.Errorf("pages fetched = %d, want 2", pages)
	}
	if len(snaps) != 2*MaxBatchSize {
		t.Errorf("len = %d, want %d", len(snaps), 2*MaxBatchSize)
	}
}

func TestFetchMarkets_DropsInvalidMarkets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		good := gammaJSON("good", 100)
		bad := `{"id":"bad","question":"","outcomes":"[\"Yes\", \"No\"]","clobTokenIds":"[\"a\",\"b\"]"}`
		fmt.Fprintf(w, "[%s,%s]", good, bad)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, 0, zap.NewNop())

	snaps, _, err := client.FetchMarkets(context.Background())
	if err != nil {
		t.Fatalf("FetchMarkets() error = %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("len = %d, want 1 (invalid market dropped)", len(snaps))
	}
	if snaps[0].VenueMarketID != "good" {
		t.Errorf("kept market = %s, want good", snaps[0].VenueMarketID)
	}
}

func TestFetchBook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("token_id"); got != "tok-yes" {
			t.Errorf("token_id = %s, want tok-yes", got)
		}
		_, _ = w.Write([]byte(`{"market":"0xabc","bids":[{"price":"0.44","size":"120"}],"asks":[{"price":"0.46","size":"80"}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, 0, zap.NewNop())

	bid, ask, askSize, err := client.FetchBook(context.Background(), "tok-yes")
	if err != nil {
		t.Fatalf("FetchBook() error = %v", err)
	}
	if bid != 0.44 || ask != 0.46 {
		t.Errorf("book = %v/%v, want 0.44/0.46", bid, ask)
	}
	if askSize != 80 {
		t.Errorf("ask size = %v, want 80", askSize)
	}
}

func TestFetchBook_EmptyBook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"market":"0xabc","bids":[],"asks":[]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, 0, zap.NewNop())

	_, _, _, err := client.FetchBook(context.Background(), "tok-yes")
	if !errors.Is(err, types.ErrParse) {
		t.Fatalf("error = %v, want ErrParse for empty book", err)
	}
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient("", "", 0, zap.NewNop())
	if client.maxPages != defaultMaxPages {
		t.Errorf("maxPages = %d, want %d", client.maxPages, defaultMaxPages)
	}
}
