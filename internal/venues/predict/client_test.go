package predict

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/crossvenue/arbscan/pkg/types"
	"go.uber.org/zap"
)

func validMarket() predictMarket {
	return predictMarket{
		ID:        "pm_2026_recession",
		Question:  "US recession declared before 2027?",
		Slug:      "us-recession-2027",
		Status:    "OPEN",
		EndDate:   "2026-12-31T23:59:00Z",
		Volume24h: 54000,
		Liquidity: 120000,
		Outcomes: []predictOutcome{
			{Label: "Yes", Bid: 0.31, Ask: 0.33, Size: 500},
			{Label: "No", Bid: 0.66, Ask: 0.68, Size: 420},
		},
	}
}

func TestToSnapshot(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*predictMarket)
		wantErr bool
	}{
		{
			name:   "valid market",
			mutate: func(m *predictMarket) {},
		},
		{
			name:    "missing id",
			mutate:  func(m *predictMarket) { m.ID = "" },
			wantErr: true,
		},
		{
			name:    "missing question",
			mutate:  func(m *predictMarket) { m.Question = "" },
			wantErr: true,
		},
		{
			name:    "single outcome",
			mutate:  func(m *predictMarket) { m.Outcomes = m.Outcomes[:1] },
			wantErr: true,
		},
		{
			name: "multi outcome",
			mutate: func(m *predictMarket) {
				m.Outcomes = append(m.Outcomes, predictOutcome{Label: "Maybe"})
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validMarket()
			tt.mutate(&m)

			snap, err := toSnapshot(&m)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, types.ErrParse) {
					t.Errorf("expected ErrParse, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if snap.Venue != types.VenuePredict {
				t.Errorf("venue = %s, want PREDICT", snap.Venue)
			}
			if snap.YesBid != 0.31 || snap.YesAsk != 0.33 {
				t.Errorf("yes side = %.2f/%.2f, want 0.31/0.33", snap.YesBid, snap.YesAsk)
			}
			if snap.NoBid != 0.66 || snap.NoAsk != 0.68 {
				t.Errorf("no side = %.2f/%.2f, want 0.66/0.68", snap.NoBid, snap.NoAsk)
			}
			if snap.AskSizeYes != 500 || snap.AskSizeNo != 420 {
				t.Errorf("sizes = %.0f/%.0f, want 500/420", snap.AskSizeYes, snap.AskSizeNo)
			}
			if snap.Derived {
				t.Error("both sides are quoted, snapshot should not be derived")
			}
			if !snap.HasQuotes() {
				t.Error("snapshot should have quotes")
			}
			if snap.EndTime.Year() != 2026 {
				t.Errorf("end time year = %d, want 2026", snap.EndTime.Year())
			}
		})
	}
}

func TestClampPrice(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0.5, 0.5},
		{0.01, 0.01},
		{0, 0},
		{1, 0},
		{1.2, 0},
		{-0.1, 0},
	}

	for _, tt := range tests {
		if got := clampPrice(tt.in); got != tt.want {
			t.Errorf("clampPrice(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFetchMarkets_SendsAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			http.Error(w, "missing key", http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("status") != "OPEN" {
			t.Errorf("status = %q, want OPEN", r.URL.Query().Get("status"))
		}

		w.Header().Set("Content-Type", "application/json")
		page := marketsPage{Data: []predictMarket{validMarket()}}
		if err := json.NewEncoder(w).Encode(page); err != nil {
			t.Errorf("encode page: %v", err)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", 1, zap.NewNop())
	snaps, err := client.FetchMarkets(context.Background())
	if err != nil {
		t.Fatalf("FetchMarkets: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("got %d markets, want 1", len(snaps))
	}
}

func TestFetchMarkets_RejectedKeyFailsWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "wrong-key", 1, zap.NewNop())
	_, err := client.FetchMarkets(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, types.ErrAuthenticationFailed) {
		t.Errorf("expected ErrAuthenticationFailed, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("made %d requests, want 1 (auth failures are not retried)", calls.Load())
	}
}

func TestFetchMarkets_CursorPagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var page marketsPage
		switch r.URL.Query().Get("cursor") {
		case "":
			m := validMarket()
			m.ID = "pm_first"
			m.Volume24h = 10
			page = marketsPage{Data: []predictMarket{m}, NextCursor: "c2"}
		case "c2":
			m := validMarket()
			m.ID = "pm_second"
			m.Volume24h = 99
			page = marketsPage{Data: []predictMarket{m}}
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("cursor"))
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(page); err != nil {
			t.Errorf("encode page: %v", err)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", 5, zap.NewNop())
	snaps, err := client.FetchMarkets(context.Background())
	if err != nil {
		t.Fatalf("FetchMarkets: %v", err)
	}

	if len(snaps) != 2 {
		t.Fatalf("got %d markets, want 2", len(snaps))
	}
	if snaps[0].VenueMarketID != "pm_second" {
		t.Errorf("first market = %s, want pm_second (highest volume)", snaps[0].VenueMarketID)
	}
}

func TestFetchMarket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/markets/pm_2026_recession" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(marketDetail{Data: validMarket()}); err != nil {
			t.Errorf("encode detail: %v", err)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", 1, zap.NewNop())
	snap, err := client.FetchMarket(context.Background(), "pm_2026_recession")
	if err != nil {
		t.Fatalf("FetchMarket: %v", err)
	}
	if snap.YesAsk != 0.33 || snap.NoAsk != 0.68 {
		t.Errorf("asks = %.2f/%.2f, want 0.33/0.68", snap.YesAsk, snap.NoAsk)
	}
}
