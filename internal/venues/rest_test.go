package venues

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/crossvenue/arbscan/pkg/types"
	"go.uber.org/zap"
)

func newTestClient(baseURL string, header http.Header) *RESTClient {
	return NewRESTClient(RESTConfig{
		Venue:   types.VenueKalshi,
		BaseURL: baseURL,
		Header:  header,
		Timeout: 2 * time.Second,
		RPS:     1000,
		Burst:   100,
		Logger:  zap.NewNop(),
	})
}

func TestGetJSON_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets" {
			t.Errorf("path = %s, want /markets", r.URL.Path)
		}
		if got := r.URL.Query().Get("status"); got != "open" {
			t.Errorf("status query = %s, want open", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"count": 3}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, nil)

	var out struct {
		Count int `json:"count"`
	}
	query := url.Values{}
	query.Set("status", "open")

	err := client.GetJSON(context.Background(), "list_markets", "/markets", query, &out)
	if err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if out.Count != 3 {
		t.Errorf("count = %d, want 3", out.Count)
	}
}

func TestGetJSON_SendsAuthHeader(t *testing.T) {
	var gotKey atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey.Store(r.Header.Get("x-api-key"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	header := http.Header{}
	header.Set("x-api-key", "secret-key")
	client := newTestClient(srv.URL, header)

	var out map[string]interface{}
	err := client.GetJSON(context.Background(), "list_markets", "/markets", nil, &out)
	if err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if got := gotKey.Load(); got != "secret-key" {
		t.Errorf("x-api-key = %v, want secret-key", got)
	}
}

func TestGetJSON_AuthFailedNoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, nil)

	var out map[string]interface{}
	err := client.GetJSON(context.Background(), "list_markets", "/markets", nil, &out)
	if !errors.Is(err, types.ErrAuthenticationFailed) {
		t.Fatalf("error = %v, want ErrAuthenticationFailed", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1 (auth failures must not retry)", got)
	}

	var venueErr *types.VenueError
	if !errors.As(err, &venueErr) {
		t.Fatalf("error is not a VenueError: %v", err)
	}
	if venueErr.Venue != types.VenueKalshi || venueErr.Op != "list_markets" {
		t.Errorf("venue error context = %s/%s, want KALSHI/list_markets", venueErr.Venue, venueErr.Op)
	}
}

func TestGetJSON_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, nil)

	var out struct {
		OK bool `json:"ok"`
	}
	err := client.GetJSON(context.Background(), "list_markets", "/markets", nil, &out)
	if err != nil {
		t.Fatalf("GetJSON() error = %v, want success on third attempt", err)
	}
	if !out.OK {
		t.Error("expected decoded body from successful attempt")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestGetJSON_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, nil)

	var out map[string]interface{}
	err := client.GetJSON(context.Background(), "list_markets", "/markets", nil, &out)
	if !errors.Is(err, types.ErrNetworkUnavailable) {
		t.Fatalf("error = %v, want ErrNetworkUnavailable", err)
	}
	if got := calls.Load(); got != maxAttempts {
		t.Errorf("calls = %d, want %d", got, maxAttempts)
	}
}

func TestGetJSON_ParseErrorNoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, nil)

	var out map[string]interface{}
	err := client.GetJSON(context.Background(), "list_markets", "/markets", nil, &out)
	if !errors.Is(err, types.ErrParse) {
		t.Fatalf("error = %v, want ErrParse", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1 (parse failures must not retry)", got)
	}
}

func TestGetJSON_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := newTestClient(srv.URL, nil)

	var out map[string]interface{}
	err := client.GetJSON(context.Background(), "list_markets", "/markets", nil, &out)
	if !errors.Is(err, types.ErrNetworkUnavailable) {
		t.Fatalf("error = %v, want ErrNetworkUnavailable", err)
	}
}
