package coingecko_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Tonic56/coin-watchlist/internal/coingecko"
	"github.com/Tonic56/coin-watchlist/internal/config"
	"github.com/Tonic56/coin-watchlist/lib/errs"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newClient(t *testing.T, handler http.HandlerFunc, cache coingecko.DetailCache) *coingecko.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.UpstreamConfig{
		BaseURL:      server.URL + "/",
		APIKey:       "test-key",
		APIKeyHeader: "x-cg-demo-api-key",
	}
	return coingecko.New(cfg, cache, testLogger())
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func (c *memoryCache) Get(_ context.Context, coinID string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	body, ok := c.entries[coinID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return body, nil
}

func (c *memoryCache) Set(_ context.Context, coinID string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[coinID] = body
	return nil
}

func TestListMarket(t *testing.T) {
	t.Run("page_size_is_clamped", func(t *testing.T) {
		var perPage, page string
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			perPage = r.URL.Query().Get("per_page")
			page = r.URL.Query().Get("page")
			w.Write([]byte("[]"))
		}, nil)

		if _, err := client.ListMarket(context.Background(), "usd", 0, 999); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if perPage != "50" {
			t.Errorf("Expected per_page 50, got %s", perPage)
		}
		if page != "1" {
			t.Errorf("Expected page 1, got %s", page)
		}
	})

	t.Run("sends_query_and_api_key", func(t *testing.T) {
		var gotPath, gotKey, gotCurrency, gotOrder string
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotKey = r.Header.Get("x-cg-demo-api-key")
			gotCurrency = r.URL.Query().Get("vs_currency")
			gotOrder = r.URL.Query().Get("order")
			w.Write([]byte("[]"))
		}, nil)

		body, err := client.ListMarket(context.Background(), "eur", 2, 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(body) != "[]" {
			t.Errorf("unexpected body %q", body)
		}
		if gotPath != "/coins/markets" {
			t.Errorf("unexpected path %s", gotPath)
		}
		if gotKey != "test-key" {
			t.Errorf("Expected api key header, got %q", gotKey)
		}
		if gotCurrency != "eur" || gotOrder != "market_cap_desc" {
			t.Errorf("unexpected query currency=%s order=%s", gotCurrency, gotOrder)
		}
	})

	t.Run("non_success_status", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}, nil)

		_, err := client.ListMarket(context.Background(), "usd", 1, 50)

		var upErr *errs.UpstreamError
		if !errors.As(err, &upErr) {
			t.Fatalf("Expected *errs.UpstreamError, got %v", err)
		}
		if upErr.StatusCode != http.StatusTooManyRequests {
			t.Errorf("Expected status 429, got %d", upErr.StatusCode)
		}
	})

	t.Run("transport_failure", func(t *testing.T) {
		cfg := config.UpstreamConfig{BaseURL: "http://127.0.0.1:1", APIKey: "k", APIKeyHeader: "x-cg-demo-api-key"}
		client := coingecko.New(cfg, nil, testLogger())

		_, err := client.ListMarket(context.Background(), "usd", 1, 50)
		if !errs.IsUpstream(err) {
			t.Errorf("Expected upstream error, got %v", err)
		}
	})
}

func TestGetDetail(t *testing.T) {
	t.Run("path_and_flags", func(t *testing.T) {
		var gotPath, marketData, tickers string
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			marketData = r.URL.Query().Get("market_data")
			tickers = r.URL.Query().Get("tickers")
			w.Write([]byte(`{"id":"bitcoin"}`))
		}, nil)

		if _, err := client.GetDetail(context.Background(), "bitcoin"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if gotPath != "/coins/bitcoin" {
			t.Errorf("unexpected path %s", gotPath)
		}
		if marketData != "true" || tickers != "false" {
			t.Errorf("unexpected flags market_data=%s tickers=%s", marketData, tickers)
		}
	})

	t.Run("not_found_carries_coin_id", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}, nil)

		_, err := client.GetDetail(context.Background(), "no-such-coin")

		var upErr *errs.UpstreamError
		if !errors.As(err, &upErr) {
			t.Fatalf("Expected *errs.UpstreamError, got %v", err)
		}
		if upErr.CoinID != "no-such-coin" || upErr.StatusCode != http.StatusNotFound {
			t.Errorf("unexpected upstream error %+v", upErr)
		}
	})

	t.Run("cached_body_skips_provider", func(t *testing.T) {
		var calls atomic.Int32
		cache := &memoryCache{entries: map[string][]byte{}}
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.Write([]byte(`{"id":"solana"}`))
		}, cache)

		for i := 0; i < 3; i++ {
			body, err := client.GetDetail(context.Background(), "solana")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(body) != `{"id":"solana"}` {
				t.Errorf("unexpected body %q", body)
			}
		}
		if calls.Load() != 1 {
			t.Errorf("Expected 1 provider call, got %d", calls.Load())
		}
	})

	t.Run("failures_are_not_cached", func(t *testing.T) {
		cache := &memoryCache{entries: map[string][]byte{}}
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}, cache)

		if _, err := client.GetDetail(context.Background(), "solana"); err == nil {
			t.Fatalf("Expected error, got nil")
		}
		if _, err := cache.Get(context.Background(), "solana"); !errors.Is(err, errs.ErrNotFound) {
			t.Errorf("Expected cache miss, got %v", err)
		}
	})
}

func TestGetHistoricalRange(t *testing.T) {
	var gotPath, from, to, precision string
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		from = r.URL.Query().Get("from")
		to = r.URL.Query().Get("to")
		precision = r.URL.Query().Get("precision")
		w.Write([]byte(`{"prices":[],"market_caps":[],"total_volumes":[]}`))
	}, nil)

	if _, err := client.GetHistoricalRange(context.Background(), "bitcoin", "usd", 1700000000, 1700086400, "2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/coins/bitcoin/market_chart/range" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if from != "1700000000" || to != "1700086400" || precision != "2" {
		t.Errorf("unexpected query from=%s to=%s precision=%s", from, to, precision)
	}
}

func TestRequestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.Write([]byte("[]"))
	}))
	t.Cleanup(server.Close)

	cfg := config.UpstreamConfig{
		BaseURL:      server.URL,
		APIKey:       "test-key",
		APIKeyHeader: "x-cg-demo-api-key",
		Timeout:      50 * time.Millisecond,
	}
	client := coingecko.New(cfg, nil, testLogger())

	start := time.Now()
	_, err := client.GetDetail(context.Background(), "slowcoin")
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Expected call to give up after the timeout, took %s", elapsed)
	}

	var upErr *errs.UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("Expected *errs.UpstreamError, got %v", err)
	}
	if upErr.CoinID != "slowcoin" {
		t.Errorf("Expected coin id slowcoin, got %q", upErr.CoinID)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded cause, got %v", upErr.Err)
	}
}
