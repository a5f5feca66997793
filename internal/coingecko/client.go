package coingecko

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Tonic56/coin-watchlist/internal/config"
	"github.com/Tonic56/coin-watchlist/lib/errs"
	"golang.org/x/time/rate"
)

// MaxPageSize is the largest page the client ever requests from /coins/markets.
const MaxPageSize = 50

const maxBodySize = 8 << 20

// DetailCache stores raw coin detail bodies keyed by coin id.
type DetailCache interface {
	Get(ctx context.Context, coinID string) ([]byte, error)
	Set(ctx context.Context, coinID string, body []byte) error
}

// Client issues exactly one provider request per call and never retries.
type Client struct {
	baseURL      string
	apiKey       string
	apiKeyHeader string
	timeout      time.Duration
	httpClient   *http.Client
	limiter      *rate.Limiter
	cache        DetailCache
	log          *slog.Logger
}

func New(cfg config.UpstreamConfig, cache DetailCache, log *slog.Logger) *Client {
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		apiKeyHeader: cfg.APIKeyHeader,
		timeout:      cfg.Timeout,
		httpClient:   &http.Client{},
		limiter:      rate.NewLimiter(limit, burst),
		cache:        cache,
		log:          log,
	}
}

// ListMarket fetches one page of coins ordered by market cap. pageSize is
// clamped to [1, MaxPageSize] and page to >= 1.
func (c *Client) ListMarket(ctx context.Context, currency string, page, pageSize int) ([]byte, error) {
	const op = "listMarket"

	if pageSize > MaxPageSize || pageSize < 1 {
		pageSize = MaxPageSize
	}
	if page < 1 {
		page = 1
	}

	query := url.Values{}
	query.Set("vs_currency", currency)
	query.Set("order", "market_cap_desc")
	query.Set("per_page", strconv.Itoa(pageSize))
	query.Set("page", strconv.Itoa(page))
	query.Set("sparkline", "false")
	query.Set("price_change_percentage", "24h")

	return c.get(ctx, op, "", "/coins/markets", query)
}

// GetDetail fetches /coins/{id}. Successful bodies are served from the cache
// when one is configured.
func (c *Client) GetDetail(ctx context.Context, coinID string) ([]byte, error) {
	const op = "getDetail"

	if c.cache != nil {
		body, err := c.cache.Get(ctx, coinID)
		if err == nil {
			return body, nil
		}
		if !errors.Is(err, errs.ErrNotFound) {
			c.log.Warn("detail cache read failed", "coinID", coinID, "error", err)
		}
	}

	query := url.Values{}
	query.Set("localization", "false")
	query.Set("tickers", "false")
	query.Set("market_data", "true")
	query.Set("community_data", "false")
	query.Set("developer_data", "false")
	query.Set("sparkline", "false")

	body, err := c.get(ctx, op, coinID, "/coins/"+url.PathEscape(coinID), query)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, coinID, body); err != nil {
			c.log.Warn("detail cache write failed", "coinID", coinID, "error", err)
		}
	}

	return body, nil
}

// GetHistoricalRange fetches /coins/{id}/market_chart/range between two unix
// timestamps. An empty precision lets the provider choose.
func (c *Client) GetHistoricalRange(ctx context.Context, coinID, currency string, from, to int64, precision string) ([]byte, error) {
	const op = "getHistoricalRange"

	query := url.Values{}
	query.Set("vs_currency", currency)
	query.Set("from", strconv.FormatInt(from, 10))
	query.Set("to", strconv.FormatInt(to, 10))
	if precision != "" {
		query.Set("precision", precision)
	}

	return c.get(ctx, op, coinID, "/coins/"+url.PathEscape(coinID)+"/market_chart/range", query)
}

func (c *Client) get(ctx context.Context, op, coinID, path string, query url.Values) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &errs.UpstreamError{Op: op, CoinID: coinID, Err: err}
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &errs.UpstreamError{Op: op, CoinID: coinID, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(c.apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &errs.UpstreamError{Op: op, CoinID: coinID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil, &errs.UpstreamError{Op: op, CoinID: coinID, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &errs.UpstreamError{Op: op, CoinID: coinID, Err: fmt.Errorf("read body: %w", err)}
	}

	return body, nil
}
