package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Tonic56/coin-watchlist/internal/format"
	"github.com/Tonic56/coin-watchlist/internal/models"
	"github.com/Tonic56/coin-watchlist/internal/schema"
	"github.com/Tonic56/coin-watchlist/lib/errs"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultCurrency = "usd"
	DefaultLimit    = 50
	DefaultPage     = 1
)

type MarketClient interface {
	ListMarket(ctx context.Context, currency string, page, pageSize int) ([]byte, error)
	GetDetail(ctx context.Context, coinID string) ([]byte, error)
	GetHistoricalRange(ctx context.Context, coinID, currency string, from, to int64, precision string) ([]byte, error)
}

type MarketService interface {
	MarketCoinsWithTokens(ctx context.Context, limit, page int, currency string) ([]models.CoinSummary, error)
	FormattedWatchlist(ctx context.Context, coinIDs []string, currency string) ([]models.CoinSummary, error)
	HistoricalRange(ctx context.Context, coinID, currency string, from, to int64, precision string) (*models.HistoricalSeries, error)
}

type marketService struct {
	client         MarketClient
	platformKey    string
	maxConcurrency int
	log            *slog.Logger
}

func NewMarketService(client MarketClient, maxConcurrency int, log *slog.Logger) MarketService {
	return &marketService{
		client:         client,
		platformKey:    format.SolanaPlatform,
		maxConcurrency: maxConcurrency,
		log:            log,
	}
}

// detailResult is the outcome of one detail call. When err is set the failure
// has already been logged.
type detailResult struct {
	detail *schema.RawCoinDetail
	err    error
}

// MarketCoinsWithTokens returns one page of market coins in upstream order.
// A failing list call or an invalid list fails the whole call; a failing
// detail call only costs that coin its token address.
func (s *marketService) MarketCoinsWithTokens(ctx context.Context, limit, page int, currency string) ([]models.CoinSummary, error) {
	const op = "service.MarketCoinsWithTokens"

	if currency == "" {
		currency = DefaultCurrency
	}

	body, err := s.client.ListMarket(ctx, currency, page, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	entries, err := schema.ParseMarketList(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, &errs.UpstreamError{Op: "listMarket", Err: err})
	}

	ids := make([]string, len(entries))
	for i, entry := range entries {
		ids[i] = entry.ID
	}
	details := s.fetchDetails(ctx, ids, currency)

	coins := make([]models.CoinSummary, 0, len(entries))
	for i := range entries {
		var token *string
		if res := details[i]; res.err == nil {
			token = res.detail.PlatformAddress(s.platformKey)
		}

		summary, err := format.FromMarketEntry(&entries[i], token)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		coins = append(coins, *summary)
	}

	return coins, nil
}

// FormattedWatchlist resolves every coin id to a summary. Ids whose detail
// cannot be fetched or validated are left out of the result.
func (s *marketService) FormattedWatchlist(ctx context.Context, coinIDs []string, currency string) ([]models.CoinSummary, error) {
	if currency == "" {
		currency = DefaultCurrency
	}

	coins := make([]models.CoinSummary, 0, len(coinIDs))
	if len(coinIDs) == 0 {
		return coins, nil
	}

	details := s.fetchDetails(ctx, coinIDs, currency)
	for i, res := range details {
		if res.err != nil {
			continue
		}

		summary, err := format.FromDetail(res.detail, currency, s.platformKey)
		if err != nil {
			s.log.Warn("dropping watchlist coin with malformed summary", "coinID", coinIDs[i], "error", err)
			continue
		}
		coins = append(coins, *summary)
	}

	return coins, nil
}

func (s *marketService) HistoricalRange(ctx context.Context, coinID, currency string, from, to int64, precision string) (*models.HistoricalSeries, error) {
	const op = "service.HistoricalRange"

	if currency == "" {
		currency = DefaultCurrency
	}

	body, err := s.client.GetHistoricalRange(ctx, coinID, currency, from, to, precision)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	raw, err := schema.ParseHistoricalRange(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, &errs.UpstreamError{Op: "getHistoricalRange", CoinID: coinID, Err: err})
	}

	return &models.HistoricalSeries{
		Prices:       toDataPoints(raw.Prices),
		MarketCaps:   toDataPoints(raw.MarketCaps),
		TotalVolumes: toDataPoints(raw.TotalVolumes),
	}, nil
}

// fetchDetails fetches and validates details for every id concurrently and
// waits for all of them. Result i always belongs to ids[i]. Branches never
// return an error to the group, so one failure cancels nothing.
func (s *marketService) fetchDetails(ctx context.Context, ids []string, currency string) []detailResult {
	results := make([]detailResult, len(ids))

	var g errgroup.Group
	if s.maxConcurrency > 0 {
		g.SetLimit(s.maxConcurrency)
	}

	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			body, err := s.client.GetDetail(ctx, id)
			if err != nil {
				s.log.Warn("coin detail fetch failed", "coinID", id, "error", err)
				results[i] = detailResult{err: err}
				return nil
			}

			detail, err := schema.ParseCoinDetail(body, currency)
			if err != nil {
				s.log.Warn("coin detail failed validation", "coinID", id, "error", err)
				results[i] = detailResult{err: err}
				return nil
			}

			results[i] = detailResult{detail: detail}
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// toDataPoints expects pairs already checked by schema.ParseHistoricalRange.
func toDataPoints(pairs [][]*float64) []models.DataPoint {
	points := make([]models.DataPoint, 0, len(pairs))
	for _, p := range pairs {
		points = append(points, models.DataPoint{Timestamp: *p[0], Value: *p[1]})
	}
	return points
}
