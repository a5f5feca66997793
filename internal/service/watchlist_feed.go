package service

import (
	"context"

	"github.com/Tonic56/coin-watchlist/internal/models"
	"github.com/google/uuid"
)

// WatchlistFeed joins a user's stored watchlist with live market data.
type WatchlistFeed struct {
	watchlist WatchlistService
	market    MarketService
}

func NewWatchlistFeed(watchlist WatchlistService, market MarketService) *WatchlistFeed {
	return &WatchlistFeed{
		watchlist: watchlist,
		market:    market,
	}
}

func (f *WatchlistFeed) Snapshot(ctx context.Context, userID uuid.UUID, currency string) ([]models.CoinSummary, error) {
	ids, err := f.watchlist.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return f.market.FormattedWatchlist(ctx, ids, currency)
}
