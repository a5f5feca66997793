package models

import "github.com/google/uuid"

const WatchlistChannelPrefix = "watchlist:"

// WatchlistEvent is published after a user's watchlist changes.
type WatchlistEvent struct {
	UserID    uuid.UUID `json:"userID"`
	CoinID    string    `json:"coinID"`
	Watchlist []string  `json:"watchlist"`
}

func WatchlistChannel(userID uuid.UUID) string {
	return WatchlistChannelPrefix + userID.String()
}
