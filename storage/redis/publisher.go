package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Tonic56/coin-watchlist/internal/models"
	"github.com/redis/go-redis/v9"
)

type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) PublishWatchlist(ctx context.Context, event models.WatchlistEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal watchlist event: %w", err)
	}

	return p.client.Publish(ctx, models.WatchlistChannel(event.UserID), payload).Err()
}
