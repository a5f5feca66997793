package redis

import (
	"context"
	"errors"
	"time"

	"github.com/Tonic56/coin-watchlist/lib/errs"
	"github.com/redis/go-redis/v9"
)

const detailKeyPrefix = "coingecko:detail:"

// DetailCache keeps raw coin detail responses for a fixed TTL.
type DetailCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDetailCache(client *redis.Client, ttl time.Duration) *DetailCache {
	return &DetailCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *DetailCache) Get(ctx context.Context, coinID string) ([]byte, error) {
	body, err := c.client.Get(ctx, detailKeyPrefix+coinID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return body, nil
}

func (c *DetailCache) Set(ctx context.Context, coinID string, body []byte) error {
	return c.client.Set(ctx, detailKeyPrefix+coinID, body, c.ttl).Err()
}
