package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Tonic56/coin-watchlist/internal/config"
	"github.com/redis/go-redis/v9"
)

type Message struct {
	Channel string
	Payload string
}

func NewClient(cfg config.RedisConfig) (*redis.Client, error) {
	const op = "storage/redis"

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%s: failed to connect to redis at %s: %w", op, cfg.Addr, err)
	}

	slog.Info("Successfully connected to Redis.", "addr", cfg.Addr)
	return client, nil
}

type Subscriber struct {
	client        *redis.Client
	messages      chan Message
	subscriptions map[string]*redis.PubSub
	mu            sync.RWMutex
	log           *slog.Logger
}

func NewSubscriber(client *redis.Client, log *slog.Logger) *Subscriber {
	return &Subscriber{
		client:        client,
		messages:      make(chan Message, 1000),
		subscriptions: make(map[string]*redis.PubSub),
		log:           log,
	}
}

func (s *Subscriber) Messages() <-chan Message {
	return s.messages
}

func (s *Subscriber) Subscribe(ctx context.Context, channel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscriptions[channel]; exists {
		return nil
	}

	pubsub := s.client.Subscribe(ctx, channel)

	_, err := pubsub.Receive(ctx)
	if err != nil {
		s.log.Error("failed to subscribe to redis channel", "channel", channel, "error", err)
		pubsub.Close()
		return err
	}

	s.subscriptions[channel] = pubsub
	s.log.Info("subscribed to new redis channel", "channel", channel)

	go s.listener(ctx, pubsub)

	return nil
}

func (s *Subscriber) Unsubscribe(ctx context.Context, channel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pubsub, exists := s.subscriptions[channel]
	if !exists {
		return nil
	}

	delete(s.subscriptions, channel)

	if err := pubsub.Unsubscribe(ctx, channel); err != nil {
		s.log.Error("failed to unsubscribe from channel", "channel", channel, "error", err)
	}

	if err := pubsub.Close(); err != nil {
		s.log.Warn("error closing pubsub", "channel", channel, "error", err)
	}

	s.log.Info("unsubscribed from redis channel", "channel", channel)
	return nil
}

func (s *Subscriber) listener(ctx context.Context, pubsub *redis.PubSub) {
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			select {
			case s.messages <- Message{Channel: msg.Channel, Payload: msg.Payload}:
			default:
				s.log.Warn("messages channel full, dropping message")
			}
		}
	}
}

// Close stops every subscription. The shared client is closed by its owner.
func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Info("closing redis subscriber...")
	for channel, pubsub := range s.subscriptions {
		pubsub.Close()
		delete(s.subscriptions, channel)
	}
	s.log.Info("redis subscriber closed")
}
