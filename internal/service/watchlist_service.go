package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Tonic56/coin-watchlist/internal/models"
	"github.com/Tonic56/coin-watchlist/internal/repository"
	"github.com/Tonic56/coin-watchlist/lib/errs"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const maxToggleAttempts = 5

// WatchlistPublisher announces watchlist changes to live subscribers.
type WatchlistPublisher interface {
	PublishWatchlist(ctx context.Context, event models.WatchlistEvent) error
}

type WatchlistService interface {
	Toggle(ctx context.Context, userID uuid.UUID, coinID string) ([]string, error)
	Get(ctx context.Context, userID uuid.UUID) ([]string, error)
}

type watchlistService struct {
	db        *gorm.DB
	publisher WatchlistPublisher
	log       *slog.Logger
}

func NewWatchlistService(db *gorm.DB, publisher WatchlistPublisher, log *slog.Logger) WatchlistService {
	return &watchlistService{
		db:        db,
		publisher: publisher,
		log:       log,
	}
}

// Toggle adds coinID to the user's watchlist if absent and removes it
// otherwise. The write is conditional on the version read, so concurrent
// toggles for the same user are retried instead of lost.
func (s *watchlistService) Toggle(ctx context.Context, userID uuid.UUID, coinID string) ([]string, error) {
	const op = "service.Toggle"

	coinID = strings.TrimSpace(coinID)
	if coinID == "" {
		return nil, &errs.ValidationError{Field: "coinId", Reason: "required"}
	}

	repo := repository.NewUsersRepository(s.db.WithContext(ctx))

	for attempt := 1; attempt <= maxToggleAttempts; attempt++ {
		user, err := repo.GetUserByID(userID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		updated := user.Watchlist.Toggle(coinID)

		err = repo.UpdateWatchlist(user.ID, user.Version, updated)
		if errors.Is(err, errs.ErrConflict) {
			s.log.Debug("watchlist version conflict, retrying", "userID", userID, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		s.publish(ctx, models.WatchlistEvent{UserID: userID, CoinID: coinID, Watchlist: updated})
		return updated, nil
	}

	return nil, fmt.Errorf("%s: %w", op, errs.ErrConflict)
}

// Get returns the user's watchlist, empty when the user does not exist.
func (s *watchlistService) Get(ctx context.Context, userID uuid.UUID) ([]string, error) {
	repo := repository.NewUsersRepository(s.db.WithContext(ctx))

	user, err := repo.GetUserByID(userID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("service.Get: %w", err)
	}

	if len(user.Watchlist) == 0 {
		return []string{}, nil
	}
	return user.Watchlist, nil
}

func (s *watchlistService) publish(ctx context.Context, event models.WatchlistEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishWatchlist(ctx, event); err != nil {
		s.log.Warn("failed to publish watchlist event", "userID", event.UserID, "error", err)
	}
}
