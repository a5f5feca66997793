package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/Tonic56/coin-watchlist/internal/models"
	"github.com/Tonic56/coin-watchlist/lib/errs"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionsRepository interface {
	CreateSession(session *models.Session) error
	GetSessionByID(sessionID uuid.UUID) (*models.Session, error)
	DeleteSessionByID(sessionID uuid.UUID) error
	DeleteExpiredSessions(now time.Time) (int64, error)
}

type sessionsRepository struct {
	db *gorm.DB
}

func NewSessionsRepository(db *gorm.DB) SessionsRepository {
	return &sessionsRepository{
		db: db,
	}
}

func (db *sessionsRepository) CreateSession(session *models.Session) error {
	if err := db.db.Create(session).Error; err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	return nil
}

func (db *sessionsRepository) GetSessionByID(sessionID uuid.UUID) (*models.Session, error) {
	var session models.Session

	if err := db.db.First(&session, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	return &session, nil
}

func (db *sessionsRepository) DeleteSessionByID(sessionID uuid.UUID) error {
	result := db.db.Where("id = ?", sessionID).Delete(&models.Session{})

	if err := result.Error; err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	if result.RowsAffected == 0 {
		return errs.ErrNotFound
	}

	return nil
}

func (db *sessionsRepository) DeleteExpiredSessions(now time.Time) (int64, error) {
	result := db.db.Where("expires_at < ?", now).Delete(&models.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}
