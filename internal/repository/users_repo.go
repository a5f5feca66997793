package repository

import (
	"errors"
	"strings"

	"github.com/Tonic56/coin-watchlist/internal/models"
	"github.com/Tonic56/coin-watchlist/lib/errs"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UsersRepository interface {
	CreateUser(user *models.User) error
	GetUserByID(userID uuid.UUID) (*models.User, error)
	GetUserByWalletAddress(address string) (*models.User, error)
	// UpdateWatchlist stores watchlist only if the row is still at version.
	UpdateWatchlist(userID uuid.UUID, version int, watchlist models.Watchlist) error
}

type usersRepository struct {
	db *gorm.DB
}

func NewUsersRepository(db *gorm.DB) UsersRepository {
	return &usersRepository{db: db}
}

func (db *usersRepository) CreateUser(user *models.User) error {
	if err := db.db.Create(user).Error; err != nil {
		errorString := err.Error()
		if strings.Contains(errorString, "UNIQUE constraint failed") || strings.Contains(errorString, "duplicate key value violates unique constraint") {
			return errs.ErrAlreadyExists
		}

		return err
	}

	return nil
}

func (db *usersRepository) GetUserByID(userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := db.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}

		return nil, err
	}
	return &user, nil
}

func (db *usersRepository) GetUserByWalletAddress(address string) (*models.User, error) {
	var user models.User
	if err := db.db.Where("wallet_address = ?", strings.ToLower(address)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}

		return nil, err
	}
	return &user, nil
}

func (db *usersRepository) UpdateWatchlist(userID uuid.UUID, version int, watchlist models.Watchlist) error {
	result := db.db.Model(&models.User{}).
		Where("id = ? AND version = ?", userID, version).
		Updates(map[string]any{
			"watchlist": watchlist,
			"version":   gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		if _, err := db.GetUserByID(userID); err != nil {
			return err
		}
		return errs.ErrConflict
	}

	return nil
}
