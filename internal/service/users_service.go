package service

import (
	"context"

	"github.com/Tonic56/coin-watchlist/internal/models"
	"github.com/Tonic56/coin-watchlist/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UsersService interface {
	GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

type usersService struct {
	db *gorm.DB
}

func NewUsersService(db *gorm.DB) UsersService {
	return &usersService{
		db: db,
	}
}

func (s *usersService) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return repository.NewUsersRepository(s.db.WithContext(ctx)).GetUserByID(userID)
}
