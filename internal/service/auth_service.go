package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Tonic56/coin-watchlist/internal/config"
	"github.com/Tonic56/coin-watchlist/internal/models"
	"github.com/Tonic56/coin-watchlist/internal/repository"
	"github.com/Tonic56/coin-watchlist/internal/schema"
	"github.com/Tonic56/coin-watchlist/lib/errs"
	"github.com/Tonic56/coin-watchlist/lib/ethsig"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Identity is the request scoped caller resolved from a session token.
type Identity struct {
	UserID    uuid.UUID
	SessionID uuid.UUID
}

type LoginResult struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

type AuthService interface {
	Login(ctx context.Context, input *schema.LoginInput) (*LoginResult, error)
	Logout(ctx context.Context, sessionID uuid.UUID) error
	ResolveSession(ctx context.Context, token string) (*Identity, error)
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

type authService struct {
	db  *gorm.DB
	cfg config.SecConfig
	log *slog.Logger
	now func() time.Time
}

func NewAuthService(db *gorm.DB, cfg config.SecConfig, log *slog.Logger) AuthService {
	return &authService{
		db:  db,
		cfg: cfg,
		log: log,
		now: time.Now,
	}
}

// Login verifies that input.Signature over input.Message was produced by
// input.Address, then finds or creates the user and opens a session. Nothing
// is written when verification fails.
func (s *authService) Login(ctx context.Context, input *schema.LoginInput) (*LoginResult, error) {
	const op = "service.Login"

	if err := schema.Struct(input); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ok, err := ethsig.Verify(input.Address, input.Message, input.Signature)
	if err != nil {
		if errors.Is(err, ethsig.ErrMalformedSignature) {
			return nil, fmt.Errorf("%s: %w", op, &errs.ValidationError{Field: "signature", Reason: err.Error()})
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, &errs.VerificationError{Address: input.Address})
	}

	db := s.db.WithContext(ctx)

	user, err := s.findOrCreateUser(repository.NewUsersRepository(db), input)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	session := &models.Session{
		UserID:    user.ID,
		ExpiresAt: s.now().Add(s.cfg.SessionTTL),
	}
	if err := repository.NewSessionsRepository(db).CreateSession(session); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	token, err := s.signToken(session)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user logged in", "userID", user.ID, "address", user.WalletAddress)

	return &LoginResult{User: user, Token: token, ExpiresAt: session.ExpiresAt}, nil
}

func (s *authService) findOrCreateUser(repo repository.UsersRepository, input *schema.LoginInput) (*models.User, error) {
	address := input.NormalizedAddress()

	user, err := repo.GetUserByWalletAddress(address)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	user = &models.User{
		WalletAddress: address,
		Email:         input.Email,
		Watchlist:     models.Watchlist{},
	}
	if err := repo.CreateUser(user); err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			return repo.GetUserByWalletAddress(address)
		}
		return nil, err
	}

	return user, nil
}

// Logout removes the session. A missing session is not an error.
func (s *authService) Logout(ctx context.Context, sessionID uuid.UUID) error {
	repo := repository.NewSessionsRepository(s.db.WithContext(ctx))

	if err := repo.DeleteSessionByID(sessionID); err != nil && !errors.Is(err, errs.ErrNotFound) {
		return fmt.Errorf("service.Logout: %w", err)
	}
	return nil
}

// ResolveSession maps a session token to the caller. Any invalid, expired or
// revoked token yields errs.ErrUnauthorized.
func (s *authService) ResolveSession(ctx context.Context, tokenString string) (*Identity, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return []byte(s.cfg.SessionSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, errs.ErrUnauthorized
	}

	userID, err := uuidClaim(claims, "sub")
	if err != nil {
		return nil, errs.ErrUnauthorized
	}
	sessionID, err := uuidClaim(claims, "sid")
	if err != nil {
		return nil, errs.ErrUnauthorized
	}

	repo := repository.NewSessionsRepository(s.db.WithContext(ctx))
	session, err := repo.GetSessionByID(sessionID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrUnauthorized
		}
		return nil, fmt.Errorf("service.ResolveSession: %w", err)
	}

	if session.UserID != userID || s.now().After(session.ExpiresAt) {
		return nil, errs.ErrUnauthorized
	}

	return &Identity{UserID: userID, SessionID: sessionID}, nil
}

func (s *authService) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	repo := repository.NewSessionsRepository(s.db.WithContext(ctx))
	return repo.DeleteExpiredSessions(s.now())
}

func (s *authService) signToken(session *models.Session) (string, error) {
	claims := jwt.MapClaims{
		"sub": session.UserID.String(),
		"sid": session.ID.String(),
		"exp": session.ExpiresAt.Unix(),
		"iat": s.now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.SessionSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

func uuidClaim(claims jwt.MapClaims, key string) (uuid.UUID, error) {
	raw, ok := claims[key].(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("claim %q missing", key)
	}
	return uuid.Parse(raw)
}
