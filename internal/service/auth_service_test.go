package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Tonic56/coin-watchlist/internal/config"
	"github.com/Tonic56/coin-watchlist/internal/models"
	"github.com/Tonic56/coin-watchlist/internal/schema"
	"github.com/Tonic56/coin-watchlist/internal/service"
	"github.com/Tonic56/coin-watchlist/lib/errs"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"gorm.io/gorm"
)

const loginMessage = "Sign in to the watchlist.\nNonce: 4d2f9c"

func testSecurity() config.SecConfig {
	return config.SecConfig{
		SessionSecret: "test-secret",
		SessionTTL:    time.Hour,
		CookieName:    "session",
	}
}

func signedLogin(t *testing.T, message string) *schema.LoginInput {
	t.Helper()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	sig[crypto.RecoveryIDOffset] += 27

	return &schema.LoginInput{
		Address:   crypto.PubkeyToAddress(key.PublicKey).Hex(),
		Message:   message,
		Signature: hexutil.Encode(sig),
		Email:     "holder@example.com",
	}
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()

	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	return n
}

func TestLogin(t *testing.T) {
	db := setupTestDB(t)
	auth := service.NewAuthService(db, testSecurity(), testLogger())
	ctx := context.Background()

	t.Run("valid_signature_creates_user_and_session", func(t *testing.T) {
		input := signedLogin(t, loginMessage)

		result, err := auth.Login(ctx, input)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Token == "" {
			t.Errorf("Expected a session token")
		}
		if result.User.WalletAddress != strings.ToLower(input.Address) {
			t.Errorf("Expected lowercase address %s, got %s", strings.ToLower(input.Address), result.User.WalletAddress)
		}

		identity, err := auth.ResolveSession(ctx, result.Token)
		if err != nil {
			t.Fatalf("ResolveSession failed: %v", err)
		}
		if identity.UserID != result.User.ID {
			t.Errorf("Expected user %s, got %s", result.User.ID, identity.UserID)
		}
	})

	t.Run("second_login_reuses_user", func(t *testing.T) {
		input := signedLogin(t, loginMessage)

		first, err := auth.Login(ctx, input)
		if err != nil {
			t.Fatalf("first login failed: %v", err)
		}
		second, err := auth.Login(ctx, input)
		if err != nil {
			t.Fatalf("second login failed: %v", err)
		}
		if first.User.ID != second.User.ID {
			t.Errorf("Expected the same user, got %s and %s", first.User.ID, second.User.ID)
		}
		if first.Token == second.Token {
			t.Errorf("Expected a fresh session per login")
		}
	})

	t.Run("foreign_signature_writes_nothing", func(t *testing.T) {
		users := countRows(t, db, &models.User{})
		sessions := countRows(t, db, &models.Session{})

		input := signedLogin(t, loginMessage)
		input.Address = signedLogin(t, loginMessage).Address

		_, err := auth.Login(ctx, input)
		if !errs.IsVerification(err) {
			t.Fatalf("Expected verification error, got %v", err)
		}

		if n := countRows(t, db, &models.User{}); n != users {
			t.Errorf("Expected %d users, got %d", users, n)
		}
		if n := countRows(t, db, &models.Session{}); n != sessions {
			t.Errorf("Expected %d sessions, got %d", sessions, n)
		}
	})

	t.Run("tampered_message", func(t *testing.T) {
		input := signedLogin(t, loginMessage)
		input.Message = loginMessage + " (edited)"

		_, err := auth.Login(ctx, input)
		if !errs.IsVerification(err) {
			t.Errorf("Expected verification error, got %v", err)
		}
	})

	t.Run("truncated_signature", func(t *testing.T) {
		input := signedLogin(t, loginMessage)
		input.Signature = input.Signature[:20]

		_, err := auth.Login(ctx, input)
		if !errs.IsValidation(err) {
			t.Errorf("Expected validation error, got %v", err)
		}
	})

	t.Run("invalid_address_shape", func(t *testing.T) {
		input := signedLogin(t, loginMessage)
		input.Address = "0x1234"

		_, err := auth.Login(ctx, input)
		if !errs.IsValidation(err) {
			t.Errorf("Expected validation error, got %v", err)
		}
	})
}

func TestResolveSession(t *testing.T) {
	db := setupTestDB(t)
	auth := service.NewAuthService(db, testSecurity(), testLogger())
	ctx := context.Background()

	result, err := auth.Login(ctx, signedLogin(t, loginMessage))
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	t.Run("garbage_token", func(t *testing.T) {
		if _, err := auth.ResolveSession(ctx, "not-a-token"); !errors.Is(err, errs.ErrUnauthorized) {
			t.Errorf("Expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("token_signed_with_other_secret", func(t *testing.T) {
		other := testSecurity()
		other.SessionSecret = "another-secret"
		foreign := service.NewAuthService(db, other, testLogger())

		if _, err := foreign.ResolveSession(ctx, result.Token); !errors.Is(err, errs.ErrUnauthorized) {
			t.Errorf("Expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("logout_revokes_session", func(t *testing.T) {
		identity, err := auth.ResolveSession(ctx, result.Token)
		if err != nil {
			t.Fatalf("ResolveSession failed: %v", err)
		}

		if err := auth.Logout(ctx, identity.SessionID); err != nil {
			t.Fatalf("Logout failed: %v", err)
		}
		if _, err := auth.ResolveSession(ctx, result.Token); !errors.Is(err, errs.ErrUnauthorized) {
			t.Errorf("Expected ErrUnauthorized after logout, got %v", err)
		}

		if err := auth.Logout(ctx, identity.SessionID); err != nil {
			t.Errorf("Expected repeated logout to succeed, got %v", err)
		}
	})
}

func TestDeleteExpiredSessions(t *testing.T) {
	db := setupTestDB(t)
	cfg := testSecurity()
	cfg.SessionTTL = -time.Minute
	auth := service.NewAuthService(db, cfg, testLogger())
	ctx := context.Background()

	if _, err := auth.Login(ctx, signedLogin(t, loginMessage)); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	removed, err := auth.DeleteExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("DeleteExpiredSessions failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 removed session, got %d", removed)
	}
}
