package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Tonic56/coin-watchlist/internal/service"
	"github.com/Tonic56/coin-watchlist/lib/errs"
	"github.com/gin-gonic/gin"
)

const (
	authorizationHeader = "Authorization"
	identityCtx         = "identity"
)

// SessionResolver turns a session token into the caller's identity.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (*service.Identity, error)
}

// AuthMiddleware resolves the caller from the session cookie, or a bearer
// header when no cookie is sent. Anonymous requests pass through; handlers
// decide what an anonymous caller may do.
func AuthMiddleware(resolver SessionResolver, cookieName string, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c, cookieName)
		if token == "" {
			c.Next()
			return
		}

		identity, err := resolver.ResolveSession(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, errs.ErrUnauthorized) {
				log.Error("auth middleware: failed to resolve session", slog.Any("error", err))
			} else {
				log.Debug("auth middleware: rejected session token")
			}
			c.Next()
			return
		}

		c.Set(identityCtx, identity)
		c.Next()
	}
}

// RequireIdentity aborts anonymous requests with 401.
func RequireIdentity(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := Identity(c); !ok {
			log.Warn("auth middleware: anonymous call to protected route", "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized",
			})
			return
		}
		c.Next()
	}
}

// Identity returns the caller resolved by AuthMiddleware.
func Identity(c *gin.Context) (*service.Identity, bool) {
	raw, ok := c.Get(identityCtx)
	if !ok {
		return nil, false
	}
	identity, ok := raw.(*service.Identity)
	return identity, ok && identity != nil
}

func sessionToken(c *gin.Context, cookieName string) string {
	if cookie, err := c.Cookie(cookieName); err == nil && cookie != "" {
		return cookie
	}

	header := c.GetHeader(authorizationHeader)
	headerParts := strings.Split(header, " ")
	if len(headerParts) != 2 || headerParts[0] != "Bearer" {
		return ""
	}
	return headerParts[1]
}

// RequestLogger logs one line per request.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		)
	}
}
