package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/Tonic56/coin-watchlist/internal/coingecko"
	"github.com/Tonic56/coin-watchlist/internal/config"
	httphandler "github.com/Tonic56/coin-watchlist/internal/handler/http"
	"github.com/Tonic56/coin-watchlist/internal/handler/middleware"
	"github.com/Tonic56/coin-watchlist/internal/service"
	"github.com/Tonic56/coin-watchlist/internal/websocket"
	"github.com/Tonic56/coin-watchlist/storage/postgres"
	"github.com/Tonic56/coin-watchlist/storage/redis"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
)

type App struct {
	cfg             *config.Config
	log             *slog.Logger
	httpServer      *http.Server
	storage         *postgres.Storage
	redisClient     *goredis.Client
	redisSubscriber *redis.Subscriber
	wsManager       *websocket.Manager
	authService     service.AuthService

	ctx    context.Context
	cancel context.CancelFunc
}

func New(log *slog.Logger, cfg *config.Config) *App {
	ctx, cancel := context.WithCancel(context.Background())

	storage, err := postgres.New(cfg.Database)
	if err != nil {
		panic(fmt.Errorf("failed to init storage: %w", err))
	}

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		panic(fmt.Errorf("failed to init redis: %w", err))
	}
	redisSubscriber := redis.NewSubscriber(redisClient, log)

	var detailCache coingecko.DetailCache
	if cfg.Redis.CacheTTL > 0 {
		detailCache = redis.NewDetailCache(redisClient, cfg.Redis.CacheTTL)
	}
	marketClient := coingecko.New(cfg.Upstream, detailCache, log)

	marketService := service.NewMarketService(marketClient, cfg.Upstream.MaxConcurrency, log)
	watchlistService := service.NewWatchlistService(storage.DB, redis.NewPublisher(redisClient), log)
	usersService := service.NewUsersService(storage.DB)
	authService := service.NewAuthService(storage.DB, cfg.Security, log)

	feed := service.NewWatchlistFeed(watchlistService, marketService)
	wsManager := websocket.NewManager(log, redisSubscriber, feed, cfg.Websocket.RefreshInterval)

	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	ginEngine := gin.New()
	ginEngine.Use(middleware.RequestLogger(log), gin.Recovery())

	httpHandler := httphandler.NewHandler(marketService, watchlistService, usersService, authService, wsManager, log, cfg.Security)
	httpHandler.RegisterRoutes(ginEngine)

	httpServer := &http.Server{
		Addr:    net.JoinHostPort("", strconv.FormatUint(uint64(cfg.HTTP.Port), 10)),
		Handler: ginEngine,
	}

	return &App{
		log:             log,
		cfg:             cfg,
		httpServer:      httpServer,
		storage:         storage,
		redisClient:     redisClient,
		redisSubscriber: redisSubscriber,
		wsManager:       wsManager,
		authService:     authService,
		ctx:             ctx,
		cancel:          cancel,
	}
}

func (a *App) Run() error {
	errChan := make(chan error, 1)
	a.log.Info("starting application components...")

	go func() {
		a.log.Info("websocket manager started")
		a.wsManager.Run(a.ctx)
		a.log.Info("websocket manager stopped")
	}()

	go a.runSessionCleanup()

	go func() {
		if err := a.runHTTP(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	err := <-errChan
	a.log.Warn("shutting down application due to an error", "error", err)

	a.Stop()
	return err
}

func (a *App) Stop() {
	a.log.Info("stopping application components gracefully...")

	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.HTTP.Timeout)
	defer shutdownCancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("failed to gracefully shutdown HTTP server", "error", err)
	} else {
		a.log.Info("HTTP server stopped")
	}

	a.redisSubscriber.Close()
	if err := a.redisClient.Close(); err != nil {
		a.log.Warn("failed to close redis client", "error", err)
	}

	if err := a.storage.Stop(); err != nil {
		a.log.Error("failed to stop storage", "error", err)
	} else {
		a.log.Info("database connection closed")
	}
}

func (a *App) runSessionCleanup() {
	if a.cfg.Security.CleanupInterval <= 0 {
		return
	}

	ticker := time.NewTicker(a.cfg.Security.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.log.Info("running expired sessions cleanup...")
			removed, err := a.authService.DeleteExpiredSessions(a.ctx)
			if err != nil {
				a.log.Error("failed to cleanup expired sessions", slog.Any("error", err))
				continue
			}
			a.log.Info("expired sessions cleanup finished successfully", "removed", removed)
		}
	}
}

func (a *App) runHTTP() error {
	const op = "app.runHTTP"

	a.log.Info("HTTP server is running", "addr", a.httpServer.Addr)

	if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
