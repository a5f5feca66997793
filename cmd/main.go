package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Tonic56/coin-watchlist/internal/app"
	"github.com/Tonic56/coin-watchlist/internal/config"
)

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env).With(slog.String("service", cfg.Service))
	log.Info("starting service", slog.String("env", cfg.Env))

	application := app.New(log, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	failed := make(chan error, 1)
	go func() {
		failed <- application.Run()
	}()

	select {
	case err := <-failed:
		// Run has already stopped every component.
		log.Error("failed to run app", slog.Any("error", err))
		os.Exit(1)
	case <-ctx.Done():
	}

	log.Info("stopping service...")
	application.Stop()
	log.Info("service stopped")
}

// setupLogger picks the handler by environment: readable text locally, JSON
// elsewhere, debug level everywhere but prod.
func setupLogger(env string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}

	switch env {
	case "local":
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	case "dev":
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	default:
		opts.Level = slog.LevelInfo
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
}
