// Command cleanup is the background janitor that purges expired
// sessions and authorization codes on an interval.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreauth/oauthserver/internal/config"
	"github.com/coreauth/oauthserver/internal/storage"
	"github.com/coreauth/oauthserver/internal/storage/postgres"
	"github.com/coreauth/oauthserver/pkg/logger"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.Setup(cfg.Env, cfg.LogLevel)

	ctx := context.Background()
	pool, err := storage.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("database_connect_failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	sessions := postgres.NewSessionRepo(pool)
	codes := postgres.NewAuthorizationCodeRepo(pool)

	interval := cfg.AutoCleanupInterval
	log.Info("janitor_started", "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	runCleanup(ctx, sessions, codes, log)

	for {
		select {
		case <-ticker.C:
			runCleanup(ctx, sessions, codes, log)
		case <-quit:
			log.Info("janitor_shutting_down")
			return
		}
	}
}

func runCleanup(ctx context.Context, sessions *postgres.SessionRepo, codes *postgres.AuthorizationCodeRepo, logger *slog.Logger) {
	now := time.Now()

	if n, err := sessions.DeleteExpired(ctx, now); err != nil {
		logger.Error("cleanup_sessions_failed", "error", err)
	} else if n > 0 {
		logger.Info("cleaned_expired_sessions", "deleted", n)
	}

	if n, err := codes.DeleteExpired(ctx, now); err != nil {
		logger.Error("cleanup_codes_failed", "error", err)
	} else if n > 0 {
		logger.Info("cleaned_expired_codes", "deleted", n)
	}
}
