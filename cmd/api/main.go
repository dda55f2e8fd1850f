package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreauth/oauthserver/internal/api"
	"github.com/coreauth/oauthserver/internal/audit"
	"github.com/coreauth/oauthserver/internal/bootstrap"
	"github.com/coreauth/oauthserver/internal/client"
	"github.com/coreauth/oauthserver/internal/config"
	"github.com/coreauth/oauthserver/internal/consent"
	"github.com/coreauth/oauthserver/internal/crypto"
	"github.com/coreauth/oauthserver/internal/mailer"
	"github.com/coreauth/oauthserver/internal/oauth"
	"github.com/coreauth/oauthserver/internal/session"
	"github.com/coreauth/oauthserver/internal/storage"
	"github.com/coreauth/oauthserver/internal/storage/postgres"
	"github.com/coreauth/oauthserver/internal/user"
	"github.com/coreauth/oauthserver/pkg/logger"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
)

func main() {
	// 0. Load Configuration (Dev/Local)
	// We mask errors because in production these files might not exist
	// and we rely on system env vars.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg := config.Load()

	// 1. Setup Global Logger
	log := logger.Setup(cfg.Env, cfg.LogLevel)
	log.Info("application_startup", "env", cfg.Env)

	// 2. Setup Sentry
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: dsn, TracesSampleRate: 1.0, Environment: cfg.Env}); err != nil {
			log.Error("sentry_init_failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
			log.Info("sentry_initialized")
		}
	} else {
		log.Warn("sentry_dsn_missing", "details", "skipping_init")
	}

	// 3. Connect to Database
	if cfg.DatabaseURL == "" {
		log.Error("database_url_missing")
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := storage.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("database_connect_failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	log.Info("database_connected")

	// 4. Repositories
	userRepo := postgres.NewUserRepo(pool)
	clientRepo := postgres.NewClientRepo(pool)
	codeRepo := postgres.NewAuthorizationCodeRepo(pool)
	sessionRepo := postgres.NewSessionRepo(pool)
	consentRepo := postgres.NewConsentRepo(pool)
	scopeRepo := postgres.NewScopeRepo(pool)

	// 5. Crypto: password hashing and RS256 access tokens
	hasher := crypto.NewBcryptHasher(cfg.BcryptRounds)

	if cfg.JWTPrivateKey == "" {
		if cfg.Env == "production" {
			log.Error("jwt_private_key_missing", "details", "fatal_in_production")
			os.Exit(1)
		}
		log.Warn("jwt_private_key_missing", "details", "dev_mode_unsafe")
	}
	tokenProvider, err := crypto.NewJWTProvider(cfg.JWTPrivateKey, cfg.JWTKeyID, cfg.JWTIssuer, cfg.JWTAudience)
	if err != nil {
		log.Error("jwt_provider_init_failed", "error", err)
		os.Exit(1)
	}

	// 6. Audit trail
	auditLogger := audit.NewPostgresLogger(pool, log)

	// 6a. Transactional email (dev sender logs instead of delivering)
	mailSender := mailer.NewDevSender(log)

	// 7. Use-case services
	userSvc := user.New(userRepo, hasher, auditLogger, mailSender)
	mfaSvc := user.NewMFAService(cfg.JWTIssuer, userRepo)
	clientSvc := client.New(clientRepo, hasher, userRepo, mailSender, mfaSvc)
	consentSvc := consent.New(consentRepo)
	sessionSvc := session.New(sessionRepo, auditLogger)
	oauthSvc := oauth.New(clientRepo, codeRepo, scopeRepo, userRepo, consentSvc, tokenProvider, auditLogger, cfg.AuthCodeTTL, cfg.AccessTokenTTL)

	// 8. System client bootstrap — fail fast if it cannot be ensured.
	if cfg.BFFClientSecret != "" {
		bootCfg := bootstrap.Config{
			ClientID:     cfg.BFFClientID,
			ClientSecret: cfg.BFFClientSecret,
			ClientName:   cfg.BFFClientName,
			RedirectURIs: cfg.BFFRedirectURIs,
		}
		if err := bootstrap.Ensure(ctx, clientRepo, hasher, bootCfg, log); err != nil {
			log.Error("system_client_bootstrap_failed", "error", err)
			os.Exit(1)
		}
		log.Info("system_client_bootstrap_ok")
	} else {
		log.Warn("bff_client_secret_missing", "details", "skipping_system_client_bootstrap")
	}

	// 9. HTTP server
	server := api.NewServer(api.Deps{
		Users:         userSvc,
		Clients:       clientSvc,
		Consents:      consentSvc,
		Sessions:      sessionSvc,
		OAuth:         oauthSvc,
		Tokens:        tokenProvider,
		MFA:           mfaSvc,
		CORSOrigins:   cfg.CORSOrigins,
		SecureCookies: cfg.Env == "production",
		Logger:        log,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("server_listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("server_startup_failed", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		log.Info("shutdown_signal_received", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful_shutdown_failed", "error", err)
			if err := srv.Close(); err != nil {
				log.Error("server_force_close_failed", "error", err)
			}
		}

		pool.Close()
		log.Info("server_shutdown_complete")
	}
}
