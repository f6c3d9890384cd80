package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iudanet/webauth/internal/server/auth"
	"github.com/iudanet/webauth/internal/server/config"
	"github.com/iudanet/webauth/internal/server/handlers"
	"github.com/iudanet/webauth/internal/server/middleware"
	"github.com/iudanet/webauth/internal/server/notify"
	"github.com/iudanet/webauth/internal/server/session"
	"github.com/iudanet/webauth/internal/server/session/boltdb"
	"github.com/iudanet/webauth/internal/server/storage/sqlite"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	invalidateRemember := flag.Bool("invalidate-remember-tokens", false,
		"Clear all remember-me tokens and exit (one-time migration to hashed storage)")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if err := run(*invalidateRemember); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func run(invalidateRemember bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Хранилище пользователей (SQLite + миграции)
	db, err := sqlite.New(ctx, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	// Одноразовая миграция: обнулить все remember-me слоты и выйти.
	// После прогона AUTH_REMEMBER_LEGACY_FALLBACK выключается в конфиге.
	if invalidateRemember {
		count, err := db.ClearAllRememberTokens(ctx)
		if err != nil {
			return fmt.Errorf("failed to invalidate remember tokens: %w", err)
		}
		logger.Info("remember tokens invalidated", slog.Int("count", count))
		return nil
	}

	// Хранилище сессий (BoltDB)
	sessionStore, err := boltdb.New(ctx, cfg.SessionsPath)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer func() {
		if err := sessionStore.Close(); err != nil {
			logger.Error("failed to close session store", slog.Any("error", err))
		}
	}()

	sessions := session.NewManager(sessionStore, cfg.SessionTTL)
	remember := auth.NewRememberManager(logger, db, cfg.RememberLegacyFallback)
	mailer := notify.NewLogMailer(logger, db)
	reset := auth.NewResetFlow(logger, db, db, mailer, auth.ResetConfig{
		BaseURL:    cfg.BaseURL,
		TokenTTL:   cfg.ResetTokenTTL,
		RateLimit:  cfg.ResetRateLimit,
		RateWindow: cfg.ResetRateWindow,
		BcryptCost: cfg.BcryptCost,
	})

	cookies := handlers.CookieConfig{Secure: cfg.SecureCookies}
	authHandler := handlers.NewAuthHandler(logger, db, sessions, remember, reset,
		cookies, cfg.BcryptCost, cfg.RememberDays)
	healthHandler := handlers.NewHealthHandler(logger, db, Version)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/signup", authHandler.Signup)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/v1/auth/request-reset", authHandler.RequestReset)
	mux.HandleFunc("GET /api/v1/auth/reset", authHandler.ResetPassword)
	mux.HandleFunc("POST /api/v1/auth/reset", authHandler.ResetPassword)
	mux.HandleFunc("POST /api/v1/auth/logout", authHandler.Logout)
	mux.HandleFunc("GET /api/v1/auth/me", authHandler.Me)
	mux.HandleFunc("GET /api/v1/auth/csrf", authHandler.Csrf)
	mux.HandleFunc("GET /api/v1/health", healthHandler.Health)

	// Цепочка: recovery -> logging -> session -> mux
	var handler http.Handler = mux
	handler = middleware.SessionMiddleware(logger, sessions, remember, cookies)(handler)
	handler = middleware.LoggingWithSkip(logger, []string{"/api/v1/health"})(handler)
	handler = middleware.RecoveryMiddleware(logger)(handler)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			slog.String("addr", cfg.Addr),
			slog.String("version", Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func printVersion() {
	fmt.Printf("WebAuth Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
