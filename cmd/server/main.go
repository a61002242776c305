package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/Saiid2001/login-security-landscape/internal/config"
	"github.com/Saiid2001/login-security-landscape/internal/database"
	"github.com/Saiid2001/login-security-landscape/internal/domain"
	"github.com/Saiid2001/login-security-landscape/internal/lease"
	"github.com/Saiid2001/login-security-landscape/internal/logging"
	"github.com/Saiid2001/login-security-landscape/internal/server"
	"github.com/Saiid2001/login-security-landscape/internal/sessiondata"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupSessionData(cfg *config.Config) (domain.SessionDataStore, func()) {
	if cfg.RedisURL == "" {
		slog.Info("Session data from filesystem", "dir", cfg.SessionDataDir)
		return sessiondata.NewFileStore(cfg.SessionDataDir), func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rdb, err := sessiondata.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	slog.Info("Session data from Redis")
	return sessiondata.NewRedisStore(rdb), func() { _ = rdb.Close() }
}

func runGracefulShutdown(srv *server.Server, dispatcher *server.Dispatcher) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		dispatcher.Stop()
		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Session pool starting", "env", cfg.AppEnv, "port", cfg.Port)

	pool := setupDB(cfg)
	defer pool.Close()

	blobs, closeBlobs := setupSessionData(cfg)
	defer closeBlobs()

	store := database.NewLeaseStore(pool)
	forms := database.NewFormCatalog(pool)

	reconciler := lease.NewReconciler(store, clock, cfg.AutoVerifyTimeout, cfg.ManualVerifyTimeout)
	svc := lease.NewService(store, forms, blobs, reconciler, clock, cfg.LeaseTTL)

	dispatcher := server.NewDispatcher(svc)
	go dispatcher.Run()

	srv := server.NewServer(cfg, dispatcher, pool)
	done := runGracefulShutdown(srv, dispatcher)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
