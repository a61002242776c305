// Command unlock-all-sessions force-releases every leased session and
// schedules a validation task for each, in one transaction. Run it when
// tearing down an experiment campaign.
package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Saiid2001/login-security-landscape/internal/config"
	"github.com/Saiid2001/login-security-landscape/internal/database"
	"github.com/Saiid2001/login-security-landscape/internal/logging"
)

func main() {
	clock := clockwork.NewRealClock()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	store := database.NewLeaseStore(pool)
	released, err := store.ForceReleaseAll(ctx, clock.Now())
	if err != nil {
		log.Fatalf("Failed to release sessions: %v", err)
	}

	slog.Info("Released all leased sessions", "count", released)
}
