// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main is the entry point for the Ocean server.
//
// Ocean serves an online community site around the Mandela effect: a
// catalog of remembered-differently entries with votes, comments and
// likes, plus a threaded forum with polls. Every operation goes through
// a single JSON-RPC-like endpoint, POST /api?token=<token>.
//
// The server initializes in order:
//
//  1. Configuration: TOML file plus OCEAN_* environment overrides (koanf)
//  2. Database: PostgreSQL pool (pgx) and schema migrations
//  3. User cache: all tokens loaded into memory for per-request auth
//  4. Telegram notifier, Prometheus metrics, method registry
//  5. Supervisor tree: HTTPS listener, metrics listener, watchdog,
//     trash monitor
//
// Shutdown on SIGINT/SIGTERM is graceful: listeners drain in-flight
// requests and background tasks stop at their next cancellation point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/krre/ocean-backend/internal/api"
	"github.com/krre/ocean-backend/internal/config"
	"github.com/krre/ocean-backend/internal/controller"
	"github.com/krre/ocean-backend/internal/database"
	"github.com/krre/ocean-backend/internal/logging"
	"github.com/krre/ocean-backend/internal/metrics"
	"github.com/krre/ocean-backend/internal/supervisor"
	"github.com/krre/ocean-backend/internal/telegram"
	"github.com/krre/ocean-backend/internal/trashmonitor"
	"github.com/krre/ocean-backend/internal/usercache"
	"github.com/krre/ocean-backend/internal/watchdog"
)

func main() {
	configPath := flag.String("config", "", "path to ocean.toml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	logging.Info().Msg("Starting Ocean")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, cfg.Postgres)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	version, err := db.SchemaVersion(ctx)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to read schema version")
	}
	logging.Info().Int("version", version).Msg("Database ready")

	cache := usercache.New()
	if err := cache.Load(ctx, db.Pool()); err != nil {
		logging.Fatal().Err(err).Msg("Failed to load user cache")
	}
	logging.Info().Int("users", cache.Len()).Msg("User cache loaded")

	bot := telegram.New(cfg.TelegramBot)
	if bot == nil {
		logging.Info().Msg("Telegram notifications disabled")
	}

	m := metrics.New()

	registry := api.NewRegistry()
	controller.Register(registry, &controller.Deps{
		Cache:         cache,
		Telegram:      bot,
		FrontendDomen: cfg.Frontend.Domen,
	})
	logging.Info().Int("methods", len(registry.Methods())).Msg("Method table built")

	router := api.NewRouter(db, cache, registry, m, cfg.Server.AnonymAllowed)
	handler := api.NewHTTPHandler(router, cfg.Server.RateLimit)

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	tree.AddAPIService(api.NewServerService(addr, handler, cfg.Server.SSL.Cert, cfg.Server.SSL.Key))

	if cfg.Server.MetricsPort > 0 {
		metricsAddr := fmt.Sprintf(":%d", cfg.Server.MetricsPort)
		tree.AddAPIService(api.NewMetricsService(metricsAddr, m.Registry()))
	}

	if cfg.Watchdog.Enabled {
		tree.AddBackgroundService(watchdog.New(int(cfg.Server.Port), cfg.Watchdog.AnonymToken))
	} else {
		logging.Info().Msg("Watchdog disabled")
	}

	tree.AddBackgroundService(trashmonitor.New(db.Pool()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Waiting for services to stop")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Server stopped")
}
