package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"forecast_workbench/pkg/api/server"
	"forecast_workbench/pkg/core/config"
	"forecast_workbench/pkg/core/forecast"
	"forecast_workbench/pkg/core/logging"
	"forecast_workbench/pkg/core/scheduler"
	"forecast_workbench/pkg/core/session"
	"forecast_workbench/pkg/core/store"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// The logger is not configured yet; fall back to the default.
		boot := logging.New(logging.Config{Level: "info", Pretty: true})
		boot.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logging.New(logging.Config{Level: cfg.Logging.Level, Pretty: cfg.Logging.Pretty})
	logging.SetGlobalLogger(log)
	log.Info().Str("config", *configPath).Str("backend", cfg.Backend.URL).Msg("Starting forecast workbench")

	// Scenario storage: Postgres when configured, with a local file copy when scenario_dir is set
	ctx := context.Background()
	if cfg.Storage.DatabaseURL != "" {
		if err := store.InitDB(ctx, cfg.Storage.DatabaseURL); err != nil {
			log.Warn().Err(err).Msg("Database unavailable, scenarios fall back to files")
		} else {
			defer store.Close()
		}
	}
	scenarios := store.NewScenarioStore(store.GetPool(), cfg.Storage.ScenarioDir, log)

	client := forecast.NewClient(cfg.Backend, log)
	sessions := session.NewManager(session.Options{
		TTL:      cfg.Sessions.TTL,
		Defaults: cfg.Workbench.Defaults,
		Scalars:  cfg.Workbench.Scalars,
		Backend:  client,
		Log:      log,
	})

	sched := scheduler.New(log)
	if cfg.Sessions.TTL > 0 {
		if err := sched.AddJob(scheduler.Every(cfg.Sessions.JanitorInterval), sessions.Janitor()); err != nil {
			log.Fatal().Err(err).Msg("Failed to register session janitor")
		}
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Server:    cfg.Server,
		Workbench: cfg.Workbench,
		Sessions:  sessions,
		Scenarios: scenarios,
		Log:       log,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().
		Str("addr", cfg.Addr()).
		Str("storage", scenarios.Backend()).
		Dur("session_ttl", cfg.Sessions.TTL).
		Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
