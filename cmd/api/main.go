package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dvloznov/budget-etl/internal/api"
	"github.com/dvloznov/budget-etl/internal/config"
	"github.com/dvloznov/budget-etl/internal/infra/sqlite"
	"github.com/dvloznov/budget-etl/internal/logger"
)

func main() {
	// Parse command-line flags
	var (
		configPath = flag.String("config", "", "Path to a YAML config file (or set BUDGET_CONFIG)")
		port       = flag.Int("port", 0, "HTTP server port (default from config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *port != 0 {
		cfg.API.Port = *port
	}

	// Initialize logger
	log := logger.NewWithOptions(logger.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	ctx := logger.WithContext(context.Background(), log)

	store, err := sqlite.Open(ctx, cfg.Paths.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer store.Close()

	if _, err := store.Migrate(ctx, "api"); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.API.Port),
		Handler:      api.NewRouter(store, cfg.API.AllowedOrigins, log),
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Int("port", cfg.API.Port).Str("database", store.Path()).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
