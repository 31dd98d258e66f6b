package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iqclab/strategy-engine/internal/config"
	"github.com/iqclab/strategy-engine/internal/database"
	"github.com/iqclab/strategy-engine/internal/database/repositories"
	"github.com/iqclab/strategy-engine/internal/events"
	"github.com/iqclab/strategy-engine/internal/marketdata"
	"github.com/iqclab/strategy-engine/internal/modules/alpha"
	"github.com/iqclab/strategy-engine/internal/modules/regime"
	"github.com/iqclab/strategy-engine/internal/modules/risk"
	"github.com/iqclab/strategy-engine/internal/scheduler"
	"github.com/iqclab/strategy-engine/internal/server"
	"github.com/iqclab/strategy-engine/pkg/logger"
)

func main() {
	// Initialize logger
	log := logger.New(logger.Config{
		Level:  "info",
		Pretty: true,
	})

	log.Info().Msg("Starting strategy engine")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Core engine components
	eventManager := events.NewManager(log)
	classifier := regime.NewClassifier(log)
	scorer := alpha.NewEngine(log)
	riskManager := risk.NewManager(risk.DefaultConstraints(), log)
	runs := repositories.NewRunRepository(db.Conn(), log)

	// Macro observations land in an in-memory store; the refresh job
	// reclassifies from whatever is latest.
	macroStore := marketdata.NewStore()

	// Initialize scheduler
	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()

	refreshJob := scheduler.NewRegimeRefreshJob(classifier, macroStore, eventManager, log)
	if err := sched.AddJob("0 0 * * * *", refreshJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register regime refresh job")
	}
	if err := sched.RunNow(refreshJob); err != nil {
		log.Warn().Err(err).Msg("Initial regime refresh failed")
	}

	// Initialize HTTP server
	srv := server.New(server.Config{
		Port:       cfg.Port,
		Log:        log,
		Config:     cfg,
		DevMode:    cfg.DevMode,
		Classifier: classifier,
		Scorer:     scorer,
		Risk:       riskManager,
		Runs:       runs,
		Events:     eventManager,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
