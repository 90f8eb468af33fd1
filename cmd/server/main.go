// backend-go/cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/api"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/cache"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/config"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/report"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/repository"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/repository/postgres"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/scheduler"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/service"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/signals"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/storage"
	"github.com/apothecaryhq/apothecary-ai/backend-go/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.SetLevel(cfg.Server.Mode)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database. The server still works without one: runs are
	// triggered from CSV and served from the report store.
	var (
		runsRepo   repository.AnalysisRepository
		inputsRepo repository.PrescriptionRepository
	)
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("database unavailable, continuing with report store only")
	} else {
		defer db.Close()
		if err := postgres.Migrate(db.DB.DB); err != nil {
			logger.Log.Fatal().Err(err).Msg("failed to run migrations")
		}
		runsRepo = postgres.NewAnalysisRepository(db)
		inputsRepo = postgres.NewPrescriptionRepository(db)
	}

	// Optional object storage for report artifacts
	var remote storage.ObjectStorage
	if cfg.Storage.Enabled {
		remote, err = storage.NewMinioClient(cfg.Storage)
		if err != nil {
			logger.Log.Warn().Err(err).Msg("object storage unavailable, reports stay local")
			remote = nil
		}
	}

	// Report cache (Redis when enabled, no-op otherwise)
	reportCache, err := cache.NewReportCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("report cache unavailable, continuing without caching")
		reportCache = cache.NewNoopReportCache()
	}

	// Initialize services
	provider := signals.NewProvider(cfg.Signals)
	reports := report.NewStore(cfg.App.ReportDir, remote)
	if remote != nil {
		if pulled, err := reports.Restore(context.Background()); err != nil {
			logger.Log.Warn().Err(err).Msg("report restore from object storage failed")
		} else if pulled > 0 {
			logger.Log.Info().Int("reports", pulled).Msg("restored mirrored reports")
		}
	}
	analysisService := service.NewAnalysisService(cfg.Pipeline, provider, reports, reportCache, runsRepo, inputsRepo)

	// Initialize HTTP server
	router := api.NewRouter(&api.Services{
		Analysis: analysisService,
		DataDir:  cfg.App.DataDir,
	}, cfg.Server.AllowedOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Scheduled runs pull from the database when one is connected,
	// otherwise they re-read the CSV drop directory.
	if cfg.Scheduler.Enabled {
		runner := func(ctx context.Context) error {
			if inputsRepo != nil {
				_, err := analysisService.RunFromStore(ctx, time.Time{})
				return err
			}
			_, err := analysisService.RunFromCSV(ctx, cfg.App.DataDir, time.Time{})
			return err
		}
		sched := scheduler.New(cfg.Scheduler.CronSpec, runner)
		if err := sched.Start(); err != nil {
			logger.Log.Fatal().Err(err).Msg("failed to start scheduler")
		}
		defer sched.Stop()
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
