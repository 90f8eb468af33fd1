// backend-go/cmd/ingestd/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/config"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/drive"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/repository/postgres"
)

// ingestd mirrors the dispensing system's Drive exports into Postgres.
// It serves the Drive routes for manual pulls and, when a folder is
// configured, polls it on an interval.
func main() {
	// Load environment variables from .env file if it exists
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Google Drive service
	driveService, err := drive.NewService(ctx, []byte(cfg.Drive.CredentialsJSON))
	if err != nil {
		log.Fatalf("Failed to initialize Google Drive service: %v", err)
	}

	// Initialize database
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Initialize services
	repo := postgres.NewPrescriptionRepository(db)
	ingestService := drive.NewIngestService(driveService, repo)

	// Register routes
	r := mux.NewRouter()
	driveHandler := drive.NewHandler(driveService, ingestService)
	driveHandler.RegisterRoutes(r)

	// Health check endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	// Poll the configured folder so exports land without anyone
	// calling the ingest endpoint.
	if cfg.Drive.FolderID != "" && cfg.Drive.PollMinutes > 0 {
		go pollFolder(ctx, driveService, ingestService, cfg.Drive)
	}

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		log.Printf("Ingest server starting on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Forced shutdown: %v", err)
	}
}

func pollFolder(ctx context.Context, driveService *drive.Service, ingestService *drive.IngestService, cfg config.DriveConfig) {
	downloader := drive.NewDownloader(driveService)
	interval := time.Duration(cfg.PollMinutes) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("Polling Drive folder %s every %s", cfg.FolderID, interval)

	// Sync once at startup, then on every tick.
	syncFolder(ctx, downloader, ingestService, cfg)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			syncFolder(ctx, downloader, ingestService, cfg)
		}
	}
}

func syncFolder(ctx context.Context, downloader *drive.Downloader, ingestService *drive.IngestService, cfg config.DriveConfig) {
	paths, err := downloader.DownloadFolderCSV(ctx, drive.DownloadOptions{
		FolderID:    cfg.FolderID,
		DownloadDir: cfg.DownloadDir,
	})
	if err != nil {
		log.Printf("Drive sync failed: %v", err)
		return
	}

	for _, path := range paths {
		if _, err := ingestService.IngestLocal(ctx, path); err != nil {
			log.Printf("Ingest failed for %s: %v", path, err)
		}
	}
}
