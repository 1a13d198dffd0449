package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"transcriptd/config"
	"transcriptd/dispatcher"
	"transcriptd/handlers"
	"transcriptd/logger"
	"transcriptd/models"
	"transcriptd/repository/sqlite"
	"transcriptd/resolver"
	"transcriptd/scripts"
	"transcriptd/storage"
	"transcriptd/validation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.Init(cfg.LogDir, cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	db, err := sqlite.InitDB(cfg.Database.Path, sqlite.DBConfig{
		MaxConnections:     cfg.Database.MaxConnections,
		MaxIdleConnections: cfg.Database.MaxIdleConnections,
	})
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	jobRepo := sqlite.NewJobRepository(db)
	transcriptRepo := sqlite.NewTranscriptRepository(db)

	media, err := storage.NewMediaStore(cfg.UploadsDir, cfg.WorkDir, appLogger)
	if err != nil {
		log.Fatalf("Failed to initialize media store: %v", err)
	}

	runner, err := scripts.NewRunner(cfg.Scripts, appLogger)
	if err != nil {
		log.Fatalf("Failed to initialize script runner: %v", err)
	}

	validator := validation.NewValidator(cfg)

	resolvers := resolver.NewSet()
	resolvers.Register(models.SourceFileUpload,
		resolver.NewUploadResolver(media, runner, appLogger))
	resolvers.Register(models.SourceYouTubeCaptions,
		resolver.NewCaptionsResolver(runner, validator, cfg.YouTube, appLogger))
	resolvers.Register(models.SourceYouTubeAutoIngest,
		resolver.NewAutoIngestResolver(runner, media, validator, cfg.YouTube, appLogger))

	var (
		archiver dispatcher.Archiver
		restorer handlers.TranscriptArchive
	)
	if cfg.Archive.Enabled {
		client, err := storage.NewArchiveClient(cfg.Archive)
		if err != nil {
			log.Fatalf("Failed to initialize archive client: %v", err)
		}
		archiver = client
		restorer = client
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := dispatcher.New(jobRepo, transcriptRepo, resolvers, runner, archiver, cfg.Worker, appLogger)
	d.Start(ctx)

	handler := handlers.New(jobRepo, transcriptRepo, media, validator, restorer, cfg, appLogger)
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handlers.NewRouter(handler),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	// ListenAndServe returns the moment the listener closes, well
	// before in-flight requests drain or the workers stop. Main has to
	// wait for the shutdown sequence itself.
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-shutdownChan
		appLogger.Info("Shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			appLogger.WithError(err).Error("Server shutdown error")
		}

		cancel()
		d.Stop()
	}()

	appLogger.WithField("port", cfg.ServerPort).Info("Server starting")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
	<-shutdownDone
	appLogger.Info("Shutdown complete")
}
