package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/xiaot623/gogo/segmenter/internal/artifact"
	"github.com/xiaot623/gogo/segmenter/internal/config"
	"github.com/xiaot623/gogo/segmenter/internal/hub"
	"github.com/xiaot623/gogo/segmenter/internal/invoker"
	"github.com/xiaot623/gogo/segmenter/internal/service"
	handler "github.com/xiaot623/gogo/segmenter/internal/transport/http"
	"github.com/xiaot623/gogo/segmenter/internal/upload"
	"github.com/xiaot623/gogo/segmenter/policy"
)

func main() {
	// Load configuration
	cfg := config.Load()

	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.Printf("Unknown LOG_LEVEL %q, using info", cfg.LogLevel)
	}

	log.Printf("Starting segmenter...")
	log.Printf("Listen address: %s", cfg.BindAddr())
	log.Printf("Uploads dir: %s", cfg.UploadsDir)
	log.Printf("Output dir: %s", cfg.OutputDir)
	log.Printf("Tool: %s %s", cfg.ToolCommand, cfg.ToolScript)
	log.Printf("Public URL base: %s://%s:%d%s", cfg.PublicScheme, cfg.AdvertisedHost, cfg.AdvertisedPort, cfg.StaticPrefix)

	// Ensure the upload and output directories exist
	for _, dir := range []string{cfg.UploadsDir, cfg.OutputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize policy engine
	policyEngine, err := policy.NewEngineFromFile(ctx, cfg.PolicyFile)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize event hub
	eventHub := hub.NewHub()

	// Initialize service
	svc := service.New(
		cfg,
		upload.NewStore(cfg.UploadsDir),
		artifact.NewStore(cfg.OutputDir, cfg.RunDirPrefix, cfg.ArtifactExtensions),
		service.NewWorker(&invoker.ExecRunner{}, cfg.WorkerQueueSize),
		policyEngine,
		eventHub,
	)

	server := handler.NewServer(cfg, svc, eventHub)

	grp, gctx := errgroup.WithContext(ctx)

	grp.Go(func() error {
		return eventHub.Run(gctx)
	})

	grp.Go(func() error {
		return svc.RunWorker(gctx)
	})

	grp.Go(func() error {
		log.Printf("HTTP server started on %s", cfg.BindAddr())
		if err := server.Start(cfg.BindAddr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Graceful shutdown
	grp.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down segmenter...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Failed to shutdown server gracefully: %v", err)
			return err
		}
		return nil
	})

	if err := grp.Wait(); err != nil {
		log.Fatalf("Segmenter terminated: %v", err)
	}
	log.Println("Segmenter stopped")
}
