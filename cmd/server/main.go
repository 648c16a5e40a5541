package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nev3rmi/citeanchor/internal/api"
	"github.com/nev3rmi/citeanchor/internal/chunkstore"
	"github.com/nev3rmi/citeanchor/internal/config"
	"github.com/nev3rmi/citeanchor/internal/pipeline"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the chunk store client.
	chunks := chunkstore.NewClient(cfg.ChunkstoreURL, cfg.ChunkstoreAPIKey, cfg.MetadataTimeout, cfg.DownloadTimeout)

	// Initialize the highlight engine.
	engine := pipeline.NewEngine(pipeline.EngineConfig{
		SessionTTL:           cfg.SessionTTL,
		CleanupInterval:      cfg.CleanupInterval,
		MaxConcurrentMatches: cfg.MaxConcurrentMatches,
		Timing: pipeline.Timing{
			SettleFirst:        cfg.SettleFirst,
			SettleResize:       cfg.SettleResize,
			ResizeDebounce:     cfg.ResizeDebounce,
			LayoutPollInterval: cfg.LayoutPollInterval,
		},
	}, chunks, log)
	engine.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(engine, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		engine.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		chunks.Close()
	}()

	log.Info("starting citeanchor", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
