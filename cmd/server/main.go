package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/fieldmap/internal/api"
	"github.com/dgallion1/fieldmap/internal/config"
	"github.com/dgallion1/fieldmap/internal/engine"
	"github.com/dgallion1/fieldmap/internal/metrics"
	"github.com/dgallion1/fieldmap/internal/pathstore"
	"github.com/dgallion1/fieldmap/internal/pipeline"
	"github.com/dgallion1/fieldmap/internal/session"
	"github.com/dgallion1/fieldmap/internal/sqlite"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	level, _ := cfg.SlogLevel()
	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// People store.
	db, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		log.Error("failed to open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	if err := db.Migrate(); err != nil {
		log.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	// Sessions and metrics.
	sessions := session.NewStore(cfg.SessionTTL)
	go sessions.RunCleanup(ctx, time.Minute)
	m := metrics.New(sessions.Len)

	eng := engine.New(engine.OptionsFromConfig(cfg), log, m)

	// Optional pathstore sink for batch outputs.
	var sink pipeline.Sink
	var ps *pathstore.Client
	if cfg.PathstoreURL != "" {
		ps = pathstore.NewClient(cfg.PathstoreURL, cfg.PathstoreAPIKey)
		sink = ps
		log.Info("pathstore sink enabled", "url", cfg.PathstoreURL)
	}

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, eng, sink, log, m)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(api.Deps{
		Engine:       eng,
		Sessions:     sessions,
		Orchestrator: orch,
		People:       sqlite.NewPersonStore(db),
		Metrics:      m,
	}, log, cfg)

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

		// Drain HTTP first so no handler is still submitting batch jobs.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()

		cancel()
		if ps != nil {
			ps.Close()
		}
		db.Close()
	}()

	log.Info("starting fieldmap",
		"port", cfg.Port,
		"key_mode", cfg.Mode().String(),
		"index_arrays", cfg.IndexArrays,
		"workers", cfg.WorkerCount,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
