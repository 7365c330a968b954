package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/annotext/internal/config"
	"github.com/raaihank/annotext/internal/logger"
	"github.com/raaihank/annotext/internal/server"
	"github.com/raaihank/annotext/internal/version"
)

var (
	buildVersion = "0.1.0"
	commit       = "dev"
	date         = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.Bool("health-check", false, "Perform health check and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("annotext %s (commit: %s, built: %s)\n", buildVersion, commit, date)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *healthCheck {
		performHealthCheck(cfg.Server.Port)
		return
	}

	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting annotext",
		zap.String("version", buildVersion),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
	)

	store, err := openStore(cfg, log)
	if err != nil {
		log.Fatal("Failed to open version store", zap.Error(err))
	}
	defer store.Close()

	srv, err := server.New(cfg, log, store)
	if err != nil {
		log.Fatal("Failed to create server", zap.Error(err))
	}

	// Only the tagging policy is applied live; other settings need a restart
	watching := config.Watch(func(next *config.Config) {
		srv.SetPolicy(next.Annotation.Policy)
		log.Info("Configuration reloaded",
			zap.Bool("link_duplicates", next.Annotation.Policy.LinkDuplicates),
			zap.Int("min_selection_length", next.Annotation.Policy.MinSelectionLength))
	}, func(err error) {
		log.Warn("Ignoring configuration change", zap.Error(err))
	})
	if watching {
		log.Debug("Watching configuration file for changes")
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", zap.Error(err))
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Give outstanding requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Stop(ctx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
			return
		}

		log.Info("Server shutdown complete")
	}
}

// openStore builds the configured version store, wrapped by the snapshot
// cache when one is enabled
func openStore(cfg *config.Config, log *logger.Logger) (version.Store, error) {
	var store version.Store
	switch cfg.Storage.Driver {
	case "postgres":
		pg, err := version.NewPostgresStore(&cfg.Storage.Postgres, log.WithComponent("postgres").Logger)
		if err != nil {
			return nil, err
		}
		store = pg
	default:
		log.Warn("Using in-memory version store; history is lost on restart")
		store = version.NewMemoryStore()
	}

	if !cfg.Cache.Enabled {
		return store, nil
	}

	snapshots, err := version.NewSnapshotCache(&cfg.Cache, log.WithComponent("cache").Logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to connect snapshot cache: %w", err)
	}
	return version.NewCachedStore(store, snapshots, log.WithComponent("cache").Logger), nil
}

// performHealthCheck performs a health check against the running server
func performHealthCheck(port int) {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get(fmt.Sprintf("http://localhost:%d/health", port))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
}
