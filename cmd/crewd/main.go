// Command crewd is the crewkit server daemon. It serves the task board,
// routing, and failover APIs over HTTP and persists tasks in SQLite.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/crewkit/crewkit/comms"
	"github.com/crewkit/crewkit/config"
	"github.com/crewkit/crewkit/internal/version"
	"github.com/crewkit/crewkit/server"
	"github.com/crewkit/crewkit/task"
	"github.com/crewkit/crewkit/team"
)

var configPath = flag.String("config", "crewkit.yaml", "path to config file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath, true)
	if err != nil {
		log.Fatalf("Failed to load config %s: %v", *configPath, err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	logger.Info("starting crewd",
		"version", version.Version,
		"commit", version.Commit,
	)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("Failed to create data dir %s: %v", cfg.DataDir, err)
	}
	store, err := task.NewSQLiteStore(filepath.Join(cfg.DataDir, "crewkit.db"))
	if err != nil {
		log.Fatalf("Failed to open task store: %v", err)
	}
	defer store.Close() //nolint:errcheck

	teams, err := team.NewSQLiteStore(filepath.Join(cfg.DataDir, "teams.db"))
	if err != nil {
		log.Fatalf("Failed to open team store: %v", err)
	}
	defer teams.Close() //nolint:errcheck

	srv := server.New(*cfg, version.Version, logger)
	srv.SetTaskStore(store)
	srv.SetTeamStore(teams)
	srv.SetBus(comms.NewInMemoryBus())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
