// Command gridsync-ws runs the collaborative table server: a WebSocket
// endpoint backed by per-table in-memory sessions and a Postgres store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"gridsync-ws/internal/config"
	"gridsync-ws/internal/logging"
	"gridsync-ws/internal/metrics"
	"gridsync-ws/internal/session"
	"gridsync-ws/internal/storage"
	"gridsync-ws/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() // nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewPostgresGateway(ctx, cfg.Storage.DSN, cfg.Storage.MaxConns)
	if err != nil {
		logger.Fatal("failed to connect to storage", zap.Error(err))
	}
	defer store.Close()

	metricsRegistry := metrics.NewRegistry()
	registry := session.NewRegistry(ctx, store, cfg.Session, logger, metricsRegistry)
	allocator := &session.Allocator{}

	server := transport.NewServer(cfg, logger, registry, allocator, metricsRegistry)
	if err := server.Start(ctx); err != nil {
		logger.Fatal("transport start failed", zap.Error(err))
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")
}
