package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"

	"chat-relay/api"
	"chat-relay/auth"
	"chat-relay/internal"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"chat-relay/storage"
	"chat-relay/transport/ws"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting, so every defer (database close, index close)
// executes before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := internal.NewLogger(config.LogLevel)
	ctx := context.Background()

	// 2. Stores (BadgerDB + Bluge)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	// 3. Delivery core
	monitoring := observability.NewMonitoring()
	registry := runtime.NewRegistry(logger)
	messages := repositories.NewMessageRepository(db, logger)
	channels := repositories.NewChannelRepository(db, logger)
	search := repositories.NewSearchIndex(blugeWriter, logger)
	attachments := storage.NewAttachmentStore(config.UploadDir, logger)

	engine := runtime.NewEngine(logger, messages, channels, registry, monitoring,
		config.BufferSize, config.StoreTimeout, config.SinkTimeout)
	coordinator := runtime.NewCoordinator(logger, registry, monitoring, config.BufferSize)
	chat := services.NewChatService(logger, engine, messages, channels, search, attachments)
	verifier := auth.NewTokenVerifier(config.AuthSecret)

	if logger.Enabled(ctx, slog.LevelDebug) {
		logger.Info("Debug keyspace inspector available",
			"url", fmt.Sprintf("http://localhost:%d/inspect", config.DebugPort))
		internal.StartDebugServer(db, config.DebugPort, func() map[string]any {
			stats := monitoring.Snapshot()
			return map[string]any{
				"connections": stats.ActiveConnections,
				"persisted":   stats.MessagesPersisted,
				"pushed":      stats.MessagesPushed,
			}
		})
	}

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Background workers under supervision
	supervisor := workers.NewSupervisor(logger)
	supervisor.Add(
		workers.NewPresenceWorker(logger, coordinator.Presence(), messages, registry,
			monitoring, config.SinkTimeout),
		workers.NewIndexerWorker(logger, engine.Pipeline(), search),
		workers.NewHeartbeatWorker(logger, monitoring, config.MetricInterval),
	)
	supervisorDone := make(chan struct{})
	go func() {
		supervisor.Run(ctx)
		close(supervisorDone)
	}()

	// 6. HTTP server: REST surface + websocket endpoint
	wsHandler := ws.NewHandler(logger, verifier, coordinator, chat,
		config.AllowedOrigin, config.ConnectionBufferSize, config.SinkTimeout,
		config.MaxMessageSize)
	router := api.NewRouter(logger, api.NewHandler(logger, chat), wsHandler,
		verifier, config.AllowedOrigin)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{
		Addr:              address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 8. Final Cleanup (Graceful Shutdown)
	// Stop accepting HTTP traffic, close every live connection, drain workers.
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	registry.Shutdown()
	supervisor.Stop()
	<-supervisorDone
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}
