// Package main provides the notes server entry point.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bull/vector-notes/internal/api"
	"github.com/bull/vector-notes/internal/app"
	"github.com/bull/vector-notes/internal/config"
	"github.com/bull/vector-notes/internal/logging"
	mcpserver "github.com/bull/vector-notes/internal/mcp"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	envErr := godotenv.Load()

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load(config.ResolvePath(""))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LoggingConfig(), nil)
	if envErr != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) error {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.Store.ReconcileRegistry(ctx)
	if err != nil {
		// Serving with a stale registry is better than not serving.
		logger.Warn("Registry reconciliation failed", "error", err)
	} else {
		logger.Info("Registry reconciled", "added", len(report.Added), "removed", len(report.Removed))
	}

	mcp := mcpserver.NewServer(&mcpserver.Config{Notes: a.Store})

	handler := api.NewHandler(api.Options{
		Notes:       a.Store,
		Health:      a.Vectors,
		Collections: a.Registry,
		MCP:         mcpserver.NewHTTPHandler(mcp),
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Stdio mode: run MCP over stdin/stdout for local clients and keep the
	// HTTP surface in the background.
	if os.Getenv("MCP_TRANSPORT") == "stdio" {
		go func() {
			logger.Info("Starting HTTP server", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("HTTP server error", "error", err)
			}
		}()
		logger.Info("Starting MCP server (stdio mode)")
		err := mcp.Run(ctx)
		shutdown(srv, logger)
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "addr", srv.Addr, "ui", "/", "mcp", "/mcp", "health", "/health")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
		shutdown(srv, logger)
		return nil
	}
}

func shutdown(srv *http.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("HTTP server shutdown failed", "error", err)
	}
}
