package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docchat/internal/app"
	"docchat/internal/config"
	"docchat/internal/http"
	"docchat/internal/service"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := app.NewLogger(cfg, os.Stdout)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	a, err := app.New(cfg)
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		os.Exit(app.ErrorExitCode(err))
	}
	defer func() {
		_ = a.Close()
	}()

	manager := service.NewManager(a.Deps, a.Options)
	router := http.NewRouter(&http.Deps{
		Manager:      manager,
		Turns:        a.Deps.Turns,
		HealthChecks: a.HealthChecks,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := ":" + cfg.APIPort
	server := &nethttp.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Starting API server", "addr", addr, "index_backend", cfg.IndexBackend)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, nethttp.ErrServerClosed) {
			slog.Error("API server failed", "error", err)
		}
	case <-ctx.Done():
		slog.Info("Shutting down API server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Failed to shut down API server", "error", err)
	}
	// Sessions own their indexes; closing them drops remote collections.
	if err := manager.Close(shutdownCtx); err != nil {
		slog.Error("Failed to close sessions", "error", err)
	}
}
