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

	"github.com/spf13/cobra"

	"github.com/lutendolukhele/intentorch/internal/config"
)

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the orchestrator HTTP server",
		Long: `Start the orchestrator HTTP server.

The server will:
1. Load and validate configuration from the given YAML file
2. Load the declarative tool catalog
3. Wire the provider gateway, entity cache, session store, and LLM provider
4. Serve session creation, message submission, and WS/SSE streaming
5. Serve /healthz and /metrics

Graceful shutdown is handled on SIGINT/SIGTERM.`,
		Example: `  orchestratord serve --config orchestrator.yaml
  orchestratord serve --config orchestrator.yaml --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "orchestrator.yaml", "Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func runServe(ctx context.Context, configPath string, debug bool) error {
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("serve: reading config: %w", err)
	}
	if err := config.Validate(raw); err != nil {
		return fmt.Errorf("serve: invalid config: %w", err)
	}
	cfg, err := config.LoadFromBytes(raw)
	if err != nil {
		return fmt.Errorf("serve: loading config: %w", err)
	}

	logger := newLogger(cfg.Logging, debug)
	slog.SetDefault(logger)

	a, err := bootstrap(cfg, logger)
	if err != nil {
		return fmt.Errorf("serve: bootstrap: %w", err)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort),
		Handler: a.routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-sigCtx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func newLogger(cfg config.LoggingConfig, debug bool) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
