// Package main is the entry point for the supportdesk server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	supportdesk "github.com/blueberrycongee/supportdesk"
	"github.com/blueberrycongee/supportdesk/internal/api"
	"github.com/blueberrycongee/supportdesk/internal/config"
	"github.com/blueberrycongee/supportdesk/internal/observability"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// Bootstrap logger until the configured one is known
	bootstrap := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfgManager, err := config.NewManager(configPath, bootstrap)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	defer func() { _ = cfgManager.Close() }()
	cfg := cfgManager.Get()

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	logger.Info("starting supportdesk", "version", supportdesk.Version, "config", configPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRate:  cfg.Tracing.SampleRate,
		Insecure:    cfg.Tracing.Insecure,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	client, err := supportdesk.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build client: %w", err)
	}

	// Policy thresholds are hot-reloadable; everything else needs a restart.
	reloader := newPolicyReloader(logger, client, cfg)
	cfgManager.OnChange(reloader.Reload)
	if err := cfgManager.Watch(ctx); err != nil {
		logger.Warn("config hot-reload disabled", "error", err)
	}

	var limiter *api.SessionRateLimiter
	if cfg.RateLimit.Enabled {
		limiter = api.NewSessionRateLimiter(api.RateLimiterConfig{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			BurstSize:         cfg.RateLimit.BurstSize,
		})
		defer limiter.Stop()
	}

	handler := api.NewClientHandler(client, logger, &api.ClientHandlerConfig{
		MaxMessageRunes: cfg.Server.MaxMessageRunes,
		RateLimiter:     limiter,
	})
	mux, err := buildMux(cfg, handler)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      buildMiddlewareStack(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down server", "signal", sig.String())
	case err := <-serveErr:
		if err != nil {
			logger.Error("server error", "error", err)
		}
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfgManager.Get().Server.ShutdownTimeout)
	defer shutdownCancel()

	var errs []error
	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	if err := client.Close(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("tracing shutdown: %w", err))
	}
	logger.Info("server stopped")
	return errors.Join(errs...)
}

func buildLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	level, err := observability.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	logger := observability.NewLogger(observability.LoggerConfig{
		Level:      level,
		JSONFormat: !strings.EqualFold(cfg.Format, "text"),
	}, observability.NewRedactor())
	return logger.Slog(), nil
}
