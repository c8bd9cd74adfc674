package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcoot/accountsvc/internal/api"
	"github.com/mcoot/accountsvc/internal/config"
	"github.com/mcoot/accountsvc/internal/factory"
	"github.com/mcoot/accountsvc/internal/jobs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Create application factory
	app, err := factory.New(ctx, factory.ConfigFromEnv(cfg, logger))
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("storage close error", slog.String("error", err.Error()))
		}
	}()
	logger.Info("storage ready", slog.String("type", cfg.StorageType))

	// Background gauge refresh
	scheduler := jobs.NewScheduler(logger)
	statsJob := jobs.NewStatsJob(app.Storage, app.Metrics, logger)
	if err := scheduler.Add("account-stats", cfg.StatsSchedule, statsJob); err != nil {
		logger.Error("failed to schedule jobs", slog.String("error", err.Error()))
		os.Exit(1)
	}
	statsJob.Run()
	scheduler.Start()

	router := api.NewRouter(api.RouterConfig{
		Logger:          logger,
		IdentityService: app.IdentityService,
		Storage:         app.Storage,
		Metrics:         app.Metrics,
	})
	server := api.NewServer(router, cfg.Server, logger)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Wait for shutdown or error
	exitCode := 0
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			exitCode = 1
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			exitCode = 1
		}
	}

	scheduler.Stop(context.Background())
	logger.Info("server stopped")

	if exitCode != 0 {
		stop()
		_ = app.Close()
		os.Exit(exitCode)
	}
}
