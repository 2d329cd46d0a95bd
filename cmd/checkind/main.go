// Package main is the entrypoint for the check-in daemon.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/safenotsorry/checkin/internal/app"
	"github.com/safenotsorry/checkin/internal/checkin"
	"github.com/safenotsorry/checkin/internal/config"
	"github.com/safenotsorry/checkin/internal/handler"
	"github.com/safenotsorry/checkin/internal/inbound"
	"github.com/safenotsorry/checkin/internal/migrations"
	"github.com/safenotsorry/checkin/internal/scheduler"
	"github.com/safenotsorry/checkin/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("checkind exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MigrateOnStart {
		if err := app.Migrate(ctx, cfg.DatabaseURL, logger, (*migrations.Runner).Up); err != nil {
			return err
		}
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	// Timers lost with Redis, or never queued after a crash, come back here.
	if _, err := a.Service.Recover(ctx, time.Now()); err != nil {
		logger.Error("timer recovery failed", "error", err)
	}

	worker := scheduler.NewWorker(a.Queue, logger, a.Metrics,
		scheduler.WithBatchSize(cfg.TimerBatchSize),
		scheduler.WithPollInterval(cfg.TimerPollInterval),
	)
	a.Service.RegisterTimers(worker)

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()
	workerDone := make(chan error, 1)
	go func() { workerDone <- worker.Run(workerCtx) }()

	driver, err := checkin.NewDriver(cfg.ScanSchedule, a.Service, logger)
	if err != nil {
		return err
	}
	if cfg.RecoveryEnabled() {
		if err := driver.ScheduleRecovery(cfg.RecoverySchedule, a.Service); err != nil {
			return err
		}
	}
	driver.Start()

	var consumer *inbound.Consumer
	if cfg.MQTTInboundTopic != "" {
		consumer = inbound.NewConsumer(a.MQTT, a.Service, cfg.MQTTInboundTopic, cfg.IntakeTimeout, logger)
		if err := consumer.Start(); err != nil {
			_ = driver.Stop(context.Background())
			return err
		}
	}

	router := handler.NewRouter(handler.RouterConfig{
		Handler:     handler.New("checkind", app.Version),
		Health:      handler.NewHealthHandler(a.HealthChecks()),
		SMS:         handler.NewSMSHandler(a.Service, cfg.IntakeTimeout, logger),
		Metrics:     a.Metrics.Handler(),
		MaxBodySize: cfg.MaxRequestBodySize,
		Logger:      logger,
	})

	srv := server.New(router, server.Config{
		Addr:            fmt.Sprintf(":%d", cfg.AppPort),
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Stopped in reverse: replies first, then scans, then in-flight timers.
	srv.OnShutdown("timer-worker", func(ctx context.Context) error {
		cancelWorker()
		select {
		case <-workerDone:
		case <-ctx.Done():
			return ctx.Err()
		}
		return worker.Wait(ctx)
	})
	srv.OnShutdown("scan-driver", driver.Stop)
	if consumer != nil {
		srv.OnShutdown("reply-consumer", func(ctx context.Context) error {
			return consumer.Stop()
		})
	}

	logger.Info("starting checkind",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"version", app.Version,
		"notify_driver", cfg.NotifyDriver,
		"scan_schedule", cfg.ScanSchedule,
		"recovery_schedule", cfg.RecoverySchedule,
	)

	return srv.Run(ctx)
}
