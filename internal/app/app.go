// Package app wires the check-in service from configuration. Both the
// daemon and the ops CLI build their dependency graph here.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/safenotsorry/checkin/internal/audit"
	"github.com/safenotsorry/checkin/internal/cache"
	"github.com/safenotsorry/checkin/internal/checkin"
	"github.com/safenotsorry/checkin/internal/config"
	"github.com/safenotsorry/checkin/internal/handler"
	"github.com/safenotsorry/checkin/internal/metrics"
	"github.com/safenotsorry/checkin/internal/migrations"
	"github.com/safenotsorry/checkin/internal/mqtt"
	"github.com/safenotsorry/checkin/internal/notify"
	"github.com/safenotsorry/checkin/internal/repository"
	"github.com/safenotsorry/checkin/internal/scheduler"
	"github.com/safenotsorry/checkin/internal/tz"
)

// Version is set at build time with -ldflags "-X .../internal/app.Version=...".
var Version = "dev"

// App holds the connected dependencies.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Repo     *repository.Repository
	AuditDB  *sql.DB
	Cache    *cache.Cache
	Queue    *scheduler.Queue
	MQTT     *mqtt.Client // nil without MQTT_BROKER
	Metrics  *metrics.PrometheusRecorder
	Notifier *notify.Notifier
	Service  *checkin.Service

	closers []func()
}

// New connects to Postgres, Redis and (if configured) the MQTT broker and
// builds the check-in service. On error everything already opened is closed.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Metrics: metrics.NewPrometheus()}
	if err := a.connect(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) connect(ctx context.Context) error {
	cfg, logger := a.Config, a.Logger
	var err error

	a.Repo, err = repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %s", SanitizeError(err, cfg.DatabaseURL))
	}
	a.closers = append(a.closers, a.Repo.Close)
	logger.Info("connected to database", "database_url", RedactURL(cfg.DatabaseURL))

	a.AuditDB, err = audit.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open audit store: %s", SanitizeError(err, cfg.DatabaseURL))
	}
	a.closers = append(a.closers, func() { _ = a.AuditDB.Close() })

	a.Cache, err = cache.New(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %s", SanitizeError(err, cfg.RedisURL))
	}
	a.closers = append(a.closers, func() { _ = a.Cache.Close() })
	logger.Info("connected to Redis", "redis_url", RedactURL(cfg.RedisURL))

	if cfg.MQTTBroker != "" {
		a.MQTT, err = mqtt.NewClient(mqtt.Config{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
		}, logger)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, a.MQTT.Disconnect)
	}

	resolver, err := tz.NewResolver(cfg.Timezones())
	if err != nil {
		return err
	}

	sender, err := NewSender(cfg, a.MQTT, logger)
	if err != nil {
		return err
	}
	guarded := notify.NewGuardedSender(sender, a.Cache, cfg.SendGuardPerMinute, logger)
	a.Notifier = notify.NewNotifier(guarded, logger, a.Metrics)

	a.Queue = scheduler.NewQueue(a.Cache.Client())

	a.Service = checkin.NewService(checkin.Deps{
		Profiles:  a.Repo,
		CheckIns:  a.Repo,
		Contacts:  a.Repo,
		Responses: audit.NewStore(a.AuditDB),
		Timers:    a.Queue,
		Notifier:  a.Notifier,
		Resolver:  resolver,
		Messages:  notify.NewMessages(cfg.BrandName, cfg.AffirmativeToken),
		Lock:      a.Cache,
		Metrics:   a.Metrics,
		Logger:    logger,
	}, PolicyFrom(cfg))

	return nil
}

// PolicyFrom maps configuration onto the check-in policy.
func PolicyFrom(cfg *config.Config) checkin.Policy {
	return checkin.Policy{
		ReminderDelay:    cfg.ReminderDelay,
		EscalationDelay:  cfg.EscalationDelay,
		AffirmativeToken: cfg.AffirmativeToken,
		RecoveryWindow:   cfg.RecoveryWindow,
	}
}

// NewSender picks the transport named by NOTIFY_DRIVER.
func NewSender(cfg *config.Config, mqttClient *mqtt.Client, logger *slog.Logger) (notify.Sender, error) {
	switch cfg.NotifyDriver {
	case config.NotifyDriverLog:
		return notify.NewLogSender(logger), nil
	case config.NotifyDriverTwilio:
		return notify.NewTwilioSender(notify.TwilioConfig{
			BaseURL:       cfg.TwilioBaseURL,
			AccountSID:    cfg.TwilioAccountSID,
			AuthToken:     cfg.TwilioAuthToken,
			From:          cfg.TwilioPhoneNumber,
			RatePerSecond: cfg.NotifyRatePerSecond,
		}), nil
	case config.NotifyDriverMQTT:
		if mqttClient == nil {
			return nil, errors.New("mqtt notify driver needs a broker connection")
		}
		return notify.NewMQTTSender(mqttClient, cfg.MQTTOutboundTopic), nil
	default:
		return nil, fmt.Errorf("unknown notify driver %q", cfg.NotifyDriver)
	}
}

// HealthChecks returns the readiness checks for every connected dependency.
func (a *App) HealthChecks() map[string]handler.HealthChecker {
	checks := map[string]handler.HealthChecker{
		"postgres": a.Repo,
		"audit":    handler.CheckFunc(a.AuditDB.PingContext),
		"redis":    a.Cache,
		"mqtt":     nil,
	}
	if a.MQTT != nil {
		checks["mqtt"] = handler.CheckFunc(func(context.Context) error {
			if !a.MQTT.IsConnected() {
				return mqtt.ErrNotConnected
			}
			return nil
		})
	}
	return checks
}

// Migrate applies pending migrations on a dedicated connection.
func Migrate(ctx context.Context, databaseURL string, logger *slog.Logger, apply func(*migrations.Runner) error) error {
	db, err := audit.Open(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %s", SanitizeError(err, databaseURL))
	}

	runner, err := migrations.NewRunner(db, logger)
	if err != nil {
		_ = db.Close()
		return err
	}
	defer runner.Close()

	return apply(runner)
}

// Close releases everything New opened, in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
