// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Notification transport drivers.
const (
	NotifyDriverTwilio = "twilio"
	NotifyDriverMQTT   = "mqtt"
	NotifyDriverLog    = "log"
)

// DefaultSupportedTimezones is the canonical set of zones a profile may use.
const DefaultSupportedTimezones = "Australia/Sydney,Australia/Melbourne,Australia/Brisbane,Australia/Canberra,Australia/Hobart,Australia/Adelaide,Australia/Darwin,Australia/Perth,Africa/Lagos"

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL    string `env:"DATABASE_URL,required"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"false"`

	// Redis backs the timer queue, the scan lock and the send guard.
	RedisURL string `env:"REDIS_URL,required"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Request body size limit in bytes (default 64KB, replies are tiny)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"65536"`

	// Check-in policy
	ReminderDelay      time.Duration `env:"REMINDER_DELAY" envDefault:"15m"`
	EscalationDelay    time.Duration `env:"ESCALATION_DELAY" envDefault:"45m"`
	AffirmativeToken   string        `env:"AFFIRMATIVE_TOKEN" envDefault:"Y"`
	SupportedTimezones string        `env:"SUPPORTED_TIMEZONES" envDefault:"Australia/Sydney,Australia/Melbourne,Australia/Brisbane,Australia/Canberra,Australia/Hobart,Australia/Adelaide,Australia/Darwin,Australia/Perth,Africa/Lagos"` // keep in sync with DefaultSupportedTimezones
	BrandName          string        `env:"BRAND_NAME" envDefault:"Safe Not Sorry"`

	// Scheduling
	ScanSchedule      string        `env:"SCAN_SCHEDULE" envDefault:"* * * * *"`
	TimerPollInterval time.Duration `env:"TIMER_POLL_INTERVAL" envDefault:"1s"`
	TimerBatchSize    int           `env:"TIMER_BATCH_SIZE" envDefault:"100"`
	RecoveryWindow    time.Duration `env:"RECOVERY_WINDOW" envDefault:"24h"`
	RecoverySchedule  string        `env:"RECOVERY_SCHEDULE" envDefault:"*/5 * * * *"` // "off" disables
	IntakeTimeout     time.Duration `env:"INTAKE_TIMEOUT" envDefault:"10s"`

	// Notification transport
	NotifyDriver        string `env:"NOTIFY_DRIVER" envDefault:"log"`
	NotifyRatePerSecond int    `env:"NOTIFY_RATE_PER_SECOND" envDefault:"10"`
	SendGuardPerMinute  int    `env:"SEND_GUARD_PER_MINUTE" envDefault:"6"`

	// Twilio
	TwilioAccountSID  string `env:"TWILIO_SID"`
	TwilioAuthToken   string `env:"TWILIO_AUTH_TOKEN"`
	TwilioPhoneNumber string `env:"TWILIO_PHONE_NUMBER"`
	TwilioBaseURL     string `env:"TWILIO_BASE_URL" envDefault:"https://api.twilio.com"`

	// MQTT SMS gateway
	MQTTBroker        string `env:"MQTT_BROKER"`
	MQTTClientID      string `env:"MQTT_CLIENT_ID" envDefault:"checkind"`
	MQTTUsername      string `env:"MQTT_USERNAME"`
	MQTTPassword      string `env:"MQTT_PASSWORD"`
	MQTTOutboundTopic string `env:"MQTT_OUTBOUND_TOPIC" envDefault:"sms/outbound"`
	MQTTInboundTopic  string `env:"MQTT_INBOUND_TOPIC" envDefault:""`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// RecoveryEnabled reports whether timers are re-queued periodically.
func (c *Config) RecoveryEnabled() bool {
	return c.RecoverySchedule != "" && !strings.EqualFold(c.RecoverySchedule, "off")
}

// Timezones parses the comma-separated zone list into a slice.
func (c *Config) Timezones() []string {
	if c.SupportedTimezones == "" {
		return nil
	}

	zones := strings.Split(c.SupportedTimezones, ",")
	result := make([]string, 0, len(zones))

	for _, zone := range zones {
		trimmed := strings.TrimSpace(zone)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Validate checks cross-field invariants that struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	if c.ReminderDelay <= 0 {
		errs = append(errs, errors.New("REMINDER_DELAY must be positive"))
	}
	if c.EscalationDelay <= c.ReminderDelay {
		errs = append(errs, fmt.Errorf("ESCALATION_DELAY (%s) must be greater than REMINDER_DELAY (%s)", c.EscalationDelay, c.ReminderDelay))
	}
	if strings.TrimSpace(c.AffirmativeToken) == "" {
		errs = append(errs, errors.New("AFFIRMATIVE_TOKEN must not be empty"))
	}

	zones := c.Timezones()
	if len(zones) == 0 {
		errs = append(errs, errors.New("SUPPORTED_TIMEZONES must list at least one zone"))
	}
	for _, zone := range zones {
		if _, err := time.LoadLocation(zone); err != nil {
			errs = append(errs, fmt.Errorf("unknown timezone %q: %w", zone, err))
		}
	}

	switch c.NotifyDriver {
	case NotifyDriverLog:
	case NotifyDriverTwilio:
		if c.TwilioAccountSID == "" || c.TwilioAuthToken == "" || c.TwilioPhoneNumber == "" {
			errs = append(errs, errors.New("twilio driver requires TWILIO_SID, TWILIO_AUTH_TOKEN and TWILIO_PHONE_NUMBER"))
		}
	case NotifyDriverMQTT:
		if c.MQTTBroker == "" {
			errs = append(errs, errors.New("mqtt driver requires MQTT_BROKER"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown NOTIFY_DRIVER %q", c.NotifyDriver))
	}

	if c.MQTTInboundTopic != "" && c.MQTTBroker == "" {
		errs = append(errs, errors.New("MQTT_INBOUND_TOPIC requires MQTT_BROKER"))
	}

	return errors.Join(errs...)
}

// Load parses environment variables and returns a validated Config.
// A .env file in the working directory (or the path in ENV_FILE) is applied
// first; variables already present in the environment win.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Parse applies the env file and fills target, any struct with env tags.
// Commands that need only part of the configuration use it instead of Load.
func Parse(target any) error {
	if err := loadDotEnv(); err != nil {
		return err
	}
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func loadDotEnv() error {
	path := os.Getenv("ENV_FILE")
	explicit := path != ""
	if !explicit {
		path = ".env"
	}

	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read env file: %w", err)
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}
