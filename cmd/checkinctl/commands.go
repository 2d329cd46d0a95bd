package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/safenotsorry/checkin/internal/app"
	"github.com/safenotsorry/checkin/internal/checkin"
	"github.com/safenotsorry/checkin/internal/config"
	"github.com/safenotsorry/checkin/internal/migrations"
	"github.com/safenotsorry/checkin/internal/model"
	"github.com/safenotsorry/checkin/internal/repository"
	"github.com/safenotsorry/checkin/internal/tz"
)

// dbConfig is the slice of configuration the database-only commands need.
type dbConfig struct {
	DatabaseURL        string `env:"DATABASE_URL,required"`
	SupportedTimezones string `env:"SUPPORTED_TIMEZONES" envDefault:"Australia/Sydney,Australia/Melbourne,Australia/Brisbane,Australia/Canberra,Australia/Hobart,Australia/Adelaide,Australia/Darwin,Australia/Perth,Africa/Lagos"`
	LogLevel           string `env:"LOG_LEVEL" envDefault:"warn"`
}

func (c dbConfig) timezones() []string {
	return (&config.Config{SupportedTimezones: c.SupportedTimezones}).Timezones()
}

var (
	okMark   = color.New(color.FgGreen).Sprint("✓")
	failMark = color.New(color.FgRed).Sprint("✗")
	warn     = color.New(color.FgYellow)
	bold     = color.New(color.Bold)
)

func cliLogger(level string) *slog.Logger {
	return app.NewLogger(level, "text", os.Stderr)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	run := func(name string, apply func(*migrations.Runner) error) *cobra.Command {
		return &cobra.Command{
			Use:   name,
			Short: fmt.Sprintf("Run migrate %s", name),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				var cfg dbConfig
				if err := config.Parse(&cfg); err != nil {
					return err
				}
				return app.Migrate(cmd.Context(), cfg.DatabaseURL, cliLogger(cfg.LogLevel), apply)
			},
		}
	}

	up := run("up", func(r *migrations.Runner) error {
		if err := r.Up(); err != nil {
			return err
		}
		return printVersion(r)
	})
	up.Short = "Apply all pending migrations"

	down := run("down", func(r *migrations.Runner) error {
		if err := r.Down(); err != nil {
			return err
		}
		return printVersion(r)
	})
	down.Short = "Roll back one migration"

	version := run("version", printVersion)
	version.Short = "Print the current schema version"

	cmd.AddCommand(up, down, version)
	return cmd
}

func printVersion(r *migrations.Runner) error {
	v, dirty, err := r.Version()
	if err != nil {
		return err
	}
	if dirty {
		fmt.Printf("%s schema version %d %s\n", failMark, v, warn.Sprint("(dirty)"))
		return nil
	}
	fmt.Printf("%s schema version %d\n", okMark, v)
	return nil
}

func dueCmd() *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "due",
		Short: "List users whose check-in is due at a minute (dry run)",
		Long: `due evaluates every profile against the given instant exactly as the
scheduled scan would, without creating check-ins or sending messages.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now, err := parseAt(at, time.Now())
			if err != nil {
				return err
			}

			var cfg dbConfig
			if err := config.Parse(&cfg); err != nil {
				return err
			}
			logger := cliLogger(cfg.LogLevel)

			resolver, err := tz.NewResolver(cfg.timezones())
			if err != nil {
				return err
			}

			repo, err := repository.New(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %s", app.SanitizeError(err, cfg.DatabaseURL))
			}
			defer repo.Close()

			svc := checkin.NewService(checkin.Deps{
				Profiles: repo,
				Resolver: resolver,
				Logger:   logger,
			}, checkin.DefaultPolicy())

			due := svc.DueProfiles(cmd.Context(), now)
			printDue(now, due)
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "instant to evaluate (RFC3339, default now)")
	return cmd
}

// parseAt reads --at, defaulting to now. The result is truncated to the
// minute like a scan tick.
func parseAt(value string, now time.Time) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return now.UTC().Truncate(time.Minute), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q: want RFC3339 like 2025-03-02T22:00:00Z", value)
	}
	return t.UTC().Truncate(time.Minute), nil
}

func printDue(now time.Time, due []*model.UserProfile) {
	fmt.Printf("%s %s\n", bold.Sprint("Due at"), now.Format(time.RFC3339))
	if len(due) == 0 {
		fmt.Println(warn.Sprint("  nobody is due"))
		return
	}
	for _, p := range due {
		fmt.Printf("  %s %-28s %-10s %-22s %s\n", okMark, p.ID, p.FirstName, p.Timezone, model.MaskPhone(p.PhoneNumber))
	}
	fmt.Printf("%d due\n", len(due))
}

func recoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Re-queue reminder and escalation timers for open check-ins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.Service.Recover(cmd.Context(), time.Now())
			if err != nil {
				return err
			}

			mark := okMark
			if stats.Failed > 0 {
				mark = failMark
			}
			fmt.Printf("%s %d open check-ins, %d timers restored, %d failed\n", mark, stats.Outstanding, stats.Restored, stats.Failed)

			if depth, err := a.Queue.Depth(cmd.Context()); err == nil {
				fmt.Printf("  timer queue depth: %d\n", depth)
			}
			return nil
		},
	}
}

func sendTestCmd() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "send-test <phone>",
		Short: "Send a test message through the configured transport",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if message == "" {
				message = fmt.Sprintf("Test message from %s.", a.Config.BrandName)
			}

			to := strings.TrimSpace(args[0])
			if !a.Notifier.Notify(cmd.Context(), "test", to, message) {
				fmt.Printf("%s send to %s failed (see log)\n", failMark, model.MaskPhone(to))
				return fmt.Errorf("send failed")
			}
			fmt.Printf("%s sent to %s via %s\n", okMark, model.MaskPhone(to), a.Config.NotifyDriver)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "message body")
	return cmd
}

func loadApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.New(cmd.Context(), cfg, cliLogger(cfg.LogLevel))
}
