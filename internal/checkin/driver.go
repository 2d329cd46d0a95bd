package checkin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs the scan at the top of every minute.
const DefaultSchedule = "* * * * *"

// DefaultRecoverySchedule re-queues missing timers every five minutes.
const DefaultRecoverySchedule = "*/5 * * * *"

// Ticker runs one scan.
type Ticker interface {
	Tick(ctx context.Context, tick time.Time) int
}

// Recoverer re-queues timers for open check-ins.
type Recoverer interface {
	Recover(ctx context.Context, now time.Time) (RecoveryStats, error)
}

// Driver calls a Ticker on a wall-clock aligned cron schedule in UTC.
// Missed minutes are not replayed.
type Driver struct {
	cron      *cron.Cron
	scanID    cron.EntryID
	ticker    Ticker
	recoverer Recoverer
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	now       func() time.Time
}

// NewDriver parses schedule (standard five-field cron) and prepares the driver.
func NewDriver(schedule string, ticker Ticker, logger *slog.Logger) (*Driver, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

	ctx, cancel := context.WithCancel(context.Background())
	d := &Driver{
		ticker: ticker,
		logger: logger.With("component", "checkin.driver"),
		ctx:    ctx,
		cancel: cancel,
		now:    time.Now,
	}

	d.cron = cron.New(
		cron.WithParser(parser),
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError)))),
	)
	id, err := d.cron.AddFunc(schedule, d.run)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("invalid scan schedule %q: %w", schedule, err)
	}
	d.scanID = id
	return d, nil
}

// ScheduleRecovery also runs r on schedule, so timers that could not be
// queued (Redis down during a scan) come back without a restart.
// Call before Start.
func (d *Driver) ScheduleRecovery(schedule string, r Recoverer) error {
	d.recoverer = r
	if _, err := d.cron.AddFunc(schedule, d.runRecovery); err != nil {
		d.recoverer = nil
		return fmt.Errorf("invalid recovery schedule %q: %w", schedule, err)
	}
	return nil
}

func (d *Driver) runRecovery() {
	if d.recoverer == nil {
		return
	}
	if _, err := d.recoverer.Recover(d.ctx, d.now()); err != nil {
		d.logger.Error("periodic timer recovery failed", "error", err)
	}
}

func (d *Driver) run() {
	// Truncate so every replica derives the same minute from its tick.
	tick := d.now().UTC().Truncate(time.Minute)
	d.ticker.Tick(d.ctx, tick)
}

// Start begins scheduling in the background.
func (d *Driver) Start() {
	d.cron.Start()
	d.logger.Info("scan driver started", "next", d.Next())
}

// Next returns the next scheduled scan.
func (d *Driver) Next() time.Time {
	return d.cron.Entry(d.scanID).Next
}

// Stop halts scheduling and waits for a running scan to finish or ctx to
// expire. The in-flight scan's context is cancelled on expiry.
func (d *Driver) Stop(ctx context.Context) error {
	done := d.cron.Stop()
	select {
	case <-done.Done():
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		return fmt.Errorf("waiting for scan to finish: %w", ctx.Err())
	}
}
