package checkin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/safenotsorry/checkin/internal/metrics"
	"github.com/safenotsorry/checkin/internal/model"
	"github.com/safenotsorry/checkin/internal/repository"
	"github.com/safenotsorry/checkin/internal/scheduler"
)

// Start creates a pending check-in for a due profile, sends the initial
// message and schedules one reminder and one escalation timer.
// If the insert fails nothing is sent or scheduled.
func (s *Service) Start(ctx context.Context, p *model.UserProfile, now time.Time) (*model.CheckIn, error) {
	c := model.NewCheckIn(p, now)

	if err := s.checkIns.CreateCheckIn(ctx, c); err != nil {
		if errors.Is(err, repository.ErrCheckInExists) {
			s.logger.Info("check-in already exists for this minute", "user_id", p.ID)
			s.metrics.IncCheckInDuplicate()
			return nil, ErrAlreadyStarted
		}
		return nil, fmt.Errorf("create check-in: %w", err)
	}
	s.metrics.IncCheckInCreated()

	s.notifier.Notify(ctx, metrics.KindInitial, c.PhoneNumber, s.messages.CheckIn(p.FirstName))

	if _, err := s.scheduleTimers(ctx, c); err != nil {
		// The row exists, so the next recovery pass re-creates the timers.
		s.logger.Error("failed to schedule timers", "check_in_id", c.ID, "error", err)
	}

	s.logger.Info("check-in started",
		"check_in_id", c.ID,
		"user_id", c.UserID,
		"phone", model.MaskPhone(c.PhoneNumber),
	)
	return c, nil
}

// scheduleTimers queues the reminder and escalation for c and returns how
// many were newly queued. Only timers whose guard still passes are queued,
// so it is safe for recovery too.
func (s *Service) scheduleTimers(ctx context.Context, c *model.CheckIn) (int, error) {
	var (
		queued int
		errs   []error
	)
	schedule := func(kind scheduler.Kind, delay time.Duration) {
		added, err := s.timers.Schedule(ctx, scheduler.Timer{
			Kind:      kind,
			CheckInID: c.ID,
			FireAt:    c.ScheduledFor.Add(delay),
		})
		if err != nil {
			errs = append(errs, err)
			return
		}
		if added {
			queued++
		}
	}

	if c.NeedsReminder() {
		schedule(scheduler.KindReminder, s.policy.ReminderDelay)
	}
	if c.NeedsEscalation() {
		schedule(scheduler.KindEscalation, s.policy.EscalationDelay)
	}

	return queued, errors.Join(errs...)
}
