package checkin

import (
	"context"
	"errors"
	"fmt"

	"github.com/safenotsorry/checkin/internal/metrics"
	"github.com/safenotsorry/checkin/internal/model"
	"github.com/safenotsorry/checkin/internal/repository"
)

// HandleReminder fires ReminderDelay after a check-in started. It re-reads
// the record and does nothing if it is gone, already reminded or
// completed. Otherwise it claims the reminder with a conditional update
// and only then sends, so two firings can never both send.
func (s *Service) HandleReminder(ctx context.Context, checkInID string) error {
	const kind = metrics.KindReminder
	log := s.logger.With("kind", kind, "check_in_id", checkInID)

	c, err := s.load(ctx, kind, checkInID)
	if err != nil || c == nil {
		return err
	}
	if !c.NeedsReminder() {
		log.Debug("reminder not needed", "status", c.Status)
		s.metrics.IncTimerHandled(kind, metrics.OutcomeSkipped)
		return nil
	}

	profile, err := s.profileFor(ctx, kind, c)
	if err != nil || profile == nil {
		return err
	}

	claimed, err := s.checkIns.MarkReminded(ctx, c.ID, s.now())
	if err != nil {
		return s.claimFailed(kind, c, err)
	}

	s.notifier.Notify(ctx, kind, claimed.PhoneNumber, s.messages.Reminder(profile.FirstName))
	s.metrics.IncTimerHandled(kind, metrics.OutcomeSent)
	log.Info("reminder sent", "phone", model.MaskPhone(claimed.PhoneNumber))
	return nil
}

// HandleEscalation fires EscalationDelay after a check-in started. With the
// same guard as the reminder, it notifies the user's first-priority
// emergency contact and moves the check-in to escalated. Without a contact
// the check-in is left untouched.
func (s *Service) HandleEscalation(ctx context.Context, checkInID string) error {
	const kind = metrics.KindEscalation
	log := s.logger.With("kind", kind, "check_in_id", checkInID)

	c, err := s.load(ctx, kind, checkInID)
	if err != nil || c == nil {
		return err
	}
	if !c.NeedsEscalation() {
		log.Debug("escalation not needed", "status", c.Status)
		s.metrics.IncTimerHandled(kind, metrics.OutcomeSkipped)
		return nil
	}

	profile, err := s.profileFor(ctx, kind, c)
	if err != nil || profile == nil {
		return err
	}

	contact, err := s.contacts.PrimaryContact(ctx, c.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrContactNotFound) {
			log.Warn("no emergency contact, escalation aborted", "user_id", c.UserID)
			s.metrics.IncTimerHandled(kind, metrics.OutcomeAborted)
			return nil
		}
		s.metrics.IncTimerHandled(kind, metrics.OutcomeError)
		return fmt.Errorf("load emergency contact: %w", err)
	}

	if _, err := s.checkIns.MarkEscalated(ctx, c.ID, s.now()); err != nil {
		return s.claimFailed(kind, c, err)
	}

	s.notifier.Notify(ctx, kind, contact.PhoneNumber, s.messages.Escalation(contact.FirstName, profile.FirstName))
	s.metrics.IncTimerHandled(kind, metrics.OutcomeSent)
	log.Info("escalation sent",
		"user_id", c.UserID,
		"contact_id", contact.ID,
		"contact_phone", model.MaskPhone(contact.PhoneNumber),
	)
	return nil
}

// load fetches the check-in for a handler. A missing record returns
// (nil, nil): the timer outlived its check-in.
func (s *Service) load(ctx context.Context, kind, id string) (*model.CheckIn, error) {
	c, err := s.checkIns.GetCheckIn(ctx, id)
	if err == nil {
		return c, nil
	}
	if errors.Is(err, repository.ErrCheckInNotFound) {
		s.logger.Warn("check-in not found for timer", "kind", kind, "check_in_id", id)
		s.metrics.IncTimerHandled(kind, metrics.OutcomeSkipped)
		return nil, nil
	}
	s.metrics.IncTimerHandled(kind, metrics.OutcomeError)
	return nil, fmt.Errorf("load check-in: %w", err)
}

// profileFor fetches the check-in's profile. A missing profile aborts the
// handler without error or mutation.
func (s *Service) profileFor(ctx context.Context, kind string, c *model.CheckIn) (*model.UserProfile, error) {
	p, err := s.profiles.GetProfile(ctx, c.UserID)
	if err == nil {
		return p, nil
	}
	if errors.Is(err, repository.ErrProfileNotFound) {
		s.logger.Warn("profile not found, handler aborted",
			"kind", kind,
			"check_in_id", c.ID,
			"user_id", c.UserID,
			"error", ErrNoProfile,
		)
		s.metrics.IncTimerHandled(kind, metrics.OutcomeAborted)
		return nil, nil
	}
	s.metrics.IncTimerHandled(kind, metrics.OutcomeError)
	return nil, fmt.Errorf("load profile: %w", err)
}

func (s *Service) claimFailed(kind string, c *model.CheckIn, err error) error {
	if errors.Is(err, repository.ErrTransitionLost) {
		s.logger.Info("transition lost to concurrent update", "kind", kind, "check_in_id", c.ID)
		s.metrics.IncTimerHandled(kind, metrics.OutcomeLost)
		return nil
	}
	s.metrics.IncTimerHandled(kind, metrics.OutcomeError)
	return fmt.Errorf("claim %s: %w", kind, err)
}
