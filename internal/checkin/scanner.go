package checkin

import (
	"context"
	"errors"
	"time"

	"github.com/safenotsorry/checkin/internal/model"
	"github.com/safenotsorry/checkin/internal/tz"
)

// Reason a profile was not due, for dry runs and debug logs.
const (
	NotDueZone   = "unsupported timezone"
	NotDueClock  = "missing or invalid check-in time"
	NotDuePaused = "paused"
	NotDueTime   = "not their check-in minute"
)

// Due reports whether a profile is due at now, and why not if it isn't.
// Malformed profiles are simply not due.
func (s *Service) Due(p *model.UserProfile, now time.Time) (bool, string) {
	local, err := s.resolver.LocalTime(p.Timezone, now)
	if err != nil {
		return false, NotDueZone
	}

	clock, err := tz.ParseClock(p.CheckInTime)
	if err != nil {
		return false, NotDueClock
	}

	if p.PausedAt(local) {
		return false, NotDuePaused
	}

	if !clock.Matches(local) {
		return false, NotDueTime
	}
	return true, ""
}

// DueProfiles fetches all profiles and returns those due at now, in fetch
// order. A fetch failure is logged and yields no profiles.
func (s *Service) DueProfiles(ctx context.Context, now time.Time) []*model.UserProfile {
	profiles, err := s.profiles.ListProfiles(ctx)
	if err != nil {
		s.logger.Error("failed to fetch profiles", "error", err)
		s.metrics.IncScanSkipped("fetch_error")
		return nil
	}

	var due []*model.UserProfile
	for _, p := range profiles {
		ok, reason := s.Due(p, now)
		if !ok {
			if reason != NotDueTime {
				s.logger.Debug("profile not due", "user_id", p.ID, "reason", reason)
			}
			continue
		}
		due = append(due, p)
	}
	return due
}

// Tick runs one scan: claim the minute, find due profiles and start a
// check-in for each. It returns the number of check-ins started.
func (s *Service) Tick(ctx context.Context, tick time.Time) int {
	start := time.Now()
	defer func() { s.metrics.ObserveScanDuration(time.Since(start)) }()

	if s.lock != nil {
		ok, err := s.lock.AcquireScanLock(ctx, tick, s.owner)
		switch {
		case err != nil:
			// The unique index still rejects duplicates, so scan anyway.
			s.logger.Warn("scan lock unavailable", "tick", tick.UTC(), "error", err)
			s.metrics.IncScanSkipped("lock_error")
		case !ok:
			s.logger.Debug("scan already claimed", "tick", tick.UTC())
			s.metrics.IncScanSkipped("locked")
			return 0
		}
	}

	due := s.DueProfiles(ctx, tick)
	s.metrics.AddProfilesDue(len(due))

	started := 0
	for _, p := range due {
		if _, err := s.Start(ctx, p, tick); err != nil {
			if !errors.Is(err, ErrAlreadyStarted) {
				s.logger.Error("failed to start check-in", "user_id", p.ID, "error", err)
			}
			continue
		}
		started++
	}

	if len(due) > 0 {
		s.logger.Info("scan complete", "tick", tick.UTC(), "due", len(due), "started", started)
	}
	return started
}
