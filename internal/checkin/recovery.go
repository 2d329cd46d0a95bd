package checkin

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RecoveryStats counts what a recovery pass found.
type RecoveryStats struct {
	Outstanding int
	Restored    int
	Failed      int
}

// Recover rebuilds timers from the store. Any open check-in scheduled
// within the recovery window that still lacks a reminder or escalation
// gets its timer back; timers already due fire on the next poll.
// Scheduling is idempotent, so running it with timers still queued is safe.
func (s *Service) Recover(ctx context.Context, now time.Time) (RecoveryStats, error) {
	var stats RecoveryStats

	open, err := s.checkIns.ListOutstanding(ctx, now.Add(-s.policy.RecoveryWindow))
	if err != nil {
		return stats, fmt.Errorf("list outstanding check-ins: %w", err)
	}

	for _, c := range open {
		if c.IsTerminal() {
			continue
		}
		stats.Outstanding++
		queued, err := s.scheduleTimers(ctx, c)
		stats.Restored += queued
		if err != nil {
			stats.Failed++
			s.logger.Error("failed to restore timers", "check_in_id", c.ID, "error", err)
		}
	}

	level := slog.LevelDebug
	if stats.Restored > 0 || stats.Failed > 0 {
		level = slog.LevelInfo
	}
	s.logger.Log(ctx, level, "timer recovery complete",
		"outstanding", stats.Outstanding,
		"restored", stats.Restored,
		"failed", stats.Failed,
		"window", s.policy.RecoveryWindow,
	)
	return stats, nil
}
