package model

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// CheckInStatus represents the lifecycle state of a check-in.
type CheckInStatus string

const (
	CheckInStatusPending   CheckInStatus = "pending"
	CheckInStatusReminded  CheckInStatus = "reminded"
	CheckInStatusEscalated CheckInStatus = "escalated"
	CheckInStatusCompleted CheckInStatus = "completed"
)

// ValidCheckInStatuses contains all valid statuses.
var ValidCheckInStatuses = []CheckInStatus{
	CheckInStatusPending,
	CheckInStatusReminded,
	CheckInStatusEscalated,
	CheckInStatusCompleted,
}

// ErrInvalidTransition is returned when a status change is not in the transition table.
var ErrInvalidTransition = errors.New("invalid check-in status transition")

// transitions lists every allowed move. Anything absent is rejected,
// including self-transitions, so each side effect happens once.
var transitions = map[CheckInStatus][]CheckInStatus{
	CheckInStatusPending:   {CheckInStatusReminded, CheckInStatusEscalated, CheckInStatusCompleted},
	CheckInStatusReminded:  {CheckInStatusEscalated, CheckInStatusCompleted},
	CheckInStatusEscalated: {CheckInStatusCompleted},
	CheckInStatusCompleted: nil,
}

// IsValidCheckInStatus checks if a status is valid.
func IsValidCheckInStatus(s CheckInStatus) bool {
	return slices.Contains(ValidCheckInStatuses, s)
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to CheckInStatus) bool {
	return slices.Contains(transitions[from], to)
}

// SourcesFor returns the statuses from which the target status is reachable.
// Repositories use it to build conditional updates.
func SourcesFor(to CheckInStatus) []CheckInStatus {
	var sources []CheckInStatus
	for _, from := range ValidCheckInStatuses {
		if CanTransition(from, to) {
			sources = append(sources, from)
		}
	}
	return sources
}

// CheckIn is one daily check-in attempt for a user.
type CheckIn struct {
	ID               string        `json:"id"`
	UserID           string        `json:"user_id"`
	PhoneNumber      string        `json:"phone_number"`
	Status           CheckInStatus `json:"status"`
	ScheduledFor     time.Time     `json:"scheduled_for"`
	InitialSMSSentAt time.Time     `json:"initial_sms_sent_at"`
	ReminderSentAt   *time.Time    `json:"reminder_sent_at,omitempty"`
	EscalatedAt      *time.Time    `json:"escalated_at,omitempty"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// NewCheckIn builds a pending check-in for a profile scheduled at now.
func NewCheckIn(profile *UserProfile, now time.Time) *CheckIn {
	now = now.UTC()
	return &CheckIn{
		ID:               NewID(),
		UserID:           profile.ID,
		PhoneNumber:      profile.PhoneNumber,
		Status:           CheckInStatusPending,
		ScheduledFor:     now,
		InitialSMSSentAt: now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// IsTerminal returns true once the user has answered.
// Escalated is not terminal: a late reply still completes the check-in.
func (c *CheckIn) IsTerminal() bool {
	return c.Status == CheckInStatusCompleted
}

// NeedsReminder reports whether the reminder guard passes.
func (c *CheckIn) NeedsReminder() bool {
	return c.ReminderSentAt == nil && c.CompletedAt == nil && CanTransition(c.Status, CheckInStatusReminded)
}

// NeedsEscalation reports whether the escalation guard passes.
func (c *CheckIn) NeedsEscalation() bool {
	return c.EscalatedAt == nil && c.CompletedAt == nil && CanTransition(c.Status, CheckInStatusEscalated)
}

// Apply moves the check-in to the target status and stamps the matching
// timestamp. It refuses moves outside the transition table and never
// overwrites an existing timestamp.
func (c *CheckIn) Apply(to CheckInStatus, at time.Time) error {
	if !CanTransition(c.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, to)
	}

	at = at.UTC()
	switch to {
	case CheckInStatusReminded:
		if c.ReminderSentAt != nil {
			return fmt.Errorf("%w: reminder already sent", ErrInvalidTransition)
		}
		c.ReminderSentAt = &at
	case CheckInStatusEscalated:
		if c.EscalatedAt != nil {
			return fmt.Errorf("%w: already escalated", ErrInvalidTransition)
		}
		c.EscalatedAt = &at
	case CheckInStatusCompleted:
		if c.CompletedAt != nil {
			return fmt.Errorf("%w: already completed", ErrInvalidTransition)
		}
		c.CompletedAt = &at
	}

	c.Status = to
	c.UpdatedAt = at
	return nil
}
