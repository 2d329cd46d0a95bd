package model

import (
	"errors"
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to CheckInStatus
		want     bool
	}{
		{CheckInStatusPending, CheckInStatusReminded, true},
		{CheckInStatusPending, CheckInStatusEscalated, true},
		{CheckInStatusPending, CheckInStatusCompleted, true},
		{CheckInStatusReminded, CheckInStatusEscalated, true},
		{CheckInStatusReminded, CheckInStatusCompleted, true},
		{CheckInStatusEscalated, CheckInStatusCompleted, true},

		{CheckInStatusPending, CheckInStatusPending, false},
		{CheckInStatusReminded, CheckInStatusReminded, false},
		{CheckInStatusReminded, CheckInStatusPending, false},
		{CheckInStatusEscalated, CheckInStatusReminded, false},
		{CheckInStatusEscalated, CheckInStatusEscalated, false},
		{CheckInStatusCompleted, CheckInStatusPending, false},
		{CheckInStatusCompleted, CheckInStatusReminded, false},
		{CheckInStatusCompleted, CheckInStatusEscalated, false},
		{CheckInStatusCompleted, CheckInStatusCompleted, false},
		{CheckInStatus("bogus"), CheckInStatusCompleted, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestSourcesFor(t *testing.T) {
	t.Parallel()

	got := SourcesFor(CheckInStatusEscalated)
	if len(got) != 2 || got[0] != CheckInStatusPending || got[1] != CheckInStatusReminded {
		t.Errorf("SourcesFor(escalated) = %v", got)
	}

	if got := SourcesFor(CheckInStatusPending); len(got) != 0 {
		t.Errorf("SourcesFor(pending) = %v, want none", got)
	}
}

func TestCheckIn_ApplySetsTimestampOnce(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 3, 22, 0, 0, 0, time.UTC)
	c := NewCheckIn(&UserProfile{ID: "u1", PhoneNumber: "+61400000001"}, now)

	if c.Status != CheckInStatusPending {
		t.Fatalf("new check-in status = %s, want pending", c.Status)
	}
	if !c.NeedsReminder() || !c.NeedsEscalation() {
		t.Fatal("fresh check-in should need reminder and escalation")
	}

	remindAt := now.Add(15 * time.Minute)
	if err := c.Apply(CheckInStatusReminded, remindAt); err != nil {
		t.Fatalf("Apply(reminded) error = %v", err)
	}
	if c.ReminderSentAt == nil || !c.ReminderSentAt.Equal(remindAt) {
		t.Errorf("ReminderSentAt = %v, want %v", c.ReminderSentAt, remindAt)
	}
	if c.NeedsReminder() {
		t.Error("reminded check-in should not need another reminder")
	}

	err := c.Apply(CheckInStatusReminded, remindAt.Add(time.Minute))
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second Apply(reminded) error = %v, want ErrInvalidTransition", err)
	}
	if !c.ReminderSentAt.Equal(remindAt) {
		t.Error("ReminderSentAt was overwritten")
	}
}

func TestCheckIn_CompletionBlocksHandlers(t *testing.T) {
	t.Parallel()

	now := time.Now()
	c := NewCheckIn(&UserProfile{ID: "u1", PhoneNumber: "+61400000001"}, now)

	if err := c.Apply(CheckInStatusCompleted, now.Add(5*time.Minute)); err != nil {
		t.Fatalf("Apply(completed) error = %v", err)
	}
	if !c.IsTerminal() {
		t.Error("completed check-in should be terminal")
	}
	if c.NeedsReminder() {
		t.Error("completed check-in should not need reminder")
	}
	if c.NeedsEscalation() {
		t.Error("completed check-in should not need escalation")
	}
	if err := c.Apply(CheckInStatusEscalated, now.Add(45*time.Minute)); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Apply(escalated) after completion error = %v, want ErrInvalidTransition", err)
	}
}

func TestCheckIn_EscalatedCanStillComplete(t *testing.T) {
	t.Parallel()

	now := time.Now()
	c := NewCheckIn(&UserProfile{ID: "u1"}, now)

	if err := c.Apply(CheckInStatusEscalated, now); err != nil {
		t.Fatalf("Apply(escalated) error = %v", err)
	}
	if c.NeedsReminder() {
		t.Error("escalated check-in should not need a reminder")
	}
	if c.IsTerminal() {
		t.Error("escalated check-in should not be terminal")
	}
	if err := c.Apply(CheckInStatusCompleted, now); err != nil {
		t.Errorf("late completion error = %v", err)
	}
}

func TestUserProfile_PausedAt(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name  string
		pause *time.Time
		want  bool
	}{
		{"no pause", nil, false},
		{"pause in future", &future, true},
		{"pause ended", &past, false},
		{"pause ends now", &now, false},
	}

	for _, tt := range tests {
		p := &UserProfile{PauseEndDate: tt.pause}
		if got := p.PausedAt(now); got != tt.want {
			t.Errorf("%s: PausedAt = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestMaskPhone(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"+61400123456": "********3456",
		"1234":         "****",
		"":             "",
		" +15550001 ":  "*****0001",
	}
	for in, want := range tests {
		if got := MaskPhone(in); got != want {
			t.Errorf("MaskPhone(%q) = %q, want %q", in, got, want)
		}
	}
}
