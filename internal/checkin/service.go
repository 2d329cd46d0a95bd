// Package checkin implements the daily check-in lifecycle: due detection,
// the initial message, reminder and escalation timers, and reply intake.
//
// Every mutation goes through a conditional update in the store, so the
// store is the only arbiter when timers and replies race.
package checkin

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/safenotsorry/checkin/internal/metrics"
	"github.com/safenotsorry/checkin/internal/model"
	"github.com/safenotsorry/checkin/internal/notify"
	"github.com/safenotsorry/checkin/internal/scheduler"
	"github.com/safenotsorry/checkin/internal/tz"
)

// Service errors.
var (
	ErrAlreadyStarted = errors.New("check-in already started for this minute")
	ErrNoProfile      = errors.New("profile not found for check-in")
	ErrNoContact      = errors.New("no emergency contact for user")
)

// ProfileStore reads user profiles.
type ProfileStore interface {
	ListProfiles(ctx context.Context) ([]*model.UserProfile, error)
	GetProfile(ctx context.Context, id string) (*model.UserProfile, error)
}

// CheckInStore persists check-ins. Mark* and CompleteLatestByPhone are
// conditional single-statement updates.
type CheckInStore interface {
	CreateCheckIn(ctx context.Context, c *model.CheckIn) error
	GetCheckIn(ctx context.Context, id string) (*model.CheckIn, error)
	MarkReminded(ctx context.Context, id string, at time.Time) (*model.CheckIn, error)
	MarkEscalated(ctx context.Context, id string, at time.Time) (*model.CheckIn, error)
	CompleteLatestByPhone(ctx context.Context, phone string, at time.Time) (*model.CheckIn, error)
	ListOutstanding(ctx context.Context, since time.Time) ([]*model.CheckIn, error)
}

// ContactStore reads emergency contacts.
type ContactStore interface {
	PrimaryContact(ctx context.Context, userID string) (*model.EmergencyContact, error)
}

// ResponseLog appends inbound replies.
type ResponseLog interface {
	Append(ctx context.Context, r *model.Response) error
}

// TimerQueue schedules one-shot timers.
type TimerQueue interface {
	Schedule(ctx context.Context, t scheduler.Timer) (bool, error)
}

// Notifier delivers messages and reports success. It never returns errors.
type Notifier interface {
	Notify(ctx context.Context, kind, to, message string) bool
}

// TickLock lets one process claim a scan minute.
type TickLock interface {
	AcquireScanLock(ctx context.Context, tick time.Time, owner string) (bool, error)
}

// Policy holds the timing and reply rules.
type Policy struct {
	ReminderDelay    time.Duration
	EscalationDelay  time.Duration
	AffirmativeToken string
	RecoveryWindow   time.Duration
}

// DefaultPolicy returns the canonical policy.
func DefaultPolicy() Policy {
	return Policy{
		ReminderDelay:    15 * time.Minute,
		EscalationDelay:  45 * time.Minute,
		AffirmativeToken: "Y",
		RecoveryWindow:   24 * time.Hour,
	}
}

// Deps bundles the collaborators of a Service.
type Deps struct {
	Profiles  ProfileStore
	CheckIns  CheckInStore
	Contacts  ContactStore
	Responses ResponseLog
	Timers    TimerQueue
	Notifier  Notifier
	Resolver  *tz.Resolver
	Messages  notify.Messages
	Lock      TickLock // optional
	Metrics   metrics.Recorder
	Logger    *slog.Logger
}

// Service runs the check-in lifecycle.
type Service struct {
	profiles  ProfileStore
	checkIns  CheckInStore
	contacts  ContactStore
	responses ResponseLog
	timers    TimerQueue
	notifier  Notifier
	resolver  *tz.Resolver
	messages  notify.Messages
	lock      TickLock
	metrics   metrics.Recorder
	logger    *slog.Logger
	policy    Policy
	owner     string
	now       func() time.Time
}

// NewService creates a Service.
func NewService(deps Deps, policy Policy) *Service {
	recorder := deps.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		profiles:  deps.Profiles,
		checkIns:  deps.CheckIns,
		contacts:  deps.Contacts,
		responses: deps.Responses,
		timers:    deps.Timers,
		notifier:  deps.Notifier,
		resolver:  deps.Resolver,
		messages:  deps.Messages,
		lock:      deps.Lock,
		metrics:   recorder,
		logger:    logger.With("component", "checkin"),
		policy:    policy,
		owner:     model.NewID(),
		now:       time.Now,
	}
}

// Policy returns the active policy.
func (s *Service) Policy() Policy {
	return s.policy
}

// RegisterTimers wires the reminder and escalation handlers into a worker.
func (s *Service) RegisterTimers(w *scheduler.Worker) {
	w.Handle(scheduler.KindReminder, s.HandleReminder)
	w.Handle(scheduler.KindEscalation, s.HandleEscalation)
}
