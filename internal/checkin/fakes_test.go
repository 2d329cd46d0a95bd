package checkin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/safenotsorry/checkin/internal/metrics"
	"github.com/safenotsorry/checkin/internal/model"
	"github.com/safenotsorry/checkin/internal/notify"
	"github.com/safenotsorry/checkin/internal/repository"
	"github.com/safenotsorry/checkin/internal/scheduler"
	"github.com/safenotsorry/checkin/internal/tz"
)

// memStore is an in-memory profile, check-in, contact and response store.
// Conditional updates mirror the SQL guards.
type memStore struct {
	mu        sync.Mutex
	profiles  []*model.UserProfile
	checkIns  map[string]*model.CheckIn
	contacts  []*model.EmergencyContact
	responses []*model.Response

	listErr   error
	createErr error
}

func newMemStore() *memStore {
	return &memStore{checkIns: make(map[string]*model.CheckIn)}
}

func (m *memStore) ListProfiles(ctx context.Context) ([]*model.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]*model.UserProfile(nil), m.profiles...), nil
}

func (m *memStore) GetProfile(ctx context.Context, id string) (*model.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, repository.ErrProfileNotFound
}

func (m *memStore) CreateCheckIn(ctx context.Context, c *model.CheckIn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	minute := c.ScheduledFor.UTC().Truncate(time.Minute)
	for _, existing := range m.checkIns {
		if existing.UserID == c.UserID && existing.ScheduledFor.UTC().Truncate(time.Minute).Equal(minute) {
			return repository.ErrCheckInExists
		}
	}
	cp := *c
	m.checkIns[c.ID] = &cp
	return nil
}

func (m *memStore) GetCheckIn(ctx context.Context, id string) (*model.CheckIn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.checkIns[id]
	if !ok {
		return nil, repository.ErrCheckInNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) mark(id string, to model.CheckInStatus, at time.Time, guard func(*model.CheckIn) bool) (*model.CheckIn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.checkIns[id]
	if !ok || !guard(c) {
		return nil, repository.ErrTransitionLost
	}
	if err := c.Apply(to, at); err != nil {
		return nil, repository.ErrTransitionLost
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) MarkReminded(ctx context.Context, id string, at time.Time) (*model.CheckIn, error) {
	return m.mark(id, model.CheckInStatusReminded, at, (*model.CheckIn).NeedsReminder)
}

func (m *memStore) MarkEscalated(ctx context.Context, id string, at time.Time) (*model.CheckIn, error) {
	return m.mark(id, model.CheckInStatusEscalated, at, (*model.CheckIn).NeedsEscalation)
}

func (m *memStore) CompleteLatestByPhone(ctx context.Context, phone string, at time.Time) (*model.CheckIn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var open []*model.CheckIn
	for _, c := range m.checkIns {
		if c.PhoneNumber == phone && c.CompletedAt == nil && !c.IsTerminal() {
			open = append(open, c)
		}
	}
	if len(open) == 0 {
		return nil, repository.ErrCheckInNotFound
	}
	sort.Slice(open, func(i, j int) bool {
		if !open[i].ScheduledFor.Equal(open[j].ScheduledFor) {
			return open[i].ScheduledFor.After(open[j].ScheduledFor)
		}
		return open[i].ID > open[j].ID
	})
	if err := open[0].Apply(model.CheckInStatusCompleted, at); err != nil {
		return nil, err
	}
	cp := *open[0]
	return &cp, nil
}

func (m *memStore) ListOutstanding(ctx context.Context, since time.Time) ([]*model.CheckIn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.CheckIn
	for _, c := range m.checkIns {
		if c.CompletedAt == nil && !c.ScheduledFor.Before(since) && (c.ReminderSentAt == nil || c.EscalatedAt == nil) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) })
	return out, nil
}

func (m *memStore) PrimaryContact(ctx context.Context, userID string) (*model.EmergencyContact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *model.EmergencyContact
	for _, c := range m.contacts {
		if c.UserID != userID {
			continue
		}
		if best == nil || c.Priority < best.Priority || (c.Priority == best.Priority && c.ID < best.ID) {
			best = c
		}
	}
	if best == nil {
		return nil, repository.ErrContactNotFound
	}
	return best, nil
}

func (m *memStore) Append(ctx context.Context, r *model.Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.responses = append(m.responses, &cp)
	return nil
}

func (m *memStore) only(t *testing.T) *model.CheckIn {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.checkIns) != 1 {
		t.Fatalf("expected exactly one check-in, have %d", len(m.checkIns))
	}
	for _, c := range m.checkIns {
		cp := *c
		return &cp
	}
	return nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.checkIns)
}

type sentMessage struct {
	Kind, To, Body string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	ok   bool
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{ok: true}
}

func (n *recordingNotifier) Notify(ctx context.Context, kind, to, message string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{Kind: kind, To: to, Body: message})
	return n.ok
}

func (n *recordingNotifier) byKind(kind string) []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentMessage
	for _, m := range n.sent {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

func (n *recordingNotifier) total() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type recordingQueue struct {
	mu     sync.Mutex
	timers map[string]scheduler.Timer
	err    error
}

func newRecordingQueue() *recordingQueue {
	return &recordingQueue{timers: make(map[string]scheduler.Timer)}
}

func (q *recordingQueue) Schedule(ctx context.Context, t scheduler.Timer) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return false, q.err
	}
	key := string(t.Kind) + ":" + t.CheckInID
	if _, ok := q.timers[key]; ok {
		return false, nil
	}
	q.timers[key] = t
	return true, nil
}

func (q *recordingQueue) get(kind scheduler.Kind, id string) (scheduler.Timer, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.timers[string(kind)+":"+id]
	return t, ok
}

func (q *recordingQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.timers)
}

type fakeLock struct {
	mu    sync.Mutex
	taken map[string]bool
	err   error
}

func (l *fakeLock) AcquireScanLock(ctx context.Context, tick time.Time, owner string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	if l.taken == nil {
		l.taken = make(map[string]bool)
	}
	key := tick.UTC().Format("200601021504")
	if l.taken[key] {
		return false, nil
	}
	l.taken[key] = true
	return true, nil
}

type harness struct {
	svc      *Service
	store    *memStore
	notifier *recordingNotifier
	queue    *recordingQueue
	metrics  *metrics.InMemoryRecorder
	clock    *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func newHarness(t *testing.T, lock TickLock) *harness {
	t.Helper()

	resolver, err := tz.NewResolver([]string{
		"Australia/Sydney", "Australia/Perth", "Australia/Brisbane", "Africa/Lagos",
	})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	h := &harness{
		store:    newMemStore(),
		notifier: newRecordingNotifier(),
		queue:    newRecordingQueue(),
		metrics:  metrics.NewInMemory(),
		clock:    &fakeClock{now: time.Date(2025, 3, 2, 22, 0, 0, 0, time.UTC)},
	}
	h.svc = NewService(Deps{
		Profiles:  h.store,
		CheckIns:  h.store,
		Contacts:  h.store,
		Responses: h.store,
		Timers:    h.queue,
		Notifier:  h.notifier,
		Resolver:  resolver,
		Messages:  notify.NewMessages("Safe Not Sorry", "Y"),
		Lock:      lock,
		Metrics:   h.metrics,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, DefaultPolicy())
	h.svc.now = h.clock.Now
	return h
}

var errStoreDown = errors.New("store unavailable")
