//go:build integration

package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/safenotsorry/checkin/internal/model"
	"github.com/safenotsorry/checkin/internal/testutil"
)

func newTestEnv(t *testing.T) (context.Context, *Repository) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "TEST_DATABASE_URL")

	repo, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetSchema(ctx, dbURL); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	return ctx, repo
}

var nineSydney = time.Date(2025, 3, 2, 22, 0, 0, 0, time.UTC)

func seedCheckIn(t *testing.T, ctx context.Context, repo *Repository, at time.Time) (*model.UserProfile, *model.CheckIn) {
	t.Helper()
	p := testutil.NewTestProfile(t)
	if err := repo.CreateProfile(ctx, p); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}
	c := model.NewCheckIn(p, at)
	if err := repo.CreateCheckIn(ctx, c); err != nil {
		t.Fatalf("CreateCheckIn failed: %v", err)
	}
	return p, c
}

func TestIntegrationProfiles(t *testing.T) {
	ctx, repo := newTestEnv(t)

	p := testutil.NewTestProfile(t)
	pause := nineSydney.Add(48 * time.Hour)
	p.PauseEndDate = &pause
	if err := repo.CreateProfile(ctx, p); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}

	bare := testutil.NewTestProfile(t)
	bare.Timezone = ""
	bare.CheckInTime = ""
	if err := repo.CreateProfile(ctx, bare); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}

	got, err := repo.GetProfile(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if got.Timezone != "Australia/Sydney" || got.CheckInTime != "09:00" || got.PauseEndDate == nil || !got.PauseEndDate.Equal(pause) {
		t.Errorf("profile round trip = %+v", got)
	}

	all, err := repo.ListProfiles(ctx)
	if err != nil {
		t.Fatalf("ListProfiles failed: %v", err)
	}
	if len(all) != 2 || all[1].Timezone != "" || all[1].CheckInTime != "" {
		t.Errorf("ListProfiles = %+v", all)
	}

	if _, err := repo.GetProfile(ctx, "missing"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("GetProfile(missing) error = %v, want ErrProfileNotFound", err)
	}
}

func TestIntegrationCheckIn_DuplicateMinute(t *testing.T) {
	ctx, repo := newTestEnv(t)

	p, first := seedCheckIn(t, ctx, repo, nineSydney)

	dup := model.NewCheckIn(p, nineSydney.Add(30*time.Second))
	if err := repo.CreateCheckIn(ctx, dup); !errors.Is(err, ErrCheckInExists) {
		t.Errorf("same-minute insert error = %v, want ErrCheckInExists", err)
	}

	next := model.NewCheckIn(p, nineSydney.Add(24*time.Hour))
	if err := repo.CreateCheckIn(ctx, next); err != nil {
		t.Errorf("next day insert error = %v", err)
	}

	got, err := repo.GetCheckIn(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetCheckIn failed: %v", err)
	}
	if got.Status != model.CheckInStatusPending || !got.ScheduledFor.Equal(nineSydney) {
		t.Errorf("check-in = %+v", got)
	}
}

func TestIntegrationCheckIn_MarkRemindedOnce(t *testing.T) {
	ctx, repo := newTestEnv(t)
	_, c := seedCheckIn(t, ctx, repo, nineSydney)

	at := nineSydney.Add(15 * time.Minute)
	got, err := repo.MarkReminded(ctx, c.ID, at)
	if err != nil {
		t.Fatalf("MarkReminded failed: %v", err)
	}
	if got.Status != model.CheckInStatusReminded || got.ReminderSentAt == nil || !got.ReminderSentAt.Equal(at) {
		t.Errorf("reminded = %+v", got)
	}

	if _, err := repo.MarkReminded(ctx, c.ID, at.Add(time.Minute)); !errors.Is(err, ErrTransitionLost) {
		t.Errorf("second MarkReminded error = %v, want ErrTransitionLost", err)
	}
}

func TestIntegrationCheckIn_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	ctx, repo := newTestEnv(t)
	_, c := seedCheckIn(t, ctx, repo, nineSydney)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.MarkEscalated(ctx, c.ID, nineSydney.Add(45*time.Minute)); err == nil {
				wins.Add(1)
			} else if !errors.Is(err, ErrTransitionLost) {
				t.Errorf("MarkEscalated error = %v", err)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("winners = %d, want 1", wins.Load())
	}
}

func TestIntegrationCheckIn_CompletionBlocksTransitions(t *testing.T) {
	ctx, repo := newTestEnv(t)
	p, c := seedCheckIn(t, ctx, repo, nineSydney)

	done, err := repo.CompleteLatestByPhone(ctx, p.PhoneNumber, nineSydney.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("CompleteLatestByPhone failed: %v", err)
	}
	if done.ID != c.ID || done.Status != model.CheckInStatusCompleted || done.CompletedAt == nil {
		t.Errorf("completed = %+v", done)
	}

	if _, err := repo.MarkReminded(ctx, c.ID, nineSydney.Add(15*time.Minute)); !errors.Is(err, ErrTransitionLost) {
		t.Errorf("MarkReminded after completion error = %v", err)
	}
	if _, err := repo.MarkEscalated(ctx, c.ID, nineSydney.Add(45*time.Minute)); !errors.Is(err, ErrTransitionLost) {
		t.Errorf("MarkEscalated after completion error = %v", err)
	}
	if _, err := repo.CompleteLatestByPhone(ctx, p.PhoneNumber, nineSydney.Add(50*time.Minute)); !errors.Is(err, ErrCheckInNotFound) {
		t.Errorf("second completion error = %v, want ErrCheckInNotFound", err)
	}
}

func TestIntegrationCheckIn_CompletesMostRecent(t *testing.T) {
	ctx, repo := newTestEnv(t)
	p, older := seedCheckIn(t, ctx, repo, nineSydney)

	newer := model.NewCheckIn(p, nineSydney.Add(24*time.Hour))
	if err := repo.CreateCheckIn(ctx, newer); err != nil {
		t.Fatalf("CreateCheckIn failed: %v", err)
	}
	if _, err := repo.MarkEscalated(ctx, newer.ID, newer.ScheduledFor.Add(45*time.Minute)); err != nil {
		t.Fatalf("MarkEscalated failed: %v", err)
	}

	done, err := repo.CompleteLatestByPhone(ctx, p.PhoneNumber, newer.ScheduledFor.Add(time.Hour))
	if err != nil {
		t.Fatalf("CompleteLatestByPhone failed: %v", err)
	}
	if done.ID != newer.ID {
		t.Errorf("completed %s, want the newer escalated check-in %s", done.ID, newer.ID)
	}
	if done.EscalatedAt == nil {
		t.Error("late completion must keep escalated_at")
	}

	got, err := repo.GetCheckIn(ctx, older.ID)
	if err != nil {
		t.Fatalf("GetCheckIn failed: %v", err)
	}
	if got.Status != model.CheckInStatusPending {
		t.Errorf("older status = %s, want pending", got.Status)
	}
}

func TestIntegrationCheckIn_ListOutstanding(t *testing.T) {
	ctx, repo := newTestEnv(t)

	_, fresh := seedCheckIn(t, ctx, repo, nineSydney)
	_, escalated := seedCheckIn(t, ctx, repo, nineSydney)
	donep, _ := seedCheckIn(t, ctx, repo, nineSydney)
	_, stale := seedCheckIn(t, ctx, repo, nineSydney.Add(-72*time.Hour))

	if _, err := repo.MarkReminded(ctx, escalated.ID, nineSydney.Add(15*time.Minute)); err != nil {
		t.Fatalf("MarkReminded failed: %v", err)
	}
	if _, err := repo.MarkEscalated(ctx, escalated.ID, nineSydney.Add(45*time.Minute)); err != nil {
		t.Fatalf("MarkEscalated failed: %v", err)
	}
	if _, err := repo.CompleteLatestByPhone(ctx, donep.PhoneNumber, nineSydney.Add(time.Minute)); err != nil {
		t.Fatalf("CompleteLatestByPhone failed: %v", err)
	}

	open, err := repo.ListOutstanding(ctx, nineSydney.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("ListOutstanding failed: %v", err)
	}
	if len(open) != 1 || open[0].ID != fresh.ID {
		ids := make([]string, len(open))
		for i, c := range open {
			ids[i] = c.ID
		}
		t.Errorf("outstanding = %v, want only %s (stale %s excluded)", ids, fresh.ID, stale.ID)
	}
}

func TestIntegrationContacts_PrimaryByPriority(t *testing.T) {
	ctx, repo := newTestEnv(t)

	p := testutil.NewTestProfile(t)
	if err := repo.CreateProfile(ctx, p); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}

	if _, err := repo.PrimaryContact(ctx, p.ID); !errors.Is(err, ErrContactNotFound) {
		t.Errorf("PrimaryContact with none error = %v", err)
	}

	for _, prio := range []int{3, 1, 2} {
		if err := repo.CreateContact(ctx, testutil.NewTestContact(t, p.ID, prio)); err != nil {
			t.Fatalf("CreateContact failed: %v", err)
		}
	}

	primary, err := repo.PrimaryContact(ctx, p.ID)
	if err != nil {
		t.Fatalf("PrimaryContact failed: %v", err)
	}
	if primary.Priority != 1 {
		t.Errorf("primary priority = %d, want 1", primary.Priority)
	}

	all, err := repo.ListContacts(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListContacts failed: %v", err)
	}
	if len(all) != 3 || all[0].Priority != 1 || all[2].Priority != 3 {
		t.Errorf("contacts = %+v", all)
	}
}
