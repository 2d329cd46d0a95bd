// Package testutil holds helpers for integration tests that need a real
// Postgres or Redis.
package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/safenotsorry/checkin/internal/audit"
	"github.com/safenotsorry/checkin/internal/migrations"
	"github.com/safenotsorry/checkin/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema rolls the embedded migrations all the way down and back up.
func ResetSchema(ctx context.Context, databaseURL string) error {
	db, err := audit.Open(ctx, databaseURL)
	if err != nil {
		return err
	}

	runner, err := migrations.NewRunner(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		db.Close()
		return err
	}
	defer runner.Close()

	return runner.Reset()
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

var seq atomic.Uint64

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), seq.Add(1))
}

// UniquePhone generates an unused E.164-looking number.
func UniquePhone() string {
	return fmt.Sprintf("+6149%07d", seq.Add(1)%10_000_000)
}

// NewTestProfile creates a Sydney profile checking in at 09:00.
func NewTestProfile(t testing.TB) *model.UserProfile {
	t.Helper()
	return &model.UserProfile{
		ID:          UniqueID("user"),
		PhoneNumber: UniquePhone(),
		FirstName:   "Test",
		Timezone:    "Australia/Sydney",
		CheckInTime: "09:00",
	}
}

// NewTestContact creates an emergency contact for userID.
func NewTestContact(t testing.TB, userID string, priority int) *model.EmergencyContact {
	t.Helper()
	return &model.EmergencyContact{
		ID:          UniqueID("contact"),
		UserID:      userID,
		FirstName:   fmt.Sprintf("Contact%d", priority),
		PhoneNumber: UniquePhone(),
		Priority:    priority,
	}
}
