package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	// scanLockPrefix is the Redis key prefix for per-minute scan locks.
	scanLockPrefix = "checkin:scan:"
	// scanLockTTL outlives the tick it guards so late replicas still see it.
	scanLockTTL = 120 * time.Second
)

// ScanLockKey returns the lock key for the minute containing t (UTC).
func ScanLockKey(t time.Time) string {
	return scanLockPrefix + t.UTC().Format("200601021504")
}

// AcquireScanLock claims the scan for the minute containing tick.
// It returns false when another process already ran that minute.
func (c *Cache) AcquireScanLock(ctx context.Context, tick time.Time, owner string) (bool, error) {
	ok, err := c.client.SetNX(ctx, ScanLockKey(tick), owner, scanLockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire scan lock: %w", err)
	}
	return ok, nil
}
