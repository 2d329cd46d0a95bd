// Package scheduler implements the durable timer queue for reminder and
// escalation callbacks, backed by a Redis sorted set.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the sorted set holding pending timers.
const DefaultKey = "checkin:timers"

// Kind identifies which handler a timer invokes.
type Kind string

const (
	KindReminder   Kind = "reminder"
	KindEscalation Kind = "escalation"
)

// ErrInvalidTimer is returned for timers with no kind or check-in id, or
// members that cannot be decoded.
var ErrInvalidTimer = errors.New("invalid timer")

// Timer is a one-shot callback carrying only the check-in id.
type Timer struct {
	Kind      Kind
	CheckInID string
	FireAt    time.Time
}

// member encodes the timer identity. Fire time lives in the score, so
// the same kind and check-in can never be queued twice.
func (t Timer) member() string {
	return string(t.Kind) + ":" + t.CheckInID
}

func (t Timer) validate() error {
	if t.Kind == "" || t.CheckInID == "" || strings.Contains(string(t.Kind), ":") {
		return fmt.Errorf("%w: kind=%q check_in_id=%q", ErrInvalidTimer, t.Kind, t.CheckInID)
	}
	return nil
}

func parseMember(member string, score float64) (Timer, error) {
	kind, id, ok := strings.Cut(member, ":")
	if !ok || kind == "" || id == "" {
		return Timer{}, fmt.Errorf("%w: %q", ErrInvalidTimer, member)
	}
	return Timer{
		Kind:      Kind(kind),
		CheckInID: id,
		FireAt:    time.UnixMilli(int64(score)).UTC(),
	}, nil
}

// claimScript pops up to ARGV[2] members whose score is <= ARGV[1].
// Read and removal happen in one script so two workers never claim the
// same timer.
var claimScript = redis.NewScript(`
	local key = KEYS[1]
	local now = ARGV[1]
	local limit = tonumber(ARGV[2])

	local due = redis.call('ZRANGEBYSCORE', key, '-inf', now, 'WITHSCORES', 'LIMIT', 0, limit)
	for i = 1, #due, 2 do
		redis.call('ZREM', key, due[i])
	end
	return due
`)

// Queue is a Redis-backed durable timer queue.
type Queue struct {
	client *redis.Client
	key    string
}

// NewQueue creates a queue on the given client using DefaultKey.
func NewQueue(client *redis.Client) *Queue {
	return &Queue{client: client, key: DefaultKey}
}

// Schedule adds a timer. Scheduling an already queued timer is a no-op
// and keeps the original fire time. It reports whether the timer was new.
func (q *Queue) Schedule(ctx context.Context, t Timer) (bool, error) {
	if err := t.validate(); err != nil {
		return false, err
	}

	added, err := q.client.ZAddNX(ctx, q.key, redis.Z{
		Score:  float64(t.FireAt.UnixMilli()),
		Member: t.member(),
	}).Result()
	if err != nil {
		return false, fmt.Errorf("failed to schedule %s timer: %w", t.Kind, err)
	}
	return added == 1, nil
}

// ClaimDue atomically removes and returns up to limit timers due at or
// before now, earliest first. Members that cannot be decoded are already
// gone from Redis; they are skipped and reported in an error wrapping
// ErrInvalidTimer alongside the timers that did decode.
func (q *Queue) ClaimDue(ctx context.Context, now time.Time, limit int) ([]Timer, error) {
	if limit <= 0 {
		return nil, nil
	}

	raw, err := claimScript.Run(ctx, q.client, []string{q.key}, now.UnixMilli(), limit).StringSlice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim due timers: %w", err)
	}

	var bad []error
	timers := make([]Timer, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		score, err := strconv.ParseFloat(raw[i+1], 64)
		if err != nil {
			bad = append(bad, fmt.Errorf("%w: member %q has bad score %q", ErrInvalidTimer, raw[i], raw[i+1]))
			continue
		}
		t, err := parseMember(raw[i], score)
		if err != nil {
			bad = append(bad, err)
			continue
		}
		timers = append(timers, t)
	}
	return timers, errors.Join(bad...)
}

// Depth returns the number of queued timers.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	n, err := q.client.ZCard(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read timer queue depth: %w", err)
	}
	return n, nil
}

// Pending returns queued timers in fire order without claiming them.
func (q *Queue) Pending(ctx context.Context, limit int64) ([]Timer, error) {
	zs, err := q.client.ZRangeWithScores(ctx, q.key, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list timers: %w", err)
	}

	timers := make([]Timer, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		t, err := parseMember(member, z.Score)
		if err != nil {
			return timers, err
		}
		timers = append(timers, t)
	}
	return timers, nil
}
