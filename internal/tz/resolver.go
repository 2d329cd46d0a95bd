// Package tz maps user timezones to local wall-clock time.
package tz

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	// Embedded zone database so the resolver does not depend on the host's tzdata.
	_ "time/tzdata"
)

// Resolver errors.
var (
	ErrUnsupportedZone = errors.New("timezone not supported")
	ErrInvalidClock    = errors.New("invalid time of day")
)

// Resolver holds the supported zone set with preloaded locations.
type Resolver struct {
	locations map[string]*time.Location
	names     []string
}

// NewResolver loads every named zone. An unknown zone is a configuration error.
func NewResolver(zones []string) (*Resolver, error) {
	r := &Resolver{locations: make(map[string]*time.Location, len(zones))}
	for _, name := range zones {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		loc, err := time.LoadLocation(name)
		if err != nil {
			return nil, fmt.Errorf("load location %q: %w", name, err)
		}
		if _, dup := r.locations[name]; !dup {
			r.names = append(r.names, name)
		}
		r.locations[name] = loc
	}
	return r, nil
}

// Supported reports whether the zone is in the configured set.
func (r *Resolver) Supported(zone string) bool {
	_, ok := r.locations[zone]
	return ok
}

// Zones returns the configured zone names in configuration order.
func (r *Resolver) Zones() []string {
	return append([]string(nil), r.names...)
}

// LocalTime converts an instant to wall-clock time in the given zone.
func (r *Resolver) LocalTime(zone string, now time.Time) (time.Time, error) {
	loc, ok := r.locations[zone]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnsupportedZone, zone)
	}
	return now.In(loc), nil
}

// Clock is a local time of day with minute precision.
type Clock struct {
	Hour   int
	Minute int
}

// String formats the clock as HH:MM.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Matches reports whether t falls within the clock's minute.
func (c Clock) Matches(t time.Time) bool {
	return t.Hour() == c.Hour && t.Minute() == c.Minute
}

// ParseClock parses "H:MM", "HH:MM" or "HH:MM:SS" (seconds ignored).
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	if len(parts) == 3 {
		if sec, err := strconv.Atoi(parts[2]); err != nil || sec < 0 || sec > 59 {
			return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
		}
	}

	return Clock{Hour: hour, Minute: minute}, nil
}
