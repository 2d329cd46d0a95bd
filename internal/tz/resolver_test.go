package tz

import (
	"errors"
	"testing"
	"time"
)

func TestNewResolver_UnknownZone(t *testing.T) {
	if _, err := NewResolver([]string{"Australia/Sydney", "Nowhere/Special"}); err == nil {
		t.Fatal("expected error for unknown zone")
	}
}

func TestResolver_Supported(t *testing.T) {
	r, err := NewResolver([]string{"Australia/Sydney", " Australia/Perth ", "", "Australia/Sydney"})
	if err != nil {
		t.Fatalf("NewResolver error = %v", err)
	}

	if !r.Supported("Australia/Sydney") || !r.Supported("Australia/Perth") {
		t.Error("configured zones should be supported")
	}
	if r.Supported("Europe/London") {
		t.Error("unconfigured zone should not be supported")
	}
	if r.Supported("") {
		t.Error("empty zone should not be supported")
	}
	if got := r.Zones(); len(got) != 2 {
		t.Errorf("Zones() = %v, want 2 unique zones", got)
	}
}

func TestResolver_LocalTime(t *testing.T) {
	r, err := NewResolver([]string{"Australia/Sydney", "Australia/Perth"})
	if err != nil {
		t.Fatalf("NewResolver error = %v", err)
	}

	// 22:00 UTC on 2 Mar is 09:00 AEDT on 3 Mar.
	now := time.Date(2025, 3, 2, 22, 0, 0, 0, time.UTC)

	local, err := r.LocalTime("Australia/Sydney", now)
	if err != nil {
		t.Fatalf("LocalTime error = %v", err)
	}
	if local.Hour() != 9 || local.Minute() != 0 || local.Day() != 3 {
		t.Errorf("Sydney local = %s, want 09:00 on the 3rd", local)
	}

	perth, err := r.LocalTime("Australia/Perth", now)
	if err != nil {
		t.Fatalf("LocalTime error = %v", err)
	}
	if perth.Hour() != 6 {
		t.Errorf("Perth local hour = %d, want 6", perth.Hour())
	}

	if _, err := r.LocalTime("Europe/London", now); !errors.Is(err, ErrUnsupportedZone) {
		t.Errorf("LocalTime(unsupported) error = %v, want ErrUnsupportedZone", err)
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{"09:00", Clock{9, 0}, false},
		{"9:05", Clock{9, 5}, false},
		{"23:59", Clock{23, 59}, false},
		{"07:30:00", Clock{7, 30}, false},
		{" 08:15 ", Clock{8, 15}, false},
		{"", Clock{}, true},
		{"9", Clock{}, true},
		{"24:00", Clock{}, true},
		{"12:60", Clock{}, true},
		{"ab:cd", Clock{}, true},
		{"12:00:99", Clock{}, true},
		{"1:2:3:4", Clock{}, true},
	}

	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidClock) {
				t.Errorf("ParseClock(%q) error = %v, want ErrInvalidClock", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseClock(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseClock(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestClock_Matches(t *testing.T) {
	c := Clock{Hour: 9, Minute: 0}
	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	if !c.Matches(base) || !c.Matches(base.Add(59*time.Second)) {
		t.Error("clock should match any second within its minute")
	}
	if c.Matches(base.Add(time.Minute)) || c.Matches(base.Add(-time.Second)) {
		t.Error("clock should not match neighbouring minutes")
	}
	if c.String() != "09:00" {
		t.Errorf("String() = %s, want 09:00", c.String())
	}
}
