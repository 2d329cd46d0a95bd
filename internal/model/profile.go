// Package model defines domain entities for the application.
package model

import "time"

// UserProfile is a person enrolled in daily check-ins.
// Profiles are owned by the profile store and are read-only here.
type UserProfile struct {
	ID           string     `json:"id"`
	PhoneNumber  string     `json:"phone_number"`
	FirstName    string     `json:"first_name"`
	Timezone     string     `json:"timezone,omitempty"`      // IANA identifier, may be empty
	CheckInTime  string     `json:"check_in_time,omitempty"` // local "HH:MM", may be empty
	PauseEndDate *time.Time `json:"pause_end_date,omitempty"`
}

// PausedAt reports whether a pause is still active at the given instant.
// A nil pause end, or one at or before t, means check-ins are live.
func (p *UserProfile) PausedAt(t time.Time) bool {
	return p.PauseEndDate != nil && t.Before(*p.PauseEndDate)
}
