package model

// EmergencyContact is a person notified when a user misses a check-in.
// Lower Priority values are tried first (1 is the first choice).
type EmergencyContact struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	FirstName   string `json:"first_name"`
	PhoneNumber string `json:"phone_number"`
	Priority    int    `json:"priority"`
}
