package model

import "time"

// Response is an append-only audit record of an inbound reply.
type Response struct {
	ID          string    `json:"id"`
	PhoneNumber string    `json:"phone_number"`
	Text        string    `json:"response"`
	ReceivedAt  time.Time `json:"received_at"`
}
