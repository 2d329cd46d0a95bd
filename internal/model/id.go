package model

import "github.com/oklog/ulid/v2"

// NewID returns a time-sortable ULID string.
func NewID() string {
	return ulid.Make().String()
}
