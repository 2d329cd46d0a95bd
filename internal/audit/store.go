// Package audit persists the append-only log of inbound replies.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/safenotsorry/checkin/internal/model"
)

// ErrEmptyPhone is returned when a reply has no sender.
var ErrEmptyPhone = errors.New("response phone number is empty")

// Open connects to Postgres through lib/pq and verifies the connection.
// The handle is shared by the response log and the migration runner.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Store writes Response records.
type Store struct {
	db *sql.DB
}

// NewStore creates a response log on an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append records a reply. ID and ReceivedAt are filled in when empty.
func (s *Store) Append(ctx context.Context, r *model.Response) error {
	if r.PhoneNumber == "" {
		return ErrEmptyPhone
	}
	if r.ID == "" {
		r.ID = model.NewID()
	}
	if r.ReceivedAt.IsZero() {
		r.ReceivedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO responses (id, phone_number, response, received_at)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := s.db.ExecContext(ctx, query, r.ID, r.PhoneNumber, r.Text, r.ReceivedAt); err != nil {
		return fmt.Errorf("insert response: %w", err)
	}
	return nil
}

// ListByPhone returns the most recent replies from a number, newest first.
// Only operator tooling reads the log back.
func (s *Store) ListByPhone(ctx context.Context, phone string, limit int) ([]*model.Response, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, phone_number, response, received_at
		FROM responses
		WHERE phone_number = $1
		ORDER BY received_at DESC, id DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, phone, limit)
	if err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}
	defer rows.Close()

	var responses []*model.Response
	for rows.Next() {
		var r model.Response
		if err := rows.Scan(&r.ID, &r.PhoneNumber, &r.Text, &r.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		responses = append(responses, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate responses: %w", err)
	}

	return responses, nil
}
