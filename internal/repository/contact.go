package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/safenotsorry/checkin/internal/model"
)

// ErrContactNotFound is returned when a user has no emergency contact.
var ErrContactNotFound = errors.New("emergency contact not found")

// PrimaryContact returns the contact with the lowest priority value.
// Ties are broken by id so the choice is deterministic.
func (r *Repository) PrimaryContact(ctx context.Context, userID string) (*model.EmergencyContact, error) {
	query := `
		SELECT id, user_id, first_name, phone_number, priority
		FROM emergency_contacts
		WHERE user_id = $1
		ORDER BY priority ASC, id ASC
		LIMIT 1
	`

	var c model.EmergencyContact
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&c.ID,
		&c.UserID,
		&c.FirstName,
		&c.PhoneNumber,
		&c.Priority,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContactNotFound
		}
		return nil, fmt.Errorf("failed to get primary contact: %w", err)
	}

	return &c, nil
}

// ListContacts returns a user's contacts ordered by priority ascending.
func (r *Repository) ListContacts(ctx context.Context, userID string) ([]*model.EmergencyContact, error) {
	query := `
		SELECT id, user_id, first_name, phone_number, priority
		FROM emergency_contacts
		WHERE user_id = $1
		ORDER BY priority ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*model.EmergencyContact
	for rows.Next() {
		var c model.EmergencyContact
		if err := rows.Scan(&c.ID, &c.UserID, &c.FirstName, &c.PhoneNumber, &c.Priority); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, &c)
	}

	return contacts, rows.Err()
}

// CreateContact inserts an emergency contact.
func (r *Repository) CreateContact(ctx context.Context, c *model.EmergencyContact) error {
	query := `
		INSERT INTO emergency_contacts (id, user_id, first_name, phone_number, priority)
		VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := r.pool.Exec(ctx, query, c.ID, c.UserID, c.FirstName, c.PhoneNumber, c.Priority); err != nil {
		return fmt.Errorf("failed to create contact: %w", err)
	}
	return nil
}
