package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/safenotsorry/checkin/internal/model"
)

// ErrProfileNotFound is returned when no profile matches.
var ErrProfileNotFound = errors.New("profile not found")

const profileColumns = `id, phone_number, first_name, COALESCE(timezone, ''), COALESCE(check_in_time, ''), checkin_pause_end_date`

// ListProfiles returns every profile in a stable order.
func (r *Repository) ListProfiles(ctx context.Context) ([]*model.UserProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*model.UserProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profiles: %w", err)
	}

	return profiles, nil
}

// GetProfile retrieves a profile by ID.
func (r *Repository) GetProfile(ctx context.Context, id string) (*model.UserProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`

	p, err := scanProfile(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return p, nil
}

// CreateProfile inserts a profile. Used by seeding and tests; production
// profiles are managed by the signup application.
func (r *Repository) CreateProfile(ctx context.Context, p *model.UserProfile) error {
	query := `
		INSERT INTO profiles (id, phone_number, first_name, timezone, check_in_time, checkin_pause_end_date)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6)
	`

	_, err := r.pool.Exec(ctx, query,
		p.ID,
		p.PhoneNumber,
		p.FirstName,
		p.Timezone,
		p.CheckInTime,
		p.PauseEndDate,
	)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}

	return nil
}

func scanProfile(row pgx.Row) (*model.UserProfile, error) {
	var p model.UserProfile
	err := row.Scan(
		&p.ID,
		&p.PhoneNumber,
		&p.FirstName,
		&p.Timezone,
		&p.CheckInTime,
		&p.PauseEndDate,
	)
	return &p, err
}
