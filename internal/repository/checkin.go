package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/safenotsorry/checkin/internal/model"
)

// Common errors for check-in repository operations.
var (
	ErrCheckInNotFound = errors.New("check-in not found")
	ErrCheckInExists   = errors.New("check-in already exists for this user and minute")
	// ErrTransitionLost means the conditional update matched no row: the
	// record moved on (completed, already reminded, ...) since it was read.
	ErrTransitionLost = errors.New("check-in transition lost to a concurrent update")
)

const checkInColumns = `id, user_id, phone_number, status, scheduled_for, initial_sms_sent_at,
	reminder_sent_at, escalated_at, completed_at, created_at, updated_at`

// CreateCheckIn inserts a new check-in. A second check-in for the same user
// in the same minute violates check_ins_user_minute_key and maps to ErrCheckInExists.
func (r *Repository) CreateCheckIn(ctx context.Context, c *model.CheckIn) error {
	query := `
		INSERT INTO check_ins (id, user_id, phone_number, status, scheduled_for, initial_sms_sent_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		c.ID,
		c.UserID,
		c.PhoneNumber,
		string(c.Status),
		c.ScheduledFor,
		c.InitialSMSSentAt,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCheckInExists
		}
		return fmt.Errorf("failed to create check-in: %w", err)
	}

	return nil
}

// GetCheckIn retrieves a check-in by its ID.
func (r *Repository) GetCheckIn(ctx context.Context, id string) (*model.CheckIn, error) {
	query := `SELECT ` + checkInColumns + ` FROM check_ins WHERE id = $1`

	c, err := scanCheckIn(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCheckInNotFound
		}
		return nil, fmt.Errorf("failed to get check-in: %w", err)
	}

	return c, nil
}

// MarkReminded records the reminder in one conditional statement.
// It only succeeds while reminder_sent_at and completed_at are null and the
// status can still move to reminded.
func (r *Repository) MarkReminded(ctx context.Context, id string, at time.Time) (*model.CheckIn, error) {
	query := `
		UPDATE check_ins
		SET status = $2, reminder_sent_at = $3, updated_at = $3
		WHERE id = $1
		  AND status = ANY($4)
		  AND reminder_sent_at IS NULL
		  AND completed_at IS NULL
		RETURNING ` + checkInColumns

	return r.transition(ctx, query, id, model.CheckInStatusReminded, at)
}

// MarkEscalated sets escalated_at and status together so no reader ever
// observes one without the other.
func (r *Repository) MarkEscalated(ctx context.Context, id string, at time.Time) (*model.CheckIn, error) {
	query := `
		UPDATE check_ins
		SET status = $2, escalated_at = $3, updated_at = $3
		WHERE id = $1
		  AND status = ANY($4)
		  AND escalated_at IS NULL
		  AND completed_at IS NULL
		RETURNING ` + checkInColumns

	return r.transition(ctx, query, id, model.CheckInStatusEscalated, at)
}

func (r *Repository) transition(ctx context.Context, query, id string, to model.CheckInStatus, at time.Time) (*model.CheckIn, error) {
	sources := statusStrings(model.SourcesFor(to))

	c, err := scanCheckIn(r.pool.QueryRow(ctx, query, id, string(to), at.UTC(), sources))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransitionLost
		}
		return nil, fmt.Errorf("failed to mark check-in %s: %w", to, err)
	}

	return c, nil
}

// CompleteLatestByPhone completes the most recently scheduled open check-in
// for a phone number. Selection and update happen in one statement; the row
// lock keeps two concurrent replies from completing different rows.
func (r *Repository) CompleteLatestByPhone(ctx context.Context, phone string, at time.Time) (*model.CheckIn, error) {
	query := `
		UPDATE check_ins
		SET status = $2, completed_at = $3, updated_at = $3
		WHERE id = (
			SELECT id FROM check_ins
			WHERE phone_number = $1
			  AND completed_at IS NULL
			  AND status = ANY($4)
			ORDER BY scheduled_for DESC, id DESC
			LIMIT 1
			FOR UPDATE
		)
		AND completed_at IS NULL
		RETURNING ` + checkInColumns

	sources := statusStrings(model.SourcesFor(model.CheckInStatusCompleted))

	c, err := scanCheckIn(r.pool.QueryRow(ctx, query, phone, string(model.CheckInStatusCompleted), at.UTC(), sources))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCheckInNotFound
		}
		return nil, fmt.Errorf("failed to complete check-in: %w", err)
	}

	return c, nil
}

// ListOutstanding returns open check-ins scheduled at or after since that
// still owe a reminder or an escalation. Used to rebuild timers on restart.
func (r *Repository) ListOutstanding(ctx context.Context, since time.Time) ([]*model.CheckIn, error) {
	query := `
		SELECT ` + checkInColumns + `
		FROM check_ins
		WHERE completed_at IS NULL
		  AND status <> 'completed'
		  AND (reminder_sent_at IS NULL OR escalated_at IS NULL)
		  AND scheduled_for >= $1
		ORDER BY scheduled_for ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list outstanding check-ins: %w", err)
	}
	defer rows.Close()

	var checkIns []*model.CheckIn
	for rows.Next() {
		c, err := scanCheckIn(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan check-in: %w", err)
		}
		checkIns = append(checkIns, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating check-ins: %w", err)
	}

	return checkIns, nil
}

// ListCheckInsByUser returns a user's most recent check-ins, newest first.
func (r *Repository) ListCheckInsByUser(ctx context.Context, userID string, limit int) ([]*model.CheckIn, error) {
	query := `
		SELECT ` + checkInColumns + `
		FROM check_ins
		WHERE user_id = $1
		ORDER BY scheduled_for DESC, id DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list check-ins: %w", err)
	}
	defer rows.Close()

	var checkIns []*model.CheckIn
	for rows.Next() {
		c, err := scanCheckIn(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan check-in: %w", err)
		}
		checkIns = append(checkIns, c)
	}

	return checkIns, rows.Err()
}

// scanCheckIn scans a single row into a CheckIn model.
func scanCheckIn(row pgx.Row) (*model.CheckIn, error) {
	var c model.CheckIn
	var status string
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.PhoneNumber,
		&status,
		&c.ScheduledFor,
		&c.InitialSMSSentAt,
		&c.ReminderSentAt,
		&c.EscalatedAt,
		&c.CompletedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	c.Status = model.CheckInStatus(status)
	return &c, err
}

func statusStrings(statuses []model.CheckInStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
