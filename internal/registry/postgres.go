package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"campushub/internal/reference"
)

// PostgresStore persists events and registrations in Postgres.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store backed by the given connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateEvent inserts the event and its references.
func (s *PostgresStore) CreateEvent(ctx context.Context, e Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create event: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (id, organizer_id, name, description, starts_at, status, capacity, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, e.ID, e.OrganizerID, e.Name, e.Description, e.StartsAt, string(e.Status), e.Capacity, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	for i, ref := range e.References {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO event_references (event_id, position, kind, value)
			VALUES ($1,$2,$3,$4)
		`, e.ID, i, string(ref.Kind), ref.Value)
		if err != nil {
			return fmt.Errorf("insert reference: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create event: %w", err)
	}
	return nil
}

// GetEvent returns the event with its references or ErrNotFound.
func (s *PostgresStore) GetEvent(ctx context.Context, id string) (*Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, organizer_id, name, description, starts_at, status, capacity, created_at
		FROM events WHERE id = $1
	`, id)
	evt, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	refs, err := s.loadReferences(ctx, id)
	if err != nil {
		return nil, err
	}
	evt.References = refs
	return evt, nil
}

// ListEvents returns events in the given status ordered by creation time.
func (s *PostgresStore) ListEvents(ctx context.Context, status Status) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, organizer_id, name, description, starts_at, status, capacity, created_at
		FROM events WHERE status = $1
		ORDER BY created_at ASC, id ASC
	`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, *evt)
	}
	return out, rows.Err()
}

// TransitionStatus performs a conditional status update. No row updated means
// either the event is missing or its current status is not in from.
func (s *PostgresStore) TransitionStatus(ctx context.Context, id string, to Status, from ...Status) error {
	query := `UPDATE events SET status = $2 WHERE id = $1 AND status IN (`
	args := []any{id, string(to)}
	for i, f := range from {
		if i > 0 {
			query += ", "
		}
		query += fmt.Sprintf("$%d", len(args)+1)
		args = append(args, string(f))
	}
	query += ")"
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("transition status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition status rows: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("transition status check: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrInvalidState
	}
	return nil
}

// HasAttendee reports whether a registration already exists.
func (s *PostgresStore) HasAttendee(ctx context.Context, eventID, studentID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM registrations WHERE event_id = $1 AND student_id = $2)
	`, eventID, studentID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check attendee: %w", err)
	}
	return exists, nil
}

// AddAttendee serializes concurrent registrations for one event with a
// row-level lock, re-checks state, duplicates, and capacity under that lock,
// and inserts the registration in the same transaction. Either everything
// commits or nothing does.
func (s *PostgresStore) AddAttendee(ctx context.Context, eventID, studentID string) (Registration, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Registration{}, fmt.Errorf("begin registration: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var status string
	var capacity int
	err = tx.QueryRowContext(ctx, `
		SELECT status, capacity FROM events WHERE id = $1 FOR UPDATE
	`, eventID).Scan(&status, &capacity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrNotFound
			return Registration{}, err
		}
		return Registration{}, fmt.Errorf("lock event row: %w", err)
	}
	if Status(status) != StatusPublished {
		err = ErrInvalidState
		return Registration{}, err
	}

	var dup bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM registrations WHERE event_id = $1 AND student_id = $2)
	`, eventID, studentID).Scan(&dup)
	if err != nil {
		return Registration{}, fmt.Errorf("check duplicate: %w", err)
	}
	if dup {
		err = ErrDuplicateRegistration
		return Registration{}, err
	}

	if capacity > 0 {
		var count int
		err = tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM registrations WHERE event_id = $1
		`, eventID).Scan(&count)
		if err != nil {
			return Registration{}, fmt.Errorf("count attendees: %w", err)
		}
		if count >= capacity {
			err = ErrEventFull
			return Registration{}, err
		}
	}

	reg := Registration{
		ID:        uuid.NewString(),
		EventID:   eventID,
		StudentID: studentID,
		CreatedAt: time.Now().UTC(),
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO registrations (id, event_id, student_id, created_at)
		VALUES ($1,$2,$3,$4)
	`, reg.ID, reg.EventID, reg.StudentID, reg.CreatedAt)
	if err != nil {
		return Registration{}, fmt.Errorf("insert registration: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return Registration{}, fmt.Errorf("commit registration: %w", err)
	}
	return reg, nil
}

// ListAttendees returns registrations for an event in registration order.
func (s *PostgresStore) ListAttendees(ctx context.Context, eventID string) ([]Registration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_id, student_id, created_at
		FROM registrations WHERE event_id = $1
		ORDER BY created_at ASC
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	defer rows.Close()

	var out []Registration
	for rows.Next() {
		var reg Registration
		if err := rows.Scan(&reg.ID, &reg.EventID, &reg.StudentID, &reg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		out = append(out, reg)
	}
	return out, rows.Err()
}

func (s *PostgresStore) loadReferences(ctx context.Context, eventID string) ([]reference.Reference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, value FROM event_references WHERE event_id = $1 ORDER BY position ASC
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("load references: %w", err)
	}
	defer rows.Close()

	var refs []reference.Reference
	for rows.Next() {
		var kind, value string
		if err := rows.Scan(&kind, &value); err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		refs = append(refs, reference.Reference{Kind: reference.Kind(kind), Value: value})
	}
	return refs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var evt Event
	var status string
	if err := row.Scan(&evt.ID, &evt.OrganizerID, &evt.Name, &evt.Description, &evt.StartsAt, &status, &evt.Capacity, &evt.CreatedAt); err != nil {
		return nil, err
	}
	evt.Status = Status(status)
	return &evt, nil
}
