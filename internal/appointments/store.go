package appointments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when an appointment id does not exist.
var ErrNotFound = errors.New("appointment not found")

// Store runs read-only queries against the booking database.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const baseSelect = `
	SELECT a.id, a.scheduled_at, a.status, COALESCE(a.notes, ''),
	       a.created_at, a.updated_at,
	       c.name, COALESCE(c.phone, ''),
	       s.name, s.price,
	       p.name
	FROM appointments a
	JOIN customers c ON c.id = a.customer_id
	JOIN services  s ON s.id = a.service_id
	JOIN providers p ON p.id = a.provider_id
`

func scanAppointment(row interface{ Scan(...any) error }) (*Appointment, error) {
	a := &Appointment{}
	err := row.Scan(
		&a.ID, &a.ScheduledAt, &a.Status, &a.Notes,
		&a.CreatedAt, &a.UpdatedAt,
		&a.Customer.Name, &a.Customer.Phone,
		&a.Service.Name, &a.Service.Price,
		&a.Provider.Name,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ByID loads one appointment with its customer, service and provider.
func (s *Store) ByID(ctx context.Context, id string) (*Appointment, error) {
	a, err := scanAppointment(s.db.QueryRowContext(ctx, baseSelect+" WHERE a.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: load %s: %w", id, err)
	}
	return a, nil
}

// CreatedSince returns appointments created at or after the watermark,
// oldest first.
func (s *Store) CreatedSince(ctx context.Context, since time.Time) ([]*Appointment, error) {
	return s.list(ctx, baseSelect+" WHERE a.created_at >= ? ORDER BY a.created_at", since)
}

// CancelledSince returns cancelled appointments whose last update falls
// inside the trailing window.
func (s *Store) CancelledSince(ctx context.Context, since time.Time) ([]*Appointment, error) {
	return s.list(ctx, baseSelect+" WHERE a.status = ? AND a.updated_at >= ?", StatusCancelled, since)
}

// ScheduledBetween returns pending or confirmed appointments scheduled
// inside [from, to], for the reminder sweep.
func (s *Store) ScheduledBetween(ctx context.Context, from, to time.Time) ([]*Appointment, error) {
	return s.list(ctx,
		baseSelect+" WHERE a.scheduled_at >= ? AND a.scheduled_at <= ? AND a.status IN (?, ?) ORDER BY a.scheduled_at",
		from, to, StatusPending, StatusConfirmed)
}

// CountOnDay counts pending or confirmed appointments scheduled on the
// calendar day containing t, in t's location.
func (s *Store) CountOnDay(ctx context.Context, t time.Time) (int, error) {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM appointments WHERE scheduled_at >= ? AND scheduled_at < ? AND status IN (?, ?)`,
		day, day.AddDate(0, 0, 1), StatusPending, StatusConfirmed,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("appointments: count day: %w", err)
	}
	return n, nil
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]*Appointment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: query: %w", err)
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
