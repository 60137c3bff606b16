package notify

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

// ErrDuplicate reports that a record for the same (appointment, kind)
// already exists. Callers treat it as "another path owns this
// notification", not as a failure.
var ErrDuplicate = errors.New("notification already recorded")

const duplicateEntryErrNo = 1062

// Store persists notification records in MySQL.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Insert writes a new record. A uniqueness violation on
// (appointment_id, kind) is mapped to ErrDuplicate.
func (s *Store) Insert(ctx context.Context, r *Record) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, appointment_id, kind, phone, body, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.AppointmentID, string(r.Kind), r.Phone, r.Body, r.Status, r.CreatedAt,
	)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == duplicateEntryErrNo {
			return ErrDuplicate
		}
		return fmt.Errorf("notify: insert: %w", err)
	}
	return nil
}

// UpdateStatus moves the (appointment, kind) record to a new status.
func (s *Store) UpdateStatus(ctx context.Context, appointmentID string, kind Kind, status string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET status = ? WHERE appointment_id = ? AND kind = ?`,
		status, appointmentID, string(kind),
	)
	if err != nil {
		return fmt.Errorf("notify: update status: %w", err)
	}
	return nil
}

// Find returns the record for (appointment, kind), or (nil, nil) when
// none exists.
func (s *Store) Find(ctx context.Context, appointmentID string, kind Kind) (*Record, error) {
	r := &Record{}
	var k string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, appointment_id, kind, phone, body, status, created_at
		 FROM notifications WHERE appointment_id = ? AND kind = ?`,
		appointmentID, string(kind),
	).Scan(&r.ID, &r.AppointmentID, &k, &r.Phone, &r.Body, &r.Status, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("notify: find: %w", err)
	}
	r.Kind = Kind(k)
	return r, nil
}
