package notify

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO notifications").
			WillReturnResult(sqlmock.NewResult(0, 1))

		r := &Record{
			AppointmentID: "appt-1",
			Kind:          KindConfirmation,
			Phone:         "5586998053279",
			Body:          "oi",
			Status:        StatusSent,
		}
		require.NoError(t, store.Insert(ctx, r))
		assert.NotEmpty(t, r.ID, "insert assigns an id")
		assert.False(t, r.CreatedAt.IsZero())
	})

	t.Run("DuplicateKeyBecomesErrDuplicate", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO notifications").
			WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

		err := store.Insert(ctx, &Record{
			AppointmentID: "appt-1",
			Kind:          KindConfirmation,
			Status:        StatusSent,
		})
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("OtherMySQLErrorsPassThrough", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO notifications").
			WillReturnError(&mysql.MySQLError{Number: 1205, Message: "Lock wait timeout"})

		err := store.Insert(ctx, &Record{
			AppointmentID: "appt-1",
			Kind:          KindConfirmation,
		})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrDuplicate)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Find(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	ctx := context.Background()

	cols := []string{"id", "appointment_id", "kind", "phone", "body", "status", "created_at"}

	t.Run("Found", func(t *testing.T) {
		created := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
		mock.ExpectQuery("SELECT id, appointment_id, kind, phone, body, status, created_at").
			WithArgs("appt-1", "reminder").
			WillReturnRows(sqlmock.NewRows(cols).
				AddRow("n-1", "appt-1", "reminder", "5586998053279", "oi", "sent", created))

		r, err := store.Find(ctx, "appt-1", KindReminder)
		require.NoError(t, err)
		require.NotNil(t, r)
		assert.Equal(t, KindReminder, r.Kind)
		assert.Equal(t, StatusSent, r.Status)
	})

	t.Run("MissingIsNilNil", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, appointment_id, kind, phone, body, status, created_at").
			WithArgs("appt-2", "cancellation").
			WillReturnRows(sqlmock.NewRows(cols))

		r, err := store.Find(ctx, "appt-2", KindCancellation)
		require.NoError(t, err)
		assert.Nil(t, r)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdateStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)

	mock.ExpectExec("UPDATE notifications SET status").
		WithArgs("sent", "appt-1", "cancellation").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.UpdateStatus(context.Background(), "appt-1", KindCancellation, StatusSent))
	require.NoError(t, mock.ExpectationsWereMet())
}
