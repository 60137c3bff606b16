package appointments

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var storeCols = []string{
	"id", "scheduled_at", "status", "notes", "created_at", "updated_at",
	"c.name", "c.phone", "s.name", "s.price", "p.name",
}

func sampleRow(rows *sqlmock.Rows, id string) *sqlmock.Rows {
	at := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	return rows.AddRow(id, at, StatusConfirmed, "", at, at,
		"João", "(86) 99805-3279", "Corte", 45.0, "Carlos")
}

func TestStore_ByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		mock.ExpectQuery("SELECT a.id, a.scheduled_at").
			WithArgs("appt-1").
			WillReturnRows(sampleRow(sqlmock.NewRows(storeCols), "appt-1"))

		a, err := store.ByID(ctx, "appt-1")
		require.NoError(t, err)
		assert.Equal(t, "appt-1", a.ID)
		assert.Equal(t, "João", a.Customer.Name)
		assert.Equal(t, "(86) 99805-3279", a.Customer.Phone)
		assert.Equal(t, 45.0, a.Service.Price)
		assert.Equal(t, "Carlos", a.Provider.Name)
	})

	t.Run("Missing", func(t *testing.T) {
		mock.ExpectQuery("SELECT a.id, a.scheduled_at").
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows(storeCols))

		_, err := store.ByID(ctx, "ghost")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreatedSince(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	since := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(storeCols)
	sampleRow(rows, "appt-1")
	sampleRow(rows, "appt-2")
	mock.ExpectQuery("WHERE a.created_at >= \\? ORDER BY a.created_at").
		WithArgs(since).
		WillReturnRows(rows)

	got, err := store.CreatedSince(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "appt-1", got[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ScheduledBetweenFiltersStatuses(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	from := time.Date(2026, 3, 10, 12, 55, 0, 0, time.UTC)
	to := from.Add(10 * time.Minute)

	mock.ExpectQuery("a.status IN \\(\\?, \\?\\)").
		WithArgs(from, to, StatusPending, StatusConfirmed).
		WillReturnRows(sqlmock.NewRows(storeCols))

	got, err := store.ScheduledBetween(context.Background(), from, to)
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CountOnDay(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	day := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM appointments").
		WithArgs(
			time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
			StatusPending, StatusConfirmed,
		).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := store.CountOnDay(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
