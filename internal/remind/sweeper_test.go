package remind

import (
	"context"
	"testing"
	"time"

	"agendazap/internal/appointments"
)

type fakeSource struct {
	due   []*appointments.Appointment
	count int

	froms []time.Time
	tos   []time.Time
}

func (s *fakeSource) ScheduledBetween(ctx context.Context, from, to time.Time) ([]*appointments.Appointment, error) {
	s.froms = append(s.froms, from)
	s.tos = append(s.tos, to)
	return s.due, nil
}

func (s *fakeSource) CountOnDay(ctx context.Context, t time.Time) (int, error) {
	return s.count, nil
}

func newTestSweeper(src *fakeSource, out chan appointments.Event) (*Sweeper, *time.Time) {
	s := NewSweeper(src, out, Config{BatchDelay: time.Millisecond})
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestSweepWindowBounds(t *testing.T) {
	t.Parallel()

	out := make(chan appointments.Event, 8)
	src := &fakeSource{}
	s, now := newTestSweeper(src, out)

	s.sweep(context.Background())

	if got, want := src.froms[0], now.Add(55*time.Minute); !got.Equal(want) {
		t.Fatalf("from = %v, want %v", got, want)
	}
	if got, want := src.tos[0], now.Add(65*time.Minute); !got.Equal(want) {
		t.Fatalf("to = %v, want %v", got, want)
	}
}

// An appointment exactly one hour out must fall inside the window no
// matter where in the half-hour cycle the sweep fires.
func TestHourAwayAppointmentAlwaysInsideWindow(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	for offset := 0; offset < 30; offset++ {
		sweepAt := base.Add(time.Duration(offset) * time.Minute)
		scheduled := sweepAt.Add(time.Hour)

		from := sweepAt.Add(55 * time.Minute)
		to := sweepAt.Add(65 * time.Minute)
		if scheduled.Before(from) || scheduled.After(to) {
			t.Fatalf("offset %dmin: %v outside [%v, %v]", offset, scheduled, from, to)
		}
	}
}

func TestSweepEmitsReminderDue(t *testing.T) {
	t.Parallel()

	out := make(chan appointments.Event, 8)
	src := &fakeSource{due: []*appointments.Appointment{
		{ID: "a1"}, {ID: "a2"},
	}}
	s, _ := newTestSweeper(src, out)

	s.sweep(context.Background())

	for _, want := range []string{"a1", "a2"} {
		select {
		case ev := <-out:
			if ev.Type != appointments.EventReminderDue || ev.AppointmentID != want {
				t.Fatalf("got %+v, want ReminderDue/%s", ev, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("missing event for %s", want)
		}
	}
}

func TestSweepStopsWhenContextCancelled(t *testing.T) {
	t.Parallel()

	out := make(chan appointments.Event) // unbuffered, nobody reading
	src := &fakeSource{due: []*appointments.Appointment{
		{ID: "a1"}, {ID: "a2"},
	}}
	s, _ := newTestSweeper(src, out)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.sweep(ctx)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweep did not stop on cancelled context")
	}
}
