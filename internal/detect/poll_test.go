package detect

import (
	"context"
	"errors"
	"testing"
	"time"

	"agendazap/internal/appointments"
	logx "agendazap/pkg/logx"
)

type fakeSource struct {
	created      []*appointments.Appointment
	createdErr   error
	cancelled    []*appointments.Appointment
	cancelledErr error

	createdSince   []time.Time
	cancelledSince []time.Time
}

func (s *fakeSource) CreatedSince(ctx context.Context, since time.Time) ([]*appointments.Appointment, error) {
	s.createdSince = append(s.createdSince, since)
	return s.created, s.createdErr
}

func (s *fakeSource) CancelledSince(ctx context.Context, since time.Time) ([]*appointments.Appointment, error) {
	s.cancelledSince = append(s.cancelledSince, since)
	return s.cancelled, s.cancelledErr
}

func appt(id string) *appointments.Appointment {
	return &appointments.Appointment{ID: id}
}

func newTestPoller(src *fakeSource, out chan appointments.Event) (*Poller, *time.Time) {
	p := NewPoller(src, out, PollerConfig{Interval: time.Hour, Window: time.Minute})
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	p.cursor = now.Add(-10 * time.Second)
	return p, &now
}

func TestPollerEmitsCreatedAndCancelled(t *testing.T) {
	t.Parallel()

	out := make(chan appointments.Event, 8)
	src := &fakeSource{
		created:   []*appointments.Appointment{appt("a1"), appt("a2")},
		cancelled: []*appointments.Appointment{appt("a3")},
	}
	p, _ := newTestPoller(src, out)

	p.cycle(context.Background())

	want := []struct {
		typ appointments.EventType
		id  string
	}{
		{appointments.EventCreated, "a1"},
		{appointments.EventCreated, "a2"},
		{appointments.EventCancelled, "a3"},
	}
	for _, w := range want {
		ev := <-out
		if ev.Type != w.typ || ev.AppointmentID != w.id {
			t.Fatalf("got %v/%s, want %v/%s", ev.Type, ev.AppointmentID, w.typ, w.id)
		}
	}
}

func TestPollerCursorAdvancesOnError(t *testing.T) {
	t.Parallel()

	out := make(chan appointments.Event, 8)
	src := &fakeSource{
		createdErr:   errors.New("db down"),
		cancelledErr: errors.New("db down"),
	}
	p, now := newTestPoller(src, out)
	first := *now

	p.cycle(context.Background())
	if !p.cursor.Equal(first) {
		t.Fatalf("cursor = %v, want %v (advanced despite error)", p.cursor, first)
	}

	// Next cycle scans from the failed cycle's "now", not from the
	// original watermark.
	*now = first.Add(10 * time.Second)
	p.cycle(context.Background())
	if got := src.createdSince[1]; !got.Equal(first) {
		t.Fatalf("second scan since = %v, want %v", got, first)
	}
	select {
	case ev := <-out:
		t.Fatalf("unexpected event %v", ev)
	default:
	}
}

func TestPollerCancelWindowTrails(t *testing.T) {
	t.Parallel()

	out := make(chan appointments.Event, 8)
	src := &fakeSource{}
	p, now := newTestPoller(src, out)

	p.cycle(context.Background())
	if got, want := src.cancelledSince[0], now.Add(-time.Minute); !got.Equal(want) {
		t.Fatalf("cancel scan since = %v, want %v", got, want)
	}
}

func TestPusherClassifiesChanges(t *testing.T) {
	t.Parallel()

	out := make(chan appointments.Event, 8)
	p := NewPusher(appointments.NewFeed(), out, logx.Nop())

	cases := []struct {
		name   string
		change appointments.Change
		want   appointments.EventType
		emit   bool
	}{
		{
			name:   "insert",
			change: appointments.Change{Op: appointments.OpInsert, AppointmentID: "a1"},
			want:   appointments.EventCreated,
			emit:   true,
		},
		{
			name: "cancel flip",
			change: appointments.Change{
				Op:            appointments.OpUpdate,
				AppointmentID: "a2",
				OldStatus:     appointments.StatusPending,
				NewStatus:     appointments.StatusCancelled,
			},
			want: appointments.EventCancelled,
			emit: true,
		},
		{
			name: "already cancelled",
			change: appointments.Change{
				Op:            appointments.OpUpdate,
				AppointmentID: "a3",
				OldStatus:     appointments.StatusCancelled,
				NewStatus:     appointments.StatusCancelled,
			},
			emit: false,
		},
		{
			name: "unrelated update",
			change: appointments.Change{
				Op:            appointments.OpUpdate,
				AppointmentID: "a4",
				OldStatus:     appointments.StatusPending,
				NewStatus:     appointments.StatusConfirmed,
			},
			emit: false,
		},
	}
	for _, tc := range cases {
		ev, ok := p.classify(tc.change)
		if ok != tc.emit {
			t.Fatalf("%s: emit = %v, want %v", tc.name, ok, tc.emit)
		}
		if ok && ev.Type != tc.want {
			t.Fatalf("%s: type = %v, want %v", tc.name, ev.Type, tc.want)
		}
	}
}

func TestPusherEndToEnd(t *testing.T) {
	t.Parallel()

	feed := appointments.NewFeed()
	out := make(chan appointments.Event, 8)
	p := NewPusher(feed, out, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Run(ctx)
	}()

	// Give the subscription a moment to attach.
	time.Sleep(10 * time.Millisecond)
	feed.Publish(appointments.Change{Op: appointments.OpInsert, AppointmentID: "a1"})

	select {
	case ev := <-out:
		if ev.Type != appointments.EventCreated || ev.AppointmentID != "a1" {
			t.Fatalf("got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event emitted")
	}
	cancel()
	<-done
}
