package appointments

import (
	"testing"
	"time"
)

func TestFeedFanout(t *testing.T) {
	t.Parallel()

	f := NewFeed()
	a, unsubA := f.Subscribe(4)
	b, unsubB := f.Subscribe(4)
	defer unsubA()
	defer unsubB()

	f.Publish(Change{Op: OpInsert, AppointmentID: "a1"})

	for _, ch := range []<-chan Change{a, b} {
		select {
		case c := <-ch:
			if c.AppointmentID != "a1" || c.At.IsZero() {
				t.Fatalf("got %+v", c)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive change")
		}
	}
}

func TestFeedDropsWhenSubscriberFull(t *testing.T) {
	t.Parallel()

	f := NewFeed()
	ch, unsub := f.Subscribe(1)
	defer unsub()

	f.Publish(Change{Op: OpInsert, AppointmentID: "a1"})
	f.Publish(Change{Op: OpInsert, AppointmentID: "a2"}) // dropped, buffer full

	c := <-ch
	if c.AppointmentID != "a1" {
		t.Fatalf("got %q, want a1", c.AppointmentID)
	}
	select {
	case c := <-ch:
		t.Fatalf("unexpected second change %+v", c)
	default:
	}
}

func TestFeedPublishAfterUnsubscribe(t *testing.T) {
	t.Parallel()

	f := NewFeed()
	_, unsub := f.Subscribe(1)
	unsub()
	unsub() // idempotent

	// Must not panic.
	f.Publish(Change{Op: OpInsert, AppointmentID: "a1"})
}
