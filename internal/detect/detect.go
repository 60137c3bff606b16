// Package detect discovers notification-worthy appointment changes,
// either by polling the booking database or by consuming its change
// feed, and emits typed events for the dispatcher.
//
// Detection is at-least-once. The notification ledger's unique key is
// what keeps duplicates harmless.
package detect

import (
	"context"
	"time"

	"agendazap/internal/appointments"
)

// Mode selects the detection strategy.
type Mode string

const (
	ModePush Mode = "push"
	ModePoll Mode = "poll"
)

// Source is the slice of the appointment store the detectors need.
type Source interface {
	CreatedSince(ctx context.Context, since time.Time) ([]*appointments.Appointment, error)
	CancelledSince(ctx context.Context, since time.Time) ([]*appointments.Appointment, error)
}

// emit delivers ev unless ctx ends first.
func emit(ctx context.Context, out chan<- appointments.Event, ev appointments.Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
