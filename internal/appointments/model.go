// Package appointments exposes read-only access to the booking
// database and the typed change events the rest of the daemon consumes.
//
// The appointment tables are owned by the upstream booking system; this
// package never writes to them.
package appointments

import "time"

// Status values stored by the booking system.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// Appointment is a booking row joined with its customer, service and
// provider.
type Appointment struct {
	ID          string
	ScheduledAt time.Time
	Status      string
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Customer Customer
	Service  Service
	Provider Provider
}

type Customer struct {
	Name  string
	Phone string // raw, as typed by the booking UI
}

type Service struct {
	Name  string
	Price float64
}

type Provider struct {
	Name string
}
