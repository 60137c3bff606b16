// Package notify owns the notification ledger and the dispatcher that
// turns appointment events into WhatsApp messages exactly once.
package notify

import "time"

// Kind is the notification category. Together with the appointment id
// it forms the ledger's uniqueness key.
type Kind string

const (
	KindConfirmation Kind = "confirmation"
	KindReminder     Kind = "reminder"
	KindCancellation Kind = "cancellation"
)

// Record statuses.
const (
	StatusPending = "pending" // claimed, send outcome unknown
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Record is one row of the notification ledger. Rows are never
// deleted; the (AppointmentID, Kind) unique key is what makes delivery
// at-most-once across detection paths.
type Record struct {
	ID            string
	AppointmentID string
	Kind          Kind
	Phone         string
	Body          string
	Status        string
	CreatedAt     time.Time
}
