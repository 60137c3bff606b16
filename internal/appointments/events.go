package appointments

import "time"

// EventType enumerates the notification-worthy changes a detector can
// observe.
type EventType string

const (
	EventCreated     EventType = "created"
	EventCancelled   EventType = "cancelled"
	EventReminderDue EventType = "reminder_due"
)

// Event is a typed change signal. Detection is at-least-once; the same
// appointment may be reported more than once and consumers must dedup.
type Event struct {
	Type          EventType
	AppointmentID string
	At            time.Time
}
