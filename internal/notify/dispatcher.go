package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"agendazap/internal/appointments"
	"agendazap/internal/messenger"
	"agendazap/internal/phone"
	logx "agendazap/pkg/logx"
)

// Reason classifies the outcome of handling one event. Every outcome,
// success or not, maps to exactly one reason.
type Reason string

const (
	ReasonDelivered         Reason = "delivered"
	ReasonAlreadyNotified   Reason = "already_notified"  // a record exists, nothing to do
	ReasonUniquenessRace    Reason = "uniqueness_race"   // lost the insert race after sending
	ReasonNotConnected      Reason = "not_connected"     // messenger offline
	ReasonSubjectNotFound   Reason = "subject_not_found" // appointment vanished
	ReasonNoRecipient       Reason = "no_recipient"      // customer has no phone
	ReasonDeliveryFailed    Reason = "delivery_failed"
	ReasonCredentialsBroken Reason = "credentials_invalid"
)

// Result is the dispatcher's verdict for one event. Handle never
// returns a Go error; failures are classified instead.
type Result struct {
	Delivered bool
	Reason    Reason
}

// AppointmentSource resolves an event's subject.
type AppointmentSource interface {
	ByID(ctx context.Context, id string) (*appointments.Appointment, error)
}

// Ledger is the notification record store the dispatcher deduplicates
// through.
type Ledger interface {
	Insert(ctx context.Context, r *Record) error
	UpdateStatus(ctx context.Context, appointmentID string, kind Kind, status string) error
	Find(ctx context.Context, appointmentID string, kind Kind) (*Record, error)
}

// Sender delivers one text message to a normalized phone number.
type Sender interface {
	Send(ctx context.Context, phoneDigits, body string) error
}

// Dispatcher turns appointment events into at-most-once WhatsApp
// messages, using the ledger's unique key as the only concurrency
// primitive between detection paths.
type Dispatcher struct {
	source        AppointmentSource
	ledger        Ledger
	sender        Sender
	templates     *Templates
	countryPrefix string
	sendTimeout   time.Duration
	log           logx.Logger
}

type Options struct {
	CountryPrefix string
	SendTimeout   time.Duration
	Logger        logx.Logger
}

func NewDispatcher(source AppointmentSource, ledger Ledger, sender Sender, tpl *Templates, opts Options) *Dispatcher {
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 30 * time.Second
	}
	if opts.Logger.IsZero() {
		opts.Logger = logx.Nop()
	}
	return &Dispatcher{
		source:        source,
		ledger:        ledger,
		sender:        sender,
		templates:     tpl,
		countryPrefix: opts.CountryPrefix,
		sendTimeout:   opts.SendTimeout,
		log:           opts.Logger.With(logx.String("component", "dispatcher")),
	}
}

func kindFor(t appointments.EventType) (Kind, bool) {
	switch t {
	case appointments.EventCreated:
		return KindConfirmation, true
	case appointments.EventReminderDue:
		return KindReminder, true
	case appointments.EventCancelled:
		return KindCancellation, true
	default:
		return "", false
	}
}

// Handle processes one event end to end. It is safe to call with the
// same event any number of times; at most one message is ever sent per
// (appointment, kind).
func (d *Dispatcher) Handle(ctx context.Context, ev appointments.Event) Result {
	kind, ok := kindFor(ev.Type)
	if !ok {
		d.log.Warn("dispatcher: unknown event type", logx.String("type", string(ev.Type)))
		return Result{Reason: ReasonSubjectNotFound}
	}
	log := d.log.With(
		logx.String("appointment_id", ev.AppointmentID),
		logx.String("kind", string(kind)),
	)

	a, err := d.source.ByID(ctx, ev.AppointmentID)
	if err != nil {
		if errors.Is(err, appointments.ErrNotFound) {
			log.Warn("dispatcher: appointment not found")
			return Result{Reason: ReasonSubjectNotFound}
		}
		log.Error("dispatcher: load appointment", logx.Err(err))
		return Result{Reason: ReasonSubjectNotFound}
	}

	if strings.TrimSpace(a.Customer.Phone) == "" {
		// No record is written: if the booking gains a phone number
		// later, a re-emitted event may still deliver.
		log.Warn("dispatcher: customer has no phone", logx.String("customer", a.Customer.Name))
		return Result{Reason: ReasonNoRecipient}
	}
	digits := phone.Normalize(a.Customer.Phone, d.countryPrefix)

	if kind == KindCancellation {
		return d.handleClaimed(ctx, log, a, kind, digits)
	}
	return d.handleObserved(ctx, log, a, kind, digits)
}

// handleObserved is the check-send-record flow used for confirmations
// and reminders: a lost insert race after a successful send is benign
// (the racer delivered the same content).
func (d *Dispatcher) handleObserved(ctx context.Context, log logx.Logger, a *appointments.Appointment, kind Kind, digits string) Result {
	existing, err := d.ledger.Find(ctx, a.ID, kind)
	if err != nil {
		log.Error("dispatcher: ledger lookup", logx.Err(err))
		return Result{Reason: ReasonDeliveryFailed}
	}
	if existing != nil {
		log.Debug("dispatcher: already notified")
		return Result{Delivered: false, Reason: ReasonAlreadyNotified}
	}

	body := d.templates.Render(kind, a)
	if res, ok := d.send(ctx, log, digits, body); !ok {
		return res
	}

	err = d.ledger.Insert(ctx, &Record{
		AppointmentID: a.ID,
		Kind:          kind,
		Phone:         digits,
		Body:          body,
		Status:        StatusSent,
	})
	if errors.Is(err, ErrDuplicate) {
		log.Warn("dispatcher: lost record race after send")
		return Result{Delivered: true, Reason: ReasonUniquenessRace}
	}
	if err != nil {
		// The message went out; the missing row is a bookkeeping gap,
		// not a delivery failure.
		log.Error("dispatcher: record after send", logx.Err(err))
	}
	log.Info("dispatcher: delivered")
	return Result{Delivered: true, Reason: ReasonDelivered}
}

// handleClaimed is the claim-first flow used for cancellations: the
// ledger row is inserted as pending before sending, so concurrent
// paths cannot both send.
func (d *Dispatcher) handleClaimed(ctx context.Context, log logx.Logger, a *appointments.Appointment, kind Kind, digits string) Result {
	existing, err := d.ledger.Find(ctx, a.ID, kind)
	if err != nil {
		log.Error("dispatcher: ledger lookup", logx.Err(err))
		return Result{Reason: ReasonDeliveryFailed}
	}
	if existing != nil {
		log.Debug("dispatcher: already notified")
		return Result{Delivered: false, Reason: ReasonAlreadyNotified}
	}

	body := d.templates.Render(kind, a)
	err = d.ledger.Insert(ctx, &Record{
		AppointmentID: a.ID,
		Kind:          kind,
		Phone:         digits,
		Body:          body,
		Status:        StatusPending,
	})
	if errors.Is(err, ErrDuplicate) {
		log.Debug("dispatcher: another path owns this cancellation")
		return Result{Delivered: false, Reason: ReasonAlreadyNotified}
	}
	if err != nil {
		log.Error("dispatcher: claim insert", logx.Err(err))
		return Result{Reason: ReasonDeliveryFailed}
	}

	if res, ok := d.send(ctx, log, digits, body); !ok {
		if err := d.ledger.UpdateStatus(ctx, a.ID, kind, StatusFailed); err != nil {
			log.Error("dispatcher: mark failed", logx.Err(err))
		}
		return res
	}
	if err := d.ledger.UpdateStatus(ctx, a.ID, kind, StatusSent); err != nil {
		log.Error("dispatcher: mark sent", logx.Err(err))
	}
	log.Info("dispatcher: delivered")
	return Result{Delivered: true, Reason: ReasonDelivered}
}

func (d *Dispatcher) send(ctx context.Context, log logx.Logger, digits, body string) (Result, bool) {
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	err := d.sender.Send(sendCtx, digits, body)
	if err == nil {
		return Result{}, true
	}
	switch {
	case errors.Is(err, messenger.ErrNotConnected):
		log.Warn("dispatcher: messenger offline")
		return Result{Reason: ReasonNotConnected}, false
	case errors.Is(err, messenger.ErrCredentialsInvalid):
		log.Error("dispatcher: credentials invalid", logx.Err(err))
		return Result{Reason: ReasonCredentialsBroken}, false
	default:
		log.Error("dispatcher: send failed", logx.Err(fmt.Errorf("to %s: %w", digits, err)))
		return Result{Reason: ReasonDeliveryFailed}, false
	}
}
