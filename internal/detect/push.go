package detect

import (
	"context"

	"agendazap/internal/appointments"
	logx "agendazap/pkg/logx"
)

// Pusher consumes the appointments change feed and emits events for
// inserts and status flips into cancelled. Row updates that don't
// change cancellation state are ignored.
type Pusher struct {
	feed appointments.Feed
	out  chan<- appointments.Event
	log  logx.Logger
}

func NewPusher(feed appointments.Feed, out chan<- appointments.Event, log logx.Logger) *Pusher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Pusher{
		feed: feed,
		out:  out,
		log:  log.With(logx.String("component", "pusher")),
	}
}

// Run subscribes until ctx is cancelled. Meant to run under the
// supervisor's restart policy; resubscription is just running again.
func (p *Pusher) Run(ctx context.Context) error {
	changes, unsubscribe := p.feed.Subscribe(64)
	defer unsubscribe()
	p.log.Info("pusher: subscribed")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c, ok := <-changes:
			if !ok {
				return nil
			}
			if ev, ok := p.classify(c); ok {
				if !emit(ctx, p.out, ev) {
					return ctx.Err()
				}
			}
		}
	}
}

func (p *Pusher) classify(c appointments.Change) (appointments.Event, bool) {
	switch c.Op {
	case appointments.OpInsert:
		p.log.Info("pusher: new appointment", logx.String("id", c.AppointmentID))
		return appointments.Event{
			Type:          appointments.EventCreated,
			AppointmentID: c.AppointmentID,
			At:            c.At,
		}, true
	case appointments.OpUpdate:
		if c.OldStatus != appointments.StatusCancelled && c.NewStatus == appointments.StatusCancelled {
			p.log.Info("pusher: appointment cancelled", logx.String("id", c.AppointmentID))
			return appointments.Event{
				Type:          appointments.EventCancelled,
				AppointmentID: c.AppointmentID,
				At:            c.At,
			}, true
		}
	}
	return appointments.Event{}, false
}
