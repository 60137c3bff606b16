package detect

import (
	"context"
	"time"

	"agendazap/internal/appointments"
	logx "agendazap/pkg/logx"
)

// Poller scans the booking database on a fixed interval.
//
// The created scan runs off a monotonic watermark that advances to
// "now" every cycle whether or not the query succeeded, so a database
// hiccup can never make the next cycle re-deliver hours of history.
// The cancelled scan uses a trailing window instead and may re-report
// the same cancellation across cycles; the ledger absorbs that.
type Poller struct {
	source   Source
	out      chan<- appointments.Event
	interval time.Duration
	window   time.Duration // trailing window for cancellations
	log      logx.Logger

	cursor time.Time
	now    func() time.Time
}

type PollerConfig struct {
	Interval time.Duration // default 10s
	Window   time.Duration // default 60s
	Logger   logx.Logger
}

func NewPoller(source Source, out chan<- appointments.Event, cfg PollerConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Logger.IsZero() {
		cfg.Logger = logx.Nop()
	}
	return &Poller{
		source:   source,
		out:      out,
		interval: cfg.Interval,
		window:   cfg.Window,
		log:      cfg.Logger.With(logx.String("component", "poller")),
		now:      time.Now,
	}
}

// Run polls until ctx is cancelled. Meant to run under the supervisor.
func (p *Poller) Run(ctx context.Context) error {
	p.cursor = p.now()
	p.log.Info("poller: started", logx.Duration("interval", p.interval))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

func (p *Poller) cycle(ctx context.Context) {
	since := p.cursor
	now := p.now()
	// Advance before looking at results. A failed query skips one
	// cycle's worth of rows instead of replaying history forever.
	p.cursor = now

	created, err := p.source.CreatedSince(ctx, since)
	if err != nil {
		p.log.Error("poller: created scan", logx.Err(err))
	} else {
		for _, a := range created {
			p.log.Info("poller: new appointment", logx.String("id", a.ID))
			if !emit(ctx, p.out, appointments.Event{
				Type:          appointments.EventCreated,
				AppointmentID: a.ID,
				At:            now,
			}) {
				return
			}
		}
	}

	cancelled, err := p.source.CancelledSince(ctx, now.Add(-p.window))
	if err != nil {
		p.log.Error("poller: cancelled scan", logx.Err(err))
		return
	}
	for _, a := range cancelled {
		if !emit(ctx, p.out, appointments.Event{
			Type:          appointments.EventCancelled,
			AppointmentID: a.ID,
			At:            now,
		}) {
			return
		}
	}
}
