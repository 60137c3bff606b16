// Package remind schedules the reminder sweep: a cron job that finds
// appointments about an hour away and feeds them to the dispatcher.
package remind

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"agendazap/internal/appointments"
	logx "agendazap/pkg/logx"
)

// Source is the slice of the appointment store the sweeper needs.
type Source interface {
	ScheduledBetween(ctx context.Context, from, to time.Time) ([]*appointments.Appointment, error)
	CountOnDay(ctx context.Context, t time.Time) (int, error)
}

type Config struct {
	SweepSpec      string        // cron spec, default "*/30 * * * *"
	WindowStart    time.Duration // default 55m
	WindowEnd      time.Duration // default 65m
	BatchDelay     time.Duration // minimum gap between emitted reminders, default 3s
	Location       *time.Location
	MorningSummary bool // log the day's appointment count at 08:00
	Logger         logx.Logger
}

func (c *Config) defaults() {
	if c.SweepSpec == "" {
		c.SweepSpec = "*/30 * * * *"
	}
	if c.WindowStart <= 0 {
		c.WindowStart = 55 * time.Minute
	}
	if c.WindowEnd <= 0 {
		c.WindowEnd = 65 * time.Minute
	}
	if c.BatchDelay <= 0 {
		c.BatchDelay = 3 * time.Second
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	if c.Logger.IsZero() {
		c.Logger = logx.Nop()
	}
}

// Sweeper emits ReminderDue events on a cron schedule. Emission is
// paced so a burst of reminders never hammers the messenger; a sweep
// that lands twice on the same appointment is harmless because the
// ledger already has the record.
type Sweeper struct {
	source  Source
	out     chan<- appointments.Event
	cfg     Config
	limiter *rate.Limiter
	log     logx.Logger
	now     func() time.Time
}

func NewSweeper(source Source, out chan<- appointments.Event, cfg Config) *Sweeper {
	cfg.defaults()
	return &Sweeper{
		source:  source,
		out:     out,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.BatchDelay), 1),
		log:     cfg.Logger.With(logx.String("component", "reminder")),
		now:     time.Now,
	}
}

// Run installs the cron jobs and blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	c := cron.New(cron.WithLocation(s.cfg.Location))
	if _, err := c.AddFunc(s.cfg.SweepSpec, func() { s.sweep(ctx) }); err != nil {
		return err
	}
	if s.cfg.MorningSummary {
		if _, err := c.AddFunc("0 8 * * *", func() { s.morningSummary(ctx) }); err != nil {
			return err
		}
	}
	s.log.Info("reminder: scheduled", logx.String("spec", s.cfg.SweepSpec))

	c.Start()
	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	return ctx.Err()
}

func (s *Sweeper) sweep(ctx context.Context) {
	now := s.now()
	from := now.Add(s.cfg.WindowStart)
	to := now.Add(s.cfg.WindowEnd)

	due, err := s.source.ScheduledBetween(ctx, from, to)
	if err != nil {
		s.log.Error("reminder: window scan", logx.Err(err))
		return
	}
	if len(due) == 0 {
		return
	}
	s.log.Info("reminder: sweep", logx.Int("due", len(due)))

	for _, a := range due {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
		select {
		case s.out <- appointments.Event{
			Type:          appointments.EventReminderDue,
			AppointmentID: a.ID,
			At:            now,
		}:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sweeper) morningSummary(ctx context.Context) {
	today := s.now().In(s.cfg.Location)
	n, err := s.source.CountOnDay(ctx, today)
	if err != nil {
		s.log.Error("reminder: day count", logx.Err(err))
		return
	}
	s.log.Info("reminder: appointments today", logx.Int("count", n))
}
