// Package app wires the daemon together: config, logging, storage,
// the messenger, detection and the reminder sweep.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"agendazap/internal/appointments"
	"agendazap/internal/config"
	"agendazap/internal/detect"
	"agendazap/internal/messenger"
	"agendazap/internal/notify"
	"agendazap/internal/remind"
	"agendazap/internal/runtime/supervisor"
	"agendazap/internal/storage"
	"agendazap/internal/transport/wameow"
	logx "agendazap/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	db    *sql.DB
	appts *appointments.Store
	feed  appointments.Feed

	creds     *wameow.CredentialStore
	transport *wameow.Transport
	manager   *messenger.Manager

	dispatcher *notify.Dispatcher
	sweeper    *remind.Sweeper
	poller     *detect.Poller
	pusher     *detect.Pusher

	detectMode  detect.Mode
	settleDelay time.Duration

	events chan appointments.Event
}

func New(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		feed:    appointments.NewFeed(),
		events:  make(chan appointments.Event, 256),
	}
	if err := a.build(ctx, cfg); err != nil {
		a.closeResources()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, cfg *config.Config) error {
	lifetime, err := config.ParseDurationOrDefault("database.conn_max_lifetime", cfg.Database.ConnMaxLifetime, 5*time.Minute)
	if err != nil {
		return err
	}
	db, err := storage.Open(ctx, storage.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: lifetime,
	}, a.log.With(logx.String("comp", "storage")))
	if err != nil {
		return err
	}
	a.db = db
	a.appts = appointments.NewStore(db)

	// Messenger
	mc, err := mapMessengerConfig(cfg)
	if err != nil {
		return err
	}
	authPath := strings.TrimSpace(cfg.Messenger.AuthDBPath)
	if authPath == "" {
		authPath = "./agendazap-auth.db"
	}
	creds, err := wameow.OpenCredentialStore(ctx, authPath, a.log.With(logx.String("comp", "wameow")))
	if err != nil {
		return err
	}
	a.creds = creds

	deviceName := strings.TrimSpace(cfg.Messenger.DeviceName)
	if deviceName == "" {
		deviceName = "AgendaZap"
	}
	a.transport = wameow.NewTransport(deviceName, a.log)
	mc.Logger = a.log
	a.manager = messenger.New(a.transport, creds, mc)

	// Dispatcher
	sendTimeout, err := config.ParseDurationOrDefault("messenger.send_timeout", cfg.Messenger.SendTimeout, 30*time.Second)
	if err != nil {
		return err
	}
	loc := time.Local
	if tz := strings.TrimSpace(cfg.Reminder.Timezone); tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("reminder.timezone: invalid %q: %w", tz, err)
		}
	}
	tpl := &notify.Templates{
		Business: notify.Business{
			Name:       cfg.Business.Name,
			Address:    cfg.Business.Address,
			Contact:    cfg.Business.Contact,
			BookingURL: cfg.Business.BookingURL,
		},
		Location: loc,
	}
	ledger := notify.NewStore(db)
	a.dispatcher = notify.NewDispatcher(a.appts, ledger, a.manager, tpl, notify.Options{
		CountryPrefix: cfg.Messenger.CountryPrefix,
		SendTimeout:   sendTimeout,
		Logger:        a.log,
	})

	// Detection
	a.detectMode = detect.Mode(strings.ToLower(strings.TrimSpace(cfg.Detector.Mode)))
	if a.detectMode == "" {
		a.detectMode = detect.ModePoll
	}
	if a.detectMode != detect.ModePoll && a.detectMode != detect.ModePush {
		return fmt.Errorf("detector.mode: unknown %q", cfg.Detector.Mode)
	}
	pollInterval, err := config.ParseDurationOrDefault("detector.poll_interval", cfg.Detector.PollInterval, 10*time.Second)
	if err != nil {
		return err
	}
	cancelWindow, err := config.ParseDurationOrDefault("detector.cancel_window", cfg.Detector.CancelWindow, time.Minute)
	if err != nil {
		return err
	}
	a.settleDelay, err = config.ParseDurationOrDefault("detector.settle_delay", cfg.Detector.SettleDelay, 2*time.Second)
	if err != nil {
		return err
	}
	a.poller = detect.NewPoller(a.appts, a.events, detect.PollerConfig{
		Interval: pollInterval,
		Window:   cancelWindow,
		Logger:   a.log,
	})
	a.pusher = detect.NewPusher(a.feed, a.events, a.log)

	// Reminders
	windowStart, err := config.ParseDurationOrDefault("reminder.window_start", cfg.Reminder.WindowStart, 55*time.Minute)
	if err != nil {
		return err
	}
	windowEnd, err := config.ParseDurationOrDefault("reminder.window_end", cfg.Reminder.WindowEnd, 65*time.Minute)
	if err != nil {
		return err
	}
	batchDelay, err := config.ParseDurationOrDefault("reminder.batch_delay", cfg.Reminder.BatchDelay, 3*time.Second)
	if err != nil {
		return err
	}
	a.sweeper = remind.NewSweeper(a.appts, a.events, remind.Config{
		SweepSpec:      cfg.Reminder.Sweep,
		WindowStart:    windowStart,
		WindowEnd:      windowEnd,
		BatchDelay:     batchDelay,
		Location:       loc,
		MorningSummary: cfg.Reminder.MorningSummary,
		Logger:         a.log,
	})
	return nil
}

// Feed exposes the change feed so a database relay (or a test) can
// push row changes into the push detector.
func (a *App) Feed() appointments.Feed { return a.feed }

// Messenger exposes the connection manager for operator surfaces.
func (a *App) Messenger() *messenger.Manager { return a.manager }

// Done is closed when the supervisor context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validate(cfg)
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})
	a.sup.Go("messenger", a.manager.Run)

	switch a.detectMode {
	case detect.ModePush:
		a.sup.GoRestart("detect.push", a.pusher.Run)
	default:
		a.sup.GoRestart("detect.poll", a.poller.Run)
	}
	a.sup.Go("reminder", a.sweeper.Run)

	a.sup.Go0("dispatch", a.dispatchLoop)
	a.sup.Go0("pairing.display", a.pairingLoop)
	a.sup.Go0("config.reload", a.reloadLoop)

	a.log.Info("started",
		logx.String("detector", string(a.detectMode)),
		logx.String("config", a.cfgPath))
	return nil
}

// dispatchLoop feeds detected events to the dispatcher. Created events
// wait a short settle delay first so the booking transaction's related
// rows are visible before the confirmation is built.
func (a *App) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-a.events:
			if ev.Type == appointments.EventCreated && a.settleDelay > 0 {
				select {
				case <-time.After(a.settleDelay):
				case <-ctx.Done():
					return
				}
			}
			res := a.dispatcher.Handle(ctx, ev)
			if !res.Delivered && res.Reason != notify.ReasonAlreadyNotified {
				a.log.Warn("notification not delivered",
					logx.String("appointment_id", ev.AppointmentID),
					logx.String("type", string(ev.Type)),
					logx.String("reason", string(res.Reason)))
			}
		}
	}
}

// pairingLoop surfaces QR challenges to the operator via the log.
func (a *App) pairingLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case qr := <-a.manager.QRCodes():
			a.log.Info("scan this QR code with WhatsApp to pair", logx.String("qr", qr))
		}
	}
}

// reloadLoop applies config hot reloads. Only logging takes effect
// live; everything else needs a restart and says so.
func (a *App) reloadLoop(ctx context.Context) {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			a.logs.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: cfg.Logging.File.Enabled,
					Path:    cfg.Logging.File.Path,
				},
			})
			if last != nil && (last.Database != cfg.Database ||
				last.Messenger != cfg.Messenger ||
				last.Detector != cfg.Detector) {
				a.log.Warn("database/messenger/detector config changed; restart required to take effect")
			}
			last = cfg
			a.log.Info("config reloaded")
		}
	}
}

func (a *App) Stop(ctx context.Context) error {
	var err error
	if a.sup != nil {
		err = a.sup.Stop(ctx)
	}
	a.closeResources()
	return err
}

func (a *App) closeResources() {
	if a.creds != nil {
		_ = a.creds.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
}

func mapMessengerConfig(cfg *config.Config) (messenger.Config, error) {
	base, err := config.ParseDurationOrDefault("messenger.backoff_base", cfg.Messenger.BackoffBase, time.Second)
	if err != nil {
		return messenger.Config{}, err
	}
	max, err := config.ParseDurationOrDefault("messenger.backoff_max", cfg.Messenger.BackoffMax, 30*time.Second)
	if err != nil {
		return messenger.Config{}, err
	}
	return messenger.Config{
		MaxRetries:  cfg.Messenger.MaxRetries,
		BackoffBase: base,
		BackoffMax:  max,
	}, nil
}

// validate rejects a bad config before it is committed, so a broken
// hot-reload never replaces a working one.
func validate(cfg *config.Config) error {
	if _, err := mapMessengerConfig(cfg); err != nil {
		return err
	}
	for _, f := range []struct{ path, raw string }{
		{"database.conn_max_lifetime", cfg.Database.ConnMaxLifetime},
		{"messenger.send_timeout", cfg.Messenger.SendTimeout},
		{"detector.poll_interval", cfg.Detector.PollInterval},
		{"detector.cancel_window", cfg.Detector.CancelWindow},
		{"detector.settle_delay", cfg.Detector.SettleDelay},
		{"reminder.window_start", cfg.Reminder.WindowStart},
		{"reminder.window_end", cfg.Reminder.WindowEnd},
		{"reminder.batch_delay", cfg.Reminder.BatchDelay},
	} {
		if f.raw == "" {
			continue
		}
		if _, err := config.ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	switch mode := strings.ToLower(strings.TrimSpace(cfg.Detector.Mode)); mode {
	case "", "push", "poll":
	default:
		return fmt.Errorf("detector.mode: unknown %q", cfg.Detector.Mode)
	}
	if tz := strings.TrimSpace(cfg.Reminder.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("reminder.timezone: invalid %q: %w", tz, err)
		}
	}
	if cfg.Messenger.MaxRetries < 0 {
		return fmt.Errorf("messenger.max_retries must be >= 0")
	}
	return nil
}
