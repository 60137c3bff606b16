package messenger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	logx "agendazap/pkg/logx"
)

// State is the connection lifecycle phase.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAwaitingPairing
	StateBackoffWait
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingPairing:
		return "awaiting_pairing"
	case StateBackoffWait:
		return "backoff_wait"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Config tunes the reconnection policy.
type Config struct {
	MaxRetries          int           // default 5
	BackoffBase         time.Duration // default 1s
	BackoffMax          time.Duration // default 30s
	LoggedOutDelay      time.Duration // default 2s
	PairingRestartDelay time.Duration // default 1s
	CriticalDelay       time.Duration // default 5s
	Logger              logx.Logger
}

func (c *Config) defaults() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 30 * time.Second
	}
	if c.LoggedOutDelay <= 0 {
		c.LoggedOutDelay = 2 * time.Second
	}
	if c.PairingRestartDelay <= 0 {
		c.PairingRestartDelay = time.Second
	}
	if c.CriticalDelay <= 0 {
		c.CriticalDelay = 5 * time.Second
	}
	if c.Logger.IsZero() {
		c.Logger = logx.Nop()
	}
}

// Status is a point-in-time snapshot for operator display.
type Status struct {
	State       State
	Identity    string
	RetryCount  int
	LastFailure string
	LastQRAt    time.Time
}

// Manager owns one WhatsApp session. All lifecycle state lives in the
// Run loop; the public API posts commands to it.
type Manager struct {
	transport Transport
	store     CredentialStore
	cfg       Config
	log       logx.Logger

	commands chan func(ctx context.Context)
	done     chan struct{}
	qr       chan string

	inFlight  atomic.Bool
	connected atomic.Bool

	// loop-owned
	session        Credentials
	retryCount     int
	lastFailure    FailureClass
	reconnectTimer *time.Timer

	mu     sync.Mutex
	status Status
}

func New(t Transport, store CredentialStore, cfg Config) *Manager {
	cfg.defaults()
	return &Manager{
		transport: t,
		store:     store,
		cfg:       cfg,
		log:       cfg.Logger.With(logx.String("component", "messenger")),
		commands:  make(chan func(ctx context.Context), 16),
		done:      make(chan struct{}),
		qr:        make(chan string, 1),
	}
}

// Run drives the session until ctx is cancelled. Call it once, under
// the process supervisor.
func (m *Manager) Run(ctx context.Context) error {
	defer close(m.done)
	defer m.transport.Close()
	defer m.cancelReconnect()

	m.dial(ctx)

	events := m.transport.Events()
	for {
		select {
		case <-ctx.Done():
			m.connected.Store(false)
			m.setStatus(func(st *Status) { st.State = StateDisconnected })
			return ctx.Err()
		case fn := <-m.commands:
			fn(ctx)
		case ev, ok := <-events:
			if !ok {
				return errors.New("messenger: transport event stream closed")
			}
			m.handleEvent(ctx, ev)
		}
	}
}

// Connect asks the loop for a dial. Safe to call any number of times;
// it is a no-op while a dial is in flight or the session is up.
func (m *Manager) Connect() {
	m.post(func(ctx context.Context) { m.dial(ctx) })
}

// ForcePairing tears down the session, wipes credentials and starts a
// fresh pairing. The wipe happens exactly once per call.
func (m *Manager) ForcePairing() {
	m.post(func(ctx context.Context) {
		m.log.Warn("messenger: forced re-pairing requested")
		m.cancelReconnect()
		m.transport.Disconnect()
		m.inFlight.Store(false)
		m.connected.Store(false)
		m.wipe(ctx, true)
		m.retryCount = 0
		m.dial(ctx)
	})
}

// Send delivers a text message. It fails fast with ErrNotConnected
// while the session is down; it never blocks on reconnection.
func (m *Manager) Send(ctx context.Context, phoneDigits, body string) error {
	if !m.connected.Load() {
		return ErrNotConnected
	}
	return m.transport.SendText(ctx, phoneDigits, body)
}

// QRCodes exposes pairing challenges for operator display. Each QR is
// published once; an unread code is replaced by the next one.
func (m *Manager) QRCodes() <-chan string {
	return m.qr
}

// Status returns a snapshot of the session for operator display.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Manager) post(fn func(ctx context.Context)) {
	select {
	case m.commands <- fn:
	case <-m.done:
	}
}

func (m *Manager) setStatus(mut func(*Status)) {
	m.mu.Lock()
	mut(&m.status)
	m.mu.Unlock()
}

func (m *Manager) dial(ctx context.Context) {
	if m.connected.Load() {
		m.log.Debug("messenger: already connected, dial skipped")
		return
	}
	if !m.inFlight.CompareAndSwap(false, true) {
		m.log.Debug("messenger: dial already in flight")
		return
	}
	if m.session == nil {
		creds, err := m.store.Load(ctx)
		if err != nil {
			m.inFlight.Store(false)
			m.log.Error("messenger: load credentials", logx.Err(err))
			m.onFailure(ctx, ClassTransient, 0, "credential load failed")
			return
		}
		m.session = creds
	}
	m.setStatus(func(st *Status) { st.State = StateConnecting })
	m.log.Info("messenger: connecting",
		logx.Int("retry", m.retryCount),
		logx.String("paired_id", m.session.PairedID()))

	if err := m.transport.Dial(ctx, m.session); err != nil {
		m.inFlight.Store(false)
		m.log.Error("messenger: dial", logx.Err(err))
		m.onFailure(ctx, ClassTransient, 0, err.Error())
	}
}

func (m *Manager) handleEvent(ctx context.Context, ev Event) {
	switch ev.Type {
	case EventConnected:
		m.inFlight.Store(false)
		m.connected.Store(true)
		m.retryCount = 0
		m.cancelReconnect()
		m.setStatus(func(st *Status) {
			st.State = StateConnected
			st.Identity = ev.Identity
			st.RetryCount = 0
		})
		if err := m.store.Save(ctx, m.session); err != nil {
			m.log.Error("messenger: save credentials", logx.Err(err))
		}
		m.log.Info("messenger: connected", logx.String("identity", ev.Identity))

	case EventPairingCode:
		m.setStatus(func(st *Status) {
			st.State = StateAwaitingPairing
			st.LastQRAt = time.Now()
		})
		// Replace an unread code rather than block.
		select {
		case m.qr <- ev.QR:
		default:
			select {
			case <-m.qr:
			default:
			}
			select {
			case m.qr <- ev.QR:
			default:
			}
		}
		m.log.Info("messenger: pairing code issued")

	case EventDisconnected:
		m.inFlight.Store(false)
		was := m.connected.Swap(false)
		class := Classify(ev.Code, ev.Message)
		m.log.Warn("messenger: disconnected",
			logx.Int("code", ev.Code),
			logx.String("reason", ev.Message),
			logx.String("class", class.String()),
			logx.Bool("was_connected", was))
		m.onFailure(ctx, class, ev.Code, ev.Message)
	}
}

// onFailure applies the reconnection policy for one classified
// failure and schedules the next dial.
func (m *Manager) onFailure(ctx context.Context, class FailureClass, code int, msg string) {
	m.connected.Store(false)
	m.lastFailure = class

	var delay time.Duration
	switch {
	case class == ClassLoggedOut:
		// Server unlinked the device. Stored credentials are dead.
		m.wipe(ctx, false)
		m.retryCount = 0
		delay = m.cfg.LoggedOutDelay
	case class == ClassPairingRestart:
		m.retryCount = 0
		delay = m.cfg.PairingRestartDelay
	case m.retryCount >= m.cfg.MaxRetries:
		// Retries exhausted. Transient and critical alike take the
		// re-pair path now; looping further has never recovered.
		m.log.Warn("messenger: retries exhausted, wiping credentials",
			logx.Int("retries", m.retryCount))
		m.wipe(ctx, false)
		m.retryCount = 0
		delay = m.cfg.CriticalDelay
	default:
		m.retryCount++
		delay = m.backoff(m.retryCount)
	}

	m.setStatus(func(st *Status) {
		st.State = StateBackoffWait
		st.RetryCount = m.retryCount
		st.LastFailure = class.String()
	})
	m.log.Info("messenger: reconnect scheduled",
		logx.Duration("delay", delay),
		logx.Int("retry", m.retryCount))
	m.scheduleReconnect(delay)
}

func (m *Manager) backoff(retry int) time.Duration {
	d := m.cfg.BackoffBase
	for i := 0; i < retry; i++ {
		d *= 2
		if d >= m.cfg.BackoffMax {
			return m.cfg.BackoffMax
		}
	}
	return d
}

// wipe destroys the stored credentials and drops the in-memory
// session. The next dial loads a fresh unpaired identity.
func (m *Manager) wipe(ctx context.Context, logout bool) {
	if logout {
		if err := m.transport.Logout(ctx); err != nil {
			m.log.Debug("messenger: logout", logx.Err(err))
		}
	}
	if err := m.store.Wipe(ctx); err != nil {
		m.log.Error("messenger: wipe credentials", logx.Err(err))
	}
	m.session = nil
	m.setStatus(func(st *Status) { st.Identity = "" })
}

func (m *Manager) scheduleReconnect(delay time.Duration) {
	m.cancelReconnect()
	m.reconnectTimer = time.AfterFunc(delay, func() {
		m.post(func(ctx context.Context) { m.dial(ctx) })
	})
}

func (m *Manager) cancelReconnect() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
}
