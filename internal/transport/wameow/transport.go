package wameow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.mau.fi/whatsmeow"
	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"agendazap/internal/messenger"
	logx "agendazap/pkg/logx"
)

// Transport drives a whatsmeow client and translates its event stream
// into the bounded set the connection manager understands. Automatic
// reconnection is disabled; the manager owns that policy.
type Transport struct {
	deviceName string
	log        logx.Logger
	wlog       waLog.Logger

	events chan messenger.Event
	closed chan struct{}

	mu  sync.Mutex
	cli *whatsmeow.Client
}

func NewTransport(deviceName string, log logx.Logger) *Transport {
	if log.IsZero() {
		log = logx.Nop()
	}
	if deviceName != "" {
		// Shown in the phone's linked-devices list.
		store.DeviceProps.Os = proto.String(deviceName)
	}
	return &Transport{
		deviceName: deviceName,
		log:        log.With(logx.String("component", "wameow")),
		wlog:       newWALogger(log),
		events:     make(chan messenger.Event, 16),
		closed:     make(chan struct{}),
	}
}

func (t *Transport) Events() <-chan messenger.Event { return t.events }

// Dial builds a fresh client around the given device and starts
// connecting. The outcome arrives on Events.
func (t *Transport) Dial(ctx context.Context, creds messenger.Credentials) error {
	dc, ok := creds.(*DeviceCredentials)
	if !ok || dc.device == nil {
		return errors.New("wameow: credentials are not a device")
	}

	cli := whatsmeow.NewClient(dc.device, t.wlog)
	cli.EnableAutoReconnect = false
	cli.AddEventHandler(t.translate)

	t.mu.Lock()
	old := t.cli
	t.cli = cli
	t.mu.Unlock()
	if old != nil {
		old.Disconnect()
	}

	if cli.Store.ID == nil {
		// Unpaired: the QR stream must be requested before Connect.
		qrs, err := cli.GetQRChannel(ctx)
		if err != nil && !errors.Is(err, whatsmeow.ErrQRStoreContainsID) {
			return err
		}
		if err == nil {
			go t.pumpQR(qrs)
		}
	}
	return cli.Connect()
}

func (t *Transport) pumpQR(qrs <-chan whatsmeow.QRChannelItem) {
	for item := range qrs {
		if item.Event != "code" {
			continue
		}
		t.emit(messenger.Event{Type: messenger.EventPairingCode, QR: item.Code})
	}
}

func (t *Transport) translate(raw any) {
	switch evt := raw.(type) {
	case *events.Connected:
		t.emit(messenger.Event{Type: messenger.EventConnected, Identity: t.identity()})
	case *events.LoggedOut:
		t.emit(messenger.Event{Type: messenger.EventDisconnected, Code: 401, Message: "logged out"})
	case *events.StreamError:
		code, _ := strconv.Atoi(evt.Code)
		t.emit(messenger.Event{Type: messenger.EventDisconnected, Code: code, Message: "stream errored"})
	case *events.ConnectFailure:
		t.emit(messenger.Event{
			Type:    messenger.EventDisconnected,
			Code:    int(evt.Reason),
			Message: "connection failure: " + evt.Message,
		})
	case *events.ClientOutdated:
		t.emit(messenger.Event{Type: messenger.EventDisconnected, Code: 405, Message: "client outdated"})
	case *events.KeepAliveTimeout:
		t.emit(messenger.Event{Type: messenger.EventDisconnected, Message: "keepalive timed out"})
	case *events.TemporaryBan:
		t.emit(messenger.Event{
			Type:    messenger.EventDisconnected,
			Message: fmt.Sprintf("connection terminated: temporary ban (%d)", evt.Code),
		})
	case *events.Disconnected:
		t.emit(messenger.Event{Type: messenger.EventDisconnected, Message: "connection closed"})
	}
}

func (t *Transport) emit(ev messenger.Event) {
	select {
	case t.events <- ev:
	case <-t.closed:
	}
}

func (t *Transport) identity() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cli == nil || t.cli.Store.ID == nil {
		return ""
	}
	return t.cli.Store.ID.String()
}

func (t *Transport) client() *whatsmeow.Client {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cli
}

// SendText delivers one plain text message to a digit-only phone
// number.
func (t *Transport) SendText(ctx context.Context, phoneDigits, body string) error {
	cli := t.client()
	if cli == nil {
		return messenger.ErrNotConnected
	}
	jid := types.JID{User: phoneDigits, Server: types.DefaultUserServer}
	_, err := cli.SendMessage(ctx, jid, &waE2E.Message{Conversation: proto.String(body)})
	return err
}

func (t *Transport) Disconnect() {
	if cli := t.client(); cli != nil {
		cli.Disconnect()
	}
}

func (t *Transport) Logout(ctx context.Context) error {
	cli := t.client()
	if cli == nil {
		return nil
	}
	return cli.Logout(ctx)
}

func (t *Transport) Close() error {
	select {
	case <-t.closed:
		return nil
	default:
	}
	close(t.closed)
	t.Disconnect()
	return nil
}
