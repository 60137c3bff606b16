// Package messenger owns the WhatsApp connection lifecycle: pairing,
// disconnect classification, reconnection policy and outbound sends.
//
// The protocol itself lives behind the Transport interface; this
// package never imports the transport implementation.
package messenger

import (
	"context"
	"errors"
)

var (
	// ErrNotConnected is returned by Send while the session is down.
	ErrNotConnected = errors.New("messenger not connected")

	// ErrCredentialsInvalid reports that the stored credentials were
	// rejected and a re-pair is required.
	ErrCredentialsInvalid = errors.New("messenger credentials invalid")
)

// Credentials is an opaque handle to a device identity. The manager
// replaces the whole value on every wipe, it never mutates one.
type Credentials interface {
	// PairedID returns a stable identifier once paired, "" before.
	PairedID() string
}

// CredentialStore loads and destroys device credentials. Load returns
// fresh unpaired credentials when nothing is stored.
type CredentialStore interface {
	Load(ctx context.Context) (Credentials, error)
	Save(ctx context.Context, c Credentials) error
	Wipe(ctx context.Context) error
}

// EventType enumerates what a transport can report back.
type EventType int

const (
	// EventConnected carries the paired identity.
	EventConnected EventType = iota
	// EventDisconnected carries the close code and description; the
	// manager classifies it.
	EventDisconnected
	// EventPairingCode carries a fresh QR payload to show the operator.
	EventPairingCode
)

// Event is one transport lifecycle signal.
type Event struct {
	Type     EventType
	Identity string
	Code     int
	Message  string
	QR       string
}

// Transport is the protocol capability the manager drives. Dial is
// asynchronous: the outcome arrives on Events.
type Transport interface {
	Dial(ctx context.Context, creds Credentials) error
	Disconnect()
	Events() <-chan Event
	SendText(ctx context.Context, phoneDigits, body string) error
	Logout(ctx context.Context) error
	Close() error
}
