// Package wameow adapts whatsmeow to the messenger's Transport and
// CredentialStore contracts. Everything protocol-specific stays here.
package wameow

import (
	"context"
	"database/sql"
	"fmt"

	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	_ "modernc.org/sqlite"

	"agendazap/internal/messenger"
	logx "agendazap/pkg/logx"
)

// DeviceCredentials wraps one whatsmeow device record.
type DeviceCredentials struct {
	device *store.Device
}

func (c *DeviceCredentials) PairedID() string {
	if c == nil || c.device == nil || c.device.ID == nil {
		return ""
	}
	return c.device.ID.String()
}

// CredentialStore keeps device credentials in a local SQLite container,
// the same file whatsmeow maintains its session keys in.
type CredentialStore struct {
	container *sqlstore.Container
	log       logx.Logger
}

// OpenCredentialStore opens (creating if needed) the SQLite credential
// container at path.
func OpenCredentialStore(ctx context.Context, path string, log logx.Logger) (*CredentialStore, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)", path)
	// The pure-Go driver registers as "sqlite"; sqlstore only knows
	// the sqlite3 dialect, so open the pool ourselves.
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("wameow: open credential container: %w", err)
	}
	db.SetMaxOpenConns(1)
	container := sqlstore.NewWithDB(db, "sqlite3", newWALogger(log))
	if err := container.Upgrade(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("wameow: migrate credential container: %w", err)
	}
	return &CredentialStore{container: container, log: log}, nil
}

// Load returns the stored device, or a fresh unpaired one when the
// container is empty.
func (s *CredentialStore) Load(ctx context.Context) (messenger.Credentials, error) {
	device, err := s.container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("wameow: load device: %w", err)
	}
	return &DeviceCredentials{device: device}, nil
}

func (s *CredentialStore) Save(ctx context.Context, c messenger.Credentials) error {
	dc, ok := c.(*DeviceCredentials)
	if !ok || dc.device == nil {
		return nil
	}
	if err := dc.device.Save(ctx); err != nil {
		return fmt.Errorf("wameow: save device: %w", err)
	}
	return nil
}

// Wipe deletes every stored device. The next Load starts an unpaired
// session.
func (s *CredentialStore) Wipe(ctx context.Context) error {
	devices, err := s.container.GetAllDevices(ctx)
	if err != nil {
		return fmt.Errorf("wameow: list devices: %w", err)
	}
	for _, d := range devices {
		if err := s.container.DeleteDevice(ctx, d); err != nil {
			return fmt.Errorf("wameow: delete device: %w", err)
		}
	}
	s.log.Info("wameow: credentials wiped", logx.Int("devices", len(devices)))
	return nil
}

func (s *CredentialStore) Close() error {
	return s.container.Close()
}
