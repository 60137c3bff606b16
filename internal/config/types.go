package config

// Config is the root of the daemon configuration.
//
// The file on disk is YAML (or JSON); both are decoded strictly, so unknown
// keys are rejected rather than silently ignored. All duration fields are Go
// duration strings (e.g. "500ms", "10s", "30m").
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Database  DatabaseConfig  `json:"database"`
	Messenger MessengerConfig `json:"messenger"`
	Detector  DetectorConfig  `json:"detector"`
	Reminder  ReminderConfig  `json:"reminder"`
	Business  BusinessConfig  `json:"business"`
}

// BusinessConfig is the shop identity rendered into outgoing messages.
type BusinessConfig struct {
	Name       string   `json:"name"`
	Address    []string `json:"address,omitempty"`
	Contact    string   `json:"contact,omitempty"`
	BookingURL string   `json:"booking_url,omitempty"`
}

type LoggingConfig struct {
	Level   string     `json:"level"`
	Console bool       `json:"console"`
	File    FileConfig `json:"file"`
}

type FileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// DatabaseConfig points at the business database (appointments, customers,
// sent-notification records).
//
// DSN may be left empty in the file and supplied via the DATABASE_DSN
// environment variable instead, so credentials stay out of the config file.
type DatabaseConfig struct {
	DSN             string `json:"dsn,omitempty"`
	MaxOpenConns    int    `json:"max_open_conns,omitempty"`
	MaxIdleConns    int    `json:"max_idle_conns,omitempty"`
	ConnMaxLifetime string `json:"conn_max_lifetime,omitempty"`
}

// MessengerConfig controls the WhatsApp connection lifecycle.
//
// Defaults (when fields are omitted/zero):
//   - auth_db_path: "./agendazap-auth.db"
//   - device_name: "AgendaZap"
//   - country_prefix: "55"
//   - max_retries: 5
//   - backoff_base: "1s", backoff_max: "30s"
//   - send_timeout: "30s"
type MessengerConfig struct {
	AuthDBPath    string `json:"auth_db_path,omitempty"`
	DeviceName    string `json:"device_name,omitempty"`
	CountryPrefix string `json:"country_prefix,omitempty"`
	MaxRetries    int    `json:"max_retries,omitempty"`
	BackoffBase   string `json:"backoff_base,omitempty"`
	BackoffMax    string `json:"backoff_max,omitempty"`
	SendTimeout   string `json:"send_timeout,omitempty"`
}

// DetectorConfig selects how appointment mutations are observed.
//
// Mode is "push" (change-feed subscription) or "poll" (interval scan).
// The poll fields are ignored in push mode.
type DetectorConfig struct {
	Mode         string `json:"mode"`
	PollInterval string `json:"poll_interval,omitempty"` // default "10s"
	CancelWindow string `json:"cancel_window,omitempty"` // default "60s"
	SettleDelay  string `json:"settle_delay,omitempty"`  // default "2s"
}

// ReminderConfig controls the periodic reminder sweep.
//
// Sweep is a cron spec (default "*/30 * * * *"). The window bounds are
// offsets from "now": an appointment is due for a reminder when its
// scheduled time falls inside [now+window_start, now+window_end].
type ReminderConfig struct {
	Sweep          string `json:"sweep,omitempty"`
	WindowStart    string `json:"window_start,omitempty"` // default "55m"
	WindowEnd      string `json:"window_end,omitempty"`   // default "65m"
	BatchDelay     string `json:"batch_delay,omitempty"`  // default "3s"
	Timezone       string `json:"timezone,omitempty"`     // IANA TZ, e.g. "America/Sao_Paulo"
	MorningSummary bool   `json:"morning_summary,omitempty"`
}
