package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestParseYAML(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "config.yaml", `
logging:
  level: debug
  console: true
database:
  max_open_conns: 10
messenger:
  country_prefix: "55"
  max_retries: 5
  backoff_base: 1s
detector:
  mode: poll
  poll_interval: 10s
reminder:
  sweep: "*/30 * * * *"
  timezone: America/Sao_Paulo
business:
  name: Mr.Borges
  address:
    - Avenida Dom Severino 1524
    - Teresina - PI
`)

	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if cfg.Messenger.CountryPrefix != "55" || cfg.Messenger.MaxRetries != 5 {
		t.Fatalf("messenger = %+v", cfg.Messenger)
	}
	if cfg.Detector.Mode != "poll" {
		t.Fatalf("detector = %+v", cfg.Detector)
	}
	if cfg.Business.Name != "Mr.Borges" || len(cfg.Business.Address) != 2 {
		t.Fatalf("business = %+v", cfg.Business)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "config.yaml", `
logging:
  level: info
mesengerr:
  max_retries: 3
`)

	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("want error for unknown key, got nil")
	}
}

func TestParseJSON(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "config.json",
		`{"logging":{"level":"warn"},"detector":{"mode":"push"}}`)

	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Logging.Level != "warn" || cfg.Detector.Mode != "push" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()

	if d, err := ParseDurationField("x", "90s"); err != nil || d != 90*time.Second {
		t.Fatalf("got %v, %v", d, err)
	}
	if d, err := ParseDurationField("x", "  "); err != nil || d != 0 {
		t.Fatalf("blank: got %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "banana"); err == nil {
		t.Fatal("want error for invalid duration")
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatal("want error for negative duration")
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()

	if d, err := ParseDurationOrDefault("x", "", 10*time.Second); err != nil || d != 10*time.Second {
		t.Fatalf("got %v, %v", d, err)
	}
	if d, err := ParseDurationOrDefault("x", "3s", 10*time.Second); err != nil || d != 3*time.Second {
		t.Fatalf("got %v, %v", d, err)
	}
}

func TestGetReturnsCommitted(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "config.yaml", "logging:\n  level: info\n")
	m := NewManager(path)
	if m.Get() != nil {
		t.Fatal("Get before Load should be nil")
	}
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.Get() != cfg {
		t.Fatal("Get should return the committed config")
	}
}
