package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "node.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %s", err)
	}
	return path
}

func TestLoadNodeConfigRoundTrip(t *testing.T) {
	path := writeTemp(t, `
listen:
  scheme: insecure
  host: 0.0.0.0
  port: 7070
dial:
  - scheme: insecure
    host: peer.example.com
    port: 7070
connectionTimeout: 5s
backoff:
  initial: 200ms
  max: 30s
  factor: 2.0
  jitter: 0.2
`)

	cfg, err := LoadNodeConfig(path)
	if err != nil {
		t.Fatalf("LoadNodeConfig: %s", err)
	}
	if cfg.Listen == nil || cfg.Listen.Port != 7070 {
		t.Fatalf("Listen = %+v", cfg.Listen)
	}
	if len(cfg.Dial) != 1 || cfg.Dial[0].Host != "peer.example.com" {
		t.Fatalf("Dial = %+v", cfg.Dial)
	}
}

func TestLoadNodeConfigRejectsSecureListen(t *testing.T) {
	path := writeTemp(t, `
listen:
  scheme: secure
  host: 0.0.0.0
  port: 7070
connectionTimeout: 5s
backoff:
  initial: 200ms
  max: 30s
  factor: 2.0
`)

	_, err := LoadNodeConfig(path)
	if err == nil {
		t.Fatalf("expected secureServerNotSupported")
	}
}

func TestDefaultNodeConfigValidates(t *testing.T) {
	if err := DefaultNodeConfig().Validate(); err != nil {
		t.Errorf("DefaultNodeConfig() doesn't validate: %s", err)
	}
}
