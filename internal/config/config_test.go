package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sample = `
server:
  url: https://vbas.example:8443
  user: gate
  password: secret
  insecure_skip_verify: true
collector:
  address_cache: /var/lib/gateway/address_cache
  read_app: bacrp
  update_interval: 30s
  tools:
    bacrp:
      command: /opt/bacnet/bacrp --retries 1
      mode: single
transmitter:
  enabled: true
  max_batch: 25
notifier:
  dedup_ttl: 2m
`

func writeSample(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "gateway.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadFile(t *testing.T) {
	cfg, err := Load(writeSample(t, sample))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.URL != "https://vbas.example:8443" || !cfg.Server.InsecureSkipVerify {
		t.Errorf("server = %+v", cfg.Server)
	}
	// md5("secret")
	if cfg.Server.PasswordMD5 != "5EBE2294ECD0E0F08EAB7690D2A6EE69" {
		t.Errorf("password md5 = %s", cfg.Server.PasswordMD5)
	}
	if cfg.Collector.UpdateInterval != 30*time.Second || cfg.Notifier.DedupTTL != 2*time.Minute {
		t.Errorf("durations = %v, %v", cfg.Collector.UpdateInterval, cfg.Notifier.DedupTTL)
	}
	if cfg.Collector.Tools["bacrp"].Mode != "single" {
		t.Errorf("tools = %+v", cfg.Collector.Tools)
	}
	// untouched defaults survive
	if cfg.Transmitter.MaxBatch != 25 || cfg.Transmitter.MaxPending != 10000 || cfg.Notifier.Topic == "" {
		t.Errorf("transmitter = %+v notifier = %+v", cfg.Transmitter, cfg.Notifier)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_URL", "http://other:8080")
	t.Setenv("SERVER_PASSWORD_MD5", "ABC")
	t.Setenv("ENABLE_NOTIFIER", "false")
	t.Setenv("UPDATE_INTERVAL", "15")
	t.Setenv("DEVICE", "200")

	cfg, err := Load(writeSample(t, sample))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.URL != "http://other:8080" || cfg.Server.PasswordMD5 != "ABC" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Notifier.Enabled {
		t.Error("notifier not disabled")
	}
	if cfg.Collector.UpdateInterval != 15*time.Second || cfg.Collector.Device != 200 {
		t.Errorf("collector = %+v", cfg.Collector)
	}
}

func TestValidate(t *testing.T) {
	_, err := Load(writeSample(t, "collector:\n  read_app: missing\n"))
	if err == nil {
		t.Fatal("unknown read app accepted")
	}
	if _, err := Load(""); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}
