package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "paybot.json")
	raw := []byte(`{
  "storage": {
    "payment_store": {"driver": "mysql", "dsn": "user:pw@tcp(db:3306)/paybot"}
  },
  "chain": {"config_path": "chains.yaml"}
}`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Address != ":8080" {
		t.Fatalf("server address default: %q", cfg.Server.Address)
	}
	if cfg.Storage.Keystore.Driver != "mysql" || cfg.Storage.Keystore.DSN != cfg.Storage.PaymentStore.DSN {
		t.Fatalf("keystore should inherit payment store backend: %+v", cfg.Storage.Keystore)
	}
	if cfg.Storage.Directory.Driver != "mysql" {
		t.Fatalf("directory should inherit payment store driver: %+v", cfg.Storage.Directory)
	}
	if cfg.Outbox.Driver != "memory" || cfg.Outbox.Redis.KeyPrefix != "paybot:outbox" {
		t.Fatalf("outbox defaults: %+v", cfg.Outbox)
	}
	if cfg.Events.RabbitMQ.Queue != "payments.events" {
		t.Fatalf("events queue default: %q", cfg.Events.RabbitMQ.Queue)
	}
	if cfg.Scheduler.Interval() != time.Minute || cfg.Scheduler.InitialDelay() != 10*time.Second {
		t.Fatalf("scheduler defaults: %+v", cfg.Scheduler)
	}
	if cfg.Oracle.Currency != "usd" || cfg.Oracle.Timeout() != 10*time.Second {
		t.Fatalf("oracle defaults: %+v", cfg.Oracle)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Fatalf("log defaults: %+v", cfg.Log)
	}

	want := filepath.Join(dir, "chains.yaml")
	if cfg.Chain.ConfigPath != want {
		t.Fatalf("chain config path = %q, want %q", cfg.Chain.ConfigPath, want)
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("missing config file should error")
	}
}

func TestLoadRejectsEmptyPath(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatal("empty path should error")
	}
}
