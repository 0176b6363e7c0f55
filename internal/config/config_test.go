package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("DATABASE_DSN", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != DefaultServerAddr {
		t.Fatalf("expected default addr, got %q", cfg.Server.Addr)
	}
	if cfg.JWT.Expiry() != 30*time.Minute {
		t.Fatalf("expected 30m expiry, got %s", cfg.JWT.Expiry())
	}
	if cfg.Redis.Channel != DefaultForceLogoutChannel {
		t.Fatalf("expected default channel, got %q", cfg.Redis.Channel)
	}
}

func TestLoadParsesYAMLAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("server:\n  addr: \":9000\"\ndatabase:\n  dsn: file:test.db\njwt:\n  secret: abc\n  expire_minutes: 15\n")
	if errWrite := os.WriteFile(path, content, 0o600); errWrite != nil {
		t.Fatalf("write config: %v", errWrite)
	}
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.JWT.Secret != "from-env" {
		t.Fatalf("expected env secret, got %q", cfg.JWT.Secret)
	}
	if cfg.JWT.Expiry() != 15*time.Minute {
		t.Fatalf("unexpected expiry %s", cfg.JWT.Expiry())
	}

	dsn, errDSN := LoadDatabaseDSN(path)
	if errDSN != nil || dsn != "file:test.db" {
		t.Fatalf("unexpected dsn %q err=%v", dsn, errDSN)
	}
}

func TestLoadDatabaseDSNMissing(t *testing.T) {
	t.Setenv("DATABASE_DSN", "")
	if _, err := LoadDatabaseDSN(filepath.Join(t.TempDir(), "none.yaml")); err != ErrMissingDSN {
		t.Fatalf("expected ErrMissingDSN, got %v", err)
	}
}
