package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "soulsift.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
log-level = "debug"

[server]
address = "localhost:2242"
username = "alice"
password = "secret"

[listen]
port = 3000

[downloads]
dir = "/tmp/dl"

[shares]
roots = ["/music", "/books"]

[ipc]
socket-path = "/tmp/ss.sock"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Address != "localhost:2242" {
		t.Errorf("server address = %q", cfg.Server.Address)
	}
	if cfg.Server.Username != "alice" || cfg.Server.Password != "secret" {
		t.Errorf("credentials = %q/%q", cfg.Server.Username, cfg.Server.Password)
	}
	if cfg.Listen.Port != 3000 {
		t.Errorf("listen port = %d", cfg.Listen.Port)
	}
	if cfg.Downloads.Dir != "/tmp/dl" {
		t.Errorf("downloads dir = %q", cfg.Downloads.Dir)
	}
	if len(cfg.Shares.Roots) != 2 || cfg.Shares.Roots[1] != "/books" {
		t.Errorf("share roots = %v", cfg.Shares.Roots)
	}
	if cfg.IPC.SocketPath != "/tmp/ss.sock" {
		t.Errorf("ipc socket = %q", cfg.IPC.SocketPath)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
}

func TestLoadKeepsDefaultsForUnsetFields(t *testing.T) {
	path := writeConfig(t, `
[server]
address = "localhost:2242"
username = "alice"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen.Port != 2234 {
		t.Errorf("listen port = %d, want default 2234", cfg.Listen.Port)
	}
	if cfg.Downloads.Dir == "" {
		t.Error("downloads dir not defaulted")
	}
	if cfg.IPC.SocketPath == "" {
		t.Error("ipc socket path not defaulted")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if cfg.Listen.Port != 2234 {
		t.Errorf("listen port = %d", cfg.Listen.Port)
	}

	bad := writeConfig(t, `[server`)
	if _, err := LoadOrDefault(bad); err == nil {
		t.Fatal("expected parse error for malformed file")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error: username unset")
	}
	cfg.Server.Username = "alice"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	cfg.Listen.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error: port out of range")
	}
}
