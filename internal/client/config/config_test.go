package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("CALEPIN_CONFIG", "")
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerURL != "http://localhost:8081" {
		t.Errorf("server url = %q", cfg.ServerURL)
	}
	if cfg.ConflictStrategy != "keepBoth" {
		t.Errorf("strategy = %q", cfg.ConflictStrategy)
	}
	if !strings.HasSuffix(cfg.DBPath(), string(filepath.Separator)+"calepin.db") {
		t.Errorf("db path = %q", cfg.DBPath())
	}
	if _, err := os.Stat(cfg.DataDir); err != nil {
		t.Errorf("data dir not created: %v", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := isolate(t)
	t.Setenv("CALEPIN_SERVER_URL", "https://sync.example.com")
	t.Setenv("CALEPIN_DATA_DIR", filepath.Join(dir, "custom"))
	t.Setenv("CALEPIN_CONFLICT_STRATEGY", "keepServer")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerURL != "https://sync.example.com" {
		t.Errorf("server url = %q", cfg.ServerURL)
	}
	if cfg.DataDir != filepath.Join(dir, "custom") {
		t.Errorf("data dir = %q", cfg.DataDir)
	}
	if cfg.ConflictStrategy != "keepServer" {
		t.Errorf("strategy = %q", cfg.ConflictStrategy)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	body := "server-url: https://file.example.com\nlog-level: debug\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CALEPIN_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerURL != "https://file.example.com" {
		t.Errorf("server url = %q", cfg.ServerURL)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}

	// Environment still wins over the file.
	t.Setenv("CALEPIN_SERVER_URL", "https://env.example.com")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if cfg.ServerURL != "https://env.example.com" {
		t.Errorf("env did not override file: %q", cfg.ServerURL)
	}
}
