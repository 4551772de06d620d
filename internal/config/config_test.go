package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Endpoint != "https://api.parishdesk.app/graphql" {
		t.Fatalf("endpoint = %q", cfg.Endpoint)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Fatalf("timeout = %v", cfg.RequestTimeout)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("log level = %q", cfg.LogLevel)
	}
	if cfg.RememberMe {
		t.Fatal("remember_me should default off")
	}
	if cfg.DataDir == "" {
		t.Fatal("empty data dir")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("PD_ENDPOINT", "https://staging.parishdesk.app/graphql")
	t.Setenv("PD_LOG_LEVEL", "debug")
	t.Setenv("PD_REMEMBER_ME", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Endpoint != "https://staging.parishdesk.app/graphql" {
		t.Fatalf("endpoint = %q", cfg.Endpoint)
	}
	if cfg.LogLevel != "debug" || !cfg.RememberMe {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)

	dir := filepath.Join(home, "parishdesk")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	yaml := "endpoint: https://self-hosted.example.org/graphql\nrequest_timeout: 5s\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Endpoint != "https://self-hosted.example.org/graphql" {
		t.Fatalf("endpoint = %q", cfg.Endpoint)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Fatalf("timeout = %v", cfg.RequestTimeout)
	}
}

func TestDir_RespectsXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")
	if got := Dir(); got != filepath.Join("/tmp/xdg-test", "parishdesk") {
		t.Fatalf("Dir = %q", got)
	}
}
