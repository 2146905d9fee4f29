package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := defaults()

	if cfg.API.BaseURL != "http://localhost:8080/api" {
		t.Errorf("expected default base URL http://localhost:8080/api, got %s", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 30*time.Second {
		t.Errorf("expected default timeout 30s, got %v", cfg.API.Timeout)
	}
	if cfg.API.MaxResponseSize != 10*1024*1024 {
		t.Errorf("expected default max response size 10MiB, got %d", cfg.API.MaxResponseSize)
	}
	if !cfg.Assignment.EnforceTeamMembership {
		t.Error("expected team membership enforcement on by default")
	}
	if cfg.Watch.Interval != 30*time.Second {
		t.Errorf("expected default watch interval 30s, got %v", cfg.Watch.Interval)
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
api:
  base_url: "https://tasks.example.com/api"
  timeout: 5s
  max_response_size: 1048576
session:
  file: "/tmp/taskdeck-session"
assignment:
  enforce_team_membership: false
watch:
  interval: 10s
  listen_addr: "127.0.0.1:9999"
`
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.BaseURL != "https://tasks.example.com/api" {
		t.Errorf("expected base URL https://tasks.example.com/api, got %s", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", cfg.API.Timeout)
	}
	if cfg.API.MaxResponseSize != 1048576 {
		t.Errorf("expected max response size 1048576, got %d", cfg.API.MaxResponseSize)
	}
	if cfg.Session.File != "/tmp/taskdeck-session" {
		t.Errorf("expected session file /tmp/taskdeck-session, got %s", cfg.Session.File)
	}
	if cfg.Assignment.EnforceTeamMembership {
		t.Error("expected team membership enforcement off")
	}
	if cfg.Watch.ListenAddr != "127.0.0.1:9999" {
		t.Errorf("expected listen addr 127.0.0.1:9999, got %s", cfg.Watch.ListenAddr)
	}
}

func TestLoadNoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load with empty path should use defaults: %v", err)
	}
	if cfg.API.BaseURL != "http://localhost:8080/api" {
		t.Errorf("expected default base URL, got %s", cfg.API.BaseURL)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEnvExpansion(t *testing.T) {
	t.Setenv("TEST_API_HOST", "expanded.example.com")

	content := `
api:
  base_url: "https://${TEST_API_HOST}/api"
`
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.API.BaseURL != "https://expanded.example.com/api" {
		t.Errorf("expected expanded base URL, got %s", cfg.API.BaseURL)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TASKDECK_API_URL", "https://envhost/api")
	t.Setenv("TASKDECK_SESSION_FILE", "/tmp/env-session")
	t.Setenv("TASKDECK_PASSPHRASE", "hunter2")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.BaseURL != "https://envhost/api" {
		t.Errorf("expected env base URL, got %s", cfg.API.BaseURL)
	}
	if cfg.Session.File != "/tmp/env-session" {
		t.Errorf("expected env session file, got %s", cfg.Session.File)
	}
	if cfg.Session.Passphrase != "hunter2" {
		t.Errorf("expected env passphrase, got %s", cfg.Session.Passphrase)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"bad scheme", func(c *Config) { c.API.BaseURL = "ftp://host/api" }, true},
		{"empty base url", func(c *Config) { c.API.BaseURL = "" }, true},
		{"zero timeout", func(c *Config) { c.API.Timeout = 0 }, true},
		{"negative timeout", func(c *Config) { c.API.Timeout = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.modify(cfg)
			err := cfg.validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
