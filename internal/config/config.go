package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	API        APIConfig        `yaml:"api"`
	Session    SessionConfig    `yaml:"session"`
	Assignment AssignmentConfig `yaml:"assignment"`
	Watch      WatchConfig      `yaml:"watch"`
}

type APIConfig struct {
	BaseURL         string        `yaml:"base_url"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxResponseSize int64         `yaml:"max_response_size"`
}

type SessionConfig struct {
	File       string `yaml:"file"`
	Passphrase string `yaml:"passphrase"` // empty: session file stored in plaintext
}

type AssignmentConfig struct {
	EnforceTeamMembership bool `yaml:"enforce_team_membership"`
}

type WatchConfig struct {
	Interval   time.Duration `yaml:"interval"`
	ListenAddr string        `yaml:"listen_addr"`
}

func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		expanded := expandEnvVars(string(data))

		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:         "http://localhost:8080/api",
			Timeout:         30 * time.Second,
			MaxResponseSize: 10 * 1024 * 1024,
		},
		Session: SessionConfig{
			File: defaultSessionFile(),
		},
		Assignment: AssignmentConfig{
			EnforceTeamMembership: true,
		},
		Watch: WatchConfig{
			Interval:   30 * time.Second,
			ListenAddr: "127.0.0.1:9180",
		},
	}
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".taskdeck-session"
	}
	return filepath.Join(home, ".taskdeck", "session")
}

func expandEnvVars(s string) string {
	return os.ExpandEnv(s)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TASKDECK_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("TASKDECK_SESSION_FILE"); v != "" {
		cfg.Session.File = v
	}
	if v := os.Getenv("TASKDECK_PASSPHRASE"); v != "" {
		cfg.Session.Passphrase = v
	}
}

func (c *Config) validate() error {
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("api.base_url must be an http(s) URL, got %q", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive")
	}
	return nil
}
