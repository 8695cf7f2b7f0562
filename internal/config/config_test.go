package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Trading.InitialBalance != 100000 {
		t.Errorf("InitialBalance = %v, want 100000", cfg.Trading.InitialBalance)
	}
	if cfg.Trading.SessionOffsetMinutes != 330 {
		t.Errorf("SessionOffsetMinutes = %d, want 330", cfg.Trading.SessionOffsetMinutes)
	}
	if cfg.Store.Backend != "sqlite" {
		t.Errorf("Backend = %q, want sqlite", cfg.Store.Backend)
	}
	if cfg.Feed.Timeout != 5*time.Second {
		t.Errorf("Feed.Timeout = %v, want 5s", cfg.Feed.Timeout)
	}

	// A template was written for editing.
	if _, err := os.Stat(filepath.Join(dir, "config.toml")); err != nil {
		t.Errorf("template not written: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[server]
addr = ":9090"

[trading]
initial_balance = 500000.0

[store]
backend = "memory"

[feed]
timeout = "2s"
poll_interval = "30s"
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("Addr = %q, want :9090", cfg.Server.Addr)
	}
	if cfg.Trading.InitialBalance != 500000 {
		t.Errorf("InitialBalance = %v, want 500000", cfg.Trading.InitialBalance)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("Backend = %q, want memory", cfg.Store.Backend)
	}
	if cfg.Feed.PollInterval != 30*time.Second {
		t.Errorf("PollInterval = %v, want 30s", cfg.Feed.PollInterval)
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PAPER_TRADER_ADDR", ":7070")
	t.Setenv("PAPER_TRADER_STORE", "memory")
	t.Setenv("PAPER_TRADER_INITIAL_BALANCE", "250000")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Errorf("Addr = %q, want :7070", cfg.Server.Addr)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("Backend = %q, want memory", cfg.Store.Backend)
	}
	if cfg.Trading.InitialBalance != 250000 {
		t.Errorf("InitialBalance = %v, want 250000", cfg.Trading.InitialBalance)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:  ServerConfig{Addr: ":8080"},
			Trading: TradingConfig{InitialBalance: 100000},
			Store:   StoreConfig{Backend: "memory"},
			Feed:    FeedConfig{Timeout: time.Second, PollInterval: time.Second},
		}
	}

	if err := valid().Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"zero balance", func(c *Config) { c.Trading.InitialBalance = 0 }},
		{"bad backend", func(c *Config) { c.Store.Backend = "postgres" }},
		{"sqlite without path", func(c *Config) { c.Store.Backend = "sqlite"; c.Store.Path = "" }},
		{"zero feed timeout", func(c *Config) { c.Feed.Timeout = 0 }},
		{"zero poll interval", func(c *Config) { c.Feed.PollInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("invalid config accepted")
			}
		})
	}
}
