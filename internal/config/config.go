// Package config provides configuration management for the paper trading
// service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"paper-trader/internal/errors"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Trading TradingConfig `mapstructure:"trading"`
	Store   StoreConfig   `mapstructure:"store"`
	Feed    FeedConfig    `mapstructure:"feed"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// TradingConfig holds trading configuration.
type TradingConfig struct {
	// InitialBalance is the virtual cash new users start with.
	InitialBalance float64 `mapstructure:"initial_balance"`
	// SessionOffsetMinutes shifts the trading session clock from UTC;
	// 330 is IST.
	SessionOffsetMinutes int `mapstructure:"session_offset_minutes"`
}

// StoreConfig holds persistence configuration.
type StoreConfig struct {
	// Backend is "sqlite" or "memory".
	Backend string `mapstructure:"backend"`
	// Path is the SQLite database file.
	Path string `mapstructure:"path"`
}

// FeedConfig holds spot feed configuration.
type FeedConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Symbols      []string      `mapstructure:"symbols"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Console    bool   `mapstructure:"console"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/paper-trader"
	}
	return filepath.Join(home, ".config", "paper-trader")
}

// Load loads configuration from the specified directory. If configDir is
// empty the default directory is used; a missing config file yields the
// defaults and writes a template for editing.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
		if err := writeTemplate(configDir); err != nil {
			return nil, fmt.Errorf("writing config template: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("trading.initial_balance", 100000.0)
	v.SetDefault("trading.session_offset_minutes", 330)
	v.SetDefault("store.backend", "sqlite")
	v.SetDefault("store.path", filepath.Join(DefaultConfigDir(), "paper-trader.db"))
	v.SetDefault("feed.timeout", 5*time.Second)
	v.SetDefault("feed.poll_interval", 15*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.console", true)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PAPER_TRADER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("PAPER_TRADER_DB"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("PAPER_TRADER_STORE"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("PAPER_TRADER_INITIAL_BALANCE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Trading.InitialBalance = parsed
		}
	}
	if v := os.Getenv("PAPER_TRADER_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.Wrap(errors.ErrConfigInvalid, "server.addr must not be empty")
	}
	if c.Trading.InitialBalance <= 0 {
		return errors.Wrap(errors.ErrConfigInvalid, "trading.initial_balance must be positive")
	}
	switch c.Store.Backend {
	case "sqlite":
		if c.Store.Path == "" {
			return errors.Wrap(errors.ErrConfigInvalid, "store.path required for sqlite backend")
		}
	case "memory":
	default:
		return errors.Wrap(errors.ErrConfigInvalid,
			fmt.Sprintf("store.backend %q must be sqlite or memory", c.Store.Backend))
	}
	if c.Feed.Timeout <= 0 {
		return errors.Wrap(errors.ErrConfigInvalid, "feed.timeout must be positive")
	}
	if c.Feed.PollInterval <= 0 {
		return errors.Wrap(errors.ErrConfigInvalid, "feed.poll_interval must be positive")
	}
	return nil
}

const configTemplate = `# paper-trader configuration

[server]
addr = ":8080"
shutdown_timeout = "10s"

[trading]
initial_balance = 100000.0
session_offset_minutes = 330  # IST

[store]
backend = "sqlite"  # or "memory"
# path = "/path/to/paper-trader.db"

[feed]
timeout = "5s"
poll_interval = "15s"
# symbols = ["NIFTY", "BANKNIFTY"]

[log]
level = "info"
console = true
# file = "/path/to/paper-trader.log"
max_size_mb = 10
max_backups = 5
max_age_days = 30
`

func writeTemplate(configDir string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte(configTemplate), 0o644)
}
