// Package daemon holds the service configuration: where to listen, where
// the database lives, how long payment sessions stay valid, and how codes
// reach customers.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full walletd configuration, read from TOML.
type Config struct {
	API     APIConfig     `toml:"api"`
	Store   StoreConfig   `toml:"store"`
	Session SessionConfig `toml:"session"`
	Mail    MailConfig    `toml:"mail"`
}

// APIConfig configures the HTTP server and the access gate.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
	// APIKey is the shared secret checked against X-API-Key. Empty leaves
	// the gate open; only do that on a loopback deployment.
	APIKey  string `toml:"api_key"`
	Metrics bool   `toml:"metrics"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `toml:"path"`
}

// SessionConfig governs the payment session lifecycle. Durations are TOML
// strings like "10m" or "90s".
type SessionConfig struct {
	TTL           duration `toml:"ttl"`
	SweepInterval duration `toml:"sweep_interval"`
}

// MailConfig configures confirmation-code delivery. With Enabled false,
// codes are written to the log instead.
type MailConfig struct {
	Enabled bool   `toml:"enabled"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	From    string `toml:"from"`
}

// duration parses Go duration strings from TOML.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultConfig returns production defaults: loopback listener, database
// under the user's home, ten-minute sessions, log-only delivery.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:    "127.0.0.1",
			Port:    8432,
			Metrics: true,
		},
		Store: StoreConfig{
			Path: filepath.Join(homeDir(), "wallet.db"),
		},
		Session: SessionConfig{
			TTL:           duration{10 * time.Minute},
			SweepInterval: duration{time.Minute},
		},
		Mail: MailConfig{
			Enabled: false,
			Port:    587,
		},
	}
}

// Load reads the TOML file at path over the defaults. A missing file is not
// an error; the defaults stand.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the configuration as TOML, creating parent directories.
func (c Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(c)
}

// Addr returns the host:port the API listens on.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

func (c Config) validate() error {
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port %d out of range", c.API.Port)
	}
	if c.Session.TTL.Duration <= 0 {
		return fmt.Errorf("session.ttl must be positive")
	}
	if c.Session.SweepInterval.Duration <= 0 {
		return fmt.Errorf("session.sweep_interval must be positive")
	}
	if c.Mail.Enabled && (c.Mail.Host == "" || c.Mail.From == "") {
		return fmt.Errorf("mail.host and mail.from are required when mail is enabled")
	}
	return nil
}

// DefaultPath returns the config file location, honoring WALLETD_HOME.
func DefaultPath() string {
	return filepath.Join(homeDir(), "config.toml")
}

func homeDir() string {
	if env := os.Getenv("WALLETD_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".walletd")
}
