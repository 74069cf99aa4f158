// Package config loads and validates clipshare's client configuration:
// the relay URI, auth token, and client name.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds everything the worker needs to connect to a relay. It is
// read once at startup and is immutable thereafter.
type Config struct {
	URI   string `toml:"uri"`
	Token string `toml:"token"`
	Name  string `toml:"name"`
}

// String redacts Token so configs are safe to log or print.
func (c Config) String() string {
	return fmt.Sprintf("Config{URI: %q, Token: %q, Name: %q}", c.URI, redact(c.Token), c.Name)
}

// LogValue implements slog.LogValuer so a Config passed directly to a
// logging call never leaks its token.
func (c Config) LogValue() slog.Value {
	return slog.StringValue(c.String())
}

func redact(token string) string {
	if token == "" {
		return ""
	}
	return "***"
}

// Validate checks the invariants the core requires before starting a
// worker: a ws:// or wss:// URI, and non-empty token and name.
func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("config: name must not be empty")
	}
	if c.Token == "" {
		return fmt.Errorf("config: token must not be empty")
	}
	u, err := url.Parse(c.URI)
	if err != nil {
		return fmt.Errorf("config: invalid uri %q: %w", c.URI, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("config: uri scheme must be ws or wss, got %q", u.Scheme)
	}
	return nil
}

// DefaultPath returns the well-known config path,
// $HOME/.config/clipshare/config.toml, falling back to ./config.toml if the
// home directory cannot be determined.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".config", "clipshare", "config.toml")
}

// Load reads and validates a Config from a TOML file at path.
func Load(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("loading config from %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes cfg as TOML to path, creating parent directories as needed.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return nil
}
