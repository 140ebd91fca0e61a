package config

import (
	"errors"
	"fmt"
	"time"
)

// Storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Config holds server configuration values.
type Config struct {
	Addr               string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout  time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel           string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat          string        `mapstructure:"log_format" yaml:"log_format"`
	MaxMessageBytes    int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	WelcomeText        string        `mapstructure:"welcome_text" yaml:"welcome_text"`

	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
	Chat    ChatConfig    `mapstructure:"chat" yaml:"chat"`
	Keys    KeysConfig    `mapstructure:"keys" yaml:"keys"`
	Admin   AdminConfig   `mapstructure:"admin" yaml:"admin"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// StorageConfig selects where keys and the announcement are persisted.
type StorageConfig struct {
	Backend          string `mapstructure:"backend" yaml:"backend"`
	KeysFile         string `mapstructure:"keys_file" yaml:"keys_file"`
	AnnouncementFile string `mapstructure:"announcement_file" yaml:"announcement_file"`
	SQLitePath       string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	BadgerDir        string `mapstructure:"badger_dir" yaml:"badger_dir"`
}

// SessionConfig controls browser sessions created by key redemption.
type SessionConfig struct {
	TTL          time.Duration `mapstructure:"ttl" yaml:"ttl"`
	CookieName   string        `mapstructure:"cookie_name" yaml:"cookie_name"`
	CookieSecure bool          `mapstructure:"cookie_secure" yaml:"cookie_secure"`
	// Required gates the WebSocket upgrade behind a valid session.
	Required bool `mapstructure:"required" yaml:"required"`
}

// ChatConfig bounds the broadcast engine.
type ChatConfig struct {
	HistoryLimit  int `mapstructure:"history_limit" yaml:"history_limit"`
	MaxTextLength int `mapstructure:"max_text_length" yaml:"max_text_length"`
	SendBuffer    int `mapstructure:"send_buffer" yaml:"send_buffer"`
}

// KeysConfig controls one-time key generation.
type KeysConfig struct {
	CodeLength int `mapstructure:"code_length" yaml:"code_length"`
}

// AdminConfig describes the single administrator identity.
// An empty Secret disables the admin API.
type AdminConfig struct {
	ID        string        `mapstructure:"id" yaml:"id"`
	Secret    string        `mapstructure:"secret" yaml:"secret"`
	Issuer    string        `mapstructure:"issuer" yaml:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
	ServerURL string        `mapstructure:"server_url" yaml:"server_url"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":3000",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		MaxMessageBytes:   64 << 10,
		Storage: StorageConfig{
			Backend:          BackendFile,
			KeysFile:         "keys.json",
			AnnouncementFile: "announcement.json",
			SQLitePath:       "keyroom.db",
			BadgerDir:        "keyroom-badger",
		},
		Session: SessionConfig{
			TTL:        24 * time.Hour,
			CookieName: "keyroom_session",
			Required:   true,
		},
		Chat: ChatConfig{
			HistoryLimit:  200,
			MaxTextLength: 2000,
			SendBuffer:    64,
		},
		Keys: KeysConfig{
			CodeLength: 8,
		},
		Admin: AdminConfig{
			ID:        "admin",
			Issuer:    "keyroom",
			TokenTTL:  time.Hour,
			ServerURL: "http://localhost:3000",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Only the fields exposed as command-line flags are considered.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.Storage.Backend != "" {
		c.Storage.Backend = other.Storage.Backend
	}
	if other.Admin.ServerURL != "" {
		c.Admin.ServerURL = other.Admin.ServerURL
	}
}

// Validate reports configuration values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Backend {
	case BackendFile:
		if c.Storage.KeysFile == "" || c.Storage.AnnouncementFile == "" {
			errs = append(errs, errors.New("storage: file backend needs keys_file and announcement_file"))
		}
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage: sqlite backend needs sqlite_path"))
		}
	case BackendBadger:
		if c.Storage.BadgerDir == "" {
			errs = append(errs, errors.New("storage: badger backend needs badger_dir"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage: unknown backend %q", c.Storage.Backend))
	}

	if c.Chat.HistoryLimit <= 0 {
		errs = append(errs, errors.New("chat.history_limit must be positive"))
	}
	if c.Chat.MaxTextLength <= 0 {
		errs = append(errs, errors.New("chat.max_text_length must be positive"))
	}
	if c.Chat.SendBuffer <= 0 {
		errs = append(errs, errors.New("chat.send_buffer must be positive"))
	}
	if c.Keys.CodeLength < 6 {
		errs = append(errs, errors.New("keys.code_length must be at least 6"))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("session.ttl must be positive"))
	}
	if c.Session.CookieName == "" {
		errs = append(errs, errors.New("session.cookie_name is required"))
	}

	return errors.Join(errs...)
}
