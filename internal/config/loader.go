package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envConfigDefaultPath = "KEYROOM_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
	envPrefix            = "KEYROOM"
)

// Load builds configuration from defaults, optional config file, env vars, and returns the resolved path.
// Precedence: defaults < config file < env vars < caller overrides.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if writeErr := writeDefaultConfig(configPath, cfg); writeErr != nil && logger != nil {
				logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
			} else if logger != nil {
				logger.Info().Str("path", configPath).Msg("created default config")
			}
			// try reading again in case it was just written
			if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
				logger.Warn().Err(readErr).Str("path", configPath).Msg("failed to read config after writing default")
			}
		} else {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, configPath, nil
}

// setDefaults registers every key so AutomaticEnv can resolve nested values on Unmarshal.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("addr", cfg.Addr)
	v.SetDefault("read_header_timeout", cfg.ReadHeaderTimeout)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("max_message_bytes", cfg.MaxMessageBytes)
	v.SetDefault("rate_limit_per_minute", cfg.RateLimitPerMinute)
	v.SetDefault("welcome_text", cfg.WelcomeText)

	v.SetDefault("storage.backend", cfg.Storage.Backend)
	v.SetDefault("storage.keys_file", cfg.Storage.KeysFile)
	v.SetDefault("storage.announcement_file", cfg.Storage.AnnouncementFile)
	v.SetDefault("storage.sqlite_path", cfg.Storage.SQLitePath)
	v.SetDefault("storage.badger_dir", cfg.Storage.BadgerDir)

	v.SetDefault("session.ttl", cfg.Session.TTL)
	v.SetDefault("session.cookie_name", cfg.Session.CookieName)
	v.SetDefault("session.cookie_secure", cfg.Session.CookieSecure)
	v.SetDefault("session.required", cfg.Session.Required)

	v.SetDefault("chat.history_limit", cfg.Chat.HistoryLimit)
	v.SetDefault("chat.max_text_length", cfg.Chat.MaxTextLength)
	v.SetDefault("chat.send_buffer", cfg.Chat.SendBuffer)

	v.SetDefault("keys.code_length", cfg.Keys.CodeLength)

	v.SetDefault("admin.id", cfg.Admin.ID)
	v.SetDefault("admin.secret", cfg.Admin.Secret)
	v.SetDefault("admin.issuer", cfg.Admin.Issuer)
	v.SetDefault("admin.token_ttl", cfg.Admin.TokenTTL)
	v.SetDefault("admin.server_url", cfg.Admin.ServerURL)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
