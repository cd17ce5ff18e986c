// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads Ocean's process-wide settings.
//
// Layered sources via Koanf v2, in precedence order ENV > file > defaults:
//  1. Built-in defaults
//  2. TOML config file (ocean.toml)
//  3. OCEAN_-prefixed environment variables (OCEAN_SERVER_PORT, ...)
//
// The returned Config is frozen: nothing mutates it after Load, and every
// component receives it by pointer through its constructor.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "OCEAN_CONFIG"

// Config is the root of ocean.toml.
type Config struct {
	Server      ServerConfig   `koanf:"server"`
	Frontend    FrontendConfig `koanf:"frontend"`
	Postgres    PostgresConfig `koanf:"postgres"`
	TelegramBot TelegramConfig `koanf:"telegram_bot"`
	Watchdog    WatchdogConfig `koanf:"watchdog"`
	Log         LogConfig      `koanf:"log"`
}

// ServerConfig configures the HTTPS listener.
type ServerConfig struct {
	Port uint16 `koanf:"port"`

	// AnonymAllowed downgrades the content-creation methods to the Anonym
	// role. Read at request time; see authz.
	AnonymAllowed bool `koanf:"anonym_allowed"`

	// MetricsPort serves Prometheus metrics over plain HTTP. 0 disables it.
	MetricsPort uint16 `koanf:"metrics_port"`

	// RateLimit caps requests per client IP per minute. 0 disables it.
	RateLimit int `koanf:"rate_limit"`

	SSL SSLConfig `koanf:"ssl"`
}

// SSLConfig points at the server certificate chain and private key.
type SSLConfig struct {
	Cert string `koanf:"cert"`
	Key  string `koanf:"key"`
}

// FrontendConfig carries the public site address used in outbound links.
type FrontendConfig struct {
	Domen string `koanf:"domen"`
}

// PostgresConfig configures the database connection pool.
type PostgresConfig struct {
	Host     string `koanf:"host"`
	Port     uint16 `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	Database string `koanf:"database"`
}

// URL renders the pool DSN.
func (p PostgresConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		p.Username, p.Password, p.Host, p.Port, p.Database)
}

// TelegramConfig configures the outbound notification dispatcher.
type TelegramConfig struct {
	Token       string `koanf:"token"`
	URL         string `koanf:"url"`
	Channel     string `koanf:"channel"`
	AdminChatID string `koanf:"admin_chat_id"`
	Enabled     bool   `koanf:"enabled"`
}

// WatchdogConfig configures the loopback self-probe.
type WatchdogConfig struct {
	Enabled     bool   `koanf:"enabled"`
	AnonymToken string `koanf:"anonym_token"`
}

// LogConfig configures the logging package.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          8443,
			AnonymAllowed: false,
			MetricsPort:   0,
			RateLimit:     0,
		},
		Postgres: PostgresConfig{
			Host: "localhost",
			Port: 5432,
		},
		TelegramBot: TelegramConfig{
			URL:     "https://api.telegram.org",
			Enabled: false,
		},
		Watchdog: WatchdogConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from path. When path is empty the file is looked
// up via OCEAN_CONFIG, then <user config dir>/ocean/ocean.toml. A missing
// file is not an error; defaults and environment still apply.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// OCEAN_SERVER_PORT -> server.port, OCEAN_TELEGRAM_BOT_TOKEN stays under
	// the telegram_bot table via the section list below.
	envProvider := env.Provider("OCEAN_", ".", envTransform)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// sections are the top-level config tables; envTransform needs them to know
// where the table name ends and the key begins.
var sections = []string{"server.ssl", "telegram_bot", "frontend", "server", "postgres", "watchdog", "log"}

func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, "OCEAN_"))
	key = strings.ReplaceAll(key, "_", ".")

	// Longest-prefix match against the known tables: server.ssl before
	// server, telegram.bot reassembled to telegram_bot.
	key = strings.Replace(key, "telegram.bot.", "telegram_bot.", 1)
	key = strings.Replace(key, "server.ssl.", "server.ssl.", 1)
	key = strings.Replace(key, "anonym.allowed", "anonym_allowed", 1)
	key = strings.Replace(key, "metrics.port", "metrics_port", 1)
	key = strings.Replace(key, "rate.limit", "rate_limit", 1)
	key = strings.Replace(key, "admin.chat.id", "admin_chat_id", 1)
	key = strings.Replace(key, "anonym.token", "anonym_token", 1)

	for _, s := range sections {
		if strings.HasPrefix(key, s+".") {
			return key
		}
	}
	return ""
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		return envPath
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(dir, "ocean", "ocean.toml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// Validate checks settings that would otherwise fail deep inside startup.
func (c *Config) Validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port must be set")
	}
	if c.Server.SSL.Cert == "" || c.Server.SSL.Key == "" {
		return fmt.Errorf("server.ssl.cert and server.ssl.key must be set")
	}
	if c.Postgres.Database == "" {
		return fmt.Errorf("postgres.database must be set")
	}
	if c.TelegramBot.Enabled && c.TelegramBot.Token == "" {
		return fmt.Errorf("telegram_bot.token must be set when telegram_bot.enabled is true")
	}
	if c.Watchdog.Enabled && c.Watchdog.AnonymToken == "" {
		return fmt.Errorf("watchdog.anonym_token must be set when watchdog.enabled is true")
	}
	return nil
}
