package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const appName = "nimbus"

// Config holds all nimbus configuration.
type Config struct {
	Sync     SyncConfig     `toml:"sync"`
	Durable  DurableConfig  `toml:"durable"`
	Cache    CacheConfig    `toml:"cache"`
	Session  SessionConfig  `toml:"session"`
	Accounts AccountsConfig `toml:"accounts"`
	Gmail    GmailConfig    `toml:"gmail"`
}

// GmailConfig holds Gmail OAuth credentials. GMAIL_CLIENT_ID and
// GMAIL_CLIENT_SECRET fill in whatever the file leaves empty.
type GmailConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// SyncConfig holds refresh settings.
type SyncConfig struct {
	PageSize    int     `toml:"page_size"`
	Concurrency int     `toml:"concurrency"`
	QPS         float64 `toml:"qps"`
	// Schedule is a five-field cron expression used by "nimbus watch".
	Schedule string `toml:"schedule"`
}

// DurableConfig selects the durable store. An empty DSN disables it.
type DurableConfig struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

// CacheConfig locates the local cache database.
type CacheConfig struct {
	Path string `toml:"path"`
}

// SessionConfig identifies the signed-in user.
type SessionConfig struct {
	UserID string `toml:"user_id"`
}

// AccountsConfig holds account selection settings.
type AccountsConfig struct {
	Default string `toml:"default"`
}

func defaults() Config {
	return Config{
		Sync: SyncConfig{
			PageSize:    20,
			Concurrency: 4,
			QPS:         5,
			Schedule:    "*/5 * * * *",
		},
		Durable: DurableConfig{
			Driver: "sqlite",
		},
	}
}

// Load reads config from path. If path is empty or missing, returns
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if c.Gmail.ClientID == "" {
		c.Gmail.ClientID = os.Getenv("GMAIL_CLIENT_ID")
	}
	if c.Gmail.ClientSecret == "" {
		c.Gmail.ClientSecret = os.Getenv("GMAIL_CLIENT_SECRET")
	}
	if c.Session.UserID == "" {
		c.Session.UserID = os.Getenv("NIMBUS_USER_ID")
	}
}

// Validate rejects settings the sync engine cannot run with.
func (c *Config) Validate() error {
	if c.Sync.PageSize <= 0 {
		return fmt.Errorf("invalid config: sync.page_size must be positive, got %d", c.Sync.PageSize)
	}
	if c.Sync.Concurrency <= 0 {
		return fmt.Errorf("invalid config: sync.concurrency must be positive, got %d", c.Sync.Concurrency)
	}
	if c.Sync.QPS <= 0 {
		return fmt.Errorf("invalid config: sync.qps must be positive, got %v", c.Sync.QPS)
	}
	return nil
}

// CachePath returns the local cache database path.
func (c *Config) CachePath() string {
	if c.Cache.Path != "" {
		return c.Cache.Path
	}
	return filepath.Join(DataDir(), appName+".db")
}

// ConfigDir returns the nimbus config directory path.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appName)
}

// DataDir returns the nimbus data directory path.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", appName)
}
