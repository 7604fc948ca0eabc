// Package config handles application configuration
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

//go:embed config.sample.yaml
var sampleConfig string

// GetSampleConfig returns the embedded sample configuration content
func GetSampleConfig() string {
	return sampleConfig
}

// DefaultNamespace prefixes every persisted key.
const DefaultNamespace = "todo_mui_rtk_v1_"

// Environment variables that override file configuration.
const (
	EnvSupabaseURL = "DAYBUCKET_SUPABASE_URL"
	EnvSupabaseKey = "DAYBUCKET_SUPABASE_KEY"
	EnvUserID      = "DAYBUCKET_USER_ID"
	EnvAccessToken = "DAYBUCKET_ACCESS_TOKEN"
)

// Config represents the application configuration
type Config struct {
	Storage      StorageConfig      `yaml:"storage" toml:"storage"`
	Sync         SyncConfig         `yaml:"sync" toml:"sync"`
	Reminder     ReminderConfig     `yaml:"reminder" toml:"reminder"`
	Notification NotificationConfig `yaml:"notification" toml:"notification"`
	Logging      LoggingConfig      `yaml:"logging" toml:"logging"`
	Timezone     string             `yaml:"timezone" toml:"timezone"`
	NoPrompt     bool               `yaml:"no_prompt" toml:"no_prompt"`
	OutputFormat string             `yaml:"output_format" toml:"output_format"`
}

// StorageConfig selects the local persistence backend
type StorageConfig struct {
	Backend   string `yaml:"backend" toml:"backend"` // sqlite or file
	Path      string `yaml:"path" toml:"path"`
	Namespace string `yaml:"namespace" toml:"namespace"`
}

// SyncConfig holds remote store settings
type SyncConfig struct {
	Enabled      bool   `yaml:"enabled" toml:"enabled"`
	SupabaseURL  string `yaml:"supabase_url" toml:"supabase_url"`
	Table        string `yaml:"table" toml:"table"`
	UserID       string `yaml:"user_id" toml:"user_id"`
	AccessToken  string `yaml:"access_token" toml:"access_token"`
	Debounce     string `yaml:"debounce" toml:"debounce"`           // e.g. "300ms"
	PollInterval string `yaml:"poll_interval" toml:"poll_interval"` // e.g. "30s"
}

// ReminderConfig holds reminder settings
type ReminderConfig struct {
	Enabled *bool `yaml:"enabled" toml:"enabled"` // default: true
}

// NotificationConfig selects notification channels
type NotificationConfig struct {
	OS      *bool  `yaml:"os" toml:"os"`   // default: true
	Log     *bool  `yaml:"log" toml:"log"` // default: true
	LogPath string `yaml:"log_path" toml:"log_path"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	BackgroundEnabled *bool `yaml:"background_enabled" toml:"background_enabled"` // default: true
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Storage.Backend == "" {
		c.Storage.Backend = "sqlite"
	}
	if c.Storage.Namespace == "" {
		c.Storage.Namespace = DefaultNamespace
	}
	if c.Storage.Path == "" {
		if c.Storage.Backend == "file" {
			c.Storage.Path = filepath.Join(GetDataDir(), "state")
		} else {
			c.Storage.Path = filepath.Join(GetDataDir(), "daybucket.db")
		}
	}
	if c.Sync.Table == "" {
		c.Sync.Table = "user_state"
	}
	if c.OutputFormat == "" {
		c.OutputFormat = "text"
	}
}

// Load loads configuration from the specified path, or the default XDG path if empty.
// A missing file is created from the embedded sample. A .env file in the
// working directory is loaded before environment overrides are applied.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = filepath.Join(GetConfigDir(), "config.yaml")
	}

	if err := LoadEnv(".env"); err != nil {
		return nil, err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := cfg.save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		cfg.applyEnv()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data, filepath.Ext(configPath))
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// Parse decodes config data. ext selects the format: ".toml" uses TOML,
// anything else YAML.
func Parse(data []byte, ext string) (*Config, error) {
	cfg := &Config{}
	if strings.EqualFold(ext, ".toml") {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid TOML in config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in config file: %w", err)
	}

	cfg.applyDefaults()
	cfg.Storage.Path = ExpandPath(cfg.Storage.Path)
	cfg.Notification.LogPath = ExpandPath(cfg.Notification.LogPath)
	return cfg, nil
}

// LoadEnv loads variables from a dotenv file. A missing file is not an error.
// Variables already set in the environment win.
func LoadEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// applyEnv lets DAYBUCKET_* variables override sync settings.
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvSupabaseURL); v != "" {
		c.Sync.SupabaseURL = v
	}
	if v := os.Getenv(EnvUserID); v != "" {
		c.Sync.UserID = v
	}
	if v := os.Getenv(EnvAccessToken); v != "" {
		c.Sync.AccessToken = v
	}
}

// save writes the embedded sample configuration to path
func (c *Config) save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.OutputFormat != "text" && c.OutputFormat != "json" {
		return fmt.Errorf("invalid output_format: %q (must be 'text' or 'json')", c.OutputFormat)
	}

	switch c.Storage.Backend {
	case "sqlite", "file":
	default:
		return fmt.Errorf("unknown storage.backend: %q", c.Storage.Backend)
	}

	if c.Sync.Debounce != "" {
		if _, err := time.ParseDuration(c.Sync.Debounce); err != nil {
			return fmt.Errorf("invalid duration for sync.debounce: %q", c.Sync.Debounce)
		}
	}
	if c.Sync.PollInterval != "" {
		d, err := time.ParseDuration(c.Sync.PollInterval)
		if err != nil {
			return fmt.Errorf("invalid duration for sync.poll_interval: %q", c.Sync.PollInterval)
		}
		if d < 5*time.Second {
			return fmt.Errorf("sync.poll_interval must be at least 5s, got %q", c.Sync.PollInterval)
		}
	}
	if c.Sync.Enabled && c.Sync.SupabaseURL == "" {
		return errors.New("sync.enabled requires sync.supabase_url")
	}

	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("invalid timezone: %q", c.Timezone)
		}
	}
	return nil
}

// ApplyFlags applies CLI flag overrides to the configuration
func (c *Config) ApplyFlags(noPrompt bool, outputFormat string) {
	if noPrompt {
		c.NoPrompt = true
	}
	if outputFormat != "" {
		c.OutputFormat = outputFormat
	}
}

// GetStorageBackend returns the local backend name.
func (c *Config) GetStorageBackend() string {
	if c.Storage.Backend == "" {
		return "sqlite"
	}
	return c.Storage.Backend
}

// GetStoragePath returns the database file or state directory path.
func (c *Config) GetStoragePath() string {
	return c.Storage.Path
}

// GetNamespace returns the persisted key prefix.
func (c *Config) GetNamespace() string {
	if c.Storage.Namespace == "" {
		return DefaultNamespace
	}
	return c.Storage.Namespace
}

// IsSyncEnabled returns true if remote sync is enabled
func (c *Config) IsSyncEnabled() bool {
	return c.Sync.Enabled
}

// GetSyncTable returns the remote table name.
func (c *Config) GetSyncTable() string {
	if c.Sync.Table == "" {
		return "user_state"
	}
	return c.Sync.Table
}

// GetSyncDebounce returns the quiet period before a remote write.
// Returns 300ms if not configured or invalid.
func (c *Config) GetSyncDebounce() time.Duration {
	d, err := time.ParseDuration(c.Sync.Debounce)
	if err != nil || d <= 0 {
		return 300 * time.Millisecond
	}
	return d
}

// GetPollInterval returns how often the daemon pulls the remote document.
// Returns 30s if not configured or invalid.
func (c *Config) GetPollInterval() time.Duration {
	d, err := time.ParseDuration(c.Sync.PollInterval)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// IsReminderEnabled returns true unless reminders are switched off.
func (c *Config) IsReminderEnabled() bool {
	return c.Reminder.Enabled == nil || *c.Reminder.Enabled
}

// IsOSNotificationEnabled returns true unless OS notifications are switched off.
func (c *Config) IsOSNotificationEnabled() bool {
	return c.Notification.OS == nil || *c.Notification.OS
}

// IsLogNotificationEnabled returns true unless the notification log is switched off.
func (c *Config) IsLogNotificationEnabled() bool {
	return c.Notification.Log == nil || *c.Notification.Log
}

// GetNotificationLogPath returns the notification log file path.
func (c *Config) GetNotificationLogPath() string {
	if c.Notification.LogPath != "" {
		return c.Notification.LogPath
	}
	return filepath.Join(GetDataDir(), "notifications.log")
}

// IsBackgroundLoggingEnabled returns true if background logging is enabled.
// Returns true (default) if not configured.
func (c *Config) IsBackgroundLoggingEnabled() bool {
	if c.Logging.BackgroundEnabled == nil {
		return true
	}
	return *c.Logging.BackgroundEnabled
}

// GetLocation returns the location used for calendar dates. An empty or
// unknown timezone falls back to the system location.
func (c *Config) GetLocation() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// getXDGDir returns a directory path following the XDG base directory layout.
func getXDGDir(envVar, fallbackPath string) string {
	if xdgDir := os.Getenv(envVar); xdgDir != "" {
		return filepath.Join(xdgDir, "daybucket")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", fallbackPath, "daybucket")
	}
	return filepath.Join(home, fallbackPath, "daybucket")
}

// GetConfigDir returns the configuration directory following the XDG base directory layout.
func GetConfigDir() string {
	return getXDGDir("XDG_CONFIG_HOME", ".config")
}

// GetDataDir returns the data directory following the XDG base directory layout.
func GetDataDir() string {
	return getXDGDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.ExpandEnv(path)
}
