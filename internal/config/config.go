// Package config loads the tracker configuration from YAML or TOML, with
// environment overrides for deployment secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
	"github.com/sysfr3ak/archive-sys/internal/access"
	"gopkg.in/yaml.v3"
)

// Format is a config file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Config is the top-level tracker configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database" toml:"database"`
	HTTP     HTTPConfig     `yaml:"http" toml:"http"`
	Storage  StorageConfig  `yaml:"storage" toml:"storage"`
	Tracker  TrackerConfig  `yaml:"tracker" toml:"tracker"`
	Backup   BackupConfig   `yaml:"backup" toml:"backup"`
	Notify   NotifyConfig   `yaml:"notify" toml:"notify"`
	Log      LogConfig      `yaml:"log" toml:"log"`
	Users    []UserConfig   `yaml:"users" toml:"users"`
}

// DatabaseConfig selects the driver and connection. DSN, when set, is
// passed to the driver verbatim and the other fields are ignored.
type DatabaseConfig struct {
	Driver   string `yaml:"driver" toml:"driver"` // sqlite, mysql or postgres
	DSN      string `yaml:"dsn" toml:"dsn"`
	Path     string `yaml:"path" toml:"path"` // sqlite file
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	User     string `yaml:"user" toml:"user"`
	Password string `yaml:"password" toml:"password"`
	Name     string `yaml:"name" toml:"name"`
}

// HTTPConfig is the API listener.
type HTTPConfig struct {
	Host string `yaml:"host" toml:"host"`
	Port int    `yaml:"port" toml:"port"`
}

// StorageConfig is where job photos are kept.
type StorageConfig struct {
	UploadDir string `yaml:"upload_dir" toml:"upload_dir"`
	MaxPerJob int    `yaml:"max_per_job" toml:"max_per_job"`
}

// TrackerConfig tunes stage handling.
type TrackerConfig struct {
	// StrictStages rejects stage codes outside the catalog at the API and
	// CLI. The store itself accepts any code.
	StrictStages bool   `yaml:"strict_stages" toml:"strict_stages"`
	Timezone     string `yaml:"timezone" toml:"timezone"` // day boundaries for audit filters
}

// BackupConfig drives the backup reminder.
type BackupConfig struct {
	DueSoonDays int    `yaml:"due_soon_days" toml:"due_soon_days"`
	Schedule    string `yaml:"schedule" toml:"schedule"`
	LockFile    string `yaml:"lock_file" toml:"lock_file"`
}

// NotifyConfig lists the chat destinations for reminders.
type NotifyConfig struct {
	Slack   ChatConfig `yaml:"slack" toml:"slack"`
	Discord ChatConfig `yaml:"discord" toml:"discord"`
}

// ChatConfig is a bot token plus the channel to post to.
type ChatConfig struct {
	BotToken string `yaml:"bot_token" toml:"bot_token"`
	Channel  string `yaml:"channel" toml:"channel"`
}

// Enabled reports whether the destination is configured.
func (c ChatConfig) Enabled() bool {
	return c.BotToken != "" || c.Channel != ""
}

// LogConfig selects the log level and handler.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // text, json or auto
}

// UserConfig is a user seeded at db init.
type UserConfig struct {
	Username string `yaml:"username" toml:"username"`
	FullName string `yaml:"full_name" toml:"full_name"`
	Role     string `yaml:"role" toml:"role"`
}

// Load reads a config file from path, applies environment overrides and
// returns a validated Config. Files ending in .toml are read as TOML,
// anything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := decode(data, FormatFor(path))
	if err != nil {
		return nil, err
	}
	cfg.applyEnv(os.LookupEnv)
	return cfg.finish()
}

// Default returns the configuration used when no file exists, with
// environment overrides applied.
func Default() (*Config, error) {
	cfg := &Config{}
	cfg.applyEnv(os.LookupEnv)
	return cfg.finish()
}

// Parse decodes data in the given format into a validated Config. No
// environment overrides are applied.
func Parse(data []byte, format Format) (*Config, error) {
	cfg, err := decode(data, format)
	if err != nil {
		return nil, err
	}
	return cfg.finish()
}

// FormatFor picks the format from a file extension.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

func decode(data []byte, format Format) (*Config, error) {
	var cfg Config
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse toml: %w", err)
		}
	case FormatYAML, "":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse: %w", err)
		}
	default:
		return nil, fmt.Errorf("config: unknown format %q", format)
	}
	return &cfg, nil
}

func (c *Config) finish() (*Config, error) {
	c.applyDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// applyEnv overrides settings from ARCHIVE_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("ARCHIVE_DB_DRIVER"); ok && v != "" {
		c.Database.Driver = v
	}
	if v, ok := lookup("ARCHIVE_DB_DSN"); ok && v != "" {
		c.Database.DSN = v
	}
	if v, ok := lookup("ARCHIVE_HTTP_PORT"); ok && v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HTTP.Port = port
		} else {
			c.HTTP.Port = -1 // rejected by validate
		}
	}
	if v, ok := lookup("ARCHIVE_LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup("ARCHIVE_SLACK_TOKEN"); ok && v != "" {
		c.Notify.Slack.BotToken = v
	}
	if v, ok := lookup("ARCHIVE_DISCORD_TOKEN"); ok && v != "" {
		c.Notify.Discord.BotToken = v
	}
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			c.Database.Path = "archive.db"
		}
	case "mysql":
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
	case "postgres":
		if c.Database.Host == "" {
			c.Database.Host = "localhost"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 5432
		}
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.Storage.UploadDir == "" {
		c.Storage.UploadDir = "uploads"
	}
	if c.Storage.MaxPerJob == 0 {
		c.Storage.MaxPerJob = 30
	}
	if c.Backup.DueSoonDays == 0 {
		c.Backup.DueSoonDays = 5
	}
	if c.Backup.Schedule == "" {
		c.Backup.Schedule = "0 8 * * *"
	}
	if c.Backup.LockFile == "" {
		c.Backup.LockFile = filepath.Join(os.TempDir(), "archive-reminder.lock")
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	for i := range c.Users {
		if c.Users[i].Role == "" {
			c.Users[i].Role = string(access.RoleStaff)
		}
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string

	switch c.Database.Driver {
	case "sqlite":
	case "mysql", "postgres":
		if c.Database.DSN == "" && c.Database.Name == "" {
			errs = append(errs, "database.name or database.dsn is required for "+c.Database.Driver)
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not one of sqlite, mysql, postgres", c.Database.Driver))
	}
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Sprintf("http.port %d is out of range", c.HTTP.Port))
	}
	if c.Storage.MaxPerJob < 0 {
		errs = append(errs, "storage.max_per_job must not be negative")
	}
	if c.Tracker.Timezone != "" {
		if _, err := time.LoadLocation(c.Tracker.Timezone); err != nil {
			errs = append(errs, fmt.Sprintf("tracker.timezone %q: %v", c.Tracker.Timezone, err))
		}
	}
	if c.Backup.DueSoonDays < 0 {
		errs = append(errs, "backup.due_soon_days must not be negative")
	}
	if _, err := cron.ParseStandard(c.Backup.Schedule); err != nil {
		errs = append(errs, fmt.Sprintf("backup.schedule %q: %v", c.Backup.Schedule, err))
	}
	chats := []struct {
		name string
		chat ChatConfig
	}{{"slack", c.Notify.Slack}, {"discord", c.Notify.Discord}}
	for _, ch := range chats {
		if ch.chat.Enabled() && (ch.chat.BotToken == "" || ch.chat.Channel == "") {
			errs = append(errs, fmt.Sprintf("notify.%s needs both bot_token and channel", ch.name))
		}
	}
	switch c.Log.Format {
	case "text", "json", "auto":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q is not text, json or auto", c.Log.Format))
	}
	seen := make(map[string]bool)
	for i, u := range c.Users {
		if u.Username == "" {
			errs = append(errs, fmt.Sprintf("users[%d].username is required", i))
		} else if seen[u.Username] {
			errs = append(errs, fmt.Sprintf("users[%d].username %q is duplicated", i, u.Username))
		}
		seen[u.Username] = true
		if !access.ValidRole(access.Role(u.Role)) {
			errs = append(errs, fmt.Sprintf("users[%d].role %q is unknown", i, u.Role))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Location returns the time zone for calendar-day filters.
func (c *Config) Location() *time.Location {
	if c.Tracker.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Tracker.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}
