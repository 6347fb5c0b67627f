// Package config defines the worktrack application configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/GoCodeAlone/worktrack/notify"
	"github.com/GoCodeAlone/worktrack/workitem"
)

// Config is the top-level worktrack configuration.
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Auth     AuthConfig     `json:"auth" yaml:"auth"`
	Database DatabaseConfig `json:"database" yaml:"database"`
	Tracker  TrackerConfig  `json:"tracker" yaml:"tracker"`
	Notify   notify.Config  `json:"notify" yaml:"notify"`
	GitHub   GitHubConfig   `json:"github" yaml:"github"`
	LogLevel string         `json:"log_level" yaml:"log_level"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"` // listen address, e.g., ":9090"
}

// AuthConfig controls API authentication.
type AuthConfig struct {
	JWTSecret string `json:"jwt_secret" yaml:"jwt_secret"`
	AdminUser string `json:"admin_user" yaml:"admin_user"`
	AdminPass string `json:"admin_pass" yaml:"admin_pass"` // bcrypt hash
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `json:"path" yaml:"path"`
}

// TrackerConfig holds work item rules.
type TrackerConfig struct {
	NumberPrefix string          `json:"number_prefix" yaml:"number_prefix"`
	Limits       workitem.Limits `json:"limits" yaml:"limits"`
}

// GitHubConfig configures the issue importer.
type GitHubConfig struct {
	Token   string `json:"token" yaml:"token"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url"` // GitHub Enterprise API root
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":9090",
		},
		Auth: AuthConfig{
			AdminUser: "admin",
		},
		Database: DatabaseConfig{
			Path: "./data/worktrack.db",
		},
		Tracker: TrackerConfig{
			NumberPrefix: workitem.DefaultNumberPrefix,
			Limits:       workitem.DefaultLimits(),
		},
		Notify:   notify.DefaultConfig(),
		LogLevel: "info",
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every malformed value.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if strings.ContainsAny(c.Tracker.NumberPrefix, " \t%_") {
		errs = append(errs, fmt.Errorf("tracker.number_prefix %q must not contain spaces, %% or _", c.Tracker.NumberPrefix))
	}
	l := c.Tracker.Limits
	for name, v := range map[string]int{
		"title_max": l.TitleMax, "description_max": l.DescriptionMax, "name_max": l.NameMax,
		"comment_max": l.CommentMax, "person_max": l.PersonMax,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("tracker.limits.%s must not be negative", name))
		}
	}
	if c.Notify.Buffer < 0 || c.Notify.History < 0 {
		errs = append(errs, errors.New("notify.buffer and notify.history must not be negative"))
	}
	if c.Notify.DefaultTopic == notify.WildcardTopic {
		errs = append(errs, fmt.Errorf("notify.default_topic must not be %q", notify.WildcardTopic))
	}
	return errors.Join(errs...)
}

// ParseLevel maps log_level to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log_level %q", s)
}
