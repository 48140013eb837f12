// Package config loads the gazed process configuration from an optional
// JSON file with environment variable overrides (GAZE_* by default).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/c360/gaze/errors"
	"github.com/c360/gaze/pkg/security"
)

// Config is the complete process configuration.
type Config struct {
	Platform PlatformConfig  `json:"platform"`
	NATS     NATSConfig      `json:"nats"`
	Security security.Config `json:"security,omitempty"`
	Gaze     GazeConfig      `json:"gaze"`
	Log      LogConfig       `json:"log,omitempty"`
}

// PlatformConfig identifies this process on a shared bus.
type PlatformConfig struct {
	// ID is the service identity echoed in status responses and
	// cache-invalidation notices.
	ID          string `json:"id"`
	Environment string `json:"environment,omitempty"`
}

// NATSConfig defines bus connection settings.
type NATSConfig struct {
	URLs          []string      `json:"urls,omitempty"`
	MaxReconnects int           `json:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty"`
	Username      string        `json:"username,omitempty"`
	Password      string        `json:"password,omitempty"`
	Token         string        `json:"token,omitempty"`
}

// GazeConfig holds the scanning service's own settings.
type GazeConfig struct {
	// DataDir is the base directory for the pattern list and matcher
	// cache files.
	DataDir string `json:"data_dir"`
	// MailboxSize bounds the inbound message queue. Overflow drops the
	// oldest queued message.
	MailboxSize int `json:"mailbox_size,omitempty"`
	// Subjects overrides the default bus subject names.
	Subjects SubjectsConfig `json:"subjects,omitempty"`
}

// SubjectsConfig names the six bus subjects. Empty fields keep the
// defaults from the message package.
type SubjectsConfig struct {
	OfferForScan    string `json:"offer_for_scan,omitempty"`
	RefocusPatterns string `json:"refocus_patterns,omitempty"`
	StatusCheck     string `json:"status_check,omitempty"`
	MatchFound      string `json:"match_found,omitempty"`
	StatusResponse  string `json:"status_response,omitempty"`
	CacheInvalidate string `json:"cache_invalidate,omitempty"`
}

// LogConfig controls process logging.
type LogConfig struct {
	Level  string `json:"level,omitempty"`  // debug, info, warn, error
	Format string `json:"format,omitempty"` // json, text
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	return &Config{
		Platform: PlatformConfig{ID: "gazed"},
		NATS: NATSConfig{
			URLs:          []string{"nats://localhost:4222"},
			MaxReconnects: 10,
			ReconnectWait: 2 * time.Second,
		},
		Gaze: GazeConfig{
			DataDir:     "/var/lib/gaze",
			MailboxSize: 1024,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Loader reads configuration from a file and the environment.
type Loader struct {
	envPrefix string
}

// NewLoader creates a loader using the given env var prefix (normally
// "GAZE").
func NewLoader(envPrefix string) *Loader {
	return &Loader{envPrefix: envPrefix}
}

// Load builds the effective configuration: defaults, then the JSON file
// at path (skipped when path is empty), then environment overrides.
func (l *Loader) Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "Config", "Load", "read config file")
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapInvalid(err, "Config", "Load", "parse config file")
		}
	}

	l.applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) applyEnvOverrides(cfg *Config) {
	if val := os.Getenv(l.envPrefix + "_PLATFORM_ID"); val != "" {
		cfg.Platform.ID = val
	}
	if val := os.Getenv(l.envPrefix + "_NATS_URLS"); val != "" {
		cfg.NATS.URLs = strings.Split(val, ",")
	}
	if val := os.Getenv(l.envPrefix + "_NATS_USERNAME"); val != "" {
		cfg.NATS.Username = val
	}
	if val := os.Getenv(l.envPrefix + "_NATS_PASSWORD"); val != "" {
		cfg.NATS.Password = val
	}
	if val := os.Getenv(l.envPrefix + "_NATS_TOKEN"); val != "" {
		cfg.NATS.Token = val
	}
	if val := os.Getenv(l.envPrefix + "_DATA_DIR"); val != "" {
		cfg.Gaze.DataDir = val
	}
	if val := os.Getenv(l.envPrefix + "_MAILBOX_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Gaze.MailboxSize = n
		}
	}
	if val := os.Getenv(l.envPrefix + "_LOG_LEVEL"); val != "" {
		cfg.Log.Level = val
	}
	if val := os.Getenv(l.envPrefix + "_LOG_FORMAT"); val != "" {
		cfg.Log.Format = val
	}
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if c.Platform.ID == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: platform.id is required", errors.ErrInvalidConfig),
			"Config", "Validate", "validate platform")
	}
	if len(c.NATS.URLs) == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: nats.urls is required", errors.ErrInvalidConfig),
			"Config", "Validate", "validate nats")
	}
	if c.Gaze.DataDir == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: gaze.data_dir is required", errors.ErrInvalidConfig),
			"Config", "Validate", "validate gaze")
	}
	if c.Gaze.MailboxSize <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: gaze.mailbox_size must be positive", errors.ErrInvalidConfig),
			"Config", "Validate", "validate gaze")
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.WrapInvalid(
			fmt.Errorf("%w: unknown log level %q", errors.ErrInvalidConfig, c.Log.Level),
			"Config", "Validate", "validate log")
	}
	switch c.Log.Format {
	case "", "json", "text":
	default:
		return errors.WrapInvalid(
			fmt.Errorf("%w: unknown log format %q", errors.ErrInvalidConfig, c.Log.Format),
			"Config", "Validate", "validate log")
	}
	return nil
}
