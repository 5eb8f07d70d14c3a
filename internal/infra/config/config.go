// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Player     PlayerConfig            `yaml:"player"`
	Engine     EngineConfig            `yaml:"engine"`
	Background BackgroundConfig        `yaml:"background"`
	Playlists  PlaylistsConfig         `yaml:"playlists"`
	Filters    map[string]FilterConfig `yaml:"filters"`
	Hooks      HooksConfig             `yaml:"hooks"`
}

// PlayerConfig represents playback controller configuration.
type PlayerConfig struct {
	Volume      float64 `yaml:"volume" default:"0.5" validate:"gte=0,lte=1"`
	EventBuffer int     `yaml:"event_buffer" default:"64" validate:"gte=1,lte=4096"`
}

// EngineConfig represents the mpv media engine configuration.
type EngineConfig struct {
	Executable       string   `yaml:"executable" default:"mpv" validate:"required"`
	SocketPath       string   `yaml:"socket_path"`
	StartTimeoutMs   int      `yaml:"start_timeout_ms" default:"5000" validate:"gte=100,lte=60000"`
	CommandTimeoutMs int      `yaml:"command_timeout_ms" default:"2000" validate:"gte=10,lte=30000"`
	ExtraArgs        []string `yaml:"extra_args"`
}

// BackgroundConfig represents the muted looping background video.
type BackgroundConfig struct {
	Source string `yaml:"source"`
}

// PlaylistsConfig represents playlist file handling configuration.
type PlaylistsConfig struct {
	Directory  string   `yaml:"directory" default:"."`
	AudioTypes []string `yaml:"audio_types" default:"[\".mp3\",\".wav\",\".ogg\"]" validate:"min=1,dive,startswith=."`
}

// FilterConfig represents a load filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// HooksConfig represents shell commands run at startup and shutdown.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	var cfg Config
	// Defaults on a zero value cannot fail.
	_ = defaults.Set(&cfg)
	return &cfg
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	// Set defaults first so explicit zero values in the file are kept
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	return cfg.finish()
}

// LoadOrDefault loads path, falling back to defaults when the file does not
// exist. Environment variables apply either way.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default().finish()
	}
	return Load(path)
}

// finish applies environment overrides and validates.
func (c *Config) finish() (*Config, error) {
	// Override with environment variables
	c.overrideFromEnv()

	// Validate configuration
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return c, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("MUSICBOX_MPV_PATH"); v != "" {
		c.Engine.Executable = v
	}
	if v := os.Getenv("MUSICBOX_BACKGROUND"); v != "" {
		c.Background.Source = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if c.Background.Source != "" {
		if _, err := os.Stat(c.Background.Source); err != nil {
			return errors.Wrapf(err, "background source %s", c.Background.Source)
		}
	}

	return nil
}

// StartTimeout returns the engine start timeout.
func (c *Config) StartTimeout() time.Duration {
	return time.Duration(c.Engine.StartTimeoutMs) * time.Millisecond
}

// CommandTimeout returns the engine command timeout.
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.Engine.CommandTimeoutMs) * time.Millisecond
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}
