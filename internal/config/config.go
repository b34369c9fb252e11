// Package config provides configuration management for the browser core.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Version is the current version of codebrowser.
// This is set at build time via ldflags.
var Version = "dev"

// ImageFormat is the screenshot encoding the core requests from CDP.
type ImageFormat string

const (
	FormatPNG  ImageFormat = "png"
	FormatWebP ImageFormat = "webp"
)

// Viewport describes the emulated viewport size and pixel density.
type Viewport struct {
	Width            uint32  `yaml:"width"`
	Height           uint32  `yaml:"height"`
	DeviceScaleFactor float64 `yaml:"device_scale_factor"`
	Mobile           bool    `yaml:"mobile"`
}

// WaitStrategy is either a named CDP/DOM event or a fixed delay, mirroring
// the two-variant union in the spec (`Event(name)` / `Delay{delay_ms}`).
type WaitStrategy struct {
	Event   string `yaml:"event,omitempty"`
	DelayMs uint64 `yaml:"delay_ms,omitempty"`
}

// IsDelay reports whether this strategy is a fixed delay rather than an event wait.
func (w WaitStrategy) IsDelay() bool {
	return w.Event == "" && w.DelayMs > 0
}

// Config holds all configuration options for the browser core.
type Config struct {
	Enabled        bool `yaml:"enabled"`
	Headless       bool `yaml:"headless"`
	PersistProfile bool `yaml:"persist_profile"`

	Viewport Viewport `yaml:"viewport"`
	Format   ImageFormat `yaml:"format"`

	SegmentsMax int  `yaml:"segments_max"`
	FullPage    bool `yaml:"fullpage"`

	Wait WaitStrategy `yaml:"wait"`

	// Connection
	ConnectHost            string `yaml:"connect_host,omitempty"`
	ConnectPort            *int   `yaml:"connect_port,omitempty"`
	ConnectWS              string `yaml:"connect_ws,omitempty"`
	ConnectAttempts        uint32 `yaml:"connect_attempts"`
	ConnectAttemptTimeoutMs uint64 `yaml:"connect_attempt_timeout_ms"`

	IdleTimeoutMs uint64 `yaml:"idle_timeout_ms"`

	// Humanization (internal launch only)
	UserAgent      string `yaml:"user_agent,omitempty"`
	AcceptLanguage string `yaml:"accept_language,omitempty"`
	Timezone       string `yaml:"timezone,omitempty"`
	Locale         string `yaml:"locale,omitempty"`

	UserDataDir string `yaml:"user_data_dir,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:        true,
		Headless:       true,
		PersistProfile: false,

		Viewport: Viewport{
			Width:             1280,
			Height:            800,
			DeviceScaleFactor: 1.0,
			Mobile:            false,
		},
		Format: FormatPNG,

		SegmentsMax: 8,
		FullPage:    false,

		Wait: WaitStrategy{Event: "load"},

		ConnectAttempts:         3,
		ConnectAttemptTimeoutMs: 10_000,

		IdleTimeoutMs: 5 * 60 * 1000,
	}
}

// LoadFromFile loads configuration from a YAML file.
// Values from the file override the defaults.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Viewport.Width == 0 || c.Viewport.Height == 0 {
		return fmt.Errorf("viewport width/height must be non-zero")
	}
	if c.Format != FormatPNG && c.Format != FormatWebP {
		return fmt.Errorf("format must be one of png, webp")
	}
	if c.SegmentsMax < 1 {
		return fmt.Errorf("segments_max must be at least 1")
	}
	if c.Wait.Event == "" && c.Wait.DelayMs == 0 {
		return fmt.Errorf("wait strategy requires either event or delay_ms")
	}
	if c.ConnectAttempts == 0 {
		return fmt.Errorf("connect_attempts must be at least 1")
	}
	return nil
}

// IsExternal reports whether this configuration attaches to a user-launched
// browser rather than launching an internal one.
func (c *Config) IsExternal() bool {
	return c.ConnectPort != nil || c.ConnectWS != ""
}

// CleanupProfileOnDrop reports whether the temp user-data directory should
// be removed when the manager stops.
func (c *Config) CleanupProfileOnDrop() bool {
	return c.UserDataDir == "" || !c.PersistProfile
}

// ConnectAttemptTimeout returns the per-attempt timeout as a time.Duration.
func (c *Config) ConnectAttemptTimeout() time.Duration {
	return time.Duration(c.ConnectAttemptTimeoutMs) * time.Millisecond
}

// IdleTimeout returns the idle timeout as a time.Duration.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMs) * time.Millisecond
}
