// Package config loads the sender's settings from a JSON file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/notify"
	"github.com/ayusman/mudra/internal/plugin"
)

// maxFileSize caps the size of a config file.
const maxFileSize = 1 * 1024 * 1024

// DefaultMaxCaptureFailures is how many consecutive failed reads end the loop.
const DefaultMaxCaptureFailures = 30

// ServerConfig configures the HTTP status server.
type ServerConfig struct {
	Enabled   bool   `json:"enabled"`
	Addr      string `json:"addr"`
	StaticDir string `json:"static_dir,omitempty"`
}

// Config is the root configuration of the sender.
type Config struct {
	Capture    capture.Config        `json:"capture"`
	Motion     capture.MotionConfig  `json:"motion"`
	Detector   detector.Config       `json:"detector"`
	Classifier gesture.Config        `json:"classifier"`
	Tracker    gesture.TrackerConfig `json:"tracker"`
	Sink       notify.UDPSinkConfig  `json:"sink"`
	Server     ServerConfig          `json:"server"`

	// DataDir holds the journal database.
	DataDir string `json:"data_dir"`
	// Journal records emitted transitions in DataDir.
	Journal bool `json:"journal"`

	PluginDir       string           `json:"plugin_dir,omitempty"`
	PluginTimeoutMs int              `json:"plugin_timeout_ms"`
	Actions         []plugin.Binding `json:"actions,omitempty"`

	Tray               bool `json:"tray"`
	MaxCaptureFailures int  `json:"max_capture_failures"`
}

// Default returns the built-in configuration: a 240x240 camera at 10 FPS,
// fractional classification, payload-only datagrams to the loopback target.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		Capture:    capture.DefaultConfig(),
		Motion:     capture.DefaultMotionConfig(),
		Detector:   detector.DefaultConfig(),
		Classifier: gesture.DefaultConfig(),
		Sink:       notify.DefaultUDPSinkConfig(),
		Server: ServerConfig{
			Enabled: true,
			Addr:    "127.0.0.1:8080",
		},
		DataDir:            filepath.Join(home, ".mudra"),
		Journal:            true,
		PluginTimeoutMs:    5000,
		MaxCaptureFailures: DefaultMaxCaptureFailures,
	}
}

// Load reads a JSON config file. Fields omitted from the file keep their
// default values, so partial configs are safe.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks every section. Classifier problems are returned as
// *gesture.ConfigurationError.
func (c *Config) Validate() error {
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if err := c.Motion.Validate(); err != nil {
		return fmt.Errorf("motion: %w", err)
	}
	if err := c.Detector.Validate(); err != nil {
		return fmt.Errorf("detector: %w", err)
	}
	if err := c.Classifier.Validate(); err != nil {
		return fmt.Errorf("classifier: %w", err)
	}
	if c.Sink.Target == "" {
		return fmt.Errorf("sink: target is required")
	}
	if c.Server.Enabled && c.Server.Addr == "" {
		return fmt.Errorf("server: addr is required when enabled")
	}
	if c.Journal && c.DataDir == "" {
		return fmt.Errorf("data_dir is required when journal is on")
	}
	if c.PluginTimeoutMs <= 0 {
		return fmt.Errorf("plugin_timeout_ms must be positive, got %d", c.PluginTimeoutMs)
	}
	for i, b := range c.Actions {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("actions[%d]: %w", i, err)
		}
	}
	if c.MaxCaptureFailures < 1 {
		return fmt.Errorf("max_capture_failures must be at least 1, got %d", c.MaxCaptureFailures)
	}
	return nil
}

// PluginTimeout returns PluginTimeoutMs as a duration.
func (c *Config) PluginTimeout() time.Duration {
	return time.Duration(c.PluginTimeoutMs) * time.Millisecond
}

// DatabasePath returns the journal database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "mudra.db")
}

// SinkConfig returns the UDP sink settings with landmark scaling taken from
// the capture size.
func (c *Config) SinkConfig() notify.UDPSinkConfig {
	s := c.Sink
	if s.Width <= 0 {
		s.Width = c.Capture.Width
	}
	if s.Height <= 0 {
		s.Height = c.Capture.Height
	}
	return s
}
