package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/notify"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 240, cfg.Capture.Width)
	assert.Equal(t, 240, cfg.Capture.Height)
	assert.Equal(t, 10, cfg.Capture.FPS)
	assert.Equal(t, detector.SpaceFractional, cfg.Classifier.Space)
	assert.Equal(t, gesture.DefaultTouchThreshold, cfg.Classifier.TouchThreshold)
	assert.Equal(t, gesture.CompareLabel, cfg.Tracker.Compare)
	assert.False(t, cfg.Tracker.ForgetOnAbsent)
	assert.Equal(t, notify.DefaultTarget, cfg.Sink.Target)
	assert.Equal(t, notify.FormatPayload, cfg.Sink.Format)
	assert.Equal(t, 5*time.Second, cfg.PluginTimeout())
	assert.Equal(t, "mudra.db", filepath.Base(cfg.DatabasePath()))
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "mudra.json", `{
		"classifier": {"touch_threshold": 36, "coordinate_space": "pixel"},
		"tracker": {"compare": "payload", "forget_on_absent": true},
		"sink": {"target": "192.168.7.2:12345", "format": "landmarks"},
		"actions": [{"payload": "1000", "plugin": "tone", "action": "play"}]
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, detector.SpacePixel, cfg.Classifier.Space)
	assert.Equal(t, 36.0, cfg.Classifier.TouchThreshold)
	assert.Equal(t, gesture.ComparePayload, cfg.Tracker.Compare)
	assert.True(t, cfg.Tracker.ForgetOnAbsent)
	assert.Equal(t, notify.BoardTarget, cfg.Sink.Target)
	assert.Equal(t, notify.FormatLandmarks, cfg.Sink.Format)
	require.Len(t, cfg.Actions, 1)
	assert.Equal(t, "tone", cfg.Actions[0].Plugin)

	// Untouched sections keep their defaults.
	assert.Equal(t, Default().Capture, cfg.Capture)
	assert.Equal(t, Default().Detector, cfg.Detector)
	assert.Equal(t, Default().Sink.LogInterval, cfg.Sink.LogInterval)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("wrong extension", func(t *testing.T) {
		_, err := Load(writeConfig(t, "mudra.yaml", "{}"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), ".json extension")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("too large", func(t *testing.T) {
		body := `{"data_dir": "` + strings.Repeat("x", maxFileSize) + `"}`
		_, err := Load(writeConfig(t, "big.json", body))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "too large")
	})

	t.Run("bad JSON", func(t *testing.T) {
		_, err := Load(writeConfig(t, "bad.json", "{"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse")
	})

	t.Run("unknown compare mode", func(t *testing.T) {
		_, err := Load(writeConfig(t, "bad.json", `{"tracker": {"compare": "shape"}}`))
		var cfgErr *gesture.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "compare", cfgErr.Field)
	})

	t.Run("pixel threshold in fractional space", func(t *testing.T) {
		_, err := Load(writeConfig(t, "bad.json", `{"classifier": {"touch_threshold": 50}}`))
		var cfgErr *gesture.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "touch_threshold", cfgErr.Field)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero fps", func(c *Config) { c.Capture.FPS = 0 }, "capture"},
		{"bad motion threshold", func(c *Config) { c.Motion.Enabled = true; c.Motion.Threshold = -1 }, "motion"},
		{"no hands", func(c *Config) { c.Detector.MaxHands = 0 }, "max_hands"},
		{"detection confidence", func(c *Config) { c.Detector.MinConfidence = 1.5 }, "min_detection_confidence"},
		{"empty target", func(c *Config) { c.Sink.Target = "" }, "target"},
		{"server without addr", func(c *Config) { c.Server.Addr = "" }, "addr"},
		{"journal without data dir", func(c *Config) { c.DataDir = "" }, "data_dir"},
		{"plugin timeout", func(c *Config) { c.PluginTimeoutMs = 0 }, "plugin_timeout_ms"},
		{"capture failures", func(c *Config) { c.MaxCaptureFailures = 0 }, "max_capture_failures"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("server disabled needs no addr", func(t *testing.T) {
		cfg := Default()
		cfg.Server = ServerConfig{}
		assert.NoError(t, cfg.Validate())
	})
}

func TestSinkConfig_UsesCaptureSize(t *testing.T) {
	cfg := Default()
	cfg.Capture.Width, cfg.Capture.Height = 640, 480
	cfg.Sink.Width, cfg.Sink.Height = 0, 0

	s := cfg.SinkConfig()
	assert.Equal(t, 640, s.Width)
	assert.Equal(t, 480, s.Height)
}
