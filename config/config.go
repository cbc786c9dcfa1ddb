// SPDX-License-Identifier: EPL-2.0

// Package config provides configuration loading for audrender.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ik5/audrender/drm"
	"github.com/ik5/audrender/logger"
)

// Config represents the full configuration of a render.
type Config struct {
	// Input/Output
	Input  string `yaml:"input"`
	Output string `yaml:"output"`

	// Output processing. OutputRate 0 keeps the decoded rate.
	OutputRate  int     `yaml:"output_rate"`
	Mono        bool    `yaml:"mono"`
	Volume      float64 `yaml:"volume"`
	Speed       float64 `yaml:"speed"`
	SkipSilence bool    `yaml:"skip_silence"`

	// Timing
	BufferMs   int   `yaml:"buffer_ms"`
	TickMs     int   `yaml:"tick_ms"`
	ProgressMs int   `yaml:"progress_ms"`
	StartMs    int64 `yaml:"start_ms"`
	// Realtime plays against the wall clock instead of rendering as fast as
	// the decoder allows.
	Realtime bool `yaml:"realtime"`

	DRM DRMConfig `yaml:"drm"`

	// Logging
	LogLevel string `yaml:"log_level"`
	Quiet    bool   `yaml:"quiet"`
}

// DRMConfig configures ClearKey decryption.
type DRMConfig struct {
	// ClearKeys maps hex key ids to hex keys.
	ClearKeys   map[string]string `yaml:"clear_keys"`
	LicenseFile string            `yaml:"license_file"`
	// LicenseDelayMs simulates license server latency.
	LicenseDelayMs int `yaml:"license_delay_ms"`
	// PlayClearWithoutKeys lets clear lead samples play before keys arrive.
	PlayClearWithoutKeys bool `yaml:"play_clear_without_keys"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		Output: "out.wav",

		Volume: 1.0,
		Speed:  1.0,

		BufferMs:   250,
		TickMs:     10,
		ProgressMs: 1000,

		LogLevel: "info",
	}
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the configuration for values playback cannot use.
func (c Config) Validate() error {
	switch {
	case c.Input == "":
		return ErrNoInput
	case c.Volume < 0:
		return ErrInvalidVolume
	case c.Speed <= 0:
		return ErrInvalidSpeed
	case c.OutputRate < 0:
		return ErrInvalidRate
	case c.BufferMs <= 0:
		return fmt.Errorf("%w: buffer_ms %d", ErrInvalidDuration, c.BufferMs)
	case c.TickMs <= 0:
		return fmt.Errorf("%w: tick_ms %d", ErrInvalidDuration, c.TickMs)
	case c.ProgressMs < 0:
		return fmt.Errorf("%w: progress_ms %d", ErrInvalidDuration, c.ProgressMs)
	case c.StartMs < 0:
		return fmt.Errorf("%w: start_ms %d", ErrInvalidDuration, c.StartMs)
	case len(c.DRM.ClearKeys) > 0 && c.DRM.LicenseFile != "":
		return ErrConflictingKeys
	}
	return nil
}

func (c Config) BufferDuration() time.Duration {
	return time.Duration(c.BufferMs) * time.Millisecond
}

func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickMs) * time.Millisecond
}

func (c Config) ProgressInterval() time.Duration {
	return time.Duration(c.ProgressMs) * time.Millisecond
}

// StartUs returns the start position in microseconds.
func (c Config) StartUs() int64 {
	return c.StartMs * 1000
}

// Level returns the effective log level.
func (c Config) Level() logger.Level {
	if c.Quiet {
		return logger.LevelQuiet
	}
	return logger.ParseLevel(c.LogLevel)
}

// KeyProvider builds the key provider for protected content, or nil when no
// keys are configured.
func (c Config) KeyProvider() (drm.KeyProvider, error) {
	switch {
	case len(c.DRM.ClearKeys) > 0:
		keys, err := drm.ParseStaticKeys(c.DRM.ClearKeys)
		if err != nil {
			return nil, fmt.Errorf("clear_keys: %w", err)
		}
		return keys, nil
	case c.DRM.LicenseFile != "":
		return drm.LicenseFile{
			Path:  c.DRM.LicenseFile,
			Delay: time.Duration(c.DRM.LicenseDelayMs) * time.Millisecond,
		}, nil
	default:
		return nil, nil
	}
}
