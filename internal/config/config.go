// Package config holds the stream configuration record shared by the demo
// commands.
//
// A Config is built once at startup (defaults, then an optional YAML file,
// then command-line overrides), validated, and passed by value from then on.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// DefaultDevice selects the host's default input or output device.
const DefaultDevice = -1

// FramesPerBufferUnspecified lets the engine choose its own buffer size.
const FramesPerBufferUnspecified = 0

// Config is the immutable stream configuration.
type Config struct {
	// SampleRate in Hz. Ignored by capture-auto, which uses the device default.
	SampleRate float64 `yaml:"sample_rate"`

	// FramesPerBuffer per callback; 0 lets the engine pick.
	FramesPerBuffer int `yaml:"frames_per_buffer"`

	// Channels requested for capture and duplex streams.
	Channels int `yaml:"channels"`

	// Duration of capture/duplex runs. 0 runs until interrupted.
	Duration time.Duration `yaml:"duration"`

	// ReportInterval aggregates metrics into one log line per interval.
	// 0 logs every buffer.
	ReportInterval time.Duration `yaml:"report_interval"`

	// EventBuffer is the capacity of the callback event ring.
	EventBuffer int `yaml:"event_buffer"`

	// InputDevice and OutputDevice are device indexes, or DefaultDevice.
	InputDevice  int `yaml:"input_device"`
	OutputDevice int `yaml:"output_device"`

	// RecordPath, when set, writes captured input to a WAV file.
	RecordPath string `yaml:"record,omitempty"`
}

// Default returns the configuration the demos use when nothing is
// overridden.
func Default() Config {
	return Config{
		SampleRate:      44100,
		FramesPerBuffer: 256,
		Channels:        2,
		Duration:        10 * time.Second,
		ReportInterval:  500 * time.Millisecond,
		EventBuffer:     1024,
		InputDevice:     DefaultDevice,
		OutputDevice:    DefaultDevice,
	}
}

// Load returns Default overlaid with the YAML file at path. An empty path
// returns Default unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	if err := Parse(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse overlays YAML data onto cfg. Keys absent from data keep their
// current values.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample_rate must be positive, got %v", c.SampleRate))
	}
	if c.FramesPerBuffer < 0 {
		errs = append(errs, fmt.Errorf("frames_per_buffer must not be negative, got %d", c.FramesPerBuffer))
	}
	if c.Channels <= 0 {
		errs = append(errs, fmt.Errorf("channels must be positive, got %d", c.Channels))
	}
	if c.Duration < 0 {
		errs = append(errs, fmt.Errorf("duration must not be negative, got %s", c.Duration))
	}
	if c.ReportInterval < 0 {
		errs = append(errs, fmt.Errorf("report_interval must not be negative, got %s", c.ReportInterval))
	}
	if c.EventBuffer <= 0 {
		errs = append(errs, fmt.Errorf("event_buffer must be positive, got %d", c.EventBuffer))
	}
	if c.InputDevice < DefaultDevice {
		errs = append(errs, fmt.Errorf("input_device must be %d or a device index, got %d", DefaultDevice, c.InputDevice))
	}
	if c.OutputDevice < DefaultDevice {
		errs = append(errs, fmt.Errorf("output_device must be %d or a device index, got %d", DefaultDevice, c.OutputDevice))
	}
	return errors.Join(errs...)
}

// Marshal renders cfg as YAML, e.g. for `pademo config`.
func Marshal(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
