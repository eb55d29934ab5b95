// Package config loads recorder settings from JSON or YAML files. Every field
// is optional; the Get* accessors supply defaults for anything omitted.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/tunnel.report/internal/classify"
	"github.com/banshee-data/tunnel.report/internal/recording"
	"github.com/banshee-data/tunnel.report/internal/sensorenv"
	"github.com/banshee-data/tunnel.report/internal/serialmux"
	"github.com/banshee-data/tunnel.report/internal/units"
)

// Sensor sources.
const (
	SourceWebSocket = "websocket"
	SourceSerial    = "serial"
	SourceSynthetic = "synthetic"
)

// Defaults for settings that are not classifier thresholds.
const (
	DefaultListen          = ":8080"
	DefaultSource          = SourceWebSocket
	DefaultMQTTTopic       = "tunnel/status"
	DefaultMQTTClientID    = "tunnel-report"
	DefaultSyntheticRateHz = 50.0
	DefaultSyntheticMode   = "still"
)

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Config is the root configuration document.
type Config struct {
	Listen     *string                `json:"listen,omitempty" yaml:"listen,omitempty"`
	Source     *string                `json:"source,omitempty" yaml:"source,omitempty"`
	SerialPort *string                `json:"serial_port,omitempty" yaml:"serial_port,omitempty"`
	Serial     *serialmux.PortOptions `json:"serial,omitempty" yaml:"serial,omitempty"`

	// Origins allowed to open /ws/device. Empty means same-origin only.
	AllowedOrigins []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty"`

	// Recording
	DisplayCapacity *int    `json:"display_capacity,omitempty" yaml:"display_capacity,omitempty"`
	Units           *string `json:"units,omitempty" yaml:"units,omitempty"`

	// Classifier
	WindowSize               *int     `json:"window_size,omitempty" yaml:"window_size,omitempty"`
	MinSamples               *int     `json:"min_samples,omitempty" yaml:"min_samples,omitempty"`
	TunnelAcceleration       *float64 `json:"tunnel_acceleration,omitempty" yaml:"tunnel_acceleration,omitempty"`
	StillAcceleration        *float64 `json:"still_acceleration,omitempty" yaml:"still_acceleration,omitempty"`
	TunnelOrientationChanges *int     `json:"tunnel_orientation_changes,omitempty" yaml:"tunnel_orientation_changes,omitempty"`
	StillOrientationChanges  *int     `json:"still_orientation_changes,omitempty" yaml:"still_orientation_changes,omitempty"`

	// Status publishing
	MQTTBroker   *string `json:"mqtt_broker,omitempty" yaml:"mqtt_broker,omitempty"`
	MQTTTopic    *string `json:"mqtt_topic,omitempty" yaml:"mqtt_topic,omitempty"`
	MQTTClientID *string `json:"mqtt_client_id,omitempty" yaml:"mqtt_client_id,omitempty"`

	// Synthetic source
	SyntheticRateHz  *float64 `json:"synthetic_rate_hz,omitempty" yaml:"synthetic_rate_hz,omitempty"`
	SyntheticProfile *string  `json:"synthetic_profile,omitempty" yaml:"synthetic_profile,omitempty"`
}

// Load reads a Config from a .json, .yaml or .yml file and validates it.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
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

	cfg := &Config{}
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", filepath.Base(cleanPath), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configured values are usable together.
func (c *Config) Validate() error {
	switch c.GetSource() {
	case SourceWebSocket, SourceSynthetic:
	case SourceSerial:
		if c.GetSerialPort() == "" {
			return fmt.Errorf("serial_port is required when source is %q", SourceSerial)
		}
	default:
		return fmt.Errorf("unknown source %q: expected %s, %s or %s", c.GetSource(), SourceWebSocket, SourceSerial, SourceSynthetic)
	}

	if c.Serial != nil {
		if _, err := c.Serial.Normalize(); err != nil {
			return fmt.Errorf("serial: %w", err)
		}
	}

	th := c.Thresholds()
	if err := th.Validate(); err != nil {
		return err
	}
	if c.GetDisplayCapacity() < th.WindowSize {
		return fmt.Errorf("display_capacity %d must be at least window_size %d", c.GetDisplayCapacity(), th.WindowSize)
	}
	if !units.IsValid(c.GetUnits()) {
		return fmt.Errorf("invalid units %q: expected %s", c.GetUnits(), units.GetValidUnitsString())
	}
	if err := sensorenv.ValidateRate(c.GetSyntheticRateHz()); err != nil {
		return fmt.Errorf("synthetic_rate_hz: %w", err)
	}
	return nil
}

// Thresholds builds classifier parameters, falling back to the stock values.
func (c *Config) Thresholds() classify.Thresholds {
	th := classify.DefaultThresholds()
	if c.WindowSize != nil {
		th.WindowSize = *c.WindowSize
	}
	if c.MinSamples != nil {
		th.MinSamples = *c.MinSamples
	}
	if c.TunnelAcceleration != nil {
		th.TunnelAcceleration = *c.TunnelAcceleration
	}
	if c.StillAcceleration != nil {
		th.StillAcceleration = *c.StillAcceleration
	}
	if c.TunnelOrientationChanges != nil {
		th.TunnelOrientationChanges = *c.TunnelOrientationChanges
	}
	if c.StillOrientationChanges != nil {
		th.StillOrientationChanges = *c.StillOrientationChanges
	}
	return th
}

func stringOr(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

// GetListen returns the HTTP listen address.
func (c *Config) GetListen() string { return stringOr(c.Listen, DefaultListen) }

// GetSource returns the sensor source name.
func (c *Config) GetSource() string { return strings.ToLower(stringOr(c.Source, DefaultSource)) }

// GetSerialPort returns the serial device path (empty if unset).
func (c *Config) GetSerialPort() string { return stringOr(c.SerialPort, "") }

// GetSerialOptions returns the serial options; zero values are defaulted by
// serialmux.
func (c *Config) GetSerialOptions() serialmux.PortOptions {
	if c.Serial == nil {
		return serialmux.PortOptions{}
	}
	return *c.Serial
}

// GetAllowedOrigins returns the origins allowed to connect a device.
func (c *Config) GetAllowedOrigins() []string { return c.AllowedOrigins }

// GetDisplayCapacity returns the display buffer bound.
func (c *Config) GetDisplayCapacity() int {
	if c.DisplayCapacity == nil {
		return recording.DefaultDisplayCapacity
	}
	return *c.DisplayCapacity
}

// GetUnits returns the acceleration display units.
func (c *Config) GetUnits() string { return stringOr(c.Units, units.MPS2) }

// GetMQTTBroker returns the MQTT broker URL; empty disables publishing.
func (c *Config) GetMQTTBroker() string { return stringOr(c.MQTTBroker, "") }

// GetMQTTTopic returns the status topic.
func (c *Config) GetMQTTTopic() string { return stringOr(c.MQTTTopic, DefaultMQTTTopic) }

// GetMQTTClientID returns the MQTT client identifier.
func (c *Config) GetMQTTClientID() string { return stringOr(c.MQTTClientID, DefaultMQTTClientID) }

// GetSyntheticRateHz returns the synthetic generator rate.
func (c *Config) GetSyntheticRateHz() float64 {
	if c.SyntheticRateHz == nil {
		return DefaultSyntheticRateHz
	}
	return *c.SyntheticRateHz
}

// GetSyntheticProfile returns the synthetic motion profile name.
func (c *Config) GetSyntheticProfile() string {
	return stringOr(c.SyntheticProfile, DefaultSyntheticMode)
}
