// Package config loads the heat controller's settings from struct tag
// defaults, HEAT_* environment variables and command line flags, in that
// order of precedence (later wins).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/koding/multiconfig"

	"github.com/sweeney/heat-controller/internal/history"
	"github.com/sweeney/heat-controller/internal/logic"
	"github.com/sweeney/heat-controller/internal/mqtt"
)

// EnvPrefix prefixes every environment variable, e.g. HEAT_OVERRIDE_COOLDOWN.
const EnvPrefix = "HEAT"

// SystemTopic values with special meaning.
const (
	SystemTopicAuto = "auto" // derive from the device name
	SystemTopicOff  = "off"
)

// Config is the raw configuration surface.
type Config struct {
	Broker   string `default:"tcp://127.0.0.1:1883"`
	ClientID string `default:"heat-controller"`
	Username string `default:"tasmota"`
	Password string `default:"tasmota"`

	Device string `default:"tasmota_9DA6D1"`
	Sensor string `default:"SI7021"`

	Setpoint         float64 `default:"21.8"`
	Hysteresis       float64 `default:"0.2"`
	ComfortWindows   string  `default:"6-8,19-21"`
	OverrideCooldown string  `default:"1h"`

	HistoryCapacity int    `default:"100"`
	HistoryFile     string `default:"~/.heat-controller/history.json"`

	// TimeZone of the device clock. Telemetry timestamps carry no zone.
	TimeZone string `default:"Local"`

	HTTP           string `default:":8080"`
	SystemTopic    string `default:"auto"`
	ConnectTimeout string `default:"10s"`

	LogLevel string `default:"info"`

	windows        []logic.Window
	cooldown       time.Duration
	location       *time.Location
	connectTimeout time.Duration
}

// Load reads configuration from tags, environment and args, then validates it.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	loader := multiconfig.MultiLoader(
		&multiconfig.TagLoader{},
		&multiconfig.EnvironmentLoader{Prefix: EnvPrefix, CamelCase: true},
		&multiconfig.FlagLoader{CamelCase: true, EnvPrefix: EnvPrefix, Args: args},
	)
	if err := loader.Load(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the raw values and parses the derived ones.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Broker) == "" {
		errs = append(errs, errors.New("broker must be set"))
	}
	if strings.TrimSpace(c.Device) == "" {
		errs = append(errs, errors.New("device must be set"))
	}
	if c.Hysteresis <= 0 {
		errs = append(errs, fmt.Errorf("hysteresis must be positive, got %v", c.Hysteresis))
	}
	if c.HistoryCapacity < 1 {
		errs = append(errs, fmt.Errorf("history capacity must be positive, got %d", c.HistoryCapacity))
	}

	windows, err := logic.ParseWindows(c.ComfortWindows)
	if err != nil {
		errs = append(errs, fmt.Errorf("comfort windows: %w", err))
	}
	c.windows = windows

	cooldown, err := time.ParseDuration(c.OverrideCooldown)
	if err != nil {
		errs = append(errs, fmt.Errorf("override cooldown: %w", err))
	} else if cooldown <= 0 {
		errs = append(errs, fmt.Errorf("override cooldown must be positive, got %v", cooldown))
	}
	c.cooldown = cooldown

	timeout, err := time.ParseDuration(c.ConnectTimeout)
	if err != nil {
		errs = append(errs, fmt.Errorf("connect timeout: %w", err))
	} else if timeout <= 0 {
		errs = append(errs, fmt.Errorf("connect timeout must be positive, got %v", timeout))
	}
	c.connectTimeout = timeout

	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		errs = append(errs, fmt.Errorf("time zone: %w", err))
	}
	c.location = loc

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Windows returns the parsed comfort windows.
func (c *Config) Windows() []logic.Window {
	return c.windows
}

// Cooldown returns the parsed override cooldown.
func (c *Config) Cooldown() time.Duration {
	return c.cooldown
}

// Location returns the device time zone.
func (c *Config) Location() *time.Location {
	return c.location
}

// Timeout returns the parsed initial connect timeout.
func (c *Config) Timeout() time.Duration {
	return c.connectTimeout
}

// Policy returns the hysteresis policy for the configured setpoint.
func (c *Config) Policy() logic.Policy {
	return logic.Policy{Setpoint: c.Setpoint, Hysteresis: c.Hysteresis}
}

// Topics returns the device's MQTT topics.
func (c *Config) Topics() mqtt.Topics {
	return mqtt.NewTopics(c.Device)
}

// SystemTopicName resolves SystemTopic. An empty result disables system events.
func (c *Config) SystemTopicName() string {
	switch c.SystemTopic {
	case SystemTopicAuto:
		return mqtt.DefaultSystemTopic(c.Device)
	case SystemTopicOff:
		return ""
	}
	return c.SystemTopic
}

// HistoryPath returns the configured history file, or the default when unset.
func (c *Config) HistoryPath() string {
	if c.HistoryFile == "" {
		return history.DefaultPath
	}
	return c.HistoryFile
}
