// Package config defines Pendulum's typed configuration and its TOML
// loading/default-generation glue.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/le-stef/pendulum/internal/ntperrors"
)

// Config mirrors the recognized options table in the configuration file.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Clock    ClockConfig    `toml:"clock"`
	Security SecurityConfig `toml:"security"`
	Logging  LoggingConfig  `toml:"logging"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

// ServerConfig is the server.* section.
type ServerConfig struct {
	BindAddress  string `toml:"bind_address"`
	Stratum      uint8  `toml:"stratum"`
	Precision    int8   `toml:"precision"`
	PollInterval int8   `toml:"poll_interval"`
	Workers      int    `toml:"workers"`
}

// ClockConfig is the clock.* section; Source selects SystemClock or
// GpsClock.
type ClockConfig struct {
	Source string    `toml:"source"` // "system" or "gps"
	GPS    GPSConfig `toml:"gps"`
}

// GPSConfig is the clock.gps.* section.
type GPSConfig struct {
	Enabled       bool          `toml:"enabled"`
	Mode          string        `toml:"mode"` // "serial" or "gpsd"
	SerialPort    string        `toml:"serial_port"`
	BaudRate      int           `toml:"baud_rate"`
	SyncTimeout   time.Duration `toml:"sync_timeout"`
	MinSatellites uint8         `toml:"min_satellites"`
	PPSEnabled    bool          `toml:"pps_enabled"`
	PPSGPIOPin    int           `toml:"pps_gpio_pin"` // accepted, not validated, currently unused; see DESIGN.md
	GPSDHost      string        `toml:"gpsd_host"`
	GPSDPort      string        `toml:"gpsd_port"`
}

// SecurityConfig is the security.* section.
type SecurityConfig struct {
	EnableRateLimiting   bool     `toml:"enable_rate_limiting"`
	MaxRequestsPerSecond float64  `toml:"max_requests_per_second"`
	IPWhitelist          []string `toml:"ip_whitelist"`
	IPBlacklist          []string `toml:"ip_blacklist"`
}

// LoggingConfig controls logrus formatting/level, ambient to the core.
type LoggingConfig struct {
	Level string `toml:"level"`
	JSON  bool   `toml:"json"`
}

// MetricsConfig controls the Prometheus HTTP exporter.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
}

// DefaultConfig returns Pendulum's out-of-the-box configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BindAddress:  "0.0.0.0:123",
			Stratum:      16,
			Precision:    -20,
			PollInterval: 6,
			Workers:      4,
		},
		Clock: ClockConfig{
			Source: "system",
			GPS: GPSConfig{
				Enabled:       false,
				Mode:          "serial",
				SerialPort:    "/dev/ttyUSB0",
				BaudRate:      9600,
				SyncTimeout:   10 * time.Second,
				MinSatellites: 4,
				PPSEnabled:    false,
				PPSGPIOPin:    0,
				GPSDHost:      "localhost",
				GPSDPort:      "2947",
			},
		},
		Security: SecurityConfig{
			EnableRateLimiting:   true,
			MaxRequestsPerSecond: 100,
			IPWhitelist:          nil,
			IPBlacklist:          nil,
		},
		Logging: LoggingConfig{
			Level: "info",
			JSON:  false,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Address: "127.0.0.1:9123",
		},
	}
}

// Validate rejects configurations the core cannot safely run with.
func (c *Config) Validate() error {
	if c.Server.BindAddress == "" {
		return fmt.Errorf("%w: server.bind_address is empty", ntperrors.ErrConfigInvalid)
	}
	if c.Clock.Source != "system" && c.Clock.Source != "gps" {
		return fmt.Errorf("%w: clock.source must be \"system\" or \"gps\", got %q", ntperrors.ErrConfigInvalid, c.Clock.Source)
	}
	if c.Clock.Source == "gps" {
		if !c.Clock.GPS.Enabled {
			return fmt.Errorf("%w: clock.source is \"gps\" but clock.gps.enabled is false", ntperrors.ErrConfigInvalid)
		}
		if c.Clock.GPS.Mode != "serial" && c.Clock.GPS.Mode != "gpsd" {
			return fmt.Errorf("%w: clock.gps.mode must be \"serial\" or \"gpsd\", got %q", ntperrors.ErrConfigInvalid, c.Clock.GPS.Mode)
		}
		if c.Clock.GPS.Mode == "serial" && c.Clock.GPS.SerialPort == "" {
			return fmt.Errorf("%w: clock.gps.serial_port is required in serial mode", ntperrors.ErrConfigInvalid)
		}
	}
	if c.Security.EnableRateLimiting && c.Security.MaxRequestsPerSecond <= 0 {
		return fmt.Errorf("%w: security.max_requests_per_second must be positive", ntperrors.ErrConfigInvalid)
	}
	return nil
}

// Load reads configuration from path (or Pendulum's default search path
// when path is empty) via viper, falling back to DefaultConfig for any
// unset option.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("pendulum")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/pendulum")
	}
	v.SetEnvPrefix("pendulum")
	v.AutomaticEnv()

	cfg := DefaultConfig()
	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("%w: %v", ntperrors.ErrConfigInvalid, err)
		}
		// No config file found at the default search path: run on defaults.
		return cfg, nil
	}
	// viper's own Unmarshal matches keys against Go field names and ignores
	// the toml tags, so snake_case keys like bind_address would be dropped;
	// re-encode the merged settings and decode them through the toml tags.
	b, err := toml.Marshal(v.AllSettings())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ntperrors.ErrConfigInvalid, err)
	}
	if err := toml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ntperrors.ErrConfigInvalid, err)
	}
	return cfg, nil
}

// WriteDefault marshals DefaultConfig to TOML and writes it to path,
// implementing the `pendulumd config init` subcommand.
func WriteDefault(path string) error {
	b, err := toml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
