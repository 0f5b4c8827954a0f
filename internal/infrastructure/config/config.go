package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the NHC2 bus.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Controller    ControllerConfig    `yaml:"controller"`
	Devices       DevicesConfig       `yaml:"devices"`
	CommandBuffer CommandBufferConfig `yaml:"command_buffer"`
	Logging       LoggingConfig       `yaml:"logging"`
	History       HistoryConfig       `yaml:"history"`
	InfluxDB      InfluxDBConfig      `yaml:"influxdb"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

// ControllerConfig contains the connection settings for the NHC2 controller's
// MQTT broker.
type ControllerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Username is the profile creation id. It also scopes every topic.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// CAFile is the PEM trust anchor for the controller certificate.
	// Empty means the system roots are used.
	CAFile string `yaml:"ca_file"`

	// InsecureSkipVerify disables hostname and chain checks. The controller
	// ships a self-signed certificate whose CN never matches its address.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`

	QoS            int           `yaml:"qos"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
}

// DevicesConfig contains device classification rules.
type DevicesConfig struct {
	// SwitchesAsLights folds the switch model set into the lights class.
	SwitchesAsLights bool `yaml:"switches_as_lights"`
}

// CommandBufferConfig bounds the outbound command coalescing buffer.
type CommandBufferConfig struct {
	MaxDevices    int           `yaml:"max_devices"`
	MaxWrites     int           `yaml:"max_writes"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// HistoryConfig contains the SQLite state history settings.
type HistoryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Path        string        `yaml:"path"`
	BusyTimeout int           `yaml:"busy_timeout"`
	Retention   time.Duration `yaml:"retention"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// MetricsConfig contains the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Address returns the controller's host:port pair.
func (c ControllerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// A missing file is not an error: the command-line tool is usable with
// defaults plus NHC2_* environment variables alone.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration without reading any file or
// environment variable.
func Default() *Config {
	return defaultConfig()
}

// defaultConfig returns a Config with the controller's documented defaults.
func defaultConfig() *Config {
	return &Config{
		Controller: ControllerConfig{
			Port:               8883,
			InsecureSkipVerify: true,
			QoS:                1,
			ConnectTimeout:     10 * time.Second,
			KeepAlive:          60 * time.Second,
		},
		CommandBuffer: CommandBufferConfig{
			MaxDevices:    16,
			MaxWrites:     32,
			FlushInterval: 50 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		History: HistoryConfig{
			Path:        "./data/nhc2.db",
			BusyTimeout: 5,
			Retention:   30 * 24 * time.Hour,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Metrics: MetricsConfig{
			Listen: ":9108",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: NHC2_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("NHC2_CONTROLLER_HOST"); v != "" {
		cfg.Controller.Host = v
	}
	if v := os.Getenv("NHC2_CONTROLLER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("NHC2_CONTROLLER_PORT: %w", err)
		}
		cfg.Controller.Port = port
	}
	if v := os.Getenv("NHC2_CONTROLLER_USERNAME"); v != "" {
		cfg.Controller.Username = v
	}
	if v := os.Getenv("NHC2_CONTROLLER_PASSWORD"); v != "" {
		cfg.Controller.Password = v
	}
	if v := os.Getenv("NHC2_CONTROLLER_CA_FILE"); v != "" {
		cfg.Controller.CAFile = v
	}
	if v := os.Getenv("NHC2_SWITCHES_AS_LIGHTS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("NHC2_SWITCHES_AS_LIGHTS: %w", err)
		}
		cfg.Devices.SwitchesAsLights = b
	}

	if v := os.Getenv("NHC2_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("NHC2_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}
	if v := os.Getenv("NHC2_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	return nil
}

// Validate checks the configuration for errors.
//
// The controller host and username are not required here; the commands
// that open a connection check them, so `nhc2ctl help` works unconfigured.
func (c *Config) Validate() error {
	var errs []string

	if c.Controller.Port < 1 || c.Controller.Port > 65535 {
		errs = append(errs, "controller.port must be between 1 and 65535")
	}
	if c.Controller.QoS < 0 || c.Controller.QoS > 2 {
		errs = append(errs, "controller.qos must be 0, 1, or 2")
	}
	if c.Controller.ConnectTimeout <= 0 {
		errs = append(errs, "controller.connect_timeout must be positive")
	}

	if c.CommandBuffer.MaxDevices < 1 {
		errs = append(errs, "command_buffer.max_devices must be at least 1")
	}
	if c.CommandBuffer.MaxWrites < 1 {
		errs = append(errs, "command_buffer.max_writes must be at least 1")
	}
	if c.CommandBuffer.FlushInterval <= 0 {
		errs = append(errs, "command_buffer.flush_interval must be positive")
	}

	if c.History.Enabled && c.History.Path == "" {
		errs = append(errs, "history.path is required when history is enabled")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		errs = append(errs, "metrics.listen is required when metrics are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ValidateConnection reports whether the controller section carries enough
// to open a session.
func (c *Config) ValidateConnection() error {
	var errs []string
	if c.Controller.Host == "" {
		errs = append(errs, "controller.host is required (set NHC2_CONTROLLER_HOST)")
	}
	if c.Controller.Username == "" {
		errs = append(errs, "controller.username is required (set NHC2_CONTROLLER_USERNAME)")
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
