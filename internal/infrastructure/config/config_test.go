package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "nhc2.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
controller:
  host: "192.168.1.20"
  port: 8884
  username: "hobby"
  ca_file: "/etc/nhc2/coco_ca.pem"
devices:
  switches_as_lights: true
command_buffer:
  max_devices: 8
  max_writes: 12
  flush_interval: 20ms
logging:
  level: debug
  format: text
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Controller.Host != "192.168.1.20" {
		t.Errorf("Controller.Host = %q, want %q", cfg.Controller.Host, "192.168.1.20")
	}
	if got := cfg.Controller.Address(); got != "192.168.1.20:8884" {
		t.Errorf("Controller.Address() = %q, want %q", got, "192.168.1.20:8884")
	}
	if cfg.Controller.Username != "hobby" {
		t.Errorf("Controller.Username = %q, want %q", cfg.Controller.Username, "hobby")
	}
	if !cfg.Devices.SwitchesAsLights {
		t.Error("Devices.SwitchesAsLights = false, want true")
	}
	if cfg.CommandBuffer.MaxDevices != 8 || cfg.CommandBuffer.MaxWrites != 12 {
		t.Errorf("CommandBuffer bounds = %d/%d, want 8/12", cfg.CommandBuffer.MaxDevices, cfg.CommandBuffer.MaxWrites)
	}
	if cfg.CommandBuffer.FlushInterval != 20*time.Millisecond {
		t.Errorf("CommandBuffer.FlushInterval = %v, want 20ms", cfg.CommandBuffer.FlushInterval)
	}
	// Untouched sections keep their defaults.
	if !cfg.Controller.InsecureSkipVerify {
		t.Error("Controller.InsecureSkipVerify default lost after partial YAML")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Controller.Port != 8883 {
		t.Errorf("Controller.Port = %d, want 8883", cfg.Controller.Port)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
command_buffer:
  max_devices: 0
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error for max_devices 0, got nil")
	}
	if !strings.Contains(err.Error(), "command_buffer.max_devices") {
		t.Errorf("error %q does not name command_buffer.max_devices", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "invalid QoS", mutate: func(c *Config) { c.Controller.QoS = 3 }, wantErr: true},
		{name: "invalid port low", mutate: func(c *Config) { c.Controller.Port = 0 }, wantErr: true},
		{name: "invalid port high", mutate: func(c *Config) { c.Controller.Port = 70000 }, wantErr: true},
		{name: "zero flush interval", mutate: func(c *Config) { c.CommandBuffer.FlushInterval = 0 }, wantErr: true},
		{name: "zero max writes", mutate: func(c *Config) { c.CommandBuffer.MaxWrites = 0 }, wantErr: true},
		{
			name:    "history enabled without path",
			mutate:  func(c *Config) { c.History.Enabled = true; c.History.Path = "" },
			wantErr: true,
		},
		{
			name:    "influxdb enabled without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true; c.InfluxDB.Bucket = "nhc2" },
			wantErr: true,
		},
		{
			name: "influxdb enabled and complete",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.URL = "http://localhost:8086"
				c.InfluxDB.Bucket = "nhc2"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateConnection(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.ValidateConnection(); err == nil {
		t.Error("ValidateConnection() expected error without host and username")
	}

	cfg.Controller.Host = "nhc2.local"
	cfg.Controller.Username = "hobby"
	if err := cfg.ValidateConnection(); err != nil {
		t.Errorf("ValidateConnection() error = %v, want nil", err)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("NHC2_CONTROLLER_HOST", "coco.example.com")
	t.Setenv("NHC2_CONTROLLER_PORT", "18883")
	t.Setenv("NHC2_CONTROLLER_USERNAME", "hobby")
	t.Setenv("NHC2_CONTROLLER_PASSWORD", "jwt-token")
	t.Setenv("NHC2_CONTROLLER_CA_FILE", "/certs/ca.pem")
	t.Setenv("NHC2_SWITCHES_AS_LIGHTS", "true")
	t.Setenv("NHC2_HISTORY_PATH", "/custom/history.db")
	t.Setenv("NHC2_INFLUXDB_TOKEN", "secret-token")

	if err := applyEnvOverrides(cfg); err != nil {
		t.Fatalf("applyEnvOverrides() error = %v", err)
	}

	if cfg.Controller.Host != "coco.example.com" {
		t.Errorf("Controller.Host = %q, want %q", cfg.Controller.Host, "coco.example.com")
	}
	if cfg.Controller.Port != 18883 {
		t.Errorf("Controller.Port = %d, want 18883", cfg.Controller.Port)
	}
	if cfg.Controller.Username != "hobby" {
		t.Errorf("Controller.Username = %q, want %q", cfg.Controller.Username, "hobby")
	}
	if cfg.Controller.Password != "jwt-token" {
		t.Errorf("Controller.Password = %q, want %q", cfg.Controller.Password, "jwt-token")
	}
	if cfg.Controller.CAFile != "/certs/ca.pem" {
		t.Errorf("Controller.CAFile = %q, want %q", cfg.Controller.CAFile, "/certs/ca.pem")
	}
	if !cfg.Devices.SwitchesAsLights {
		t.Error("Devices.SwitchesAsLights = false, want true")
	}
	if cfg.History.Path != "/custom/history.db" {
		t.Errorf("History.Path = %q, want %q", cfg.History.Path, "/custom/history.db")
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
}

func TestApplyEnvOverrides_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"NHC2_CONTROLLER_PORT", "not-a-port"},
		{"NHC2_SWITCHES_AS_LIGHTS", "perhaps"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if err := applyEnvOverrides(defaultConfig()); err == nil {
				t.Errorf("applyEnvOverrides() with %s=%q expected error", tt.key, tt.value)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Controller.Port != 8883 {
		t.Errorf("default Controller.Port = %d, want 8883", cfg.Controller.Port)
	}
	if cfg.CommandBuffer.MaxDevices != 16 {
		t.Errorf("default CommandBuffer.MaxDevices = %d, want 16", cfg.CommandBuffer.MaxDevices)
	}
	if cfg.CommandBuffer.MaxWrites != 32 {
		t.Errorf("default CommandBuffer.MaxWrites = %d, want 32", cfg.CommandBuffer.MaxWrites)
	}
	if cfg.CommandBuffer.FlushInterval != 50*time.Millisecond {
		t.Errorf("default CommandBuffer.FlushInterval = %v, want 50ms", cfg.CommandBuffer.FlushInterval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}
