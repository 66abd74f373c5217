package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	// Create a temporary config file
	content := `
bridge:
  host: "192.168.1.50"
  name: "House Bridge"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Bridge.Host != "192.168.1.50" {
		t.Errorf("Bridge.Host = %q, want %q", cfg.Bridge.Host, "192.168.1.50")
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}

	// Defaults survive a partial file.
	if cfg.Bridge.UDPPort != 9761 {
		t.Errorf("Bridge.UDPPort = %d, want default 9761", cfg.Bridge.UDPPort)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
database:
  path: ""
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty database.path, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr bool
	}{
		{
			name:    "default config is valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "empty bridge host is valid (auto-locate)",
			mutate:  func(cfg *Config) { cfg.Bridge.Host = "" },
			wantErr: false,
		},
		{
			name:    "bridge host with spaces",
			mutate:  func(cfg *Config) { cfg.Bridge.Host = "not a host" },
			wantErr: true,
		},
		{
			name:    "invalid bridge UDP port",
			mutate:  func(cfg *Config) { cfg.Bridge.UDPPort = 0 },
			wantErr: true,
		},
		{
			name:    "invalid bridge HTTP port",
			mutate:  func(cfg *Config) { cfg.Bridge.HTTPPort = 70000 },
			wantErr: true,
		},
		{
			name:    "zero locate timeout",
			mutate:  func(cfg *Config) { cfg.Bridge.LocateTimeout = 0 },
			wantErr: true,
		},
		{
			name:    "missing database path",
			mutate:  func(cfg *Config) { cfg.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(cfg *Config) { cfg.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "invalid broker port",
			mutate:  func(cfg *Config) { cfg.MQTT.Broker.Port = 0 },
			wantErr: true,
		},
		{
			name: "influxdb enabled without url",
			mutate: func(cfg *Config) {
				cfg.InfluxDB.Enabled = true
				cfg.InfluxDB.Token = "token"
			},
			wantErr: true,
		},
		{
			name: "influxdb enabled without token",
			mutate: func(cfg *Config) {
				cfg.InfluxDB.Enabled = true
				cfg.InfluxDB.URL = "http://localhost:8086"
			},
			wantErr: true,
		},
		{
			name: "influxdb fully configured",
			mutate: func(cfg *Config) {
				cfg.InfluxDB.Enabled = true
				cfg.InfluxDB.URL = "http://localhost:8086"
				cfg.InfluxDB.Token = "token"
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("RAKOBRIDGE_BRIDGE_HOST", "192.168.1.99")
	t.Setenv("RAKOBRIDGE_BRIDGE_MAC", "aa:bb:cc:dd:ee:ff")
	t.Setenv("RAKOBRIDGE_DATABASE_PATH", "/custom/path.db")
	t.Setenv("RAKOBRIDGE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("RAKOBRIDGE_MQTT_PORT", "8883")
	t.Setenv("RAKOBRIDGE_MQTT_USERNAME", "testuser")
	t.Setenv("RAKOBRIDGE_MQTT_PASSWORD", "testpass")
	t.Setenv("RAKOBRIDGE_INFLUXDB_TOKEN", "secret-token")

	cfg := defaultConfig()
	cfg.applyEnv()

	checks := []struct {
		field string
		got   string
		want  string
	}{
		{"Bridge.Host", cfg.Bridge.Host, "192.168.1.99"},
		{"Bridge.MAC", cfg.Bridge.MAC, "aa:bb:cc:dd:ee:ff"},
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
}

func TestApplyEnvIgnoresUnparseablePort(t *testing.T) {
	t.Setenv("RAKOBRIDGE_MQTT_PORT", "not-a-port")

	cfg := defaultConfig()
	cfg.applyEnv()

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want default 1883", cfg.MQTT.Broker.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}

	if cfg.Bridge.UDPPort != 9761 {
		t.Errorf("defaultConfig Bridge.UDPPort = %d, want 9761", cfg.Bridge.UDPPort)
	}

	if got := cfg.GetLocateTimeout().Seconds(); got != 10 {
		t.Errorf("GetLocateTimeout() = %v, want 10", got)
	}
}
