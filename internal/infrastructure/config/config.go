package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the Rako bridge daemon, loaded
// from YAML with environment variable overrides.
type Config struct {
	Bridge   BridgeConfig   `yaml:"bridge"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// BridgeConfig contains Rako bridge connection settings.
type BridgeConfig struct {
	// Host is the bridge's IP address or hostname. Leave empty to
	// locate the bridge automatically at startup.
	Host string `yaml:"host"`

	// UDPPort is the bridge's command port. Default: 9761.
	UDPPort int `yaml:"udp_port"`

	// HTTPPort is the bridge's discovery port. Default: 80.
	HTTPPort int `yaml:"http_port"`

	// MAC overrides the bridge MAC used in entity unique ids. Only
	// needed when the bridge cannot be located automatically.
	MAC string `yaml:"mac"`

	// Name is the bridge's display name.
	Name string `yaml:"name"`

	// LocateTimeout bounds automatic bridge location, in seconds.
	// Default: 10.
	LocateTimeout int `yaml:"locate_timeout"`
}

// DatabaseConfig holds SQLite settings. BusyTimeout is in seconds.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig holds broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig identifies the broker and the client presenting to it.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig holds broker credentials. Leave empty for anonymous
// brokers. Prefer RAKOBRIDGE_MQTT_PASSWORD over a password in the file.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig tunes the reconnect backoff. Delays are in
// seconds; MaxAttempts of zero retries forever.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig holds telemetry settings. FlushInterval is in seconds.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig selects log level, format (json or text), and output
// stream (stdout or stderr).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load builds the daemon configuration in three layers: hardcoded
// defaults, then the YAML file at path, then RAKOBRIDGE_* environment
// overrides. The merged result is validated before being returned.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			UDPPort:       9761,
			HTTPPort:      80,
			LocateTimeout: 10,
		},
		Database: DatabaseConfig{
			Path:        "./data/rakobridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "rakobridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnv overlays RAKOBRIDGE_SECTION_KEY environment variables onto
// the loaded values. Only settings that vary per deployment, addresses
// and credentials, are exposed this way.
func (c *Config) applyEnv() {
	envString("RAKOBRIDGE_BRIDGE_HOST", &c.Bridge.Host)
	envString("RAKOBRIDGE_BRIDGE_MAC", &c.Bridge.MAC)
	envString("RAKOBRIDGE_DATABASE_PATH", &c.Database.Path)
	envString("RAKOBRIDGE_MQTT_HOST", &c.MQTT.Broker.Host)
	envInt("RAKOBRIDGE_MQTT_PORT", &c.MQTT.Broker.Port)
	envString("RAKOBRIDGE_MQTT_USERNAME", &c.MQTT.Auth.Username)
	envString("RAKOBRIDGE_MQTT_PASSWORD", &c.MQTT.Auth.Password)
	envString("RAKOBRIDGE_INFLUXDB_TOKEN", &c.InfluxDB.Token)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// envInt leaves dst untouched when the variable is unset or unparseable.
func envInt(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

// Validate reports every problem in the configuration at once, joined
// into a single error, so a broken deployment is fixed in one edit.
func (c *Config) Validate() error {
	var errs []string

	// Bridge validation. An empty host is allowed: the daemon locates
	// the bridge on the local network at startup.
	if c.Bridge.Host != "" {
		if ip := net.ParseIP(c.Bridge.Host); ip == nil {
			// Not an IP; must at least look like a hostname.
			if strings.ContainsAny(c.Bridge.Host, " /") {
				errs = append(errs, "bridge.host is not a valid address")
			}
		}
	}
	if c.Bridge.UDPPort < 1 || c.Bridge.UDPPort > 65535 {
		errs = append(errs, "bridge.udp_port must be between 1 and 65535")
	}
	if c.Bridge.HTTPPort < 1 || c.Bridge.HTTPPort > 65535 {
		errs = append(errs, "bridge.http_port must be between 1 and 65535")
	}
	if c.Bridge.LocateTimeout < 1 {
		errs = append(errs, "bridge.locate_timeout must be at least 1 second")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}

	// InfluxDB validation only applies when telemetry is enabled.
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb is enabled (set RAKOBRIDGE_INFLUXDB_TOKEN)")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetLocateTimeout returns the bridge location timeout as a Duration.
func (c *Config) GetLocateTimeout() time.Duration {
	return time.Duration(c.Bridge.LocateTimeout) * time.Second
}
