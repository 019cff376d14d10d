package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Load builds the configuration in three layers: defaults, then the YAML
// file at path, then UPSDASH_* environment variables. The result is
// validated before it is returned.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Upsd: UpsdConfig{
			Host:           "localhost",
			Port:           3493,
			CommandsTTL:    10,
			PollInterval:   2,
			RequestTimeout: 5,
		},
		Database: DatabaseConfig{
			Path:        "./data/upsdash.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker:    MQTTBrokerConfig{Host: "localhost", Port: 1883, ClientID: "upsdash"},
			QoS:       1,
			Reconnect: MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 60},
		},
		API: APIConfig{
			Host:     "0.0.0.0",
			Port:     9000,
			Timeouts: APITimeoutConfig{Read: 30, Write: 30, Idle: 60},
			Web:      WebUIConfig{Enabled: true},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{BatchSize: 100, FlushInterval: 10},
		Logging:  LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Security: SecurityConfig{JWT: JWTConfig{AccessTokenTTL: 60}},
	}
}

// envString and envInt bind an environment variable to a config field.
type envBinding struct {
	name string
	set  func(c *Config, v string) error
}

func envString(name string, field func(*Config) *string) envBinding {
	return envBinding{name, func(c *Config, v string) error {
		*field(c) = v
		return nil
	}}
}

func envInt(name string, field func(*Config) *int) envBinding {
	return envBinding{name, func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", name, v)
		}
		*field(c) = n
		return nil
	}}
}

var envBindings = []envBinding{
	envString("UPSDASH_UPSD_HOST", func(c *Config) *string { return &c.Upsd.Host }),
	envInt("UPSDASH_UPSD_PORT", func(c *Config) *int { return &c.Upsd.Port }),
	envString("UPSDASH_UPSD_USERNAME", func(c *Config) *string { return &c.Upsd.Username }),
	envString("UPSDASH_UPSD_PASSWORD", func(c *Config) *string { return &c.Upsd.Password }),
	envInt("UPSDASH_UPSD_POLL_INTERVAL", func(c *Config) *int { return &c.Upsd.PollInterval }),
	envString("UPSDASH_DATABASE_PATH", func(c *Config) *string { return &c.Database.Path }),
	envString("UPSDASH_MQTT_HOST", func(c *Config) *string { return &c.MQTT.Broker.Host }),
	envString("UPSDASH_MQTT_USERNAME", func(c *Config) *string { return &c.MQTT.Auth.Username }),
	envString("UPSDASH_MQTT_PASSWORD", func(c *Config) *string { return &c.MQTT.Auth.Password }),
	envString("UPSDASH_API_HOST", func(c *Config) *string { return &c.API.Host }),
	envInt("UPSDASH_API_PORT", func(c *Config) *int { return &c.API.Port }),
	envString("UPSDASH_INFLUXDB_URL", func(c *Config) *string { return &c.InfluxDB.URL }),
	envString("UPSDASH_INFLUXDB_TOKEN", func(c *Config) *string { return &c.InfluxDB.Token }),
	envString("UPSDASH_JWT_SECRET", func(c *Config) *string { return &c.Security.JWT.Secret }),
	envString("UPSDASH_LOG_LEVEL", func(c *Config) *string { return &c.Logging.Level }),
}

// applyEnvOverrides copies every set, non-empty UPSDASH_* variable into cfg.
// Malformed numbers are all reported together.
func applyEnvOverrides(cfg *Config) error {
	var errs []error
	for _, b := range envBindings {
		v := os.Getenv(b.name)
		if v == "" {
			continue
		}
		if err := b.set(cfg, v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
