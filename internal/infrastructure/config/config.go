package config

import (
	"net"
	"strconv"
	"time"
)

// Config mirrors config.yaml.
type Config struct {
	Upsd      UpsdConfig      `yaml:"upsd"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// UpsdConfig contains the NUT upsd connection settings.
type UpsdConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Username and Password are required for privileged operations
	// (instant commands, variable writes, forced shutdown, command listing).
	// Without them the service runs read-only.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// CommandsTTL is how long a fetched instant command list stays fresh (seconds).
	CommandsTTL int `yaml:"commands_ttl"`

	// PollInterval is the delay between device polls (seconds).
	PollInterval int `yaml:"poll_interval"`

	// RequestTimeout bounds dialing and each request to upsd (seconds).
	RequestTimeout int `yaml:"request_timeout"`

	// AllowInstCmdsList exposes the raw instant command listing endpoint.
	AllowInstCmdsList bool `yaml:"allow_instcmds_list"`
}

// Addr returns the host:port of upsd.
func (u UpsdConfig) Addr() string {
	return net.JoinHostPort(u.Host, strconv.Itoa(u.Port))
}

// HasCredentials reports whether both username and password are set.
func (u UpsdConfig) HasCredentials() bool {
	return u.Username != "" && u.Password != ""
}

// GetCommandsTTL is CommandsTTL as a Duration.
func (u UpsdConfig) GetCommandsTTL() time.Duration {
	return seconds(u.CommandsTTL)
}

// GetPollInterval is PollInterval as a Duration.
func (u UpsdConfig) GetPollInterval() time.Duration {
	return seconds(u.PollInterval)
}

// GetRequestTimeout is RequestTimeout as a Duration.
func (u UpsdConfig) GetRequestTimeout() time.Duration {
	return seconds(u.RequestTimeout)
}

// DatabaseConfig is the SQLite file holding the audit trail.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig enables the optional telemetry mirror to a broker.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig bounds the reconnect backoff (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig is the HTTP listener.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
	Web      WebUIConfig      `yaml:"web"`
}

// WebUIConfig controls the static dashboard served outside /api.
type WebUIConfig struct {
	Enabled bool `yaml:"enabled"`

	// Dir holds a dashboard build. Empty serves the embedded placeholder.
	Dir string `yaml:"dir"`
}

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig values are seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig lists browser origins allowed to call the API and open the
// WebSocket.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig tunes the event stream. Intervals are seconds.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig enables the optional time-series sink.
// FlushInterval is in seconds.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig selects level, format (json, text) and output (stdout, stderr).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings. An empty secret disables the
// bearer token check on daemon-facing routes.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// GetReadTimeout is api.timeouts.read as a Duration.
func (c *Config) GetReadTimeout() time.Duration { return seconds(c.API.Timeouts.Read) }

// GetWriteTimeout is api.timeouts.write as a Duration.
func (c *Config) GetWriteTimeout() time.Duration { return seconds(c.API.Timeouts.Write) }

// GetIdleTimeout is api.timeouts.idle as a Duration.
func (c *Config) GetIdleTimeout() time.Duration { return seconds(c.API.Timeouts.Idle) }
