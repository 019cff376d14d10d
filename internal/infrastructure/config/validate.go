package config

import (
	"fmt"
	"strings"
)

const minJWTSecretLength = 32

func validPort(p int) bool { return p >= 1 && p <= 65535 }

// Validate reports every problem at once, joined with "; ".
func (c *Config) Validate() error {
	var errs []string
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, msg)
		}
	}

	u := c.Upsd
	check(u.Host != "", "upsd.host is required")
	check(validPort(u.Port), "upsd.port must be between 1 and 65535")
	check(u.CommandsTTL >= 0, "upsd.commands_ttl must not be negative")
	check(u.PollInterval >= 1, "upsd.poll_interval must be at least 1 second")
	check(u.RequestTimeout >= 1, "upsd.request_timeout must be at least 1 second")
	check((u.Username == "") == (u.Password == ""), "upsd.username and upsd.password must be set together")

	check(c.Database.Path != "", "database.path is required")

	check(c.MQTT.QoS >= 0 && c.MQTT.QoS <= 2, "mqtt.qos must be 0, 1, or 2")

	check(validPort(c.API.Port), "api.port must be between 1 and 65535")
	if c.API.TLS.Enabled {
		check(c.API.TLS.CertFile != "" && c.API.TLS.KeyFile != "", "api.tls.cert_file and api.tls.key_file are required when tls is enabled")
	}

	ws := c.WebSocket
	check(ws.PingInterval >= 1 && ws.PongTimeout >= 1, "websocket.ping_interval and websocket.pong_timeout must be at least 1 second")
	check(strings.HasPrefix(ws.Path, "/"), "websocket.path must start with /")

	if c.InfluxDB.Enabled {
		check(c.InfluxDB.URL != "" && c.InfluxDB.Bucket != "", "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	// Empty disables bearer tokens; a short secret is refused.
	if s := c.Security.JWT.Secret; s != "" {
		check(len(s) >= minJWTSecretLength, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
