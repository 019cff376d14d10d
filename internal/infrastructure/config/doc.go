// Package config loads upsdash settings from a YAML file and applies
// UPSDASH_* environment overrides on top.
//
// Load fills defaults first, so a file only needs the keys it changes, and
// runs Validate before returning. Every validation problem is reported in
// one error.
//
// Secrets (upsd.password, security.jwt.secret, influxdb.token,
// mqtt.auth.password) are normally supplied through the environment. With
// no upsd credentials the service runs read-only and privileged requests
// answer 401 "Insufficient upsd configuration".
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	addr := cfg.Upsd.Addr()
package config
