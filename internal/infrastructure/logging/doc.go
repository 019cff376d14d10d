// Package logging is a thin layer over log/slog.
//
// New picks a JSON or text handler from the logging section of the config
// and stamps every record with service and version. Component derives a
// child logger tagged with a subsystem name:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Component("poller").Warn("ups poll failed", "ups", name, "error", err)
//
// Default is for the window before the config is loaded.
//
// Passwords, the JWT secret and bearer tokens must never be logged.
package logging
