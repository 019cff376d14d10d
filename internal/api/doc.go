// Package api implements the HTTP REST API and WebSocket server for upsdash.
//
// This package provides:
//   - REST endpoints for reading UPS state and issuing daemon actions
//   - WebSocket hub broadcasting device updates and action outcomes
//   - JWT role checks with ticket-based WebSocket auth
//   - Middleware: request ID, access log, panic recovery, CORS and a 64 KiB
//     body cap
//
// # Routes
//
// All routes live under /api/v1:
//
//	GET   /ups                   cached device list
//	GET   /ups/{name}            device detail (?include=commands forces a fetch)
//	GET   /ups/{name}/commands   instant commands as seen by the configured user
//	POST  /ups/{name}/instcmd    run an instant command
//	PATCH /ups/{name}/rw         set a writable variable
//	POST  /ups/{name}/fsd        raise the forced shutdown flag
//	GET   /audit                 action history
//	GET   /health, /metrics
//	POST  /ws/ticket, GET /ws    WebSocket ticket exchange and upgrade
//
// Errors are written as application/problem+json with title, status and an
// optional detail.
//
// # Security
//
// When a JWT secret is configured the three action routes require a bearer
// token whose role grants the matching permission; forced shutdown is
// admin-only. Without a secret the routes are open and the upsd credentials
// alone gate what the daemon accepts.
//
// WebSocket connections use single-use tickets so the token never appears in
// a URL. Clients subscribe to device.updated, device.removed and
// device.action, optionally narrowed to a list of UPS names.
package api
