// Package nut implements a client for the Network UPS Tools (NUT) network
// protocol spoken by upsd.
//
// The protocol is line based: every request is a single line terminated by
// "\n", and the daemon answers either with a single line ("OK ...",
// "ERR <code>", or a typed reply such as "DESC ..."), or with a list framed by
// "BEGIN LIST ..." and "END LIST ...". Arguments containing spaces are
// double-quoted, with '"' and '\' escaped by a backslash.
//
// # Sessions
//
// A Client owns exactly one TCP connection. Callers open a session for a
// single logical operation and close it afterwards:
//
//	c, err := nut.ConnectAuth(ctx, "127.0.0.1:3493", user, pass, nut.Options{})
//	if err != nil {
//	    return err
//	}
//	defer c.Close() //nolint:errcheck // best-effort LOGOUT
//
//	cmds, err := c.ListInstCmds(ctx, "ups1")
//
// Connect opens an anonymous session, which upsd permits for read-only
// queries (LIST UPS, LIST VAR, GET TYPE, ...). Write operations (INSTCMD,
// SET VAR, FSD) require a session opened with ConnectAuth.
//
// # Errors
//
// All failures are reported as *Error, whose Kind tells apart transport
// failures (KindIO), expired deadlines (KindRequestTimeout), daemon refusals
// (KindProtocol, with the daemon's ERR code in Protocol), malformed replies
// (KindParse) and rejected arguments (KindInvalidArgument).
//
// # Thread Safety
//
// A Client serialises its requests with a mutex, so it is safe to share
// between goroutines, but requests never overlap on the wire.
package nut
