package nut

import (
	"errors"
	"fmt"
)

// ErrClosed is returned when a request is issued on a closed Client.
var ErrClosed = errors.New("nut: client closed")

// Kind classifies a client failure.
type Kind int

const (
	// KindIO is a transport failure: dial refused, connection reset, EOF.
	KindIO Kind = iota + 1

	// KindRequestTimeout means the request deadline expired before upsd answered.
	KindRequestTimeout

	// KindProtocol is an "ERR <code>" reply from upsd.
	KindProtocol

	// KindParse is a reply that does not follow the protocol grammar.
	KindParse

	// KindInvalidArgument is an argument that cannot be sent on the wire
	// (empty name, embedded whitespace, control characters).
	KindInvalidArgument
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindRequestTimeout:
		return "request timeout"
	case KindProtocol:
		return "protocol"
	case KindParse:
		return "parse"
	case KindInvalidArgument:
		return "invalid argument"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ProtocolError is an upsd error code, the word following "ERR".
type ProtocolError string

// Error codes defined by the NUT network protocol.
const (
	ErrAccessDenied         ProtocolError = "ACCESS-DENIED"
	ErrUnknownUPS           ProtocolError = "UNKNOWN-UPS"
	ErrVarNotSupported      ProtocolError = "VAR-NOT-SUPPORTED"
	ErrCmdNotSupported      ProtocolError = "CMD-NOT-SUPPORTED"
	ErrInvalidArgument      ProtocolError = "INVALID-ARGUMENT"
	ErrInstCmdFailed        ProtocolError = "INSTCMD-FAILED"
	ErrSetFailed            ProtocolError = "SET-FAILED"
	ErrReadOnly             ProtocolError = "READONLY"
	ErrTooLong              ProtocolError = "TOO-LONG"
	ErrFeatureNotSupported  ProtocolError = "FEATURE-NOT-SUPPORTED"
	ErrFeatureNotConfigured ProtocolError = "FEATURE-NOT-CONFIGURED"
	ErrAlreadySSLMode       ProtocolError = "ALREADY-SSL-MODE"
	ErrDriverNotConnected   ProtocolError = "DRIVER-NOT-CONNECTED"
	ErrDataStale            ProtocolError = "DATA-STALE"
	ErrAlreadyLoggedIn      ProtocolError = "ALREADY-LOGGED-IN"
	ErrInvalidPassword      ProtocolError = "INVALID-PASSWORD"
	ErrAlreadySetPassword   ProtocolError = "ALREADY-SET-PASSWORD"
	ErrInvalidUsername      ProtocolError = "INVALID-USERNAME"
	ErrAlreadySetUsername   ProtocolError = "ALREADY-SET-USERNAME"
	ErrUsernameRequired     ProtocolError = "USERNAME-REQUIRED"
	ErrPasswordRequired     ProtocolError = "PASSWORD-REQUIRED"
	ErrUnknownCommand       ProtocolError = "UNKNOWN-COMMAND"
	ErrInvalidValue         ProtocolError = "INVALID-VALUE"
)

// Class groups failures by who is at fault, for mapping onto HTTP statuses.
type Class int

const (
	// ClassClient means the request itself was rejected.
	ClassClient Class = iota + 1

	// ClassUnavailable means the daemon is up but the UPS driver is not.
	ClassUnavailable

	// ClassUpstream means the daemon or driver misbehaved.
	ClassUpstream

	// ClassInternal covers everything else, including session setup problems
	// caused by our own configuration.
	ClassInternal
)

// Error is the error type returned by every Client operation.
type Error struct {
	// Kind classifies the failure.
	Kind Kind

	// Protocol holds the upsd error code when Kind is KindProtocol.
	Protocol ProtocolError

	// Op is the protocol request that failed, without arguments (e.g. "LIST CMD").
	Op string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	msg := "nut: " + e.Kind.String()
	if e.Op != "" {
		msg += " during " + e.Op
	}
	if e.Protocol != "" {
		msg += ": ERR " + string(e.Protocol)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Class maps the failure onto a Class.
func (e *Error) Class() Class {
	switch e.Kind {
	case KindIO, KindRequestTimeout:
		return ClassUnavailable
	case KindParse:
		return ClassUpstream
	case KindInvalidArgument:
		return ClassClient
	case KindProtocol:
		return e.Protocol.class()
	default:
		return ClassInternal
	}
}

func (p ProtocolError) class() Class {
	switch p {
	case ErrAccessDenied, ErrUnknownUPS, ErrVarNotSupported, ErrCmdNotSupported,
		ErrInvalidArgument, ErrInvalidValue, ErrReadOnly, ErrTooLong, ErrUnknownCommand:
		return ClassClient
	case ErrDriverNotConnected, ErrDataStale:
		return ClassUnavailable
	case ErrInstCmdFailed, ErrSetFailed, ErrFeatureNotSupported:
		return ClassUpstream
	default:
		return ClassInternal
	}
}

// IsAccessDenied reports whether err is an ACCESS-DENIED reply.
func IsAccessDenied(err error) bool {
	return isProtocol(err, ErrAccessDenied)
}

// IsUnknownUPS reports whether err is an UNKNOWN-UPS reply.
func IsUnknownUPS(err error) bool {
	return isProtocol(err, ErrUnknownUPS)
}

// IsUnreachable reports whether err is a transport failure or timeout.
func IsUnreachable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == KindIO || e.Kind == KindRequestTimeout
}

func isProtocol(err error, code ProtocolError) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindProtocol && e.Protocol == code
}
