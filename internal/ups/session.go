package ups

import (
	"context"

	"github.com/nerrad567/upsdash-core/internal/nut"
)

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Credentials are the upsd login used for privileged operations.
type Credentials struct {
	Username string
	Password string
}

// Configured reports whether both username and password are set.
func (c Credentials) Configured() bool {
	return c.Username != "" && c.Password != ""
}

// require fails with ErrInsufficientConfig when credentials are missing.
func (c Credentials) require() error {
	if !c.Configured() {
		return ErrInsufficientConfig
	}
	return nil
}

// Session is an authenticated upsd session. *nut.Client implements it.
type Session interface {
	ListInstCmds(ctx context.Context, ups string) ([]nut.InstCmd, error)
	InstCmd(ctx context.Context, ups, cmd string) error
	SetVar(ctx context.Context, ups, name string, value nut.Value) error
	FSD(ctx context.Context, ups string) error
	Close() error
}

// SessionFunc opens an authenticated session.
type SessionFunc func(ctx context.Context, creds Credentials) (Session, error)

// NUTSessions returns a SessionFunc dialing upsd at addr.
func NUTSessions(addr string, opts nut.Options) SessionFunc {
	return func(ctx context.Context, creds Credentials) (Session, error) {
		c, err := nut.ConnectAuth(ctx, addr, creds.Username, creds.Password, opts)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// closeSession closes s, logging a failure without reporting it.
func closeSession(s interface{ Close() error }, logger Logger) {
	if err := s.Close(); err != nil {
		logger.Debug("closing upsd session", "error", err)
	}
}
