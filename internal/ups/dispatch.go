package ups

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/upsdash-core/internal/nut"
	"github.com/nerrad567/upsdash-core/internal/problem"
)

// Action names a daemon-facing operation.
type Action string

const (
	ActionInstCmd Action = "instcmd"
	ActionSetVar  Action = "setvar"
	ActionFSD     Action = "fsd"
)

// ActionEvent describes one attempted daemon-facing operation.
type ActionEvent struct {
	UPS    string
	Action Action

	// Target is the command id or the variable name; empty for FSD.
	Target string

	// Value is the written value for ActionSetVar.
	Value string

	// Problem is nil when the daemon accepted the request.
	Problem *problem.Detail

	// Subject identifies the API caller, when known.
	Subject string

	At time.Time
}

type subjectKey struct{}

// WithSubject attaches the caller identity recorded on ActionEvents.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

// SubjectFrom returns the identity stored by WithSubject.
func SubjectFrom(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey{}).(string)
	return s
}

// ActionObserver is told about every action that reached the daemon or was
// rejected by validation.
type ActionObserver interface {
	ActionPerformed(ev ActionEvent)
}

// Dispatcher runs instant commands, variable writes and forced shutdowns
// against upsd. Each operation requires configured credentials, validates
// against the Store before connecting, and opens one session that is closed
// before returning.
type Dispatcher struct {
	store     *Store
	cache     *CommandCache
	open      SessionFunc
	creds     Credentials
	logger    Logger
	observers []ActionObserver
}

// NewDispatcher creates a dispatcher. The command cache serves ListCommands.
func NewDispatcher(store *Store, cache *CommandCache, open SessionFunc, creds Credentials) *Dispatcher {
	return &Dispatcher{
		store:  store,
		cache:  cache,
		open:   open,
		creds:  creds,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// AddObserver registers o. Not safe to call once requests are served.
func (d *Dispatcher) AddObserver(o ActionObserver) {
	d.observers = append(d.observers, o)
}

// Username returns the configured upsd user.
func (d *Dispatcher) Username() string {
	return d.creds.Username
}

// ListCommands fetches the command list from upsd, bypassing the cache TTL.
func (d *Dispatcher) ListCommands(ctx context.Context, name string) ([]nut.InstCmd, error) {
	return d.cache.Commands(ctx, name, true)
}

// RunInstCmd runs an instant command the device is known to support.
func (d *Dispatcher) RunInstCmd(ctx context.Context, name, cmd string) error {
	if err := d.creds.require(); err != nil {
		return err
	}

	dev, ok := d.store.LookupDevice(name)
	if !ok {
		return ErrDeviceNotFound
	}
	if !dev.HasCommand(cmd) {
		return d.reject(ctx, ActionEvent{UPS: name, Action: ActionInstCmd, Target: cmd},
			problem.WithDetail(http.StatusBadRequest, "Invalid INSTCMD",
				fmt.Sprintf("'%s' is not listed as supported command on device details.", cmd)))
	}

	err := d.withSession(ctx, func(s Session) error {
		return s.InstCmd(ctx, name, cmd)
	})
	d.notify(ctx, ActionEvent{UPS: name, Action: ActionInstCmd, Target: cmd, Problem: asProblem(err)})
	if err != nil {
		return err
	}

	d.logger.Info("instcmd called", "ups", name, "instcmd", cmd)
	return nil
}

// SetVariable validates value against the variable's declared constraint and
// writes it.
func (d *Dispatcher) SetVariable(ctx context.Context, name, variable string, value nut.Value) error {
	if err := d.creds.require(); err != nil {
		return err
	}

	dev, found := d.store.LookupDevice(name)
	if err := CheckWrite(dev, found, variable, value); err != nil {
		if found {
			return d.reject(ctx, ActionEvent{UPS: name, Action: ActionSetVar, Target: variable, Value: value.String()}, err)
		}
		return err
	}

	err := d.withSession(ctx, func(s Session) error {
		return s.SetVar(ctx, name, variable, value)
	})
	d.notify(ctx, ActionEvent{UPS: name, Action: ActionSetVar, Target: variable, Value: value.String(), Problem: asProblem(err)})
	if err != nil {
		return err
	}

	d.logger.Info("set var request accepted", "ups", name, "variable", variable, "value", value.String())
	return nil
}

// ForcedShutdown sets the FSD flag on a known device.
func (d *Dispatcher) ForcedShutdown(ctx context.Context, name string) error {
	if err := d.creds.require(); err != nil {
		return err
	}
	if _, ok := d.store.LookupDevice(name); !ok {
		return ErrDeviceNotFound
	}

	err := d.withSession(ctx, func(s Session) error {
		return s.FSD(ctx, name)
	})
	d.notify(ctx, ActionEvent{UPS: name, Action: ActionFSD, Problem: asProblem(err)})
	if err != nil {
		return err
	}

	d.logger.Warn("force shutdown (fsd) called", "ups", name)
	return nil
}

// withSession opens a session, runs fn and closes it. Errors come back
// translated.
func (d *Dispatcher) withSession(ctx context.Context, fn func(Session) error) error {
	sess, err := d.open(ctx, d.creds)
	if err != nil {
		return TranslateError(err)
	}
	defer closeSession(sess, d.logger)

	if err := fn(sess); err != nil {
		return TranslateError(err)
	}
	return nil
}

func (d *Dispatcher) reject(ctx context.Context, ev ActionEvent, err error) error {
	ev.Problem = asProblem(err)
	d.notify(ctx, ev)
	return err
}

func (d *Dispatcher) notify(ctx context.Context, ev ActionEvent) {
	ev.Subject = SubjectFrom(ctx)
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	for _, o := range d.observers {
		o.ActionPerformed(ev)
	}
}

func asProblem(err error) *problem.Detail {
	if err == nil {
		return nil
	}
	return TranslateError(err)
}
