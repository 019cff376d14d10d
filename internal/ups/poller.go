package ups

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/upsdash-core/internal/nut"
)

// defaultPollInterval is used when NewPoller gets a non-positive interval.
const defaultPollInterval = 2 * time.Second

// ReadSession is the upsd surface the poller needs. *nut.Client implements it.
type ReadSession interface {
	ListUPS(ctx context.Context) ([]nut.UPS, error)
	ListVars(ctx context.Context, ups string) (map[string]nut.Value, error)
	ListRW(ctx context.Context, ups string) (map[string]nut.Value, error)
	GetType(ctx context.Context, ups, name string) (nut.VarType, error)
	ListEnum(ctx context.Context, ups, name string) ([]nut.Value, error)
	ListRange(ctx context.Context, ups, name string) ([]nut.Range, error)
	GetDesc(ctx context.Context, ups, name string) (string, error)
	ListInstCmds(ctx context.Context, ups string) ([]nut.InstCmd, error)
	Close() error
}

// ReadSessionFunc opens a session for one poll cycle.
type ReadSessionFunc func(ctx context.Context) (ReadSession, error)

// NUTReadSessions dials upsd at addr, logging in when creds are configured.
func NUTReadSessions(addr string, opts nut.Options, creds Credentials) ReadSessionFunc {
	return func(ctx context.Context) (ReadSession, error) {
		var (
			c   *nut.Client
			err error
		)
		if creds.Configured() {
			c, err = nut.ConnectAuth(ctx, addr, creds.Username, creds.Password, opts)
		} else {
			c, err = nut.Connect(ctx, addr, opts)
		}
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// DeviceObserver is told about device changes after every poll cycle.
type DeviceObserver interface {
	DeviceUpdated(dev DeviceEntry)
	DeviceRemoved(name string)
}

// Poller keeps the Store in line with upsd: it discovers devices, refreshes
// their variables and writable variable constraints, and fetches variable
// descriptions and command lists once per newly discovered device.
type Poller struct {
	store     *Store
	open      ReadSessionFunc
	interval  time.Duration
	logger    Logger
	observers []DeviceObserver

	mu    sync.Mutex // serialises Poll
	known map[string]struct{}
}

// NewPoller creates a poller running every interval.
func NewPoller(store *Store, open ReadSessionFunc, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Poller{
		store:    store,
		open:     open,
		interval: interval,
		logger:   noopLogger{},
		known:    make(map[string]struct{}),
	}
}

// SetLogger sets the logger for the poller.
func (p *Poller) SetLogger(logger Logger) {
	p.logger = logger
}

// AddObserver registers o. Call before Run.
func (p *Poller) AddObserver(o DeviceObserver) {
	p.observers = append(p.observers, o)
}

// Run polls immediately and then every interval until ctx is cancelled.
// Poll failures are logged and the previous state kept.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("ups poller started", "interval", p.interval.String())

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			p.logger.Warn("ups poll failed", "error", err)
		}

		select {
		case <-ctx.Done():
			p.logger.Info("ups poller stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Poll runs one discovery cycle over a single session.
func (p *Poller) Poll(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	sess, err := p.open(ctx)
	if err != nil {
		return fmt.Errorf("opening upsd session: %w", err)
	}
	defer closeSession(sess, p.logger)

	list, err := sess.ListUPS(ctx)
	if err != nil {
		return fmt.Errorf("listing devices: %w", err)
	}

	// Build every entry first; the store is only touched once the whole
	// cycle has succeeded.
	entries := make([]DeviceEntry, 0, len(list))
	var discovered []string
	for _, u := range list {
		entry, err := p.readDevice(ctx, sess, u)
		if err != nil {
			return err
		}
		entries = append(entries, entry)

		if _, ok := p.known[u.Name]; !ok {
			if err := p.discover(ctx, sess, entry); err != nil {
				return err
			}
			discovered = append(discovered, u.Name)
		}
	}

	updated, removed := p.store.SyncDevices(entries)

	// Mark devices known only after the sync, so a failed cycle retries
	// discovery next time.
	for _, name := range discovered {
		p.known[name] = struct{}{}
	}
	for _, name := range removed {
		delete(p.known, name)
	}

	if len(discovered) > 0 {
		p.logger.Info("ups devices discovered", "devices", discovered)
	}
	if len(removed) > 0 {
		p.logger.Info("ups devices removed", "devices", removed)
	}

	p.publish(updated, removed)
	return nil
}

// readDevice builds the entry of one device. Daemon refusals for a single
// device (driver down, stale data) keep its last known values; transport
// failures abort the cycle.
func (p *Poller) readDevice(ctx context.Context, sess ReadSession, u nut.UPS) (DeviceEntry, error) {
	entry := DeviceEntry{
		Name:        u.Name,
		Description: u.Description,
		Variables:   map[string]nut.Value{},
		RWVariables: map[string]VarDetail{},
	}

	prev, hadPrev := p.store.LookupDevice(u.Name)

	vars, err := sess.ListVars(ctx, u.Name)
	switch {
	case err == nil:
		entry.Variables = vars
	case nut.IsUnreachable(err):
		return DeviceEntry{}, fmt.Errorf("listing variables of %s: %w", u.Name, err)
	default:
		p.logger.Debug("listing variables failed", "ups", u.Name, "error", err)
		if hadPrev {
			entry.Variables = prev.Variables
		}
	}

	rw, err := sess.ListRW(ctx, u.Name)
	switch {
	case err == nil:
	case nut.IsUnreachable(err):
		return DeviceEntry{}, fmt.Errorf("listing writable variables of %s: %w", u.Name, err)
	default:
		p.logger.Debug("listing writable variables failed", "ups", u.Name, "error", err)
		if hadPrev {
			entry.RWVariables = prev.RWVariables
		}
		return entry, nil
	}

	// GET TYPE and friends cost a round trip each; only new variables pay it.
	for name := range rw {
		if hadPrev {
			// Constraints come from the driver and do not change.
			if d, ok := prev.RWVariables[name]; ok {
				entry.RWVariables[name] = d
				continue
			}
		}

		detail, err := p.readDetail(ctx, sess, u.Name, name)
		if err != nil {
			if nut.IsUnreachable(err) {
				return DeviceEntry{}, fmt.Errorf("reading type of %s.%s: %w", u.Name, name, err)
			}
			p.logger.Debug("skipping writable variable", "ups", u.Name, "variable", name, "error", err)
			continue
		}
		if detail != nil {
			entry.RWVariables[name] = detail
		}
	}

	return entry, nil
}

// readDetail derives the constraint of a writable variable from GET TYPE.
// It returns nil for types that cannot be validated.
func (p *Poller) readDetail(ctx context.Context, sess ReadSession, ups, name string) (VarDetail, error) {
	vt, err := sess.GetType(ctx, ups, name)
	if err != nil {
		return nil, err
	}

	switch {
	case vt.Enum:
		options, err := sess.ListEnum(ctx, ups, name)
		if err != nil {
			return nil, err
		}
		return EnumDetail{Options: options}, nil
	case vt.Range:
		ranges, err := sess.ListRange(ctx, ups, name)
		if err != nil {
			return nil, err
		}
		if len(ranges) == 0 {
			return NumberDetail{}, nil
		}
		// Drivers may report several disjoint ranges; the first is enforced.
		return RangeDetail{Min: ranges[0].Min, Max: ranges[0].Max}, nil
	case vt.StringMaxLen > 0:
		return StringDetail{MaxLen: vt.StringMaxLen}, nil
	case vt.Number:
		return NumberDetail{}, nil
	default:
		return nil, nil
	}
}

// discover fetches what only changes with the driver: variable descriptions
// and the instant command list.
func (p *Poller) discover(ctx context.Context, sess ReadSession, entry DeviceEntry) error {
	descs := make(map[string]string, len(entry.Variables))
	for name := range entry.Variables {
		desc, err := sess.GetDesc(ctx, entry.Name, name)
		if err != nil {
			if nut.IsUnreachable(err) {
				return fmt.Errorf("reading description of %s: %w", name, err)
			}
			continue
		}
		descs[name] = desc
	}
	p.store.UpsertDescriptions(descs)

	// A failed listing is retried by the next on-demand refresh.
	cmds, err := sess.ListInstCmds(ctx, entry.Name)
	switch {
	case err == nil:
		p.store.ApplyRefresh(entry.Name, cmds)
	case nut.IsUnreachable(err):
		return fmt.Errorf("listing commands of %s: %w", entry.Name, err)
	default:
		p.logger.Debug("listing commands failed", "ups", entry.Name, "error", err)
	}
	return nil
}

func (p *Poller) publish(updated, removed []string) {
	if len(p.observers) == 0 {
		return
	}
	for _, name := range updated {
		dev, ok := p.store.LookupDevice(name)
		if !ok {
			continue
		}
		for _, o := range p.observers {
			o.DeviceUpdated(*dev)
		}
	}
	for _, name := range removed {
		for _, o := range p.observers {
			o.DeviceRemoved(name)
		}
	}
}
