package ups

import (
	"context"
	"slices"

	"golang.org/x/sync/singleflight"

	"github.com/nerrad567/upsdash-core/internal/nut"
)

// CommandCache serves instant command lists from the Store and refreshes them
// from upsd once they are older than the store TTL.
//
// Concurrent refreshes of the same device share one daemon round trip.
type CommandCache struct {
	store  *Store
	open   SessionFunc
	creds  Credentials
	group  singleflight.Group
	logger Logger
}

// NewCommandCache creates a cache over store that opens sessions with open.
func NewCommandCache(store *Store, open SessionFunc, creds Credentials) *CommandCache {
	return &CommandCache{
		store:  store,
		open:   open,
		creds:  creds,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the cache.
func (c *CommandCache) SetLogger(logger Logger) {
	c.logger = logger
}

// Commands returns the command list of a device. A fresh cached list is
// returned without contacting upsd unless force is set. A failed refresh
// leaves the cached entry untouched and returns the translated problem.
func (c *CommandCache) Commands(ctx context.Context, name string, force bool) ([]nut.InstCmd, error) {
	if !force {
		if cmds, stale := c.store.ReadCommands(name); !stale {
			return cmds, nil
		}
	}
	return c.Refresh(ctx, name)
}

// Cached returns the cached list, refreshing it first when stale. When the
// refresh fails the stale list is returned together with the error.
func (c *CommandCache) Cached(ctx context.Context, name string) (cmds []nut.InstCmd, stale bool, err error) {
	cmds, stale = c.store.ReadCommands(name)
	if !stale {
		return cmds, false, nil
	}

	fresh, err := c.Refresh(ctx, name)
	if err != nil {
		c.logger.Warn("command refresh failed, serving stale list", "ups", name, "error", err)
		return cmds, true, err
	}
	return fresh, false, nil
}

// Refresh fetches the command list from upsd and stores it.
func (c *CommandCache) Refresh(ctx context.Context, name string) ([]nut.InstCmd, error) {
	if err := c.creds.require(); err != nil {
		return nil, err
	}

	// The shared call must not fail because the first caller went away;
	// the session timeout still bounds it.
	shared := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(name, func() (any, error) {
		return c.fetch(shared, name)
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]nut.InstCmd)), nil
}

func (c *CommandCache) fetch(ctx context.Context, name string) ([]nut.InstCmd, error) {
	sess, err := c.open(ctx, c.creds)
	if err != nil {
		return nil, TranslateError(err)
	}
	defer closeSession(sess, c.logger)

	cmds, err := sess.ListInstCmds(ctx, name)
	if err != nil {
		return nil, TranslateError(err)
	}

	c.store.ApplyRefresh(name, cmds)
	c.logger.Debug("instant commands refreshed", "ups", name, "count", len(cmds))
	return cmds, nil
}
