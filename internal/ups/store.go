package ups

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/upsdash-core/internal/nut"
)

// Store is the shared device state: the device registry, the instant command
// cache and the description pool, guarded by one RWMutex.
//
// Readers never block one another; a writer excludes all readers, so no
// reader observes a half-applied refresh. Every value handed out is a copy.
type Store struct {
	mu           sync.RWMutex
	devices      map[string]*DeviceEntry
	commands     map[string]CommandsCacheEntry
	descriptions *DescriptionPool

	ttl time.Duration
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore returns an empty store whose command cache entries go stale after ttl.
func NewStore(ttl time.Duration, opts ...Option) *Store {
	s := &Store{
		devices:      make(map[string]*DeviceEntry),
		commands:     make(map[string]CommandsCacheEntry),
		descriptions: NewDescriptionPool(),
		ttl:          ttl,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReadCommands returns the cached command list of a device and whether it is
// stale. A device never refreshed yields an empty list and stale=true.
// It never contacts the daemon.
func (s *Store) ReadCommands(name string) ([]nut.InstCmd, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.commands[name]
	if !ok {
		return []nut.InstCmd{}, true
	}

	stale := s.now().Sub(entry.FetchedAt) >= s.ttl
	return slices.Clone(entry.Commands), stale
}

// CommandsFetchedAt returns when the command list of a device was last refreshed.
func (s *Store) CommandsFetchedAt(name string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.commands[name]
	return entry.FetchedAt, ok
}

// ApplyRefresh stores a freshly fetched command list. The device's command set
// becomes exactly the ids in cmds and every description is upserted into the
// pool. A device not yet discovered only gets the cache entry.
func (s *Store) ApplyRefresh(name string, cmds []nut.InstCmd) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fetchedAt := s.now()
	if prev, ok := s.commands[name]; ok && !fetchedAt.After(prev.FetchedAt) {
		fetchedAt = prev.FetchedAt.Add(time.Nanosecond)
	}

	s.commands[name] = CommandsCacheEntry{
		FetchedAt: fetchedAt,
		Commands:  slices.Clone(cmds),
	}

	if dev, ok := s.devices[name]; ok {
		set := make(map[string]struct{}, len(cmds))
		for _, cmd := range cmds {
			set[cmd.ID] = struct{}{}
		}
		dev.Commands = set
	}

	for _, cmd := range cmds {
		s.descriptions.Upsert(cmd.ID, cmd.Desc)
	}
}

// LookupDevice returns a copy of the named device.
func (s *Store) LookupDevice(name string) (*DeviceEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dev, ok := s.devices[name]
	if !ok {
		return nil, false
	}
	return dev.DeepCopy(), true
}

// ListDevices returns copies of all devices sorted by name.
func (s *Store) ListDevices() []DeviceEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	devices := make([]DeviceEntry, 0, len(s.devices))
	for _, dev := range s.devices {
		devices = append(devices, *dev.DeepCopy())
	}

	slices.SortFunc(devices, func(a, b DeviceEntry) int {
		return strings.Compare(a.Name, b.Name)
	})
	return devices
}

// DeviceCount returns the number of known devices.
func (s *Store) DeviceCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.devices)
}

// SyncDevices makes the registry match a discovery result. New devices are
// added, known devices get the new variables and RW details while keeping
// their command set, and devices missing from entries are removed together
// with their command cache entry. It returns the names added or updated and
// the names removed, both sorted.
func (s *Store) SyncDevices(entries []DeviceEntry) (updated, removed []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(entries))
	for i := range entries {
		in := entries[i].DeepCopy()
		seen[in.Name] = struct{}{}
		updated = append(updated, in.Name)

		if prev, ok := s.devices[in.Name]; ok {
			in.Commands = prev.Commands
		} else if cached, ok := s.commands[in.Name]; ok {
			// Commands refreshed before the device was discovered.
			in.Commands = make(map[string]struct{}, len(cached.Commands))
			for _, cmd := range cached.Commands {
				in.Commands[cmd.ID] = struct{}{}
			}
		}
		if in.Commands == nil {
			in.Commands = make(map[string]struct{})
		}
		s.devices[in.Name] = in
	}

	for name := range s.devices {
		if _, ok := seen[name]; ok {
			continue
		}
		delete(s.devices, name)
		delete(s.commands, name)
		removed = append(removed, name)
	}

	slices.Sort(updated)
	slices.Sort(removed)
	return updated, removed
}

// UpsertDescriptions adds variable descriptions to the pool.
func (s *Store) UpsertDescriptions(descs map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, desc := range descs {
		s.descriptions.Upsert(key, desc)
	}
}

// Descriptions returns the pooled descriptions of the given command or
// variable ids. Ids without a description are left out.
func (s *Store) Descriptions(keys []string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(keys))
	for _, key := range keys {
		if desc, ok := s.descriptions.Lookup(key); ok && desc != "" {
			out[key] = desc
		}
	}
	return out
}

// DescriptionCount returns the pool size.
func (s *Store) DescriptionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.descriptions.Len()
}
