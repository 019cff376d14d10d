package ups

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/upsdash-core/internal/nut"
)

// fakeReadSession serves a fixed daemon view.
type fakeReadSession struct {
	devices  []nut.UPS
	vars     map[string]map[string]nut.Value
	rw       map[string]map[string]nut.Value
	types    map[string]nut.VarType
	enums    map[string][]nut.Value
	ranges   map[string][]nut.Range
	cmds     map[string][]nut.InstCmd
	varsErr  map[string]error
	listErr  error
	descCall int
	closed   int
}

var errDataStale = &nut.Error{Kind: nut.KindProtocol, Protocol: nut.ErrDataStale}

func (f *fakeReadSession) ListUPS(context.Context) ([]nut.UPS, error) {
	return f.devices, f.listErr
}

func (f *fakeReadSession) ListVars(_ context.Context, ups string) (map[string]nut.Value, error) {
	if err := f.varsErr[ups]; err != nil {
		return nil, err
	}
	return f.vars[ups], nil
}

func (f *fakeReadSession) ListRW(_ context.Context, ups string) (map[string]nut.Value, error) {
	return f.rw[ups], nil
}

func (f *fakeReadSession) GetType(_ context.Context, _, name string) (nut.VarType, error) {
	vt, ok := f.types[name]
	if !ok {
		return nut.VarType{}, &nut.Error{Kind: nut.KindProtocol, Protocol: nut.ErrVarNotSupported}
	}
	return vt, nil
}

func (f *fakeReadSession) ListEnum(_ context.Context, _, name string) ([]nut.Value, error) {
	return f.enums[name], nil
}

func (f *fakeReadSession) ListRange(_ context.Context, _, name string) ([]nut.Range, error) {
	return f.ranges[name], nil
}

func (f *fakeReadSession) GetDesc(_ context.Context, _, name string) (string, error) {
	f.descCall++
	return "desc of " + name, nil
}

func (f *fakeReadSession) ListInstCmds(_ context.Context, ups string) ([]nut.InstCmd, error) {
	return f.cmds[ups], nil
}

func (f *fakeReadSession) Close() error {
	f.closed++
	return nil
}

type recordingDeviceObserver struct {
	mu      sync.Mutex
	updated []string
	removed []string
}

func (r *recordingDeviceObserver) DeviceUpdated(dev DeviceEntry) {
	r.mu.Lock()
	r.updated = append(r.updated, dev.Name)
	r.mu.Unlock()
}

func (r *recordingDeviceObserver) DeviceRemoved(name string) {
	r.mu.Lock()
	r.removed = append(r.removed, name)
	r.mu.Unlock()
}

func newFakeDaemon() *fakeReadSession {
	return &fakeReadSession{
		devices: []nut.UPS{{Name: "ups1", Description: "Rack"}},
		vars: map[string]map[string]nut.Value{
			"ups1": {
				"battery.charge":     nut.ParseValue("100"),
				"ups.status":         nut.ParseValue("OL"),
				"ups.id":             nut.ParseValue("rack"),
				"input.sensitivity":  nut.ParseValue("low"),
				"input.transfer.low": nut.ParseValue("170"),
				"ups.delay.shutdown": nut.ParseValue("20"),
			},
		},
		rw: map[string]map[string]nut.Value{
			"ups1": {
				"ups.id":             nut.ParseValue("rack"),
				"input.sensitivity":  nut.ParseValue("low"),
				"input.transfer.low": nut.ParseValue("170"),
				"ups.delay.shutdown": nut.ParseValue("20"),
				"unsupported.var":    nut.ParseValue("x"),
			},
		},
		types: map[string]nut.VarType{
			"ups.id":             {RW: true, StringMaxLen: 16},
			"input.sensitivity":  {RW: true, Enum: true},
			"input.transfer.low": {RW: true, Range: true},
			"ups.delay.shutdown": {RW: true, Number: true},
		},
		enums: map[string][]nut.Value{
			"input.sensitivity": {nut.ParseValue("low"), nut.ParseValue("high")},
		},
		ranges: map[string][]nut.Range{
			"input.transfer.low": {{Min: nut.ParseValue("160"), Max: nut.ParseValue("180")}},
		},
		cmds: map[string][]nut.InstCmd{
			"ups1": {{ID: "beeper.toggle", Desc: "Toggle the beeper"}},
		},
	}
}

func newTestPoller(store *Store, daemon *fakeReadSession) *Poller {
	return NewPoller(store, func(context.Context) (ReadSession, error) { return daemon, nil }, time.Second)
}

func mustPoll(t *testing.T, p *Poller) {
	t.Helper()
	if err := p.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
}

func TestPollDiscoversDevice(t *testing.T) {
	store := NewStore(time.Minute)
	daemon := newFakeDaemon()
	poller := newTestPoller(store, daemon)
	obs := &recordingDeviceObserver{}
	poller.AddObserver(obs)

	mustPoll(t, poller)
	if daemon.closed != 1 {
		t.Errorf("session closed %d times, want 1", daemon.closed)
	}

	dev, ok := store.LookupDevice("ups1")
	if !ok {
		t.Fatal("ups1 not in store after poll")
	}
	if dev.Description != "Rack" || len(dev.Variables) != 6 {
		t.Errorf("description = %q, %d variables; want Rack, 6", dev.Description, len(dev.Variables))
	}

	if got := dev.RWVariables["ups.id"]; got != (StringDetail{MaxLen: 16}) {
		t.Errorf("ups.id detail = %#v", got)
	}
	if got := dev.RWVariables["ups.delay.shutdown"]; got != (NumberDetail{}) {
		t.Errorf("ups.delay.shutdown detail = %#v", got)
	}
	if _, ok := dev.RWVariables["input.sensitivity"].(EnumDetail); !ok {
		t.Errorf("input.sensitivity detail = %#v, want EnumDetail", dev.RWVariables["input.sensitivity"])
	}
	if _, ok := dev.RWVariables["input.transfer.low"].(RangeDetail); !ok {
		t.Errorf("input.transfer.low detail = %#v, want RangeDetail", dev.RWVariables["input.transfer.low"])
	}
	// GET TYPE fails for it, so it is skipped rather than guessed.
	if _, ok := dev.RWVariables["unsupported.var"]; ok {
		t.Error("unsupported.var kept without a known type")
	}

	if !dev.HasCommand("beeper.toggle") {
		t.Error("beeper.toggle missing from command set")
	}
	descs := store.Descriptions([]string{"battery.charge", "beeper.toggle"})
	if descs["battery.charge"] != "desc of battery.charge" || descs["beeper.toggle"] != "Toggle the beeper" {
		t.Errorf("descriptions = %v", descs)
	}

	if !slices.Equal(obs.updated, []string{"ups1"}) {
		t.Errorf("updated = %v, want [ups1]", obs.updated)
	}
}

func TestPollFetchesDescriptionsOnce(t *testing.T) {
	daemon := newFakeDaemon()
	poller := newTestPoller(NewStore(time.Minute), daemon)

	mustPoll(t, poller)
	first := daemon.descCall
	mustPoll(t, poller)
	if daemon.descCall != first {
		t.Errorf("GET DESC calls grew from %d to %d on a known device", first, daemon.descCall)
	}
}

func TestPollRemovesVanishedDevice(t *testing.T) {
	store := NewStore(time.Minute)
	daemon := newFakeDaemon()
	poller := newTestPoller(store, daemon)
	obs := &recordingDeviceObserver{}
	poller.AddObserver(obs)

	mustPoll(t, poller)
	daemon.devices = nil
	mustPoll(t, poller)

	if _, ok := store.LookupDevice("ups1"); ok {
		t.Error("ups1 still in store after it vanished")
	}
	if !slices.Equal(obs.removed, []string{"ups1"}) {
		t.Errorf("removed = %v, want [ups1]", obs.removed)
	}
}

func TestPollKeepsValuesOnDeviceError(t *testing.T) {
	store := NewStore(time.Minute)
	daemon := newFakeDaemon()
	poller := newTestPoller(store, daemon)

	mustPoll(t, poller)
	daemon.varsErr = map[string]error{"ups1": errDataStale}
	mustPoll(t, poller)

	dev, ok := store.LookupDevice("ups1")
	if !ok {
		t.Fatal("ups1 dropped after a per-device error")
	}
	if len(dev.Variables) != 6 {
		t.Errorf("%d variables kept, want 6", len(dev.Variables))
	}
}

func TestPollAbortsOnTransportError(t *testing.T) {
	store := NewStore(time.Minute)
	daemon := newFakeDaemon()
	poller := newTestPoller(store, daemon)

	mustPoll(t, poller)

	daemon.listErr = &nut.Error{Kind: nut.KindIO, Err: errors.New("reset")}
	if err := poller.Poll(context.Background()); err == nil {
		t.Fatal("Poll() error = nil on a transport failure")
	}

	if _, ok := store.LookupDevice("ups1"); !ok {
		t.Error("state lost after a failed poll")
	}
}

func TestPollOpenError(t *testing.T) {
	poller := NewPoller(NewStore(time.Minute), func(context.Context) (ReadSession, error) {
		return nil, &nut.Error{Kind: nut.KindIO}
	}, time.Second)

	err := poller.Poll(context.Background())
	if err == nil || !nut.IsUnreachable(err) {
		t.Errorf("Poll() error = %v, want unreachable", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	daemon := newFakeDaemon()

	var mu sync.Mutex
	polls := 0
	poller := NewPoller(NewStore(time.Minute), func(context.Context) (ReadSession, error) {
		mu.Lock()
		polls++
		mu.Unlock()
		return daemon, nil
	}, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := polls
		mu.Unlock()
		if n >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("only %d polls within a second", n)
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
