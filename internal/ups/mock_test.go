package ups

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/nerrad567/upsdash-core/internal/nut"
)

var testCreds = Credentials{Username: "admin", Password: "secret"}

type mockSession struct {
	mock.Mock
}

func (m *mockSession) ListInstCmds(ctx context.Context, ups string) ([]nut.InstCmd, error) {
	args := m.Called(ctx, ups)
	cmds, _ := args.Get(0).([]nut.InstCmd)
	return cmds, args.Error(1)
}

func (m *mockSession) InstCmd(ctx context.Context, ups, cmd string) error {
	return m.Called(ctx, ups, cmd).Error(0)
}

func (m *mockSession) SetVar(ctx context.Context, ups, name string, value nut.Value) error {
	return m.Called(ctx, ups, name, value).Error(0)
}

func (m *mockSession) FSD(ctx context.Context, ups string) error {
	return m.Called(ctx, ups).Error(0)
}

func (m *mockSession) Close() error {
	return m.Called().Error(0)
}

// mockOpener records session opens.
type mockOpener struct {
	mock.Mock
}

func (o *mockOpener) open(_ context.Context, creds Credentials) (Session, error) {
	args := o.Called(creds)
	s, _ := args.Get(0).(Session)
	return s, args.Error(1)
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recordingObserver collects action events.
type recordingObserver struct {
	mu     sync.Mutex
	events []ActionEvent
}

func (r *recordingObserver) ActionPerformed(ev ActionEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recordingObserver) all() []ActionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ActionEvent(nil), r.events...)
}

// seedDevice registers a device with the given RW variables and commands.
func seedDevice(s *Store, name string, rw map[string]VarDetail, cmds ...string) {
	s.SyncDevices(append(s.ListDevices(), DeviceEntry{
		Name:        name,
		Variables:   map[string]nut.Value{"ups.status": nut.TextValue("OL")},
		RWVariables: rw,
	}))
	if len(cmds) > 0 {
		list := make([]nut.InstCmd, len(cmds))
		for i, id := range cmds {
			list[i] = nut.InstCmd{ID: id, Desc: id + " description"}
		}
		s.ApplyRefresh(name, list)
	}
}
