package heartbeat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/gatewatch/internal/protocol/frame"
	"github.com/danmuck/gatewatch/internal/testutil/testlog"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newTestMonitor uses an hour-long interval so the background ticker never
// fires during a test; checks are driven by hand.
func newTestMonitor(t *testing.T) (*Monitor, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	m, err := NewMonitor(Config{Interval: time.Hour, Tolerance: time.Minute, Clock: clock.Now})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	t.Cleanup(m.Disconnect)
	return m, clock
}

func TestMonitorStartsDisconnected(t *testing.T) {
	testlog.Start(t)
	m, _ := newTestMonitor(t)
	if got := m.Status(); got != Disconnected {
		t.Fatalf("initial status=%s want=Disconnected", got)
	}
	if got := m.Check(); got != Disconnected {
		t.Fatalf("check before connect must not change status, got %s", got)
	}
}

func TestMonitorHeartbeatWhileInactiveKeepsStatus(t *testing.T) {
	testlog.Start(t)
	m, clock := newTestMonitor(t)
	m.Heartbeat()
	s := m.Snapshot()
	if s.Status != Disconnected || !s.LastHeartbeat.Equal(clock.Now()) {
		t.Fatalf("inactive heartbeat state=%+v", s)
	}

	m.Connect(context.Background())
	m.Disconnect()
	clock.Advance(time.Second)
	m.Observe(frame.Envelope{Header: frame.Header{Session: "S", Sequence: 2}})
	s = m.Snapshot()
	if s.Status != Disconnected || !s.LastHeartbeat.Equal(clock.Now()) {
		t.Fatalf("heartbeat after disconnect state=%+v", s)
	}
}

func TestMonitorMissesEscalate(t *testing.T) {
	testlog.Start(t)
	m, clock := newTestMonitor(t)
	m.Connect(context.Background())
	if got := m.Status(); got != Connected {
		t.Fatalf("status after connect=%s", got)
	}

	clock.Advance(time.Hour)
	if got := m.Check(); got != Connected {
		t.Fatalf("within tolerance status=%s want=Connected", got)
	}

	clock.Advance(2 * time.Minute)
	if got := m.Check(); got != Warning {
		t.Fatalf("first miss status=%s want=Warning", got)
	}
	clock.Advance(time.Hour)
	if got := m.Check(); got != Disconnected {
		t.Fatalf("second miss status=%s want=Disconnected", got)
	}
	if misses := m.Snapshot().Misses; misses != 2 {
		t.Fatalf("misses=%d want=2", misses)
	}

	if !m.Observe(frame.Envelope{Header: frame.Header{Session: "S", Sequence: 9}}) {
		t.Fatalf("zero-block envelope should count as heartbeat")
	}
	s := m.Snapshot()
	if s.Status != Connected || s.Misses != 0 || !s.LastHeartbeat.Equal(clock.Now()) {
		t.Fatalf("heartbeat did not reset state: %+v", s)
	}
}

func TestMonitorIgnoresDataEnvelopes(t *testing.T) {
	testlog.Start(t)
	m, clock := newTestMonitor(t)
	m.Connect(context.Background())
	clock.Advance(2 * time.Hour)
	m.Check()

	env := frame.Envelope{
		Header: frame.Header{Session: "S", BlockCount: 1},
		Blocks: []frame.Block{frame.Block("Lhello")},
	}
	if m.Observe(env) {
		t.Fatalf("data envelope must not count as heartbeat")
	}
	if got := m.Status(); got != Warning {
		t.Fatalf("status=%s want=Warning", got)
	}
}

func TestMonitorDisconnectForcesStatus(t *testing.T) {
	testlog.Start(t)
	m, clock := newTestMonitor(t)

	var (
		mu   sync.Mutex
		seen []Transition
	)
	m.Subscribe(func(tr Transition) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, tr)
	})

	m.Connect(context.Background())
	m.Heartbeat()
	clock.Advance(2 * time.Hour)
	m.Check()
	m.Disconnect()
	m.Disconnect()

	if got := m.Check(); got != Disconnected {
		t.Fatalf("check after disconnect status=%s", got)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []Status{Connected, Warning, Disconnected}
	if len(seen) != len(want) {
		t.Fatalf("transitions=%+v", seen)
	}
	for i, tr := range seen {
		if tr.To != want[i] {
			t.Fatalf("transition %d to=%s want=%s", i, tr.To, want[i])
		}
	}
	if seen[1].Misses != 1 || seen[0].From != Disconnected {
		t.Fatalf("unexpected transition detail: %+v", seen)
	}
}

func TestMonitorTickerDrivesChecks(t *testing.T) {
	testlog.Start(t)
	m, err := NewMonitor(Config{Interval: 10 * time.Millisecond, Tolerance: 5 * time.Millisecond})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	defer m.Disconnect()

	m.Connect(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for m.Status() != Disconnected {
		if time.Now().After(deadline) {
			t.Fatalf("monitor never reached Disconnected, state=%+v", m.Snapshot())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestConfigValidate(t *testing.T) {
	testlog.Start(t)
	if _, err := NewMonitor(Config{}); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
	if got := (Config{Interval: time.Second}).CheckInterval(); got != 1200*time.Millisecond {
		t.Fatalf("check interval=%s want=1.2s", got)
	}
}
