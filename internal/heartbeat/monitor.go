// Package heartbeat derives connection liveness from the cadence of
// zero-block envelopes.
package heartbeat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/gatewatch/internal/observability"
	"github.com/danmuck/gatewatch/internal/protocol/frame"
)

var ErrInvalidInterval = errors.New("heartbeat: invalid interval")

type Status uint8

const (
	Disconnected Status = iota
	Connected
	Warning
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connected:
		return "Connected"
	case Warning:
		return "Warning"
	}
	return "Unknown"
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

type Config struct {
	Interval  time.Duration
	Tolerance time.Duration
	// Clock overrides time.Now.
	Clock func() time.Time
}

func DefaultConfig() Config {
	return Config{
		Interval:  time.Second,
		Tolerance: 500 * time.Millisecond,
	}
}

func (c Config) Validate() error {
	if c.Interval <= 0 {
		return ErrInvalidInterval
	}
	if c.Tolerance < 0 {
		return errors.New("heartbeat: negative tolerance")
	}
	return nil
}

// CheckInterval is the period of the liveness check, 1.2x the expected
// heartbeat interval.
func (c Config) CheckInterval() time.Duration {
	return c.Interval * 6 / 5
}

// State is a point-in-time view of the monitor.
type State struct {
	Status        Status    `json:"status"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	Misses        int       `json:"misses"`
	Since         time.Time `json:"since"`
}

// Transition is emitted whenever Status changes.
type Transition struct {
	From   Status    `json:"from"`
	To     Status    `json:"to"`
	Misses int       `json:"misses"`
	At     time.Time `json:"at"`
}

type Monitor struct {
	cfg Config
	now func() time.Time

	mu        sync.Mutex
	state     State
	active    bool
	stop      context.CancelFunc
	done      chan struct{}
	observers []func(Transition)
}

func NewMonitor(cfg Config) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		cfg:   cfg,
		now:   now,
		state: State{Status: Disconnected, Since: now()},
	}, nil
}

// Subscribe registers fn for status transitions. Observers run with the
// monitor locked, in transition order, and must not call back into it.
func (m *Monitor) Subscribe(fn func(Transition)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// Connect resets the monitor to Connected and starts the periodic check.
// It replaces any check loop still running from a previous connection.
func (m *Monitor) Connect(ctx context.Context) {
	m.halt()

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	m.mu.Lock()
	now := m.now()
	m.active = true
	m.stop = cancel
	m.done = done
	m.state.Misses = 0
	m.state.LastHeartbeat = now
	m.setLocked(Connected, now)
	m.mu.Unlock()

	go m.run(loopCtx, done)
}

// Disconnect stops the check loop and forces Disconnected. It is safe to
// call at any time and more than once.
func (m *Monitor) Disconnect() {
	m.halt()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = false
	m.setLocked(Disconnected, m.now())
}

func (m *Monitor) halt() {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.mu.Unlock()
	if stop != nil {
		stop()
		<-done
	}
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.cfg.CheckInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check()
		}
	}
}

// Observe feeds one envelope to the monitor and reports whether it was a
// heartbeat.
func (m *Monitor) Observe(env frame.Envelope) bool {
	if !env.IsHeartbeat() {
		return false
	}
	m.Heartbeat()
	return true
}

// Heartbeat records a zero-block envelope: misses reset and the status
// returns to Connected. Outside Connect no check loop could ever demote the
// status again, so only the timestamp is kept.
func (m *Monitor) Heartbeat() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.state.LastHeartbeat = now
	if !m.active {
		return
	}
	m.state.Misses = 0
	m.setLocked(Connected, now)
}

// Check runs one liveness check. One overdue check yields Warning, two or
// more consecutive ones Disconnected.
func (m *Monitor) Check() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return m.state.Status
	}
	now := m.now()
	if now.Sub(m.state.LastHeartbeat) <= m.cfg.Interval+m.cfg.Tolerance {
		return m.state.Status
	}
	m.state.Misses++
	next := Warning
	if m.state.Misses >= 2 {
		next = Disconnected
	}
	m.setLocked(next, now)
	return m.state.Status
}

func (m *Monitor) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Monitor) Status() Status {
	return m.Snapshot().Status
}

func (m *Monitor) setLocked(next Status, at time.Time) {
	prev := m.state.Status
	if prev == next {
		return
	}
	m.state.Status = next
	m.state.Since = at
	tr := Transition{From: prev, To: next, Misses: m.state.Misses, At: at}
	observability.RecordLiveness(int(next))
	switch next {
	case Connected:
		log.Info().Msgf("heartbeat.monitor status=%s from=%s", next, prev)
	default:
		log.Warn().Msgf("heartbeat.monitor status=%s from=%s misses=%d", next, prev, tr.Misses)
	}
	for _, fn := range m.observers {
		fn(tr)
	}
}
