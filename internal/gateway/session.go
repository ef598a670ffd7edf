package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/gatewatch/internal/heartbeat"
)

var ErrAddressRequired = errors.New("gateway: address required")

// DialFunc opens the gateway stream.
type DialFunc func(ctx context.Context, address string) (net.Conn, error)

type SessionConfig struct {
	Address     string
	DialTimeout time.Duration
}

// Session runs one gateway connection: it dials, attaches the commander,
// starts liveness tracking and feeds the stream to the reader until the
// stream ends. Reconnecting belongs to whatever supervises the process.
type Session struct {
	cfg       SessionConfig
	reader    *Reader
	monitor   *heartbeat.Monitor
	commander *Commander
	dial      DialFunc

	connected atomic.Bool
}

// NewSession builds a session. monitor and commander may be nil.
func NewSession(cfg SessionConfig, reader *Reader, monitor *heartbeat.Monitor, commander *Commander) *Session {
	d := &net.Dialer{Timeout: cfg.DialTimeout}
	return &Session{
		cfg:       cfg,
		reader:    reader,
		monitor:   monitor,
		commander: commander,
		dial: func(ctx context.Context, address string) (net.Conn, error) {
			return d.DialContext(ctx, "tcp", address)
		},
	}
}

// WithDialer replaces the TCP dialer.
func (s *Session) WithDialer(dial DialFunc) *Session {
	s.dial = dial
	return s
}

// Run dials once and blocks until the stream ends or ctx is cancelled. A
// peer close or cancellation returns nil; a framing failure returns an
// error wrapping ErrFraming.
func (s *Session) Run(ctx context.Context) error {
	address := strings.TrimSpace(s.cfg.Address)
	if address == "" {
		return ErrAddressRequired
	}
	conn, err := s.dial(ctx, address)
	if err != nil {
		return fmt.Errorf("gateway dial failed (%s): %w", address, err)
	}
	defer conn.Close()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.connected.Store(true)
	log.Info().Msgf("gateway.session connected remote=%s", conn.RemoteAddr())
	if s.commander != nil {
		s.commander.Attach(conn)
	}
	if s.monitor != nil {
		s.monitor.Connect(connCtx)
	}

	err = s.reader.Run(connCtx, conn)

	if s.commander != nil {
		s.commander.Attach(nil)
	}
	if s.monitor != nil {
		s.monitor.Disconnect()
	}
	s.connected.Store(false)
	if err != nil {
		return err
	}
	log.Info().Msgf("gateway.session closed remote=%s envelopes=%d", conn.RemoteAddr(), s.reader.Stats().Envelopes)
	return nil
}

func (s *Session) Connected() bool {
	return s.connected.Load()
}

// Replay feeds a captured stream file through reader once. The file is read
// faster than real time, so the monitor is never connected: it records the
// last heartbeat time and its status stays Disconnected.
func Replay(ctx context.Context, path string, reader *Reader) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("gateway replay open failed (%s): %w", path, err)
	}
	defer f.Close()
	log.Info().Msgf("gateway.replay start path=%q", path)
	if err := reader.Run(ctx, f); err != nil {
		return err
	}
	stats := reader.Stats()
	log.Info().Msgf("gateway.replay done path=%q envelopes=%d heartbeats=%d", path, stats.Envelopes, stats.Heartbeats)
	return nil
}
