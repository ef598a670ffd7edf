package gateway

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/gatewatch/internal/heartbeat"
	"github.com/danmuck/gatewatch/internal/protocol/frame"
	"github.com/danmuck/gatewatch/internal/protocol/mep"
	"github.com/danmuck/gatewatch/internal/testutil/testlog"
)

func pipeDialer(peers chan<- net.Conn) DialFunc {
	return func(ctx context.Context, address string) (net.Conn, error) {
		client, server := net.Pipe()
		peers <- server
		return client, nil
	}
}

func TestSessionTracksOneConnection(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t)
	commander := NewCommander("GW")
	peers := make(chan net.Conn, 1)
	s := NewSession(SessionConfig{Address: "gateway:7001"}, h.reader, h.monitor, commander).
		WithDialer(pipeDialer(peers))

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	peer := <-peers

	src := &stream{t: t}
	src.envelope()
	src.envelope(embedded(src.inner(mep.Trade{OrderID: 5, Quantity: 1, LeavesQty: 0}, t0)))
	_, err := peer.Write(src.buf.Bytes())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, ok := h.engine.Order(5)
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, s.Connected())
	assert.Equal(t, heartbeat.Connected, h.monitor.Status())

	sent := make(chan error, 1)
	go func() {
		_, err := commander.Send(frame.RewindCommand(3))
		sent <- err
	}()
	env, err := frame.ReadEnvelope(peer)
	require.NoError(t, err)
	require.NoError(t, <-sent)
	assert.Len(t, env.Blocks, 1)

	require.NoError(t, peer.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end after peer close")
	}
	assert.False(t, s.Connected())
	assert.Equal(t, heartbeat.Disconnected, h.monitor.Status())
	_, err = commander.Send(frame.RewindCommand(1))
	assert.ErrorIs(t, err, ErrNoConnection)
}

func TestSessionReportsFramingFailure(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t)
	peers := make(chan net.Conn, 1)
	s := NewSession(SessionConfig{Address: "gateway:7001"}, h.reader, h.monitor, nil).
		WithDialer(pipeDialer(peers))

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	peer := <-peers

	src := &stream{t: t}
	src.envelope(frame.Block("Lpartial"))
	_, err := peer.Write(src.buf.Bytes()[:src.buf.Len()-2])
	require.NoError(t, err)
	require.NoError(t, peer.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrFraming)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end")
	}
}

func TestSessionDialErrors(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t)
	err := NewSession(SessionConfig{}, h.reader, nil, nil).Run(context.Background())
	assert.ErrorIs(t, err, ErrAddressRequired)

	refused := errors.New("connection refused")
	err = NewSession(SessionConfig{Address: "gateway:7001"}, h.reader, h.monitor, nil).
		WithDialer(func(context.Context, string) (net.Conn, error) { return nil, refused }).
		Run(context.Background())
	assert.ErrorIs(t, err, refused)
	assert.Equal(t, heartbeat.Disconnected, h.monitor.Status())
}

func TestSessionStopsOnCancel(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t)
	peers := make(chan net.Conn, 1)
	s := NewSession(SessionConfig{Address: "gateway:7001"}, h.reader, h.monitor, nil).
		WithDialer(pipeDialer(peers))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	peer := <-peers
	defer peer.Close()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop on cancel")
	}
}

func TestReplayFile(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t)
	s := &stream{t: t}
	s.envelope(embedded(
		s.inner(mep.OrderAdd{Side: mep.SideBuy, OrderType: mep.OrderTypeLimit, Price: mep.ParsePrice("1"), Quantity: 3, ClientToken: "R1"}, t0),
		s.inner(mep.OrderAddResponse{OrderID: 77, Status: mep.OrdStatusNew}, t0.Add(time.Millisecond)),
	))
	s.envelope()
	path := filepath.Join(t.TempDir(), "capture.bin")
	require.NoError(t, os.WriteFile(path, s.buf.Bytes(), 0o600))

	require.NoError(t, Replay(context.Background(), path, h.reader))
	o, ok := h.engine.OrderByToken("R1")
	require.True(t, ok)
	assert.Equal(t, uint64(77), o.OrderID)
	assert.Equal(t, uint64(1), h.reader.Stats().Heartbeats)

	assert.Error(t, Replay(context.Background(), filepath.Join(t.TempDir(), "none.bin"), h.reader))
}
