package watch

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/gatewatch/internal/config"
	"github.com/danmuck/gatewatch/internal/protocol/frame"
	"github.com/danmuck/gatewatch/internal/protocol/mep"
	"github.com/danmuck/gatewatch/internal/testutil/testlog"
)

func writeCapture(t *testing.T) string {
	t.Helper()
	at := time.Unix(1700000000, 0)
	var buf bytes.Buffer
	add, err := mep.Encode(mep.Header{Sequence: 1, SendTime: uint64(at.UnixNano())}, mep.OrderAdd{
		Side: mep.SideBuy, OrderType: mep.OrderTypeLimit, Price: mep.ParsePrice("2.5"), Quantity: 10, ClientToken: "CAP1",
	})
	require.NoError(t, err)
	ack, err := mep.Encode(mep.Header{Sequence: 2, SendTime: uint64(at.Add(time.Millisecond).UnixNano())}, mep.OrderAddResponse{
		OrderID: 900, Status: mep.OrdStatusNew,
	})
	require.NoError(t, err)
	block := append([]byte{frame.TagEmbedded}, append(add, ack...)...)
	require.NoError(t, frame.WriteEnvelope(&buf, frame.Envelope{Header: frame.Header{Session: "CAP", Sequence: 1}}))
	require.NoError(t, frame.WriteEnvelope(&buf, frame.Envelope{
		Header: frame.Header{Session: "CAP", Sequence: 2},
		Blocks: []frame.Block{frame.Block(block)},
	}))
	path := filepath.Join(t.TempDir(), "capture.bin")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func TestServiceReplaysCaptureAndStops(t *testing.T) {
	testlog.Start(t)
	cfg := config.Default()
	cfg.Gateway.ReplayPath = writeCapture(t)
	cfg.HTTP.Addr = "127.0.0.1:0"

	svc, err := NewService(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	require.Eventually(t, func() bool {
		_, ok := svc.Engine().Order(900)
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	o, _ := svc.Engine().Order(900)
	assert.Equal(t, "CAP1", o.ClientToken)
	assert.Equal(t, uint64(1), svc.Reader().Stats().Heartbeats)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop")
	}
}

func TestServiceWiresOptionalSinks(t *testing.T) {
	testlog.Start(t)
	cfg := config.Default()
	cfg.Kafka.Brokers = []string{"127.0.0.1:1"}
	cfg.Kafka.Topic = "gatewatch.orders"
	cfg.Redis.Addr = "127.0.0.1:1"
	cfg.Redis.Channel = "gatewatch.liveness"

	svc, err := NewService(cfg)
	require.NoError(t, err)
	assert.NotNil(t, svc.orderSink)
	assert.NotNil(t, svc.livenessSink)
	assert.NotNil(t, svc.session)
	require.NoError(t, svc.redis.Close())

	cfg.Orders.MaxOrders = 0
	_, err = NewService(cfg)
	assert.Error(t, err)
}

func TestServiceEndsWithLiveStream(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("loopback listen unavailable: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_ = frame.WriteEnvelope(conn, frame.Envelope{Header: frame.Header{Session: "GW", Sequence: 1}})
	}()

	cfg := config.Default()
	cfg.Gateway.Address = ln.Addr().String()
	cfg.HTTP.Addr = "127.0.0.1:0"
	svc, err := NewService(cfg)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- svc.Serve(context.Background()) }()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrStreamEnded)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop after the stream ended")
	}
	assert.Equal(t, uint64(1), svc.Reader().Stats().Heartbeats)
}
