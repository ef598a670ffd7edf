package gateway

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/gatewatch/internal/heartbeat"
	"github.com/danmuck/gatewatch/internal/orders"
	"github.com/danmuck/gatewatch/internal/protocol/frame"
	"github.com/danmuck/gatewatch/internal/protocol/mep"
	"github.com/danmuck/gatewatch/internal/testutil/testlog"
)

var t0 = time.Unix(1700000000, 0)

type stream struct {
	t   *testing.T
	buf bytes.Buffer
	seq uint32
	msg uint32
}

func (s *stream) inner(body mep.Body, at time.Time) []byte {
	s.msg++
	raw, err := mep.Encode(mep.Header{Sequence: s.msg, SendTime: uint64(at.UnixNano())}, body)
	require.NoError(s.t, err)
	return raw
}

func (s *stream) envelope(blocks ...frame.Block) {
	s.seq++
	require.NoError(s.t, frame.WriteEnvelope(&s.buf, frame.Envelope{
		Header: frame.Header{Session: "RISK01", Sequence: s.seq},
		Blocks: blocks,
	}))
}

func embedded(raw ...[]byte) frame.Block {
	b := []byte{frame.TagEmbedded}
	for _, r := range raw {
		b = append(b, r...)
	}
	return frame.Block(b)
}

type harness struct {
	engine  *orders.Engine
	monitor *heartbeat.Monitor
	tally   *Tally
	reader  *Reader
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	engine := orders.NewEngine(orders.DefaultConfig())
	monitor, err := heartbeat.NewMonitor(heartbeat.Config{Interval: time.Hour, Tolerance: time.Minute})
	require.NoError(t, err)
	monitor.Connect(context.Background())
	t.Cleanup(monitor.Disconnect)

	d := NewDispatcher()
	d.Register(frame.TagEmbedded, NewEmbeddedHandler(engine))
	tally := NewTally()
	tally.Register(d)
	return &harness{engine: engine, monitor: monitor, tally: tally, reader: NewReader(d, monitor)}
}

func TestReaderAppliesOrderLifecycle(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t)
	s := &stream{t: t}

	add := s.inner(mep.OrderAdd{
		InstrumentID: 3, OrderType: mep.OrderTypeLimit, Side: mep.SideSell,
		Price: mep.ParsePrice("10.00"), Quantity: 100, ClientToken: "ABC",
	}, t0)
	ack := s.inner(mep.OrderAddResponse{OrderID: 42, Status: mep.OrdStatusNew}, t0.Add(time.Millisecond))
	s.envelope(embedded(add, ack), frame.Block("Lrisk ok"))
	s.envelope()
	s.envelope(embedded(s.inner(mep.Trade{OrderID: 42, TradeID: 1, Price: mep.ParsePrice("10"), Quantity: 40, LeavesQty: 60}, t0.Add(time.Second))))
	s.envelope(frame.Block("P\x01\x02"), frame.Block("Zmystery"))

	err := h.reader.Run(context.Background(), &s.buf)
	require.NoError(t, err)

	o, ok := h.engine.Order(42)
	require.True(t, ok)
	assert.Equal(t, "ABC", o.ClientToken)
	assert.Equal(t, mep.OrdStatusPartiallyFilled, o.Status)
	assert.Equal(t, int64(40), o.FilledQty)
	assert.Equal(t, int64(60), o.CurrentQty)

	stats := h.reader.Stats()
	assert.Equal(t, uint64(4), stats.Envelopes)
	assert.Equal(t, uint64(1), stats.Heartbeats)
	assert.Equal(t, uint32(4), stats.LastSequence)
	assert.Equal(t, uint64(1), stats.Unhandled)
	assert.Equal(t, heartbeat.Connected, h.monitor.Status())

	tags := h.tally.Snapshot()
	require.Len(t, tags, 2)
	assert.Equal(t, "log", tags[0].Tag)
	assert.Equal(t, "risk ok", tags[0].LastPayload)
	assert.Equal(t, "position", tags[1].Tag)
	assert.Equal(t, "..", tags[1].LastPayload)
}

func TestReaderStopsOnFramingError(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t)
	s := &stream{t: t}
	s.envelope(frame.Block("Lfirst"))
	s.envelope(frame.Block("Lsecond"))
	truncated := s.buf.Bytes()[:s.buf.Len()-3]

	err := h.reader.Run(context.Background(), bytes.NewReader(truncated))
	require.ErrorIs(t, err, ErrFraming)
	require.ErrorIs(t, err, frame.ErrInsufficientData)
	assert.Equal(t, uint64(1), h.reader.Stats().Envelopes)
}

func TestReaderSurvivesMalformedMessages(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t)
	s := &stream{t: t}

	full := s.inner(mep.Trade{OrderID: 9, Quantity: 1, LeavesQty: 1}, t0)
	s.envelope(embedded(full[:30]))
	unknown := make([]byte, 24)
	unknown[0], unknown[2] = 24, 0xEE
	s.envelope(embedded(unknown))
	s.envelope(embedded(s.inner(mep.Trade{OrderID: 9, Quantity: 2, LeavesQty: 0}, t0)))

	require.NoError(t, h.reader.Run(context.Background(), &s.buf))
	o, ok := h.engine.Order(9)
	require.True(t, ok)
	assert.Equal(t, mep.OrdStatusFilled, o.Status)
	assert.Len(t, o.Trades, 1)
	assert.Equal(t, uint64(2), h.engine.Stats().Skipped)
}

func TestReaderReturnsOnCancel(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t)
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.reader.Run(ctx, pr) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not stop after cancel")
	}
}

func TestSplitMessages(t *testing.T) {
	testlog.Start(t)
	s := &stream{t: t}
	a := s.inner(mep.Heartbeat{}, t0)
	b := s.inner(mep.Reject{RefSequence: 1}, t0)
	joined := append(append([]byte(nil), a...), b...)

	parts := SplitMessages(joined)
	require.Len(t, parts, 2)
	assert.Equal(t, a, parts[0])
	assert.Equal(t, b, parts[1])

	parts = SplitMessages(append(append([]byte(nil), a...), b[:10]...))
	require.Len(t, parts, 2)
	assert.Len(t, parts[1], 10)

	assert.Len(t, SplitMessages([]byte{0x05}), 1)
	assert.Empty(t, SplitMessages(nil))
}

func TestCommanderWritesSequencedCommands(t *testing.T) {
	testlog.Start(t)
	c := NewCommander("GW")
	_, err := c.Send(frame.RewindCommand(10))
	require.ErrorIs(t, err, ErrNoConnection)

	var out bytes.Buffer
	c.Attach(&out)
	seq, err := c.Send(frame.SetControlCommand("ACC1;MAXQTY=5"))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), seq)
	seq, err = c.Send(frame.RewindCommand(10))
	require.NoError(t, err)
	assert.Equal(t, uint32(2), seq)

	first, err := frame.ReadEnvelope(&out)
	require.NoError(t, err)
	assert.Equal(t, "GW", first.Header.Session)
	cmd, err := frame.ParseCommand(first.Blocks[0])
	require.NoError(t, err)
	assert.Equal(t, frame.CommandSetControl, cmd.Tag)

	second, err := frame.ReadEnvelope(&out)
	require.NoError(t, err)
	cmd, err = frame.ParseCommand(second.Blocks[0])
	require.NoError(t, err)
	from, err := cmd.RewindSequence()
	require.NoError(t, err)
	assert.Equal(t, uint32(10), from)
}
