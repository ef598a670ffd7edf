package gateway

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/gatewatch/internal/heartbeat"
	"github.com/danmuck/gatewatch/internal/observability"
	"github.com/danmuck/gatewatch/internal/protocol/frame"
)

var ErrFraming = errors.New("gateway: framing error")

// Reader is the single sequential consumer of a gateway stream.
type Reader struct {
	dispatch *Dispatcher
	monitor  *heartbeat.Monitor
	now      func() time.Time

	envelopes  atomic.Uint64
	heartbeats atomic.Uint64
	lastSeq    atomic.Uint32
}

// NewReader builds a reader. monitor may be nil.
func NewReader(d *Dispatcher, monitor *heartbeat.Monitor) *Reader {
	return &Reader{dispatch: d, monitor: monitor, now: time.Now}
}

// Run drains r until it ends, ctx is cancelled or the stream desynchronizes.
// A clean end of stream returns nil. A framing failure returns an error
// wrapping ErrFraming; the caller must tear the connection down. If r is an
// io.Closer it is closed when ctx is cancelled to unblock the read.
func (rd *Reader) Run(ctx context.Context, r io.Reader) error {
	if c, ok := r.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { _ = c.Close() })
		defer stop()
	}
	br := bufio.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		env, err := frame.ReadEnvelope(br)
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Info().Msgf("gateway.reader stream ended envelopes=%d", rd.envelopes.Load())
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			observability.RecordFramingError()
			log.Error().Msgf("gateway.reader framing failure after_seq=%d err=%v", rd.lastSeq.Load(), err)
			return fmt.Errorf("%w: %w", ErrFraming, err)
		}
		rd.Handle(env)
	}
}

// Handle processes one decoded envelope.
func (rd *Reader) Handle(env frame.Envelope) {
	receivedAt := rd.now()
	rd.envelopes.Add(1)
	rd.lastSeq.Store(env.Header.Sequence)

	isHeartbeat := env.IsHeartbeat()
	observability.RecordEnvelope(isHeartbeat)
	if isHeartbeat {
		rd.heartbeats.Add(1)
		if rd.monitor != nil {
			rd.monitor.Observe(env)
		}
		return
	}
	for _, b := range env.Blocks {
		rd.dispatch.Dispatch(env.Header, b, receivedAt)
	}
}

type ReaderStats struct {
	Envelopes    uint64 `json:"envelopes"`
	Heartbeats   uint64 `json:"heartbeats"`
	LastSequence uint32 `json:"last_sequence"`
	Unhandled    uint64 `json:"unhandled_blocks"`
}

func (rd *Reader) Stats() ReaderStats {
	return ReaderStats{
		Envelopes:    rd.envelopes.Load(),
		Heartbeats:   rd.heartbeats.Load(),
		LastSequence: rd.lastSeq.Load(),
		Unhandled:    rd.dispatch.Unhandled(),
	}
}
