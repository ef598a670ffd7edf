// Package gateway drains the risk-gateway byte stream: it frames
// envelopes, feeds the heartbeat monitor and routes blocks by tag.
package gateway

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/gatewatch/internal/observability"
	"github.com/danmuck/gatewatch/internal/protocol/frame"
)

// Handler consumes one block. Errors are logged and never stop the read loop.
type Handler interface {
	HandleBlock(h frame.Header, b frame.Block, receivedAt time.Time) error
}

type HandlerFunc func(h frame.Header, b frame.Block, receivedAt time.Time) error

func (f HandlerFunc) HandleBlock(h frame.Header, b frame.Block, receivedAt time.Time) error {
	return f(h, b, receivedAt)
}

// Dispatcher routes blocks to handlers by their tag byte.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[byte]Handler
	unknown  uint64
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[byte]Handler)}
}

func (d *Dispatcher) Register(tag byte, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[tag] = h
}

func (d *Dispatcher) Dispatch(h frame.Header, b frame.Block, receivedAt time.Time) {
	tag := b.Tag()
	d.mu.RLock()
	handler, ok := d.handlers[tag]
	d.mu.RUnlock()

	name := frame.TagName(tag)
	observability.RecordBlock(name)
	if !ok {
		d.mu.Lock()
		d.unknown++
		d.mu.Unlock()
		log.Debug().Msgf("gateway.dispatch unhandled tag=%q len=%d seq=%d", tag, len(b), h.Sequence)
		return
	}
	if err := handler.HandleBlock(h, b, receivedAt); err != nil {
		log.Warn().Msgf("gateway.dispatch handler failed tag=%s seq=%d err=%v", name, h.Sequence, err)
	}
}

// Unhandled returns how many blocks carried a tag with no handler.
func (d *Dispatcher) Unhandled() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.unknown
}
