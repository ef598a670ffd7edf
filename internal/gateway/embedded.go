package gateway

import (
	"encoding/binary"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/gatewatch/internal/observability"
	"github.com/danmuck/gatewatch/internal/orders"
	"github.com/danmuck/gatewatch/internal/protocol/frame"
	"github.com/danmuck/gatewatch/internal/protocol/mep"
)

// MessageSink receives decoded inner-protocol messages.
type MessageSink interface {
	Apply(msg mep.Message) (orders.Change, bool)
}

// EmbeddedHandler decodes embedded inner-protocol messages and applies them
// to the order engine.
type EmbeddedHandler struct {
	sink    MessageSink
	tracked func() int
	observe func(mep.Message)
}

func NewEmbeddedHandler(engine *orders.Engine) *EmbeddedHandler {
	return &EmbeddedHandler{
		sink:    engine,
		tracked: func() int { return engine.Stats().Orders },
	}
}

// OnMessage registers fn to see every decoded message before it is applied.
func (h *EmbeddedHandler) OnMessage(fn func(mep.Message)) {
	h.observe = fn
}

func (h *EmbeddedHandler) HandleBlock(hdr frame.Header, b frame.Block, receivedAt time.Time) error {
	for _, raw := range SplitMessages(b.Body()) {
		msg := mep.Decode(raw, receivedAt)
		kind := msg.Kind.String()
		observability.RecordMessage(kind, msg.Truncated, msg.Invalid)

		switch {
		case msg.Truncated:
			log.Warn().Msgf("gateway.embedded decode shortfall kind=%s type=%d seq=%d len=%d envelope_seq=%d",
				kind, msg.Header.TypeCode, msg.Header.Sequence, len(raw), hdr.Sequence)
		case msg.Kind == mep.KindUnknown:
			log.Debug().Msgf("gateway.embedded unmodeled type=%d seq=%d payload=%d", msg.Header.TypeCode, msg.Header.Sequence, len(msg.Payload))
		case len(msg.Invalid) > 0:
			log.Debug().Msgf("gateway.embedded invalid fields kind=%s seq=%d fields=%v", kind, msg.Header.Sequence, msg.Invalid)
		}

		if h.observe != nil {
			h.observe(msg)
		}
		change, ok := h.sink.Apply(msg)
		if !ok && change.Miss == orders.MissNone {
			continue
		}
		changeKind := ""
		if ok {
			changeKind = change.Kind.String()
		}
		tracked := 0
		if h.tracked != nil {
			tracked = h.tracked()
		}
		observability.RecordOrderChange(changeKind, change.Miss.String(), tracked)
	}
	return nil
}

// SplitMessages cuts an embedded payload into messages using each common
// header's declared length. A declared length that is too small or runs
// past the payload ends the split and the remainder is returned whole so
// the decoder can report it as truncated.
func SplitMessages(payload []byte) [][]byte {
	var out [][]byte
	for len(payload) > 0 {
		if len(payload) < 2 {
			return append(out, payload)
		}
		n := int(binary.LittleEndian.Uint16(payload[0:2]))
		if n < mep.HeaderLen || n >= len(payload) {
			return append(out, payload)
		}
		out = append(out, payload[:n])
		payload = payload[n:]
	}
	return out
}
