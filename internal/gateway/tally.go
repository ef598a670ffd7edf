package gateway

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/gatewatch/internal/protocol/frame"
)

// maxRetained bounds the payload bytes kept per tag.
const maxRetained = 512

// TagSummary is the latest activity seen for one block tag.
type TagSummary struct {
	Tag         string    `json:"tag"`
	Count       uint64    `json:"count"`
	LastSeen    time.Time `json:"last_seen"`
	LastSeq     uint32    `json:"last_sequence"`
	LastPayload string    `json:"last_payload,omitempty"`
}

// Tally records position, capital, log and control blocks. Their payload
// meaning belongs to external consumers; the tally keeps counts and the
// latest payload for inspection.
type Tally struct {
	mu   sync.RWMutex
	tags map[byte]*TagSummary
}

func NewTally() *Tally {
	return &Tally{tags: make(map[byte]*TagSummary)}
}

func (t *Tally) HandleBlock(h frame.Header, b frame.Block, receivedAt time.Time) error {
	tag := b.Tag()
	body := b.Body()
	if len(body) > maxRetained {
		body = body[:maxRetained]
	}

	t.mu.Lock()
	s, ok := t.tags[tag]
	if !ok {
		s = &TagSummary{Tag: frame.TagName(tag)}
		t.tags[tag] = s
	}
	s.Count++
	s.LastSeen = receivedAt
	s.LastSeq = h.Sequence
	s.LastPayload = printable(body)
	t.mu.Unlock()

	if tag == frame.TagLog {
		log.Info().Msgf("gateway.log seq=%d text=%q", h.Sequence, printable(b.Body()))
	}
	return nil
}

// Register attaches the tally to every simple block tag on d.
func (t *Tally) Register(d *Dispatcher) {
	for _, tag := range []byte{frame.TagPosition, frame.TagCapital, frame.TagLog, frame.TagControl} {
		d.Register(tag, t)
	}
}

func (t *Tally) Snapshot() []TagSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]TagSummary, 0, len(t.tags))
	for _, s := range t.tags {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out
}

// printable replaces bytes outside printable ascii with '.'.
func printable(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		if c < 0x20 || c > 0x7e {
			c = '.'
		}
		out[i] = c
	}
	return string(out)
}
