package gateway

import (
	"errors"
	"io"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/gatewatch/internal/protocol/frame"
)

var ErrNoConnection = errors.New("gateway: no connection for commands")

// Commander writes outbound control commands as single-block envelopes with
// its own increasing sequence.
type Commander struct {
	mu      sync.Mutex
	w       io.Writer
	session string
	seq     uint32
}

func NewCommander(session string) *Commander {
	return &Commander{session: session}
}

// Attach sets the writer used for subsequent commands; nil detaches.
func (c *Commander) Attach(w io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.w = w
}

// Send encodes cmd and writes it. It returns the envelope sequence used.
func (c *Commander) Send(cmd frame.Command) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.w == nil {
		return 0, ErrNoConnection
	}
	env, err := cmd.Envelope(c.session, c.seq+1)
	if err != nil {
		return 0, err
	}
	if err := frame.WriteEnvelope(c.w, env); err != nil {
		log.Warn().Msgf("gateway.commander write failed tag=%q err=%v", cmd.Tag, err)
		return 0, err
	}
	c.seq++
	log.Info().Msgf("gateway.commander sent tag=%q seq=%d body_len=%d", cmd.Tag, c.seq, len(cmd.Body))
	return c.seq, nil
}
