package orders

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/gatewatch/internal/protocol/mep"
)

// PendingRequest is one submitted order awaiting its add response.
type PendingRequest struct {
	ClientToken string       `json:"client_token"`
	Sequence    uint32       `json:"sequence"`
	SentAt      time.Time    `json:"sent_at"`
	Request     mep.OrderAdd `json:"request"`
}

func (p PendingRequest) key() string {
	if token := strings.TrimSpace(p.ClientToken); token != "" {
		return token
	}
	return "#" + strconv.FormatUint(uint64(p.Sequence), 10)
}

// PendingBuffer holds submitted requests keyed by client token for at most
// one correlation window.
type PendingBuffer struct {
	mu     sync.Mutex
	window time.Duration
	items  map[string]PendingRequest
}

func NewPendingBuffer(window time.Duration) *PendingBuffer {
	return &PendingBuffer{
		window: window,
		items:  make(map[string]PendingRequest),
	}
}

// Upsert records req, replacing any earlier request with the same token.
func (b *PendingBuffer) Upsert(req PendingRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items[req.key()] = req
}

// Take removes and returns the most recently sent request with SentAt at or
// before at and no older than the window. Requests that fell out of the
// window are dropped on the way.
func (b *PendingBuffer) Take(at time.Time) (PendingRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expireLocked(at)

	var (
		best    PendingRequest
		bestKey string
		found   bool
	)
	for key, item := range b.items {
		if item.SentAt.After(at) {
			continue
		}
		if !found || item.SentAt.After(best.SentAt) ||
			(item.SentAt.Equal(best.SentAt) && item.Sequence > best.Sequence) {
			best, bestKey, found = item, key, true
		}
	}
	if found {
		delete(b.items, bestKey)
	}
	return best, found
}

// TakeSequence removes the request sent with sequence seq.
func (b *PendingBuffer) TakeSequence(seq uint32) (PendingRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, item := range b.items {
		if item.Sequence == seq {
			delete(b.items, key)
			return item, true
		}
	}
	return PendingRequest{}, false
}

// Expire drops requests older than the window relative to now and returns
// how many were removed.
func (b *PendingBuffer) Expire(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.expireLocked(now)
}

func (b *PendingBuffer) expireLocked(now time.Time) int {
	cutoff := now.Add(-b.window)
	n := 0
	for key, item := range b.items {
		if item.SentAt.Before(cutoff) {
			delete(b.items, key)
			n++
		}
	}
	return n
}

func (b *PendingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

func (b *PendingBuffer) List() []PendingRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]PendingRequest, 0, len(b.items))
	for _, item := range b.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SentAt.Equal(out[j].SentAt) {
			return out[i].Sequence < out[j].Sequence
		}
		return out[i].SentAt.Before(out[j].SentAt)
	})
	return out
}
