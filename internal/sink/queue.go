// Package sink forwards order changes and liveness transitions to external
// brokers. Producers never block: events are queued and dropped when the
// queue is full.
package sink

import (
	"sync/atomic"
	"time"
)

const (
	DefaultBuffer = 1024
	maxBatch      = 64
	flushTimeout  = 5 * time.Second
)

type queue[T any] struct {
	ch      chan T
	dropped atomic.Uint64
}

func newQueue[T any](size int) *queue[T] {
	if size <= 0 {
		size = DefaultBuffer
	}
	return &queue[T]{ch: make(chan T, size)}
}

func (q *queue[T]) offer(v T) bool {
	select {
	case q.ch <- v:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// drain appends whatever is queued right now, up to limit items.
func (q *queue[T]) drain(batch []T, limit int) []T {
	for len(batch) < limit {
		select {
		case v := <-q.ch:
			batch = append(batch, v)
		default:
			return batch
		}
	}
	return batch
}

// Stats counts what a publisher did with the events it was offered.
type Stats struct {
	Published uint64 `json:"published"`
	Failed    uint64 `json:"failed"`
	Dropped   uint64 `json:"dropped"`
	Queued    int    `json:"queued"`
}
