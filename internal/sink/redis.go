package sink

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/gatewatch/internal/config"
	"github.com/danmuck/gatewatch/internal/heartbeat"
	"github.com/danmuck/gatewatch/internal/observability"
)

const redisSink = "redis"

// Publisher is the subset of *redis.Client the liveness sink needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

type LivenessEvent struct {
	ID      string           `json:"id"`
	Session string           `json:"session"`
	From    heartbeat.Status `json:"from"`
	To      heartbeat.Status `json:"to"`
	Misses  int              `json:"misses"`
	At      time.Time        `json:"at"`
}

// LivenessPublisher announces heartbeat transitions on a pub/sub channel.
// Observe is safe to pass to Monitor.Subscribe.
type LivenessPublisher struct {
	pub     Publisher
	channel string
	session string
	queue   *queue[heartbeat.Transition]

	published atomic.Uint64
	failed    atomic.Uint64
}

func NewLivenessPublisher(pub Publisher, channel, session string, buffer int) *LivenessPublisher {
	return &LivenessPublisher{
		pub:     pub,
		channel: channel,
		session: session,
		queue:   newQueue[heartbeat.Transition](buffer),
	}
}

func (p *LivenessPublisher) Observe(tr heartbeat.Transition) {
	if !p.queue.offer(tr) {
		log.Debug().Msgf("sink.redis queue full dropped to=%s", tr.To)
	}
}

// Run publishes queued transitions until ctx is cancelled, then flushes
// what is left.
func (p *LivenessPublisher) Run(ctx context.Context) error {
	log.Info().Msgf("sink.redis publisher started channel=%q", p.channel)
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			for _, tr := range p.queue.drain(nil, cap(p.queue.ch)) {
				p.publish(flushCtx, tr)
			}
			cancel()
			log.Info().Msgf("sink.redis publisher stopped published=%d dropped=%d", p.published.Load(), p.queue.dropped.Load())
			return nil
		case tr := <-p.queue.ch:
			p.publish(ctx, tr)
		}
	}
}

func (p *LivenessPublisher) publish(ctx context.Context, tr heartbeat.Transition) {
	payload, err := json.Marshal(LivenessEvent{
		ID:      uuid.NewString(),
		Session: p.session,
		From:    tr.From,
		To:      tr.To,
		Misses:  tr.Misses,
		At:      tr.At,
	})
	if err == nil {
		err = p.pub.Publish(ctx, p.channel, payload).Err()
	}
	if err != nil {
		p.failed.Add(1)
		observability.RecordSinkPublish(redisSink, false)
		log.Warn().Msgf("sink.redis publish failed channel=%q to=%s err=%v", p.channel, tr.To, err)
		return
	}
	p.published.Add(1)
	observability.RecordSinkPublish(redisSink, true)
}

func (p *LivenessPublisher) Stats() Stats {
	return Stats{
		Published: p.published.Load(),
		Failed:    p.failed.Load(),
		Dropped:   p.queue.dropped.Load(),
		Queued:    len(p.queue.ch),
	}
}
