package sink

import (
	"context"
	"encoding/json"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/danmuck/gatewatch/internal/config"
	"github.com/danmuck/gatewatch/internal/observability"
	"github.com/danmuck/gatewatch/internal/orders"
)

const kafkaSink = "kafka"

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewKafkaWriter(cfg config.KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Transport:    &kafka.Transport{ClientID: cfg.ClientID},
	}
}

// OrderEvent is the JSON value written per order change. Messages are keyed
// by order id so one order's events stay on one partition.
type OrderEvent struct {
	ID       string            `json:"id"`
	Change   orders.ChangeKind `json:"change"`
	Source   string            `json:"source"`
	Sequence uint32            `json:"sequence"`
	At       time.Time         `json:"at"`
	Miss     orders.Miss       `json:"miss,omitempty"`
	Order    orders.Order      `json:"order"`
}

func NewOrderEvent(c orders.Change) OrderEvent {
	return OrderEvent{
		ID:       uuid.NewString(),
		Change:   c.Kind,
		Source:   c.Source.String(),
		Sequence: c.Sequence,
		At:       c.At,
		Miss:     c.Miss,
		Order:    c.Order,
	}
}

// OrderPublisher forwards engine changes to Kafka. Observe is an
// orders.Observer.
type OrderPublisher struct {
	w     MessageWriter
	queue *queue[orders.Change]

	published atomic.Uint64
	failed    atomic.Uint64
}

func NewOrderPublisher(w MessageWriter, buffer int) *OrderPublisher {
	return &OrderPublisher{w: w, queue: newQueue[orders.Change](buffer)}
}

func (p *OrderPublisher) Observe(c orders.Change) {
	if !p.queue.offer(c) {
		log.Debug().Msgf("sink.kafka queue full dropped order_id=%d change=%s", c.Order.OrderID, c.Kind)
	}
}

// Run writes queued changes until ctx is cancelled, then flushes what is
// left and closes the writer.
func (p *OrderPublisher) Run(ctx context.Context) error {
	log.Info().Msg("sink.kafka publisher started")
	batch := make([]orders.Change, 0, maxBatch)
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			for {
				batch = p.queue.drain(batch[:0], maxBatch)
				if len(batch) == 0 {
					break
				}
				p.write(flushCtx, batch)
			}
			cancel()
			log.Info().Msgf("sink.kafka publisher stopped published=%d dropped=%d", p.published.Load(), p.queue.dropped.Load())
			return p.w.Close()
		case c := <-p.queue.ch:
			batch = p.queue.drain(append(batch[:0], c), maxBatch)
			p.write(ctx, batch)
		}
	}
}

func (p *OrderPublisher) write(ctx context.Context, batch []orders.Change) {
	msgs := make([]kafka.Message, 0, len(batch))
	for _, c := range batch {
		value, err := json.Marshal(NewOrderEvent(c))
		if err != nil {
			p.failed.Add(1)
			observability.RecordSinkPublish(kafkaSink, false)
			log.Error().Msgf("sink.kafka encode failed order_id=%d err=%v", c.Order.OrderID, err)
			continue
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(strconv.FormatUint(c.Order.OrderID, 10)),
			Value: value,
			Time:  c.At,
		})
	}
	if len(msgs) == 0 {
		return
	}
	if err := p.w.WriteMessages(ctx, msgs...); err != nil {
		p.failed.Add(uint64(len(msgs)))
		for range msgs {
			observability.RecordSinkPublish(kafkaSink, false)
		}
		log.Warn().Msgf("sink.kafka write failed messages=%d err=%v", len(msgs), err)
		return
	}
	p.published.Add(uint64(len(msgs)))
	for range msgs {
		observability.RecordSinkPublish(kafkaSink, true)
	}
}

func (p *OrderPublisher) Stats() Stats {
	return Stats{
		Published: p.published.Load(),
		Failed:    p.failed.Load(),
		Dropped:   p.queue.dropped.Load(),
		Queued:    len(p.queue.ch),
	}
}
