package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/example/ec-fulfillment/internal/event"
)

// Writer is the subset of kafka.Writer the producer needs. Tests substitute
// an in-memory implementation.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Producer publishes event envelopes, partitioned by entity key. A domain
// event must never be lost to a disconnected transport, so failed writes land
// in a bounded in-memory outbox that is flushed once the broker answers
// again. Only outbox overflow drops a message, and that is counted and
// logged.
type Producer struct {
	writer Writer
	source string

	mu        sync.Mutex
	outbox    []kafka.Message
	maxOutbox int
}

const defaultMaxOutbox = 1024

// NewProducer builds a producer writing to the given brokers. The topic is
// carried per message.
func NewProducer(brokers []string, sourceService string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
	}
	return NewProducerWithWriter(writer, sourceService)
}

func NewProducerWithWriter(w Writer, sourceService string) *Producer {
	return &Producer{
		writer:    w,
		source:    sourceService,
		maxOutbox: defaultMaxOutbox,
	}
}

// Source is the sourceService stamped on envelopes built by this producer.
func (p *Producer) Source() string { return p.source }

// Publish wraps payload into an envelope and writes it to topic. The key is
// the partition key and should be the primary entity id: per-entity ordering
// holds only when every producer of that entity uses the same key.
func (p *Producer) Publish(ctx context.Context, topic, key, eventType string, payload any) error {
	env, err := event.New(eventType, p.source, payload)
	if err != nil {
		return err
	}
	return p.PublishEnvelope(ctx, topic, key, env)
}

// PublishEnvelope writes an already-built envelope.
func (p *Producer) PublishEnvelope(ctx context.Context, topic, key string, env event.Envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	}

	// While older envelopes are still buffered, new ones queue behind
	// them. Writing directly would let a fresh event for a key reach the
	// broker before a buffered older one for the same key, and a
	// last-write-wins consumer would then converge on the stale event.
	p.mu.Lock()
	if len(p.outbox) > 0 {
		p.enqueueLocked(msg)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.mu.Lock()
		p.enqueueLocked(msg)
		p.mu.Unlock()
		log.Warn().Str("topic", topic).Str("key", key).Err(err).
			Msg("bus write failed, envelope buffered")
		return nil
	}
	eventsPublished.WithLabelValues(topic).Inc()
	return nil
}

func (p *Producer) enqueueLocked(msg kafka.Message) {
	if len(p.outbox) >= p.maxOutbox {
		eventsDropped.WithLabelValues(msg.Topic).Inc()
		log.Error().Str("topic", msg.Topic).Str("key", string(msg.Key)).
			Msg("producer outbox full, envelope dropped")
		return
	}
	p.outbox = append(p.outbox, msg)
	eventsBuffered.Set(float64(len(p.outbox)))
}

// Flush retries every buffered envelope in order. Messages that still fail
// stay buffered for the next attempt.
func (p *Producer) Flush(ctx context.Context) error {
	p.mu.Lock()
	pending := p.outbox
	p.outbox = nil
	p.mu.Unlock()

	for i, msg := range pending {
		if err := p.writer.WriteMessages(ctx, msg); err != nil {
			p.mu.Lock()
			p.outbox = append(pending[i:], p.outbox...)
			eventsBuffered.Set(float64(len(p.outbox)))
			p.mu.Unlock()
			return err
		}
		eventsPublished.WithLabelValues(msg.Topic).Inc()
	}
	p.mu.Lock()
	eventsBuffered.Set(float64(len(p.outbox)))
	p.mu.Unlock()
	return nil
}

// Buffered reports how many envelopes await a reconnect.
func (p *Producer) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.outbox)
}

// RunFlusher retries the outbox on an interval until ctx is cancelled.
func (p *Producer) RunFlusher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.Buffered() == 0 {
				continue
			}
			if err := p.Flush(ctx); err != nil {
				log.Warn().Err(err).Int("buffered", p.Buffered()).
					Msg("outbox flush failed, will retry")
			}
		}
	}
}

// Close flushes the underlying writer if it owns one.
func (p *Producer) Close() error {
	if w, ok := p.writer.(*kafka.Writer); ok {
		return w.Close()
	}
	return nil
}
