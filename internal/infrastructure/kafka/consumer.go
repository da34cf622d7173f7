package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/example/ec-fulfillment/internal/event"
)

// MessageHandler processes one raw message. A non-nil error is logged and
// counted but the message is still committed: one malformed message must not
// halt the consumer, at the cost of silently dropping that update.
type MessageHandler func(ctx context.Context, key, value []byte) error

// EnvelopeHandler processes one decoded envelope.
type EnvelopeHandler func(ctx context.Context, key string, env event.Envelope) error

// fetcher is the subset of kafka.Reader the consume loop needs. Tests
// substitute an in-memory implementation.
type fetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads a topic within a consumer group. Offsets are committed
// after each handled message, so a restarted instance resumes where it left
// off instead of replaying the whole topic. A full-history replay is an
// explicit rebuild operation: join under a fresh group id with FromBeginning.
type Consumer struct {
	reader fetcher
	topic  string
}

type ConsumerOption func(*kafka.ReaderConfig)

// FromBeginning makes a group with no committed offset start at the first
// offset instead of the newest. Combined with a fresh group id this performs
// a full rebuild.
func FromBeginning() ConsumerOption {
	return func(cfg *kafka.ReaderConfig) {
		cfg.StartOffset = kafka.FirstOffset
	}
}

func NewConsumer(brokers []string, topic, groupID string, opts ...ConsumerOption) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    10e3, // 10KB
		MaxBytes:    10e6, // 10MB
		StartOffset: kafka.LastOffset,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Consumer{reader: kafka.NewReader(cfg), topic: topic}
}

func newConsumerWithReader(r fetcher, topic string) *Consumer {
	return &Consumer{reader: r, topic: topic}
}

// Consume fetches messages until ctx is cancelled. Handler errors do not
// stop consumption and do not prevent the commit.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Str("topic", c.topic).Err(err).Msg("fetch failed, retrying")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		eventsConsumed.WithLabelValues(c.topic).Inc()
		if err := handler(ctx, msg.Key, msg.Value); err != nil {
			handlerErrors.WithLabelValues(c.topic).Inc()
			log.Error().Str("topic", c.topic).Str("key", string(msg.Key)).Err(err).
				Msg("handler failed, message dropped")
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Str("topic", c.topic).Err(err).Msg("offset commit failed")
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeEnvelope adapts an EnvelopeHandler to a raw MessageHandler.
// Messages that are not valid envelopes are skipped.
func DecodeEnvelope(handler EnvelopeHandler) MessageHandler {
	return func(ctx context.Context, key, value []byte) error {
		var env event.Envelope
		if err := json.Unmarshal(value, &env); err != nil {
			log.Error().Err(err).Msg("undecodable envelope, message skipped")
			return nil
		}
		return handler(ctx, string(key), env)
	}
}
