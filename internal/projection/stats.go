package projection

import (
	"context"

	"github.com/example/ec-fulfillment/internal/event"
	"github.com/example/ec-fulfillment/internal/infrastructure/kafka"
	"github.com/example/ec-fulfillment/internal/infrastructure/store"
)

// StatsProjector counts settled payments per day. Unlike the cache
// projector this is an increment, not an upsert: it is only replay safe
// because each increment is deduplicated by the settlement's transaction id.
// A full-history rebuild must reset both the counters and the dedup sets
// together or the counters stay frozen at their old values.
type StatsProjector struct {
	stats store.StatsStore
}

func NewStatsProjector(stats store.StatsStore) *StatsProjector {
	return &StatsProjector{stats: stats}
}

func (s *StatsProjector) Handler() kafka.MessageHandler {
	return kafka.DecodeEnvelope(s.HandleEnvelope)
}

func (s *StatsProjector) HandleEnvelope(ctx context.Context, key string, env event.Envelope) error {
	if env.Type != event.TypePaymentSuccess {
		return nil
	}
	var payload event.PaymentSettled
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}
	day := env.Timestamp.UTC().Format("2006-01-02")
	return s.stats.IncrementDaily(ctx, day, payload.TransactionID)
}
