// Package reconcile consumes the settlement topic and folds terminal payment
// outcomes back into the order rows.
package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/example/ec-fulfillment/internal/domain/order"
	"github.com/example/ec-fulfillment/internal/event"
	"github.com/example/ec-fulfillment/internal/infrastructure/kafka"
	"github.com/example/ec-fulfillment/internal/infrastructure/store"
)

// Reconciler applies settlement events to orders. The update is an
// unconditional last-write-wins keyed by order id, which makes redelivery
// harmless. Ordering across different orders is not assumed; ordering within
// one order's stream is whatever the bus's per-key guarantee provides.
type Reconciler struct {
	orders  store.OrderStore
	retries int
	backoff time.Duration
}

// NewReconciler builds a reconciler. A settlement can arrive before the
// order row has committed when the simulated delay is very short, so a
// not-found is retried a few times instead of being dropped.
func NewReconciler(orders store.OrderStore) *Reconciler {
	return &Reconciler{orders: orders, retries: 5, backoff: 200 * time.Millisecond}
}

func (r *Reconciler) Handler() kafka.MessageHandler {
	return kafka.DecodeEnvelope(r.HandleEnvelope)
}

// HandleEnvelope maps one settlement event onto the order. Unknown event
// types on the topic are ignored.
func (r *Reconciler) HandleEnvelope(ctx context.Context, key string, env event.Envelope) error {
	var settlement order.Settlement
	switch env.Type {
	case event.TypePaymentSuccess:
		settlement.Status = order.StatusPaid
	case event.TypePaymentFailure:
		settlement.Status = order.StatusFailed
	default:
		return nil
	}

	var payload event.PaymentSettled
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}
	settlement.TransactionID = payload.TransactionID
	settlement.FailureReason = payload.Reason

	return r.apply(ctx, payload.OrderID, settlement)
}

func (r *Reconciler) apply(ctx context.Context, orderID string, settlement order.Settlement) error {
	var err error
	for attempt := 0; attempt <= r.retries; attempt++ {
		err = r.orders.ApplySettlement(ctx, orderID, settlement)
		if err == nil {
			log.Info().Str("orderId", orderID).Str("status", string(settlement.Status)).
				Msg("settlement reconciled")
			return nil
		}
		if !errors.Is(err, order.ErrOrderNotFound) {
			return err
		}
		// The settlement beat the order commit. Wait for the row.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.backoff):
		}
	}
	log.Error().Str("orderId", orderID).Msg("settlement arrived for an order that never appeared")
	return err
}
