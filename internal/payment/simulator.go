// Package payment holds the settlement simulator service and the client the
// orchestrator uses to hand it a payment intent.
package payment

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/example/ec-fulfillment/internal/apperr"
	"github.com/example/ec-fulfillment/internal/event"
)

// Publisher is the producer surface the simulator publishes outcomes to.
type Publisher interface {
	Publish(ctx context.Context, topic, key, eventType string, payload any) error
}

// Simulator accepts a payment intent, acknowledges immediately, and after a
// simulated processing delay publishes exactly one terminal settlement event.
// There is no idempotency key on the intent: initiating twice for the same
// order yields two independent outcomes and two events, so callers must
// ensure at most one invocation per order.
type Simulator struct {
	publisher   Publisher
	delay       time.Duration
	successRate float64
	roll        func() float64

	wg sync.WaitGroup
}

// NewSimulator builds a simulator with the given processing delay and
// success probability.
func NewSimulator(publisher Publisher, delay time.Duration, successRate float64) *Simulator {
	return &Simulator{
		publisher:   publisher,
		delay:       delay,
		successRate: successRate,
		roll:        rand.Float64,
	}
}

// InitiateSettlement validates the intent and schedules the settlement. The
// returned error only reflects validation; the outcome arrives later on the
// payment topic.
func (s *Simulator) InitiateSettlement(ctx context.Context, orderID string, amount decimal.Decimal, payerEmail string) error {
	if orderID == "" {
		return apperr.Validation("orderId is required")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return apperr.Validation("amount must be positive")
	}

	s.wg.Add(1)
	go s.settle(orderID, amount, payerEmail)
	return nil
}

func (s *Simulator) settle(orderID string, amount decimal.Decimal, payerEmail string) {
	defer s.wg.Done()
	time.Sleep(s.delay)

	outcome := event.PaymentSettled{
		OrderID:       orderID,
		TransactionID: "txn-" + uuid.New().String(),
		Amount:        amount,
	}

	// Settlement events are keyed by order id so they land on the same
	// partition as any other event for that order.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if s.roll() < s.successRate {
		log.Info().Str("orderId", orderID).Str("transactionId", outcome.TransactionID).
			Str("payer", payerEmail).Msg("settlement succeeded")
		if err := s.publisher.Publish(ctx, event.TopicPayment, orderID, event.TypePaymentSuccess, outcome); err != nil {
			log.Error().Str("orderId", orderID).Err(err).Msg("publish settlement outcome failed")
		}
		return
	}

	outcome.Reason = "card declined by issuer"
	log.Info().Str("orderId", orderID).Str("reason", outcome.Reason).Msg("settlement failed")
	if err := s.publisher.Publish(ctx, event.TopicPayment, orderID, event.TypePaymentFailure, outcome); err != nil {
		log.Error().Str("orderId", orderID).Err(err).Msg("publish settlement outcome failed")
	}
}

// Drain blocks until every scheduled settlement has published its outcome.
// Called on shutdown so accepted intents are not lost.
func (s *Simulator) Drain() {
	s.wg.Wait()
}
