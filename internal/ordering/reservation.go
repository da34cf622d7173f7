package ordering

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/example/ec-fulfillment/internal/inventory"
)

const compensateTimeout = 10 * time.Second

type reservationState string

const (
	reservationCreated   reservationState = "CREATED"
	reservationReserving reservationState = "RESERVING"
	reservationReserved  reservationState = "RESERVED"
	reservationFailed    reservationState = "RESERVE_FAILED"
	reservationCommitted reservationState = "COMMITTED"
)

// reservation tracks the remote stock decrements applied so far for one
// order, as an explicit state machine rather than an implicit try/catch.
// The local transaction cannot roll remote decrements back, so each applied
// decrement registers its reversing adjustment here; on abort they are
// replayed against the inventory service.
type reservation struct {
	orderID   string
	state     reservationState
	reversals []inventory.Adjustment
}

func newReservation(orderID string) *reservation {
	return &reservation{orderID: orderID, state: reservationCreated}
}

func (r *reservation) begin() {
	r.state = reservationReserving
}

// applied records that a decrement of qty for variantID succeeded, and the
// compensation that would undo it. Reversals run in reverse order of
// application.
func (r *reservation) applied(variantID string, qty int) {
	r.reversals = append([]inventory.Adjustment{{
		VariantID:      variantID,
		ChangeQuantity: qty,
		Type:           inventory.TypeOrderRollback,
		Reason:         "order placement aborted",
		RelatedOrderID: r.orderID,
	}}, r.reversals...)
}

func (r *reservation) reserved() {
	r.state = reservationReserved
}

func (r *reservation) committed() {
	r.state = reservationCommitted
}

// compensate issues the reversing adjustments. A failed reversal is logged
// and skipped rather than aborting the rest: a stuck reversal needs operator
// attention, not more lost stock.
//
// The abort may have been caused by the request context itself dying (client
// disconnect mid-saga), so the reversals run detached from it under their
// own deadline.
func (r *reservation) compensate(ctx context.Context, adjuster inventory.Adjuster, baseURL string) {
	r.state = reservationFailed
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
	defer cancel()
	for _, adj := range r.reversals {
		if err := adjuster.Adjust(ctx, baseURL, adj); err != nil {
			log.Error().Str("orderId", r.orderID).Str("variantId", adj.VariantID).
				Int("quantity", adj.ChangeQuantity).Err(err).
				Msg("stock reversal failed, manual correction needed")
		}
	}
}
