package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// ============================================
// Total Computation Tests
// ============================================

func TestComputeTotal(t *testing.T) {
	items := []OrderItem{
		{ProductID: "prod-1", Quantity: 2, PriceAtTimeOfOrder: d("10.00")},
		{ProductID: "prod-2", Quantity: 1, PriceAtTimeOfOrder: d("5.50")},
	}

	total := ComputeTotal(items)

	// 10.00*2 + 5.50*1 + 9.18 shipping
	assert.True(t, total.Equal(d("34.68")), "got %s", total)
}

func TestComputeTotal_EmptyItemsIsJustShipping(t *testing.T) {
	assert.True(t, ComputeTotal(nil).Equal(ShippingFee))
}

// ============================================
// Payer Tests
// ============================================

func TestPayer_ResolveEmail_Authenticated(t *testing.T) {
	email, err := Payer{UserID: "user-1", Email: "u@example.com"}.ResolveEmail()
	require.NoError(t, err)
	assert.Equal(t, "u@example.com", email)
}

func TestPayer_ResolveEmail_Guest(t *testing.T) {
	email, err := Payer{GuestEmail: "guest@example.com", GuestName: "Guest"}.ResolveEmail()
	require.NoError(t, err)
	assert.Equal(t, "guest@example.com", email)
}

func TestPayer_ResolveEmail_Neither(t *testing.T) {
	_, err := Payer{}.ResolveEmail()
	assert.ErrorIs(t, err, ErrNoPayerEmail)
}

func TestPayer_ResolveEmail_Both(t *testing.T) {
	_, err := Payer{UserID: "user-1", Email: "u@example.com", GuestEmail: "g@example.com"}.ResolveEmail()
	assert.ErrorIs(t, err, ErrPayerAmbiguous)
}

func TestNew_GuestOrder(t *testing.T) {
	o, err := New(Payer{GuestEmail: "guest@example.com", GuestName: "Guest"}, "1 Main St", MethodCard)
	require.NoError(t, err)

	assert.Empty(t, o.UserID)
	assert.Equal(t, "guest@example.com", o.GuestEmail)
	assert.Equal(t, StatusPending, o.Status)
	assert.True(t, o.TotalAmount.IsZero())
	assert.NotEmpty(t, o.ID)
}

func TestNew_AuthenticatedOrder(t *testing.T) {
	o, err := New(Payer{UserID: "user-1", Email: "u@example.com"}, "1 Main St", MethodCard)
	require.NoError(t, err)

	assert.Equal(t, "user-1", o.UserID)
	assert.Empty(t, o.GuestEmail)
}

// ============================================
// Status Transition Tests
// ============================================

func TestTransition_PaidToShipped(t *testing.T) {
	o := &Order{Status: StatusPaid}
	require.NoError(t, o.Transition(StatusShipped))
	assert.Equal(t, StatusShipped, o.Status)
}

func TestTransition_ShippedToDelivered(t *testing.T) {
	o := &Order{Status: StatusShipped}
	require.NoError(t, o.Transition(StatusDelivered))
	assert.Equal(t, StatusDelivered, o.Status)
}

func TestTransition_PendingCannotShip(t *testing.T) {
	o := &Order{Status: StatusPending}
	assert.ErrorIs(t, o.Transition(StatusShipped), ErrOrderNotShippable)
	assert.Equal(t, StatusPending, o.Status)
}

func TestTransition_CancelledIsTerminal(t *testing.T) {
	o := &Order{Status: StatusCancelled}
	assert.ErrorIs(t, o.Transition(StatusPaid), ErrOrderCancelled)
}

func TestTransition_DeliveredIsTerminal(t *testing.T) {
	o := &Order{Status: StatusDelivered}
	assert.ErrorIs(t, o.Transition(StatusCancelled), ErrInvalidStatus)
}

// ============================================
// Settlement Tests
// ============================================

func TestApplySettlement_Success(t *testing.T) {
	o := &Order{Status: StatusPending}
	o.ApplySettlement(Settlement{Status: StatusPaid, TransactionID: "txn-1"})

	assert.Equal(t, StatusPaid, o.Status)
	assert.Equal(t, "txn-1", o.PaymentTransactionID)
	assert.Empty(t, o.PaymentFailureReason)
}

func TestApplySettlement_Failure(t *testing.T) {
	o := &Order{Status: StatusPending}
	o.ApplySettlement(Settlement{Status: StatusFailed, TransactionID: "txn-1", FailureReason: "card declined"})

	assert.Equal(t, StatusFailed, o.Status)
	assert.Equal(t, "card declined", o.PaymentFailureReason)
}

func TestApplySettlement_Idempotent(t *testing.T) {
	s := Settlement{Status: StatusPaid, TransactionID: "txn-1"}

	o := &Order{Status: StatusPending}
	o.ApplySettlement(s)
	once := *o
	o.ApplySettlement(s)

	assert.Equal(t, once.Status, o.Status)
	assert.Equal(t, once.PaymentTransactionID, o.PaymentTransactionID)
	assert.Equal(t, once.PaymentFailureReason, o.PaymentFailureReason)
}
