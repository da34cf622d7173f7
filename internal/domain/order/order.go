package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
)

type PaymentMethod string

const (
	MethodCard           PaymentMethod = "CARD"
	MethodCashOnDelivery PaymentMethod = "CASH_ON_DELIVERY"
)

// ShippingFee is the flat shipping constant added to every order total.
var ShippingFee = decimal.RequireFromString("9.18")

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrEmptyOrder        = errors.New("order must have at least one item")
	ErrNoPayerEmail      = errors.New("order requires an authenticated user or a guest email")
	ErrPayerAmbiguous    = errors.New("order cannot have both a user id and a guest email")
	ErrInvalidStatus     = errors.New("invalid order status transition")
	ErrOrderCancelled    = errors.New("order is already cancelled")
	ErrOrderNotShippable = errors.New("order must be paid before shipping")
)

// validTransitions defines allowed state transitions for the explicit
// status-update operations. Settlement reconciliation deliberately bypasses
// this table (see ApplySettlement).
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusPaid, StatusFailed, StatusCancelled},
	StatusPaid:      {StatusShipped, StatusCancelled},
	StatusFailed:    {StatusCancelled},
	StatusShipped:   {StatusDelivered},
	StatusDelivered: {},
	StatusCancelled: {},
}

// Payer identifies who placed the order: an authenticated user or a guest,
// mutually exclusive.
type Payer struct {
	UserID     string `json:"userId,omitempty"`
	Email      string `json:"email,omitempty"`
	GuestEmail string `json:"guestEmail,omitempty"`
	GuestName  string `json:"guestName,omitempty"`
}

// ResolveEmail returns the email settlement notices go to.
func (p Payer) ResolveEmail() (string, error) {
	switch {
	case p.UserID != "" && p.GuestEmail != "":
		return "", ErrPayerAmbiguous
	case p.UserID != "":
		if p.Email == "" {
			return "", ErrNoPayerEmail
		}
		return p.Email, nil
	case p.GuestEmail != "":
		return p.GuestEmail, nil
	default:
		return "", ErrNoPayerEmail
	}
}

// OrderItem is a point-in-time snapshot of the purchased variant. The
// denormalized product fields are captured at order time and never
// refreshed: the item is a historical record, not a live view.
type OrderItem struct {
	ProductID          string          `json:"productId"`
	VariantID          string          `json:"variantId"`
	Quantity           int             `json:"quantity"`
	PriceAtTimeOfOrder decimal.Decimal `json:"priceAtTimeOfOrder"`
	ProductName        string          `json:"productName"`
	ProductSKU         string          `json:"productSku"`
	ProductImageURL    string          `json:"productImageUrl"`
}

type Order struct {
	ID                   string          `json:"id"`
	UserID               string          `json:"userId,omitempty"`
	GuestEmail           string          `json:"guestEmail,omitempty"`
	GuestName            string          `json:"guestName,omitempty"`
	Items                []OrderItem     `json:"items"`
	ShippingAddress      string          `json:"shippingAddress"`
	PaymentMethod        PaymentMethod   `json:"paymentMethod"`
	TotalAmount          decimal.Decimal `json:"totalAmount"`
	Status               Status          `json:"status"`
	PaymentTransactionID string          `json:"paymentTransactionId,omitempty"`
	PaymentFailureReason string          `json:"paymentFailureReason,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

// ComputeTotal derives the order total: sum of each item's snapshot price
// times quantity, plus the flat shipping fee. Computed once at creation and
// never recomputed.
func ComputeTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.PriceAtTimeOfOrder.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total.Add(ShippingFee)
}

// New validates the placement request and builds a PENDING order with a zero
// total. Items and the total are filled in by the orchestrator inside its
// transaction, after the product snapshots are loaded.
func New(payer Payer, shippingAddress string, method PaymentMethod) (*Order, error) {
	if _, err := payer.ResolveEmail(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Order{
		ID:              uuid.New().String(),
		UserID:          payer.UserID,
		GuestEmail:      payer.GuestEmail,
		GuestName:       payer.GuestName,
		ShippingAddress: shippingAddress,
		PaymentMethod:   method,
		TotalAmount:     decimal.Zero,
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// CanTransitionTo checks if the order can move to the target status.
func (o *Order) CanTransitionTo(target Status) bool {
	allowed, exists := validTransitions[o.Status]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// Transition applies an explicit status update, enforcing the transition
// table.
func (o *Order) Transition(target Status) error {
	if !o.CanTransitionTo(target) {
		switch {
		case o.Status == StatusCancelled:
			return ErrOrderCancelled
		case o.Status == StatusPending && target == StatusShipped:
			return ErrOrderNotShippable
		default:
			return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidStatus, o.Status, target)
		}
	}
	o.Status = target
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// Settlement is the terminal outcome of a payment attempt as consumed from
// the settlement topic.
type Settlement struct {
	Status        Status // StatusPaid or StatusFailed
	TransactionID string
	FailureReason string
}

// ApplySettlement is an unconditional last-write-wins update keyed by order
// id. Applying the same settlement twice leaves the order in the same final
// state, which is what makes the reconciler idempotent under redelivery.
func (o *Order) ApplySettlement(s Settlement) {
	o.Status = s.Status
	o.PaymentTransactionID = s.TransactionID
	o.PaymentFailureReason = s.FailureReason
	o.UpdatedAt = time.Now().UTC()
}
