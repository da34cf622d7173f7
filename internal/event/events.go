package event

import "github.com/shopspring/decimal"

// Topics. Producers partition by the primary entity id, so per-entity
// ordering is only as strong as the bus's per-key guarantee.
const (
	TopicPayment = "payment_events"
	TopicProduct = "product_events"
	TopicAuth    = "auth_events"
)

const (
	TypePaymentSuccess = "PAYMENT_SUCCESS"
	TypePaymentFailure = "PAYMENT_FAILURE"

	TypeProductCreated = "PRODUCT_CREATED"
	TypeProductUpdated = "PRODUCT_UPDATED"
	TypeProductDeleted = "PRODUCT_DELETED"

	TypeUserCreated = "USER_CREATED"
	TypeUserUpdated = "USER_UPDATED"
	TypeUserDeleted = "USER_DELETED"
)

// PaymentSettled is the payload of both terminal settlement events.
// Reason is only set on PAYMENT_FAILURE.
type PaymentSettled struct {
	OrderID       string          `json:"orderId"`
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	Reason        string          `json:"reason,omitempty"`
}

// ProductVariant mirrors the variant shape published by the catalog service.
type ProductVariant struct {
	ID    string          `json:"id"`
	SKU   string          `json:"sku"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

// Product is the payload of PRODUCT_* events.
type Product struct {
	ID              string           `json:"id"`
	SKU             string           `json:"sku"`
	Name            string           `json:"name"`
	PrimaryImageURL string           `json:"primaryImageUrl"`
	Categories      []string         `json:"categories"`
	Variants        []ProductVariant `json:"variants"`
}

// User is the payload of USER_* events on the auth topic.
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	ProfileImage string `json:"profileImage"`
}
