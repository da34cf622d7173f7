package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/example/ec-fulfillment/internal/domain/order"
	"github.com/example/ec-fulfillment/internal/readmodel"
)

// ErrNotInCache marks a projection miss: the upstream entity either does not
// exist or its event has not reached this service yet.
var ErrNotInCache = errors.New("entity not in local cache")

// OrderTx is the transactional surface PlaceOrder runs inside. Everything
// written through it commits or rolls back as one unit. The transaction has
// no control over remote calls made while it is open.
type OrderTx interface {
	InsertOrder(ctx context.Context, o *order.Order) error
	InsertItems(ctx context.Context, orderID string, items []order.OrderItem) error
	FinalizeTotal(ctx context.Context, orderID string, total decimal.Decimal, status order.Status) error
}

// OrderStore persists the order aggregate. Orders are never deleted.
type OrderStore interface {
	WithinTx(ctx context.Context, fn func(tx OrderTx) error) error
	Get(ctx context.Context, id string) (*order.Order, error)

	// ApplySettlement is an unconditional last-write-wins update of the
	// payment fields, keyed by order id. Returns order.ErrOrderNotFound
	// when no such order exists yet.
	ApplySettlement(ctx context.Context, id string, s order.Settlement) error

	UpdateStatus(ctx context.Context, id string, status order.Status) error
}

// CacheStore is the uniform handler surface of the cross-service projection
// recipe: upsert by id, delete-if-exists, read by id.
type CacheStore interface {
	UpsertProduct(ctx context.Context, p *readmodel.ProductCache) error
	DeleteProduct(ctx context.Context, id string) error
	GetProduct(ctx context.Context, id string) (*readmodel.ProductCache, error)

	UpsertUser(ctx context.Context, u *readmodel.UserCache) error
	DeleteUser(ctx context.Context, id string) error
	GetUser(ctx context.Context, id string) (*readmodel.UserCache, error)
}

// StatsStore maintains daily aggregates. IncrementDaily must apply at most
// once per dedupKey so redelivered events do not inflate the counter.
type StatsStore interface {
	IncrementDaily(ctx context.Context, day, dedupKey string) error
	GetDaily(ctx context.Context, day string) (readmodel.DailyAggregate, error)
}
