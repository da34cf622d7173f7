package ordering

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-fulfillment/internal/apperr"
	"github.com/example/ec-fulfillment/internal/domain/order"
	"github.com/example/ec-fulfillment/internal/infrastructure/store/mocks"
	"github.com/example/ec-fulfillment/internal/inventory"
	"github.com/example/ec-fulfillment/internal/payment"
	"github.com/example/ec-fulfillment/internal/readmodel"
	"github.com/example/ec-fulfillment/internal/registry"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// fakeAdjuster records every stock adjustment and can fail specific
// variants.
type fakeAdjuster struct {
	mu     sync.Mutex
	Calls  []inventory.Adjustment
	FailOn map[string]error // variant id -> error, only for TypeOrder
}

func (f *fakeAdjuster) Adjust(ctx context.Context, baseURL string, adj inventory.Adjustment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if adj.Type == inventory.TypeOrder {
		if err, ok := f.FailOn[adj.VariantID]; ok {
			return err
		}
	}
	f.Calls = append(f.Calls, adj)
	return nil
}

func (f *fakeAdjuster) callsOfType(adjType string) []inventory.Adjustment {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []inventory.Adjustment
	for _, c := range f.Calls {
		if c.Type == adjType {
			out = append(out, c)
		}
	}
	return out
}

// fakeInitiator records payment intents.
type fakeInitiator struct {
	mu    sync.Mutex
	Calls []payment.Intent
}

func (f *fakeInitiator) Initiate(ctx context.Context, baseURL string, intent payment.Intent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, intent)
	return nil
}

type testEnv struct {
	svc      *Service
	orders   *mocks.MockOrderStore
	cache    *mocks.MockCacheStore
	adjuster *fakeAdjuster
	payments *fakeInitiator
	registry *registry.StaticRegistry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	reg := registry.NewStaticRegistry()
	reg.Set(InventoryServiceName, registry.Endpoint{Host: "inventory.local", Port: 8081})
	reg.Set(PaymentServiceName, registry.Endpoint{Host: "payment.local", Port: 8082})

	env := &testEnv{
		orders:   mocks.NewMockOrderStore(),
		cache:    mocks.NewMockCacheStore(),
		adjuster: &fakeAdjuster{FailOn: map[string]error{}},
		payments: &fakeInitiator{},
		registry: reg,
	}
	env.svc = NewService(reg, env.orders, env.cache, env.adjuster, env.payments)

	seedProduct(t, env.cache, "prod-1", "var-1", "Walnut Desk", "10.00")
	seedProduct(t, env.cache, "prod-2", "var-2", "Desk Lamp", "5.50")
	seedProduct(t, env.cache, "prod-3", "var-3", "Cable Tray", "2.00")
	return env
}

func seedProduct(t *testing.T, cache *mocks.MockCacheStore, productID, variantID, name, price string) {
	t.Helper()
	err := cache.UpsertProduct(context.Background(), &readmodel.ProductCache{
		ID:   productID,
		SKU:  productID + "-sku",
		Name: name,
		Variants: []readmodel.VariantCache{
			{ID: variantID, SKU: variantID + "-sku", Price: d(price), Stock: 100},
		},
	})
	require.NoError(t, err)
}

func guestRequest(items ...ItemRequest) PlaceOrderRequest {
	return PlaceOrderRequest{
		Items:           items,
		ShippingAddress: "1 Main St",
		Payer:           order.Payer{GuestEmail: "guest@example.com", GuestName: "Guest"},
		PaymentMethod:   order.MethodCard,
	}
}

// ============================================
// Place Order Tests
// ============================================

func TestPlaceOrder_Success(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	o, err := env.svc.PlaceOrder(ctx, guestRequest(
		ItemRequest{ProductID: "prod-1", VariantID: "var-1", Quantity: 2},
		ItemRequest{ProductID: "prod-2", VariantID: "var-2", Quantity: 1},
	))

	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.True(t, o.TotalAmount.Equal(d("34.68")), "got %s", o.TotalAmount)

	// Item snapshots captured from the local cache.
	require.Len(t, o.Items, 2)
	assert.Equal(t, "Walnut Desk", o.Items[0].ProductName)
	assert.True(t, o.Items[0].PriceAtTimeOfOrder.Equal(d("10.00")))
	assert.Equal(t, "var-2-sku", o.Items[1].ProductSKU)

	// Order persisted.
	persisted, err := env.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, persisted.TotalAmount.Equal(d("34.68")))

	// One negative decrement per item, tagged with the order id.
	decrements := env.adjuster.callsOfType(inventory.TypeOrder)
	require.Len(t, decrements, 2)
	assert.Equal(t, -2, decrements[0].ChangeQuantity)
	assert.Equal(t, "var-1", decrements[0].VariantID)
	assert.Equal(t, o.ID, decrements[0].RelatedOrderID)

	// Settlement initiated for the non-cash method.
	require.Len(t, env.payments.Calls, 1)
	assert.Equal(t, o.ID, env.payments.Calls[0].OrderID)
	assert.True(t, env.payments.Calls[0].Amount.Equal(d("34.68")))
	assert.Equal(t, "guest@example.com", env.payments.Calls[0].UserEmail)
}

func TestPlaceOrder_AuthenticatedPayer(t *testing.T) {
	env := newTestEnv(t)

	req := guestRequest(ItemRequest{ProductID: "prod-1", VariantID: "var-1", Quantity: 1})
	req.Payer = order.Payer{UserID: "user-1", Email: "u@example.com"}

	o, err := env.svc.PlaceOrder(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "user-1", o.UserID)
	assert.Empty(t, o.GuestEmail)
}

func TestPlaceOrder_GuestPayer(t *testing.T) {
	env := newTestEnv(t)

	o, err := env.svc.PlaceOrder(context.Background(),
		guestRequest(ItemRequest{ProductID: "prod-1", VariantID: "var-1", Quantity: 1}))

	require.NoError(t, err)
	assert.Empty(t, o.UserID)
	assert.Equal(t, "guest@example.com", o.GuestEmail)
}

func TestPlaceOrder_CashOnDeliverySkipsSettlement(t *testing.T) {
	env := newTestEnv(t)

	req := guestRequest(ItemRequest{ProductID: "prod-1", VariantID: "var-1", Quantity: 1})
	req.PaymentMethod = order.MethodCashOnDelivery

	o, err := env.svc.PlaceOrder(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Empty(t, env.payments.Calls)
}

func TestPlaceOrder_EmptyItems(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.PlaceOrder(context.Background(), guestRequest())

	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Zero(t, env.orders.TxCount)
}

func TestPlaceOrder_NoPayerEmail(t *testing.T) {
	env := newTestEnv(t)

	req := guestRequest(ItemRequest{ProductID: "prod-1", VariantID: "var-1", Quantity: 1})
	req.Payer = order.Payer{}

	_, err := env.svc.PlaceOrder(context.Background(), req)

	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestPlaceOrder_RegistryMiss(t *testing.T) {
	env := newTestEnv(t)
	env.registry.Remove(InventoryServiceName)

	_, err := env.svc.PlaceOrder(context.Background(),
		guestRequest(ItemRequest{ProductID: "prod-1", VariantID: "var-1", Quantity: 1}))

	assert.True(t, apperr.IsKind(err, apperr.KindUnavailable))

	// The operation aborts before any state is touched.
	assert.Zero(t, env.orders.TxCount)
	assert.Zero(t, env.orders.Len())
	assert.Empty(t, env.adjuster.Calls)
}

func TestPlaceOrder_ProductNotInCache(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.PlaceOrder(context.Background(),
		guestRequest(ItemRequest{ProductID: "prod-unknown", VariantID: "var-1", Quantity: 1}))

	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	assert.Zero(t, env.orders.Len())
	assert.Empty(t, env.adjuster.Calls)
}

func TestPlaceOrder_UnknownVariant(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.PlaceOrder(context.Background(),
		guestRequest(ItemRequest{ProductID: "prod-1", VariantID: "var-nope", Quantity: 1}))

	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

// TestPlaceOrder_MidSagaInventoryFailure covers the partial-failure case:
// the second of three decrements is rejected. The local transaction must
// roll back completely, and the decrement already applied for the first
// item must be undone by a reversing adjustment.
func TestPlaceOrder_MidSagaInventoryFailure(t *testing.T) {
	env := newTestEnv(t)
	env.adjuster.FailOn["var-2"] = apperr.Downstream("out of stock", 409, nil)

	_, err := env.svc.PlaceOrder(context.Background(), guestRequest(
		ItemRequest{ProductID: "prod-1", VariantID: "var-1", Quantity: 2},
		ItemRequest{ProductID: "prod-2", VariantID: "var-2", Quantity: 1},
		ItemRequest{ProductID: "prod-3", VariantID: "var-3", Quantity: 4},
	))

	require.Error(t, err)
	assert.Equal(t, 409, apperr.HTTPStatus(err))

	// No order and no items survive the rollback.
	assert.Zero(t, env.orders.Len())

	// Exactly one decrement was applied (var-1); var-3 was never reached.
	decrements := env.adjuster.callsOfType(inventory.TypeOrder)
	require.Len(t, decrements, 1)
	assert.Equal(t, "var-1", decrements[0].VariantID)

	// And it was compensated with an equal opposite adjustment.
	reversals := env.adjuster.callsOfType(inventory.TypeOrderRollback)
	require.Len(t, reversals, 1)
	assert.Equal(t, "var-1", reversals[0].VariantID)
	assert.Equal(t, 2, reversals[0].ChangeQuantity)

	// No settlement for an order that does not exist.
	assert.Empty(t, env.payments.Calls)
}

// disconnectingAdjuster honors the call context and kills the request
// context on the second decrement, simulating a client that disconnects
// mid-saga. The reversal for the first item must still be applied.
type disconnectingAdjuster struct {
	mu     sync.Mutex
	Calls  []inventory.Adjustment
	cancel context.CancelFunc
}

func (f *disconnectingAdjuster) Adjust(ctx context.Context, baseURL string, adj inventory.Adjustment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if adj.Type == inventory.TypeOrder && adj.VariantID == "var-2" {
		f.cancel()
		return apperr.Wrap(apperr.KindUnavailable, "inventory request aborted", context.Canceled)
	}
	f.Calls = append(f.Calls, adj)
	return nil
}

func TestPlaceOrder_CompensationSurvivesClientDisconnect(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	adjuster := &disconnectingAdjuster{cancel: cancel}
	svc := NewService(env.registry, env.orders, env.cache, adjuster, env.payments)

	_, err := svc.PlaceOrder(ctx, guestRequest(
		ItemRequest{ProductID: "prod-1", VariantID: "var-1", Quantity: 2},
		ItemRequest{ProductID: "prod-2", VariantID: "var-2", Quantity: 1},
	))
	require.Error(t, err)
	assert.Zero(t, env.orders.Len())

	adjuster.mu.Lock()
	defer adjuster.mu.Unlock()
	var reversals []inventory.Adjustment
	for _, c := range adjuster.Calls {
		if c.Type == inventory.TypeOrderRollback {
			reversals = append(reversals, c)
		}
	}
	require.Len(t, reversals, 1)
	assert.Equal(t, "var-1", reversals[0].VariantID)
	assert.Equal(t, 2, reversals[0].ChangeQuantity)
}

func TestPlaceOrder_DownstreamFailureDefaultsTo503(t *testing.T) {
	env := newTestEnv(t)
	env.orders.FinalizeErr = assert.AnError

	_, err := env.svc.PlaceOrder(context.Background(),
		guestRequest(ItemRequest{ProductID: "prod-1", VariantID: "var-1", Quantity: 1}))

	require.Error(t, err)
	assert.Equal(t, 503, apperr.HTTPStatus(err))
}

// ============================================
// Status Update Tests
// ============================================

func TestUpdateStatus_ShipPaidOrder(t *testing.T) {
	env := newTestEnv(t)
	env.orders.Put(&order.Order{ID: "order-1", Status: order.StatusPaid})

	o, err := env.svc.UpdateStatus(context.Background(), "order-1", order.StatusShipped)

	require.NoError(t, err)
	assert.Equal(t, order.StatusShipped, o.Status)
}

func TestUpdateStatus_InvalidTransition(t *testing.T) {
	env := newTestEnv(t)
	env.orders.Put(&order.Order{ID: "order-1", Status: order.StatusPending})

	_, err := env.svc.UpdateStatus(context.Background(), "order-1", order.StatusShipped)

	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestUpdateStatus_NotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.UpdateStatus(context.Background(), "missing", order.StatusShipped)

	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}
