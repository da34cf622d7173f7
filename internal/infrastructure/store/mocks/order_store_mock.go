package mocks

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/example/ec-fulfillment/internal/domain/order"
	"github.com/example/ec-fulfillment/internal/infrastructure/store"
)

// MockOrderStore is an in-memory OrderStore for testing. Writes made inside
// WithinTx are staged and only become visible when the callback returns nil,
// mirroring the rollback semantics of the real store.
type MockOrderStore struct {
	mu     sync.RWMutex
	Orders map[string]*order.Order

	// For tracking calls in tests
	SettlementCalls []SettlementCall
	TxCount         int

	// Error injection
	InsertOrderErr error
	InsertItemsErr error
	FinalizeErr    error
	ApplySettleErr error
}

// SettlementCall records parameters passed to ApplySettlement.
type SettlementCall struct {
	OrderID    string
	Settlement order.Settlement
}

func NewMockOrderStore() *MockOrderStore {
	return &MockOrderStore{Orders: make(map[string]*order.Order)}
}

type mockOrderTx struct {
	store   *MockOrderStore
	pending *order.Order
}

func (m *MockOrderStore) WithinTx(ctx context.Context, fn func(tx store.OrderTx) error) error {
	m.mu.Lock()
	m.TxCount++
	m.mu.Unlock()

	tx := &mockOrderTx{store: m}
	if err := fn(tx); err != nil {
		return err // staged writes discarded
	}
	if tx.pending != nil {
		m.mu.Lock()
		m.Orders[tx.pending.ID] = tx.pending
		m.mu.Unlock()
	}
	return nil
}

func (t *mockOrderTx) InsertOrder(ctx context.Context, o *order.Order) error {
	if t.store.InsertOrderErr != nil {
		return t.store.InsertOrderErr
	}
	cp := *o
	t.pending = &cp
	return nil
}

func (t *mockOrderTx) InsertItems(ctx context.Context, orderID string, items []order.OrderItem) error {
	if t.store.InsertItemsErr != nil {
		return t.store.InsertItemsErr
	}
	t.pending.Items = append([]order.OrderItem(nil), items...)
	return nil
}

func (t *mockOrderTx) FinalizeTotal(ctx context.Context, orderID string, total decimal.Decimal, status order.Status) error {
	if t.store.FinalizeErr != nil {
		return t.store.FinalizeErr
	}
	t.pending.TotalAmount = total
	t.pending.Status = status
	return nil
}

func (m *MockOrderStore) Get(ctx context.Context, id string) (*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.Orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MockOrderStore) ApplySettlement(ctx context.Context, id string, s order.Settlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SettlementCalls = append(m.SettlementCalls, SettlementCall{OrderID: id, Settlement: s})
	if m.ApplySettleErr != nil {
		return m.ApplySettleErr
	}
	o, ok := m.Orders[id]
	if !ok {
		return order.ErrOrderNotFound
	}
	o.ApplySettlement(s)
	return nil
}

func (m *MockOrderStore) UpdateStatus(ctx context.Context, id string, status order.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.Orders[id]
	if !ok {
		return order.ErrOrderNotFound
	}
	o.Status = status
	return nil
}

// Put seeds an order directly, bypassing the transaction.
func (m *MockOrderStore) Put(o *order.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Orders[o.ID] = o
}

// Len reports how many orders exist.
func (m *MockOrderStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Orders)
}
