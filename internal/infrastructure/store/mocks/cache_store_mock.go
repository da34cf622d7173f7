package mocks

import (
	"context"
	"sync"

	"github.com/example/ec-fulfillment/internal/infrastructure/store"
	"github.com/example/ec-fulfillment/internal/readmodel"
)

// MockCacheStore is an in-memory CacheStore and StatsStore for testing.
type MockCacheStore struct {
	mu       sync.RWMutex
	Products map[string]*readmodel.ProductCache
	Users    map[string]*readmodel.UserCache
	Daily    map[string]int
	seen     map[string]struct{}

	// For tracking calls in tests
	ProductUpserts int
	ProductDeletes int
	UserUpserts    int
	UserDeletes    int
}

func NewMockCacheStore() *MockCacheStore {
	return &MockCacheStore{
		Products: make(map[string]*readmodel.ProductCache),
		Users:    make(map[string]*readmodel.UserCache),
		Daily:    make(map[string]int),
		seen:     make(map[string]struct{}),
	}
}

func (m *MockCacheStore) UpsertProduct(ctx context.Context, p *readmodel.ProductCache) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ProductUpserts++
	cp := *p
	m.Products[p.ID] = &cp
	return nil
}

func (m *MockCacheStore) DeleteProduct(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ProductDeletes++
	delete(m.Products, id)
	return nil
}

func (m *MockCacheStore) GetProduct(ctx context.Context, id string) (*readmodel.ProductCache, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.Products[id]
	if !ok {
		return nil, store.ErrNotInCache
	}
	cp := *p
	return &cp, nil
}

func (m *MockCacheStore) UpsertUser(ctx context.Context, u *readmodel.UserCache) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UserUpserts++
	cp := *u
	m.Users[u.ID] = &cp
	return nil
}

func (m *MockCacheStore) DeleteUser(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UserDeletes++
	delete(m.Users, id)
	return nil
}

func (m *MockCacheStore) GetUser(ctx context.Context, id string) (*readmodel.UserCache, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.Users[id]
	if !ok {
		return nil, store.ErrNotInCache
	}
	cp := *u
	return &cp, nil
}

func (m *MockCacheStore) IncrementDaily(ctx context.Context, day, dedupKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := day + "/" + dedupKey
	if _, dup := m.seen[key]; dup {
		return nil
	}
	m.seen[key] = struct{}{}
	m.Daily[day]++
	return nil
}

func (m *MockCacheStore) GetDaily(ctx context.Context, day string) (readmodel.DailyAggregate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return readmodel.DailyAggregate{Day: day, Count: m.Daily[day]}, nil
}
