package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/example/ec-fulfillment/internal/readmodel"
)

// RedisCacheStore backs the projection caches of the read-heavy services
// (search and cart-adjacent), which never join against order rows and prefer
// a shared key-value cache. It also carries the daily stats aggregates,
// deduplicated per event id.
type RedisCacheStore struct {
	client *redis.Client
}

func NewRedisCacheStore(client *redis.Client) *RedisCacheStore {
	return &RedisCacheStore{client: client}
}

func productKey(id string) string { return "cache:product:" + id }
func userKey(id string) string    { return "cache:user:" + id }

func (s *RedisCacheStore) UpsertProduct(ctx context.Context, p *readmodel.ProductCache) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, productKey(p.ID), data, 0).Err()
}

func (s *RedisCacheStore) DeleteProduct(ctx context.Context, id string) error {
	return s.client.Del(ctx, productKey(id)).Err()
}

func (s *RedisCacheStore) GetProduct(ctx context.Context, id string) (*readmodel.ProductCache, error) {
	data, err := s.client.Get(ctx, productKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotInCache
	}
	if err != nil {
		return nil, err
	}
	var p readmodel.ProductCache
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *RedisCacheStore) UpsertUser(ctx context.Context, u *readmodel.UserCache) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, userKey(u.ID), data, 0).Err()
}

func (s *RedisCacheStore) DeleteUser(ctx context.Context, id string) error {
	return s.client.Del(ctx, userKey(id)).Err()
}

func (s *RedisCacheStore) GetUser(ctx context.Context, id string) (*readmodel.UserCache, error) {
	data, err := s.client.Get(ctx, userKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotInCache
	}
	if err != nil {
		return nil, err
	}
	var u readmodel.UserCache
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// IncrementDaily bumps the day counter at most once per dedupKey. The dedup
// set makes redelivery safe; it does not survive a deliberate counter reset,
// so a full rebuild must clear both keys together.
func (s *RedisCacheStore) IncrementDaily(ctx context.Context, day, dedupKey string) error {
	added, err := s.client.SAdd(ctx, "stats:seen:"+day, dedupKey).Result()
	if err != nil {
		return err
	}
	if added == 0 {
		return nil // already counted
	}
	return s.client.Incr(ctx, "stats:daily:"+day).Err()
}

func (s *RedisCacheStore) GetDaily(ctx context.Context, day string) (readmodel.DailyAggregate, error) {
	count, err := s.client.Get(ctx, "stats:daily:"+day).Int()
	if errors.Is(err, redis.Nil) {
		return readmodel.DailyAggregate{Day: day}, nil
	}
	if err != nil {
		return readmodel.DailyAggregate{}, fmt.Errorf("read daily aggregate: %w", err)
	}
	return readmodel.DailyAggregate{Day: day, Count: count}, nil
}
