package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists the rate limit state.
type Store interface {
	// Load returns the current state. A store with no data returns a healthy
	// zero state.
	Load(ctx context.Context) (*State, error)

	// RecordRateLimited extends the streak and returns the new state.
	RecordRateLimited(ctx context.Context, at time.Time) (*State, error)

	// RecordSuccess closes the streak and returns the new state.
	RecordSuccess(ctx context.Context, at time.Time) (*State, error)
}

// MemoryStore keeps the state in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	state State
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	s.state.UpdateHealth()
	return s
}

// Load implements Store.
func (s *MemoryStore) Load(ctx context.Context) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	return &st, nil
}

// RecordRateLimited implements Store.
func (s *MemoryStore) RecordRateLimited(ctx context.Context, at time.Time) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Consecutive++
	s.state.Total++
	s.state.LastRateLimited = at
	s.state.LastUpdate = at
	s.state.UpdateHealth()
	st := s.state
	return &st, nil
}

// RecordSuccess implements Store.
func (s *MemoryStore) RecordSuccess(ctx context.Context, at time.Time) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Consecutive = 0
	s.state.LastUpdate = at
	s.state.UpdateHealth()
	st := s.state
	return &st, nil
}

// RedisStore keeps the state in Redis so it is shared between processes.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{redis: redisClient}
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context) (*State, error) {
	consecutive, err := s.redis.Get(ctx, RedisKeyConsecutive).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get consecutive: %w", err)
	}

	total, err := s.redis.Get(ctx, RedisKeyTotal).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get total: %w", err)
	}

	lastRateLimited, err := s.redis.Get(ctx, RedisKeyLastRateLimited).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get last rate limited: %w", err)
	}

	lastUpdate, err := s.redis.Get(ctx, RedisKeyLastUpdate).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get last update: %w", err)
	}

	state := &State{
		Consecutive:     consecutive,
		Total:           total,
		LastRateLimited: unixNano(lastRateLimited),
		LastUpdate:      unixNano(lastUpdate),
	}
	state.UpdateHealth()
	return state, nil
}

// RecordRateLimited implements Store.
func (s *RedisStore) RecordRateLimited(ctx context.Context, at time.Time) (*State, error) {
	pipe := s.redis.TxPipeline()
	consecutive := pipe.Incr(ctx, RedisKeyConsecutive)
	total := pipe.Incr(ctx, RedisKeyTotal)
	pipe.Set(ctx, RedisKeyLastRateLimited, at.UnixNano(), 0)
	pipe.Set(ctx, RedisKeyLastUpdate, at.UnixNano(), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("record rate limited in redis: %w", err)
	}

	state := &State{
		Consecutive:     int(consecutive.Val()),
		Total:           total.Val(),
		LastRateLimited: at,
		LastUpdate:      at,
	}
	state.UpdateHealth()
	return state, nil
}

// RecordSuccess implements Store.
func (s *RedisStore) RecordSuccess(ctx context.Context, at time.Time) (*State, error) {
	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, RedisKeyConsecutive, 0, 0)
	pipe.Set(ctx, RedisKeyLastUpdate, at.UnixNano(), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("record success in redis: %w", err)
	}
	return s.Load(ctx)
}

func unixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
