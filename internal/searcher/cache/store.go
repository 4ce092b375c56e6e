package cache

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/post-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/resilience"
)

// Store is the external key/value store behind the query cache. Get reports
// a missing key with found=false and a nil error.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
}

// RedisStore bounds every Redis call by a timeout and stops calling Redis
// while its circuit breaker is open.
type RedisStore struct {
	client  *pkgredis.Client
	breaker *resilience.CircuitBreaker
	timeout time.Duration
}

// NewRedisStore wraps client. m may be nil; when set, breaker transitions
// are exported on the circuit_breaker_state gauge.
func NewRedisStore(client *pkgredis.Client, cfg config.CacheConfig, m *metrics.Metrics) *RedisStore {
	cbCfg := resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.FailureThreshold,
		ResetTimeout:     cfg.ResetTimeout,
	}
	if m != nil {
		m.CircuitBreakerState.WithLabelValues("redis").Set(float64(resilience.StateClosed))
		cbCfg.OnStateChange = func(name string, _, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		}
	}
	return &RedisStore{
		client:  client,
		breaker: resilience.NewCircuitBreaker("redis", cbCfg),
		timeout: cfg.OperationTimeout,
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	type lookup struct {
		data  []byte
		found bool
	}
	res, err := resilience.Call(s.breaker, func() (lookup, error) {
		return resilience.Bounded(ctx, s.timeout, "redis-get", func(ctx context.Context) (lookup, error) {
			data, found, err := s.client.Get(ctx, key)
			return lookup{data, found}, err
		})
	})
	return res.data, res.found, err
}

func (s *RedisStore) SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.call(ctx, "redis-set", func(ctx context.Context) error {
		return s.client.SetWithExpiry(ctx, key, value, ttl)
	})
}

// DeleteByPrefix is not bounded by the operation timeout since a full scan
// can legitimately outlast it.
func (s *RedisStore) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	return resilience.Call(s.breaker, func() (int64, error) {
		return s.client.DeleteByPrefix(ctx, prefix)
	})
}

// State exposes the breaker state for health checks.
func (s *RedisStore) State() resilience.State {
	return s.breaker.GetState()
}

func (s *RedisStore) call(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	return s.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, s.timeout, name, fn)
	})
}

// MemoryStore is a process-local Store used when Redis is not configured.
// Entries expire after the TTL given at construction; the per-call ttl is
// ignored.
type MemoryStore struct {
	lru *expirable.LRU[string, []byte]
}

func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		lru: expirable.NewLRU[string, []byte](size, nil, ttl),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, ok := s.lru.Get(key)
	return data, ok, nil
}

func (s *MemoryStore) SetWithExpiry(_ context.Context, key string, value []byte, _ time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	s.lru.Add(key, stored)
	return nil
}

func (s *MemoryStore) DeleteByPrefix(_ context.Context, prefix string) (int64, error) {
	var deleted int64
	for _, key := range s.lru.Keys() {
		if strings.HasPrefix(key, prefix) && s.lru.Remove(key) {
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) Len() int {
	return s.lru.Len()
}
