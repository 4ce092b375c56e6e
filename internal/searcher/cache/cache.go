package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/post-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/config"
)

const KeyPrefix = "search:"

const defaultTTL = 300 * time.Second

// Searcher is the computation the cache fronts.
type Searcher interface {
	Plan(text string) *parser.QueryPlan
	Execute(ctx context.Context, q parser.Query) (*executor.SearchResult, error)
}

// Stats counts cache outcomes since the process started.
type Stats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	StoreErrors int64   `json:"store_errors"`
	HitRate     float64 `json:"hit_rate"`
}

// QueryCache is a read-through, write-through cache of search results.
// Store failures degrade to a miss or a skipped write and never fail a
// search.
type QueryCache struct {
	store    Store
	searcher Searcher
	ttl      time.Duration
	sink     MetricsSink
	group    singleflight.Group
	logger   *slog.Logger

	hits        atomic.Int64
	misses      atomic.Int64
	storeErrors atomic.Int64
}

// New returns a QueryCache over store. sink may be nil.
func New(store Store, searcher Searcher, cfg config.CacheConfig, sink MetricsSink) *QueryCache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if sink == nil {
		sink = noopSink{}
	}
	return &QueryCache{
		store:    store,
		searcher: searcher,
		ttl:      ttl,
		sink:     sink,
		logger:   slog.Default().With("component", "query-cache"),
	}
}

// BuildKey derives the cache key for a normalized query and its options.
func BuildKey(normalized string, q parser.Query) string {
	board := "all"
	if q.BoardID != nil {
		board = strconv.FormatInt(*q.BoardID, 10)
	}
	raw := fmt.Sprintf("%s|limit=%d|offset=%d|board=%s", normalized, q.Limit, q.Offset, board)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", KeyPrefix, hash)
}

// Key returns the cache key q would be stored under.
func (c *QueryCache) Key(q parser.Query) string {
	return BuildKey(c.searcher.Plan(q.Text).Normalized(), q)
}

// Search returns the result for q, from the store when present. The bool
// reports whether the result came from the cache.
func (c *QueryCache) Search(ctx context.Context, q parser.Query) (*executor.SearchResult, bool, error) {
	if err := q.Validate(); err != nil {
		return nil, false, err
	}
	plan := c.searcher.Plan(q.Text)
	key := BuildKey(plan.Normalized(), q)

	if result, ok := c.lookup(ctx, key); ok {
		c.hits.Add(1)
		c.sink.RecordCacheHit()
		result.Query = q.Text
		result.Terms = plan.Terms
		return result, true, nil
	}
	c.misses.Add(1)
	c.sink.RecordCacheMiss()

	val, err, shared := c.group.Do(key, func() (any, error) {
		start := time.Now()
		result, err := c.searcher.Execute(ctx, q)
		if err != nil {
			return nil, err
		}
		c.sink.RecordSearchTime(time.Since(start))
		c.write(ctx, key, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	result := val.(*executor.SearchResult)
	if shared {
		cp := *result
		cp.Query = q.Text
		cp.Terms = plan.Terms
		result = &cp
	}
	return result, false, nil
}

// Invalidate removes every cached search result.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.DeleteByPrefix(ctx, KeyPrefix)
	if err != nil {
		return deleted, fmt.Errorf("invalidating search cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() Stats {
	s := Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		StoreErrors: c.storeErrors.Load(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

func (c *QueryCache) lookup(ctx context.Context, key string) (*executor.SearchResult, bool) {
	data, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.storeErrors.Add(1)
		c.logger.Warn("cache get failed, treating as miss", "key", key, "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	return &result, true
}

func (c *QueryCache) write(ctx context.Context, key string, result *executor.SearchResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.SetWithExpiry(ctx, key, data, c.ttl); err != nil {
		c.storeErrors.Add(1)
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}
