package analytics

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/kafka"
)

const (
	defaultWindow = 1000
	topQueryLimit = 10
)

type AggregatedStats struct {
	TotalSearches     int64        `json:"total_searches"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	CacheHitRate      float64      `json:"cache_hit_rate"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	AvgSearchTimeMs   float64      `json:"avg_search_time_ms"`
	P50SearchTimeMs   float64      `json:"p50_search_time_ms"`
	P95SearchTimeMs   float64      `json:"p95_search_time_ms"`
	P99SearchTimeMs   float64      `json:"p99_search_time_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator keeps counters and a moving window of search times. It is a
// cache metrics sink (hits, misses, search time) and a Tracker (query
// popularity and zero-result queries).
type Aggregator struct {
	cacheHits     atomic.Int64
	cacheMisses   atomic.Int64
	totalSearches atomic.Int64
	zeroResults   atomic.Int64

	mu                sync.RWMutex
	window            []float64
	next              int
	filled            bool
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	startTime         time.Time

	logger *slog.Logger
}

// NewAggregator averages search time over the last window samples.
func NewAggregator(window int) *Aggregator {
	if window <= 0 {
		window = defaultWindow
	}
	return &Aggregator{
		window:            make([]float64, window),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

func (a *Aggregator) RecordCacheHit() {
	a.cacheHits.Add(1)
}

func (a *Aggregator) RecordCacheMiss() {
	a.cacheMisses.Add(1)
}

func (a *Aggregator) RecordSearchTime(d time.Duration) {
	a.recordMs(float64(d.Microseconds()) / 1000)
}

// Track counts a search against its normalized query text.
func (a *Aggregator) Track(event SearchEvent) {
	a.totalSearches.Add(1)
	key := normalizeQuery(event.Query)
	zero := event.Total == 0
	if zero {
		a.zeroResults.Add(1)
	}
	if key == "" {
		return
	}
	a.mu.Lock()
	a.queryCounts[key]++
	if zero {
		a.zeroResultQueries[key]++
	}
	a.mu.Unlock()
}

// Ingest applies an event received from another process: the cache outcome,
// the search time of misses, and the query itself.
func (a *Aggregator) Ingest(event SearchEvent) {
	if event.CacheHit {
		a.RecordCacheHit()
	} else {
		a.RecordCacheMiss()
		a.recordMs(event.LatencyMs)
	}
	a.Track(event)
}

// HandleEvent decodes analytics topic messages into the aggregator.
// Undecodable messages are logged and skipped.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[SearchEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event",
				"key", string(key),
				"error", err,
			)
			return nil
		}
		agg.Ingest(event)
		return nil
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	stats := AggregatedStats{
		TotalSearches:   a.totalSearches.Load(),
		CacheHits:       a.cacheHits.Load(),
		CacheMisses:     a.cacheMisses.Load(),
		ZeroResultCount: a.zeroResults.Load(),
	}
	if lookups := stats.CacheHits + stats.CacheMisses; lookups > 0 {
		stats.CacheHitRate = float64(stats.CacheHits) / float64(lookups)
	}

	a.mu.RLock()
	samples := a.samples()
	stats.TopQueries = topN(a.queryCounts, topQueryLimit)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, topQueryLimit)
	a.mu.RUnlock()

	if len(samples) > 0 {
		sort.Float64s(samples)
		var sum float64
		for _, v := range samples {
			sum += v
		}
		stats.AvgSearchTimeMs = sum / float64(len(samples))
		stats.P50SearchTimeMs = percentile(samples, 50)
		stats.P95SearchTimeMs = percentile(samples, 95)
		stats.P99SearchTimeMs = percentile(samples, 99)
	}
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func (a *Aggregator) recordMs(ms float64) {
	a.mu.Lock()
	a.window[a.next] = ms
	a.next = (a.next + 1) % len(a.window)
	if a.next == 0 {
		a.filled = true
	}
	a.mu.Unlock()
}

// samples copies the populated part of the window. Caller holds mu.
func (a *Aggregator) samples() []float64 {
	n := a.next
	if a.filled {
		n = len(a.window)
	}
	out := make([]float64, n)
	copy(out, a.window[:n])
	return out
}

func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

func percentile(sorted []float64, pct int) float64 {
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
