// Package indexer owns the in-memory inverted index of board posts: it
// builds the index from the post store, applies incremental inserts and
// removals, and compacts posting lists.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/post-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/posts"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/resilience"
)

// Engine holds one tokenizer and one inverted index. Callers construct one
// Engine per process (or per test) and share it with the query executor.
type Engine struct {
	mu       sync.RWMutex
	memIndex *index.MemoryIndex
	// building and pending are guarded by mu. While a Build is loading,
	// writes are recorded in pending and replayed onto the new index.
	building bool
	pending  []func(*index.MemoryIndex) int
	buildMu  sync.Mutex

	tokenizer *tokenizer.Tokenizer
	cfg       config.IndexerConfig
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewEngine creates an empty Engine. m may be nil. Without tokenizer
// overrides in cfg the Engine shares tokenizer.Default.
func NewEngine(cfg config.IndexerConfig, m *metrics.Metrics) (*Engine, error) {
	tok, err := newTokenizer(cfg)
	if err != nil {
		return nil, err
	}
	return &Engine{
		memIndex:  index.NewMemoryIndex(),
		tokenizer: tok,
		cfg:       cfg,
		metrics:   m,
		logger:    slog.Default().With("component", "indexer"),
	}, nil
}

func newTokenizer(cfg config.IndexerConfig) (*tokenizer.Tokenizer, error) {
	if cfg.StopWords == nil && cfg.MinTermLength <= 0 && len(cfg.Scripts) == 0 {
		return tokenizer.Default(), nil
	}
	tokCfg := tokenizer.Config{
		StopWords:     cfg.StopWords,
		MinTermLength: cfg.MinTermLength,
	}
	if len(cfg.Scripts) > 0 {
		scripts, err := tokenizer.ScriptsByName(cfg.Scripts)
		if err != nil {
			return nil, fmt.Errorf("configuring tokenizer: %w", err)
		}
		tokCfg.Scripts = scripts
	}
	return tokenizer.New(tokCfg), nil
}

// Tokenizer returns the tokenizer used for both documents and queries.
func (e *Engine) Tokenizer() *tokenizer.Tokenizer {
	return e.tokenizer
}

// AddPost tokenizes the post's title and content and appends its ID to
// the posting list of every term. Calling it twice for the same post leaves
// duplicate postings until Optimize runs.
func (e *Engine) AddPost(p posts.Post) {
	terms := e.tokenizer.ExtractWords(p.Text())
	e.apply(func(idx *index.MemoryIndex) int {
		idx.AddDocument(p.ID, terms)
		return len(terms)
	})
	if e.metrics != nil {
		e.metrics.DocsIndexedTotal.Inc()
	}
	e.logger.Debug("post indexed",
		"post_id", p.ID,
		"term_count", len(terms),
	)
}

// RemovePost drops every posting for id.
func (e *Engine) RemovePost(id int64) {
	removed := e.apply(func(idx *index.MemoryIndex) int { return idx.Remove(id) })
	if e.metrics != nil {
		e.metrics.DocsRemovedTotal.Inc()
	}
	e.logger.Debug("post removed from index", "post_id", id, "postings_removed", removed)
}

// ReplacePost re-indexes an edited post. Queries see either the old terms
// or the new ones, never a post that is missing from both.
func (e *Engine) ReplacePost(p posts.Post) {
	terms := e.tokenizer.ExtractWords(p.Text())
	removed := e.apply(func(idx *index.MemoryIndex) int { return idx.Replace(p.ID, terms) })
	if e.metrics != nil {
		e.metrics.DocsIndexedTotal.Inc()
	}
	e.logger.Debug("post re-indexed",
		"post_id", p.ID,
		"term_count", len(terms),
		"postings_removed", removed,
	)
}

// Sequence reports the order in which id was first indexed.
func (e *Engine) Sequence(id int64) (uint64, bool) {
	return e.current().Sequence(id)
}

// Postings returns the set of post IDs indexed under term.
func (e *Engine) Postings(term string) map[int64]struct{} {
	return e.current().Postings(term)
}

// Optimize deduplicates every posting list.
func (e *Engine) Optimize() int {
	start := time.Now()
	removed := e.current().Optimize()
	stats := e.Stats()
	if e.metrics != nil {
		e.metrics.IndexOptimizeTotal.Inc()
	}
	e.logger.Info("index optimized",
		"duplicates_removed", removed,
		"terms", stats.IndexSize,
		"postings", stats.TotalPostings,
		"duration", time.Since(start),
	)
	return removed
}

// Snapshot returns a term-sorted copy of every posting list.
func (e *Engine) Snapshot() []index.TermEntry {
	return e.current().Snapshot()
}

// Stats reports the current shape of the index and refreshes the index
// gauges.
func (e *Engine) Stats() index.Stats {
	stats := e.current().Stats()
	if e.metrics != nil {
		e.metrics.IndexTerms.Set(float64(stats.IndexSize))
		e.metrics.IndexPostings.Set(float64(stats.TotalPostings))
	}
	return stats
}

// Build loads every post from source into a fresh index and swaps it in
// once loading succeeds. The previous index keeps serving queries until
// then, so a failed rebuild leaves search untouched. Posts added or removed
// while the load runs are replayed onto the fresh index before the swap.
func (e *Engine) Build(ctx context.Context, source posts.Source) (int, error) {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	start := time.Now()
	e.mu.Lock()
	e.building = true
	e.pending = nil
	e.mu.Unlock()
	if e.cfg.BuildTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.BuildTimeout)
		defer cancel()
	}

	all, err := resilience.Do(ctx, "load-all-posts", resilience.RetryConfig{}, source.LoadAllPosts)
	if err != nil {
		e.mu.Lock()
		e.building = false
		e.pending = nil
		e.mu.Unlock()
		return 0, fmt.Errorf("building search index: %w", err)
	}

	fresh := index.NewMemoryIndex()
	for _, p := range all {
		fresh.AddDocument(p.ID, e.tokenizer.ExtractWords(p.Text()))
	}

	e.mu.Lock()
	replayed := len(e.pending)
	for _, op := range e.pending {
		op(fresh)
	}
	e.memIndex = fresh
	e.building = false
	e.pending = nil
	e.mu.Unlock()

	stats := e.Stats()
	if e.metrics != nil {
		e.metrics.DocsIndexedTotal.Add(float64(len(all)))
	}
	e.logger.Info("search index built",
		"posts", len(all),
		"replayed", replayed,
		"terms", stats.IndexSize,
		"postings", stats.TotalPostings,
		"duration", time.Since(start),
	)
	return len(all), nil
}

// StartOptimizeLoop optimizes the index every OptimizeInterval until ctx is
// cancelled, with a final pass on shutdown.
func (e *Engine) StartOptimizeLoop(ctx context.Context) {
	if e.cfg.OptimizeInterval <= 0 {
		return
	}
	ticker := time.NewTicker(e.cfg.OptimizeInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("optimize loop stopping, performing final optimize")
				e.Optimize()
				return
			case <-ticker.C:
				if e.current().DocCount() > 0 {
					e.Optimize()
				}
			}
		}
	}()
}

// apply runs op against the live index and records it for replay when a
// Build is in progress. op must not write to caller state; it reports
// through its return value.
func (e *Engine) apply(op func(*index.MemoryIndex) int) int {
	e.mu.Lock()
	idx := e.memIndex
	if e.building {
		e.pending = append(e.pending, op)
	}
	e.mu.Unlock()
	return op(idx)
}

func (e *Engine) current() *index.MemoryIndex {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.memIndex
}
