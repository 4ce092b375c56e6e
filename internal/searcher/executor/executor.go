package executor

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/post-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/posts"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/metrics"
)

type SearchResult struct {
	Total        int          `json:"total"`
	Results      []posts.Post `json:"results"`
	Query        string       `json:"query"`
	SearchTimeMs float64      `json:"search_time_ms"`
	Terms        []string     `json:"terms"`
}

// Index is the read side of the inverted index. Sequence reports the order
// in which a post was first indexed.
type Index interface {
	Postings(term string) map[int64]struct{}
	Sequence(id int64) (uint64, bool)
	Tokenizer() *tokenizer.Tokenizer
}

type Executor struct {
	index   Index
	source  posts.Source
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New returns an Executor that resolves matches against idx and hydrates
// them from source. m may be nil.
func New(idx Index, source posts.Source, m *metrics.Metrics) *Executor {
	return &Executor{
		index:   idx,
		source:  source,
		metrics: m,
		logger:  slog.Default().With("component", "query-executor"),
	}
}

// Plan tokenizes text with the same tokenizer used at index time.
func (e *Executor) Plan(text string) *parser.QueryPlan {
	return parser.Parse(text, e.index.Tokenizer())
}

// Execute returns the posts containing every term of q, newest first. Errors
// from the post source are returned as is.
func (e *Executor) Execute(ctx context.Context, q parser.Query) (*SearchResult, error) {
	start := time.Now()
	if err := q.Validate(); err != nil {
		return nil, err
	}
	plan := e.Plan(q.Text)
	result := &SearchResult{
		Results: []posts.Post{},
		Query:   q.Text,
		Terms:   plan.Terms,
	}
	if len(plan.Terms) == 0 {
		result.SearchTimeMs = elapsedMs(start)
		return result, nil
	}

	ids := e.intersect(plan.Terms)
	if len(ids) == 0 {
		result.SearchTimeMs = elapsedMs(start)
		e.observe(result)
		return result, nil
	}

	loaded, err := e.source.LoadPostsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	matched := filterBoard(loaded, q.BoardID)
	// Ties on CreatedAt keep index insertion order whatever order the source
	// returned rows in.
	e.sortByInsertion(matched)
	ranker.SortByRecency(matched)

	result.Total = len(matched)
	result.Results = ranker.Paginate(matched, q.Limit, q.Offset)
	result.SearchTimeMs = elapsedMs(start)
	e.observe(result)

	e.logger.Debug("query executed",
		"query", q.Text,
		"terms", plan.Terms,
		"candidates", len(ids),
		"total", result.Total,
		"returned", len(result.Results),
	)
	return result, nil
}

// sortByInsertion orders ps by index sequence. Posts the index no longer
// knows sort last, by ID.
func (e *Executor) sortByInsertion(ps []posts.Post) {
	type keyed struct {
		seq   uint64
		known bool
	}
	keys := make(map[int64]keyed, len(ps))
	for _, p := range ps {
		seq, ok := e.index.Sequence(p.ID)
		keys[p.ID] = keyed{seq: seq, known: ok}
	}
	sort.Slice(ps, func(i, j int) bool {
		a, b := keys[ps[i].ID], keys[ps[j].ID]
		if a.known != b.known {
			return a.known
		}
		if a.known && a.seq != b.seq {
			return a.seq < b.seq
		}
		return ps[i].ID < ps[j].ID
	})
}

// intersect walks the terms left to right and stops as soon as the running
// set is empty. The returned IDs are ascending.
func (e *Executor) intersect(terms []string) []int64 {
	candidates := e.index.Postings(terms[0])
	for _, term := range terms[1:] {
		if len(candidates) == 0 {
			break
		}
		postings := e.index.Postings(term)
		for id := range candidates {
			if _, ok := postings[id]; !ok {
				delete(candidates, id)
			}
		}
	}
	ids := make([]int64, 0, len(candidates))
	for id := range candidates {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (e *Executor) observe(result *SearchResult) {
	if e.metrics == nil {
		return
	}
	e.metrics.SearchResultsCount.Observe(float64(result.Total))
	if result.Total == 0 {
		e.metrics.SearchQueriesTotal.WithLabelValues("zero_result").Inc()
	}
}

func filterBoard(loaded []posts.Post, boardID *int64) []posts.Post {
	if boardID == nil {
		return loaded
	}
	kept := make([]posts.Post, 0, len(loaded))
	for _, p := range loaded {
		if p.BoardID == *boardID {
			kept = append(kept, p)
		}
	}
	return kept
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
