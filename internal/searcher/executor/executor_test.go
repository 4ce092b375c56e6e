package executor

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/post-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/posts"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/post-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/metrics"
)

type memorySource struct {
	posts map[int64]posts.Post
	err   error
	calls int
	asked [][]int64
}

func newMemorySource(ps ...posts.Post) *memorySource {
	s := &memorySource{posts: make(map[int64]posts.Post)}
	for _, p := range ps {
		s.posts[p.ID] = p
	}
	return s
}

func (s *memorySource) LoadAllPosts(ctx context.Context) ([]posts.Post, error) {
	out := make([]posts.Post, 0, len(s.posts))
	for _, p := range s.posts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, s.err
}

func (s *memorySource) LoadPostsByIDs(ctx context.Context, ids []int64) ([]posts.Post, error) {
	s.calls++
	s.asked = append(s.asked, ids)
	if s.err != nil {
		return nil, s.err
	}
	// reverse order so callers cannot rely on source ordering
	out := make([]posts.Post, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if p, ok := s.posts[ids[i]]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

var base = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

func communityPosts() []posts.Post {
	return []posts.Post{
		{ID: 1, Title: "Welcome to community", Content: "Hello everyone", BoardID: 1, CreatedAt: base},
		{ID: 2, Title: "Guide to writing posts", Content: "How to write good posts", BoardID: 1, CreatedAt: base.Add(time.Hour)},
		{ID: 3, Title: "Mobile app login problem", Content: "Cannot login to the app", BoardID: 3, CreatedAt: base.Add(2 * time.Hour)},
	}
}

func setup(t *testing.T, ps ...posts.Post) (*Executor, *indexer.Engine, *memorySource) {
	t.Helper()
	engine, err := indexer.NewEngine(config.IndexerConfig{}, nil)
	require.NoError(t, err)
	source := newMemorySource(ps...)
	_, err = engine.Build(context.Background(), source)
	require.NoError(t, err)
	return New(engine, source, nil), engine, source
}

func resultIDs(r *SearchResult) []int64 {
	out := make([]int64, len(r.Results))
	for i, p := range r.Results {
		out[i] = p.ID
	}
	return out
}

func TestExecute_CommunityScenario(t *testing.T) {
	exec, _, _ := setup(t, communityPosts()...)
	ctx := context.Background()

	tests := []struct {
		name  string
		query string
		want  []int64
		terms []string
	}{
		{"single term", "community", []int64{1}, []string{"community"}},
		{"multi term", "posts guide", []int64{2}, []string{"posts", "guide"}},
		{"case insensitive", "APP Login", []int64{3}, []string{"app", "login"}},
		{"no match", "nonexistent", []int64{}, []string{"nonexistent"}},
		{"one term missing", "community nonexistent", []int64{}, []string{"community", "nonexistent"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := exec.Execute(ctx, parser.NewQuery(tt.query))
			require.NoError(t, err)
			assert.Equal(t, tt.want, resultIDs(res))
			assert.Equal(t, len(tt.want), res.Total)
			assert.Equal(t, tt.query, res.Query)
			assert.Equal(t, tt.terms, res.Terms)
			assert.GreaterOrEqual(t, res.SearchTimeMs, 0.0)
		})
	}
}

func TestExecute_EmptyQuerySkipsSource(t *testing.T) {
	exec, _, source := setup(t, communityPosts()...)

	for _, q := range []string{"", "   ", "the to", "!!!"} {
		res, err := exec.Execute(context.Background(), parser.NewQuery(q))
		require.NoError(t, err)
		assert.Zero(t, res.Total)
		assert.Empty(t, res.Results)
		assert.Empty(t, res.Terms)
	}
	assert.Zero(t, source.calls)
}

func TestExecute_ConjunctiveMatchesEveryTerm(t *testing.T) {
	ps := []posts.Post{
		{ID: 1, Title: "red apple", CreatedAt: base},
		{ID: 2, Title: "green apple pie", CreatedAt: base},
		{ID: 3, Title: "red apple pie", CreatedAt: base},
		{ID: 4, Title: "red cherry pie", CreatedAt: base},
	}
	exec, engine, source := setup(t, ps...)

	res, err := exec.Execute(context.Background(), parser.NewQuery("pie red apple"))
	require.NoError(t, err)

	assert.Equal(t, []int64{3}, resultIDs(res))
	for _, p := range res.Results {
		for _, term := range res.Terms {
			assert.Contains(t, engine.Postings(term), p.ID)
		}
	}
	assert.Equal(t, [][]int64{{3}}, source.asked)
}

func TestExecute_RecencyWithStableTies(t *testing.T) {
	ps := []posts.Post{
		{ID: 10, Title: "release notes", CreatedAt: base},
		{ID: 11, Title: "release schedule", CreatedAt: base.Add(time.Hour)},
		{ID: 12, Title: "release party", CreatedAt: base},
		{ID: 13, Title: "release plan", CreatedAt: base},
	}
	exec, _, _ := setup(t, ps...)

	res, err := exec.Execute(context.Background(), parser.NewQuery("release"))
	require.NoError(t, err)

	assert.Equal(t, []int64{11, 10, 12, 13}, resultIDs(res))
}

func TestExecute_TiesFollowInsertionOrder(t *testing.T) {
	exec, engine, source := setup(t)
	for _, p := range []posts.Post{
		{ID: 30, Title: "meetup recap", CreatedAt: base},
		{ID: 10, Title: "meetup photos", CreatedAt: base},
		{ID: 20, Title: "meetup venue", CreatedAt: base},
		{ID: 5, Title: "meetup agenda", CreatedAt: base.Add(time.Hour)},
	} {
		source.posts[p.ID] = p
		engine.AddPost(p)
	}
	engine.ReplacePost(posts.Post{ID: 30, Title: "meetup recap edited", CreatedAt: base})

	res, err := exec.Execute(context.Background(), parser.NewQuery("meetup"))
	require.NoError(t, err)

	assert.Equal(t, []int64{5, 30, 10, 20}, resultIDs(res))
}

func TestExecute_Pagination(t *testing.T) {
	ps := make([]posts.Post, 0, 7)
	for i := 1; i <= 7; i++ {
		ps = append(ps, posts.Post{ID: int64(i), Title: "weekly update", CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}
	exec, _, _ := setup(t, ps...)
	ctx := context.Background()

	full, err := exec.Execute(ctx, parser.Query{Text: "weekly", Limit: 100})
	require.NoError(t, err)
	require.Equal(t, 7, full.Total)

	var joined []int64
	for offset := 0; offset < full.Total; offset += 3 {
		page, err := exec.Execute(ctx, parser.Query{Text: "weekly", Limit: 3, Offset: offset})
		require.NoError(t, err)
		assert.Equal(t, 7, page.Total)
		assert.LessOrEqual(t, len(page.Results), 3)
		joined = append(joined, resultIDs(page)...)
	}
	assert.Equal(t, resultIDs(full), joined)

	past, err := exec.Execute(ctx, parser.Query{Text: "weekly", Limit: 3, Offset: 50})
	require.NoError(t, err)
	assert.Equal(t, 7, past.Total)
	assert.Empty(t, past.Results)
}

func TestExecute_BoardFilter(t *testing.T) {
	exec, _, _ := setup(t, communityPosts()...)

	q := parser.NewQuery("posts").ForBoard(3)
	res, err := exec.Execute(context.Background(), q)
	require.NoError(t, err)
	assert.Zero(t, res.Total)

	q = parser.NewQuery("login").ForBoard(3)
	res, err = exec.Execute(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, resultIDs(res))
}

func TestExecute_SourceErrorPropagates(t *testing.T) {
	exec, _, source := setup(t, communityPosts()...)
	dbErr := errors.New("connection reset")
	source.err = dbErr

	res, err := exec.Execute(context.Background(), parser.NewQuery("community"))

	assert.Nil(t, res)
	assert.Same(t, dbErr, err)
}

func TestExecute_InvalidQuery(t *testing.T) {
	exec, _, source := setup(t, communityPosts()...)

	_, err := exec.Execute(context.Background(), parser.Query{Text: "community", Limit: -1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = exec.Execute(context.Background(), parser.Query{Text: "community", Limit: 10, Offset: -1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Zero(t, source.calls)
}

func TestExecute_RemovedPostNotReturned(t *testing.T) {
	exec, engine, _ := setup(t, communityPosts()...)
	engine.RemovePost(1)

	res, err := exec.Execute(context.Background(), parser.NewQuery("community"))
	require.NoError(t, err)
	assert.Zero(t, res.Total)
}

func TestExecute_Metrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	engine, err := indexer.NewEngine(config.IndexerConfig{}, nil)
	require.NoError(t, err)
	source := newMemorySource(communityPosts()...)
	_, err = engine.Build(context.Background(), source)
	require.NoError(t, err)
	exec := New(engine, source, m)

	_, err = exec.Execute(context.Background(), parser.NewQuery("community"))
	require.NoError(t, err)
	_, err = exec.Execute(context.Background(), parser.NewQuery("nonexistent"))
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("zero_result")))
}
