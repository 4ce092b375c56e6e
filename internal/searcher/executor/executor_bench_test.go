package executor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/post-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/posts"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/config"
)

var benchTitles = []string{
	"Welcome to community",
	"Guide to writing posts",
	"Mobile app login problem",
	"Dark mode feature request",
	"Password reset guide",
}

func benchExecutor(b *testing.B, n int) *Executor {
	b.Helper()
	engine, err := indexer.NewEngine(config.IndexerConfig{}, nil)
	if err != nil {
		b.Fatal(err)
	}
	source := newMemorySource()
	for i := 0; i < n; i++ {
		p := posts.Post{
			ID:        int64(i + 1),
			Title:     benchTitles[i%len(benchTitles)],
			Content:   fmt.Sprintf("post number %d on the community board", i),
			BoardID:   int64(i%5 + 1),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		source.posts[p.ID] = p
		engine.AddPost(p)
	}
	return New(engine, source, nil)
}

func BenchmarkExecute(b *testing.B) {
	queries := []struct {
		name string
		q    parser.Query
	}{
		{"single_term", parser.NewQuery("community")},
		{"two_terms", parser.NewQuery("app login")},
		{"no_match", parser.NewQuery("nonexistent")},
		{"board_scoped", parser.NewQuery("guide").ForBoard(2)},
	}
	for _, size := range []int{1000, 10000} {
		ex := benchExecutor(b, size)
		for _, tt := range queries {
			b.Run(fmt.Sprintf("%s/posts_%d", tt.name, size), func(b *testing.B) {
				b.ReportAllocs()
				for i := 0; i < b.N; i++ {
					if _, err := ex.Execute(context.Background(), tt.q); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

func BenchmarkPlan(b *testing.B) {
	ex := benchExecutor(b, 0)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = ex.Plan("Guide to writing posts on the Mobile app")
	}
}
