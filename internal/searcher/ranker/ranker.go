package ranker

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/post-search/internal/posts"
)

// SortByRecency orders posts newest first. Posts with equal CreatedAt keep
// their relative input order.
func SortByRecency(results []posts.Post) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
}

// Paginate returns the window [offset, offset+limit) of results, clipped to
// its bounds. An offset at or past the end yields an empty slice.
func Paginate(results []posts.Post, limit, offset int) []posts.Post {
	if offset >= len(results) || limit <= 0 {
		return []posts.Post{}
	}
	end := offset + limit
	if end > len(results) || end < offset {
		end = len(results)
	}
	page := make([]posts.Post, end-offset)
	copy(page, results[offset:end])
	return page
}
