// Package posts defines the post record the search engine indexes and the
// read interface it uses to load posts from their system of record.
package posts

import (
	"context"
	"time"
)

// Post is a single board post. The search engine never owns posts; it only
// holds the copies returned by a Source.
type Post struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	BoardID   int64     `json:"board_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Text is the string the indexer tokenizes.
func (p Post) Text() string {
	return p.Title + " " + p.Content
}

// Source loads posts. LoadPostsByIDs returns exactly the existing posts
// among ids, in no particular order.
type Source interface {
	LoadAllPosts(ctx context.Context) ([]Post, error)
	LoadPostsByIDs(ctx context.Context, ids []int64) ([]Post, error)
}
