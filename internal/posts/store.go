package posts

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

const (
	selectAllPosts = `SELECT id, title, content, board_id, created_at
		FROM posts
		WHERE deleted_at IS NULL
		ORDER BY id`
	selectPostsByIDs = `SELECT id, title, content, board_id, created_at
		FROM posts
		WHERE deleted_at IS NULL AND id = ANY($1)`
)

// Store reads posts from PostgreSQL.
type Store struct {
	db      *sql.DB
	timeout time.Duration
	logger  *slog.Logger
}

// NewStore returns a Store that bounds every query by timeout. A zero
// timeout leaves queries bounded only by the caller's context.
func NewStore(db *sql.DB, timeout time.Duration) *Store {
	return &Store{
		db:      db,
		timeout: timeout,
		logger:  slog.Default().With("component", "post-store"),
	}
}

func (s *Store) LoadAllPosts(ctx context.Context) ([]Post, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	result, err := s.query(ctx, selectAllPosts)
	if err != nil {
		return nil, fmt.Errorf("loading all posts: %w", err)
	}
	s.logger.Info("posts loaded", "count", len(result), "duration", time.Since(start))
	return result, nil
}

func (s *Store) LoadPostsByIDs(ctx context.Context, ids []int64) ([]Post, error) {
	if len(ids) == 0 {
		return []Post{}, nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := s.query(ctx, selectPostsByIDs, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("loading %d posts by id: %w", len(ids), err)
	}
	s.logger.Debug("posts loaded by id", "requested", len(ids), "found", len(result))
	return result, nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Post, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]Post, 0)
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.BoardID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning post row: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating post rows: %w", err)
	}
	return result, nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
