// Package consumer applies post lifecycle events from Kafka to the search
// index.
package consumer

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/post-search/internal/posts"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/kafka"
)

const (
	EventPostCreated = "post.created"
	EventPostUpdated = "post.updated"
	EventPostDeleted = "post.deleted"
)

// PostEvent is published by the board service whenever a post changes.
// Post is set for created and updated events; PostID alone identifies a
// deleted post.
type PostEvent struct {
	Type   string      `json:"type"`
	Post   *posts.Post `json:"post,omitempty"`
	PostID int64       `json:"post_id,omitempty"`
}

// Indexer is the write side of the search index.
type Indexer interface {
	AddPost(p posts.Post)
	ReplacePost(p posts.Post)
	RemovePost(id int64)
}

// IndexConsumer wraps a Kafka consumer to drive incremental indexing.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

// HandleMessage returns a MessageHandler that applies each post event to
// idx. Malformed and unknown events are logged and committed so they do
// not block the partition.
func HandleMessage(idx Indexer) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[PostEvent](value)
		if err != nil {
			logger.Error("failed to decode post event",
				"error", err,
				"key", string(key),
			)
			return nil
		}

		switch event.Type {
		case EventPostCreated, EventPostUpdated:
			if event.Post == nil || event.Post.ID == 0 {
				logger.Warn("post event without post", "type", event.Type, "key", string(key))
				return nil
			}
			if event.Type == EventPostUpdated {
				idx.ReplacePost(*event.Post)
			} else {
				idx.AddPost(*event.Post)
			}
			logger.Debug("post event applied", "type", event.Type, "post_id", event.Post.ID)
		case EventPostDeleted:
			id := event.PostID
			if id == 0 && event.Post != nil {
				id = event.Post.ID
			}
			if id == 0 {
				logger.Warn("delete event without post id", "key", string(key))
				return nil
			}
			idx.RemovePost(id)
			logger.Debug("post event applied", "type", event.Type, "post_id", id)
		default:
			logger.Warn("unknown post event type", "type", event.Type, "key", string(key))
		}
		return nil
	}
}
