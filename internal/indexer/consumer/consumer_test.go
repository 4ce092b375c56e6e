package consumer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/post-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/posts"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/config"
)

func send(t *testing.T, engine *indexer.Engine, event PostEvent) {
	t.Helper()
	value, err := json.Marshal(event)
	require.NoError(t, err)
	require.NoError(t, HandleMessage(engine)(context.Background(), []byte("k"), value))
}

func newEngine(t *testing.T) *indexer.Engine {
	t.Helper()
	e, err := indexer.NewEngine(config.IndexerConfig{}, nil)
	require.NoError(t, err)
	return e
}

func TestHandleMessage_Lifecycle(t *testing.T) {
	engine := newEngine(t)

	send(t, engine, PostEvent{Type: EventPostCreated, Post: &posts.Post{ID: 4, Title: "Mobile app crash"}})
	assert.Contains(t, engine.Postings("crash"), int64(4))

	send(t, engine, PostEvent{Type: EventPostUpdated, Post: &posts.Post{ID: 4, Title: "Mobile app fixed"}})
	assert.Empty(t, engine.Postings("crash"))
	assert.Contains(t, engine.Postings("fixed"), int64(4))
	assert.Equal(t, map[int64]struct{}{4: {}}, engine.Postings("mobile"))

	send(t, engine, PostEvent{Type: EventPostDeleted, PostID: 4})
	assert.Empty(t, engine.Postings("mobile"))
}

func TestHandleMessage_IgnoresBadEvents(t *testing.T) {
	engine := newEngine(t)
	handle := HandleMessage(engine)
	ctx := context.Background()

	assert.NoError(t, handle(ctx, nil, []byte(`{not json`)))
	assert.NoError(t, handle(ctx, nil, []byte(`{"type":"post.created"}`)))
	assert.NoError(t, handle(ctx, nil, []byte(`{"type":"post.deleted"}`)))
	assert.NoError(t, handle(ctx, nil, []byte(`{"type":"post.archived","post_id":1}`)))

	assert.Zero(t, engine.Stats().IndexSize)
}

func TestHandleMessage_DocsIndexedFollowsLifecycle(t *testing.T) {
	engine := newEngine(t)

	send(t, engine, PostEvent{Type: EventPostCreated, Post: &posts.Post{ID: 9, Title: "Board rules"}})
	for _, title := range []string{"Board rules v2", "Board rules v3", "Board rules final"} {
		send(t, engine, PostEvent{Type: EventPostUpdated, Post: &posts.Post{ID: 9, Title: title}})
	}
	assert.Equal(t, 1, engine.Stats().DocsIndexed)

	send(t, engine, PostEvent{Type: EventPostDeleted, PostID: 9})
	assert.Zero(t, engine.Stats().DocsIndexed)
}

type recordingIndexer struct {
	calls []string
}

func (r *recordingIndexer) AddPost(p posts.Post)     { r.calls = append(r.calls, "add") }
func (r *recordingIndexer) ReplacePost(p posts.Post) { r.calls = append(r.calls, "replace") }
func (r *recordingIndexer) RemovePost(id int64)      { r.calls = append(r.calls, "remove") }

func TestHandleMessage_UpdateIsSingleReplace(t *testing.T) {
	rec := &recordingIndexer{}
	handle := HandleMessage(rec)
	ctx := context.Background()

	require.NoError(t, handle(ctx, nil, []byte(`{"type":"post.created","post":{"id":2,"title":"a"}}`)))
	require.NoError(t, handle(ctx, nil, []byte(`{"type":"post.updated","post":{"id":2,"title":"b"}}`)))
	require.NoError(t, handle(ctx, nil, []byte(`{"type":"post.deleted","post_id":2}`)))

	assert.Equal(t, []string{"add", "replace", "remove"}, rec.calls)
}
