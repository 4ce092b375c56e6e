package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	closed    bool
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.msgs) > 0 {
		msg := f.msgs[0]
		f.msgs = f.msgs[1:]
		f.mu.Unlock()
		return msg, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeReader) commits() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.committed...)
}

func TestConsumer_CommitsOnlyHandledMessages(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{
		{Offset: 1, Value: []byte(`ok`)},
		{Offset: 2, Value: []byte(`fail`)},
		{Offset: 3, Value: []byte(`ok`)},
	}}
	c := NewConsumerWithReader(reader, "post-events", func(ctx context.Context, key, value []byte) error {
		if string(value) == "fail" {
			return errors.New("handler failed")
		}
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- c.Start(ctx) }()

	assert.Eventually(t, func() bool { return len(reader.commits()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()

	require.NoError(t, <-done)
	assert.Equal(t, []int64{1, 3}, reader.commits())
	assert.True(t, reader.closed)
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestProducer_PublishBatch(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, "search-analytics")

	err := p.PublishBatch(context.Background(), []Event{
		{Key: "app", Value: map[string]int{"total": 1}},
		{Key: "login", Value: map[string]int{"total": 0}},
	})

	require.NoError(t, err)
	require.Len(t, w.msgs, 2)
	assert.Equal(t, []byte("app"), w.msgs[0].Key)
	assert.JSONEq(t, `{"total":1}`, string(w.msgs[0].Value))
	assert.NoError(t, p.PublishBatch(context.Background(), nil))
}

func TestProducer_Errors(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, "search-analytics")

	err := p.Publish(context.Background(), Event{Key: "bad", Value: make(chan int)})
	assert.ErrorContains(t, err, "marshaling event")

	w.err = errors.New("leader not available")
	err = p.Publish(context.Background(), Event{Key: "app", Value: 1})
	assert.ErrorIs(t, err, w.err)
	assert.Empty(t, w.msgs)
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		ID int64 `json:"id"`
	}
	got, err := DecodeJSON[payload]([]byte(`{"id":42}`))
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.ID)

	_, err = DecodeJSON[payload]([]byte(`{`))
	assert.Error(t, err)
}
