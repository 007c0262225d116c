package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/stockroom/internal/gateway"
	"github.com/example/stockroom/internal/infrastructure/feed"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

// scriptedReader hands out queued messages, then blocks until ctx ends.
type scriptedReader struct {
	queue []kafka.Message
}

func (r *scriptedReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.queue) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.queue[0]
	r.queue = r.queue[1:]
	return m, nil
}

func (r *scriptedReader) Close() error { return nil }

func TestProducer_PublishChange_KeysByRow(t *testing.T) {
	w := &recordingWriter{}
	p := &Producer{writer: w}

	require.NoError(t, p.PublishChange(context.Background(), gateway.Change{Table: gateway.ProductsTable, Op: gateway.OpUpdate, RowID: "p1"}))
	require.NoError(t, p.PublishChange(context.Background(), gateway.Change{Table: gateway.ProductsTable, Op: gateway.OpUpdate}))

	require.Len(t, w.messages, 2)
	assert.Equal(t, "p1", string(w.messages[0].Key))
	assert.Equal(t, gateway.ProductsTable, string(w.messages[1].Key))

	c, err := DecodeChange(w.messages[0].Value)
	require.NoError(t, err)
	assert.Equal(t, gateway.OpUpdate, c.Op)
	assert.Equal(t, "p1", c.RowID)
}

func TestProducer_PublishChange_WriterError(t *testing.T) {
	p := &Producer{writer: &recordingWriter{err: errors.New("broker down")}}

	err := p.PublishChange(context.Background(), gateway.Change{RowID: "p1"})

	assert.Error(t, err)
}

func TestDecodeChange_Invalid(t *testing.T) {
	_, err := DecodeChange([]byte("{"))
	assert.Error(t, err)

	c, err := DecodeChange([]byte(`{"op":"DELETE","row_id":"p2"}`))
	require.NoError(t, err)
	assert.Equal(t, gateway.ProductsTable, c.Table)
}

func TestConsumer_ForwardsToHub(t *testing.T) {
	hub := feed.NewHub()
	defer hub.Close()
	sub, err := hub.SubscribeProductChanges(context.Background())
	require.NoError(t, err)

	reader := &scriptedReader{queue: []kafka.Message{
		{Key: []byte("bad"), Value: []byte("not json")},
		{Key: []byte("p1"), Value: []byte(`{"table":"products","op":"INSERT","row_id":"p1"}`)},
	}}
	consumer := &Consumer{reader: reader}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Consume(ctx, Forward(hub)) }()

	select {
	case c := <-sub.Changes():
		assert.Equal(t, gateway.OpInsert, c.Op)
		assert.Equal(t, "p1", c.RowID)
	case <-time.After(time.Second):
		t.Fatal("change not forwarded")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestReaderConfig_StartOffset(t *testing.T) {
	brokers := []string{"localhost:9092"}

	shared := readerConfig(brokers, "product-changes", "stockroom-notifier", kafka.FirstOffset)
	tail := readerConfig(brokers, "product-changes", "stockroom-console-host-1", kafka.LastOffset)

	assert.Equal(t, kafka.FirstOffset, shared.StartOffset)
	assert.Equal(t, kafka.LastOffset, tail.StartOffset)
	assert.Equal(t, "stockroom-console-host-1", tail.GroupID)
	assert.Equal(t, "product-changes", tail.Topic)
	assert.Equal(t, brokers, tail.Brokers)
}

func TestNewTailConsumer_Close(t *testing.T) {
	c := NewTailConsumer([]string{"localhost:9092"}, "product-changes", "stockroom-console-host-1")

	assert.NoError(t, c.Close())
}
