package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/example/stockroom/internal/gateway"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes product changes to a topic. It satisfies
// gateway.ChangePublisher.
type Producer struct {
	writer messageWriter
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Producer{writer: writer}
}

// PublishChange writes c keyed by row ID so changes to one product stay
// ordered within a partition.
func (p *Producer) PublishChange(ctx context.Context, c gateway.Change) error {
	key := c.RowID
	if key == "" {
		key = c.Table
	}
	return p.Publish(ctx, key, c)
}

func (p *Producer) Publish(ctx context.Context, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
