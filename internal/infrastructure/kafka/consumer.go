package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/example/stockroom/internal/gateway"
	"github.com/segmentio/kafka-go"
)

type MessageHandler func(ctx context.Context, key, value []byte) error

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	reader messageReader
}

// NewConsumer reads from the group's committed offset, or from the start of
// the topic when the group is new.
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	return &Consumer{reader: kafka.NewReader(readerConfig(brokers, topic, groupID, kafka.FirstOffset))}
}

// NewTailConsumer starts a new group at the end of the topic, skipping the
// backlog.
func NewTailConsumer(brokers []string, topic, groupID string) *Consumer {
	return &Consumer{reader: kafka.NewReader(readerConfig(brokers, topic, groupID, kafka.LastOffset))}
}

func readerConfig(brokers []string, topic, groupID string, startOffset int64) kafka.ReaderConfig {
	return kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		StartOffset: startOffset,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
	}
}

func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Printf("[Kafka] Error reading message: %v", err)
				continue
			}

			if err := handler(ctx, msg.Key, msg.Value); err != nil {
				log.Printf("[Kafka] Error handling message %s: %v", msg.Key, err)
			}
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeChange parses a message value written by Producer.PublishChange.
func DecodeChange(value []byte) (gateway.Change, error) {
	var c gateway.Change
	if err := json.Unmarshal(value, &c); err != nil {
		return gateway.Change{}, fmt.Errorf("decode change: %w", err)
	}
	if c.Table == "" {
		c.Table = gateway.ProductsTable
	}
	return c, nil
}

// Forward returns a handler that republishes every decoded change to pub.
// Pointing it at the change hub makes the topic the console change feed.
func Forward(pub gateway.ChangePublisher) MessageHandler {
	return func(ctx context.Context, key, value []byte) error {
		c, err := DecodeChange(value)
		if err != nil {
			return err
		}
		return pub.PublishChange(ctx, c)
	}
}
