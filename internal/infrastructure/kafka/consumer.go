package kafka

import (
	"context"
	"errors"
	"io"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/logger"
)

type MessageHandler func(ctx context.Context, key, value []byte) error

// Reader is the subset of *kafka.Reader the consumer needs
type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	reader Reader
	log    *zap.Logger
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB

		// A fresh instance group only needs events from now on
		StartOffset: kafka.LastOffset,
	})
	return NewConsumerWithReader(reader)
}

// NewConsumerWithReader wraps an existing reader
func NewConsumerWithReader(r Reader) *Consumer {
	return &Consumer{reader: r, log: logger.Named("kafka")}
}

// Consume reads until ctx is cancelled or the reader is closed. Read and
// handler failures are logged and skipped.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return err
			}
			c.log.Warn("error reading message", zap.Error(err))
			continue
		}

		if err := handler(ctx, msg.Key, msg.Value); err != nil {
			c.log.Warn("error handling message",
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
