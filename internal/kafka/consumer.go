package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"smokesignal/internal/logger"
)

// Consumer is an ordered, blocking-pull source of raw payloads from one
// Kafka topic. Offset commits are handled here; the engine only consumes
// what it is handed, in order.
type Consumer struct {
	reader *kafka.Reader
	log    zerolog.Logger
}

// NewConsumer creates a consumer for the given topic and group.
func NewConsumer(brokers []string, topic, groupID string) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if topic == "" {
		return nil, errors.New("topic is required")
	}
	if groupID == "" {
		return nil, errors.New("group id is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 1 << 20, // 1MB
	})

	return &Consumer{
		reader: reader,
		log:    logger.WithComponent("kafka_consumer"),
	}, nil
}

// Fetch blocks until the next payload is available, the context is
// cancelled, or the reader fails. The message offset is committed as part
// of the read.
func (c *Consumer) Fetch(ctx context.Context) ([]byte, error) {
	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("kafka read: %w", err)
	}

	c.log.Debug().
		Str("topic", msg.Topic).
		Int("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Msg("message received")

	return msg.Value, nil
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
