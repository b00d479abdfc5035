package kafka

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

const contentType = "application/json"

// messageWriter is the part of *kafka.Writer the producer drives.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes outbox events with segmentio/kafka-go.
type Producer struct {
	topic  string
	writer messageWriter
}

type Option func(*kafka.Writer)

// WithBatchTimeout bounds how long a partial batch waits before flushing.
func WithBatchTimeout(d time.Duration) Option {
	return func(w *kafka.Writer) { w.BatchTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(w *kafka.Writer) { w.WriteTimeout = d }
}

func NewProducer(brokers []string, topic string, opts ...Option) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	for _, opt := range opts {
		opt(w)
	}
	return &Producer{topic: topic, writer: w}
}

// Publish blocks until the brokers acknowledge the message. Messages
// sharing a key (the market id) land on one partition.
func (p *Producer) Publish(ctx context.Context, key, value []byte) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:     key,
		Value:   value,
		Headers: []kafka.Header{{Key: "content-type", Value: []byte(contentType)}},
	})
	return errors.Wrapf(err, "kafka-go publish to %s", p.topic)
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
