// Package messaging publishes cart domain events.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rl1809/mall-cart/internal/port"
)

type KafkaConfig struct {
	Brokers      []string
	TopicPrefix  string
	MaxAttempts  int
	RetryBackoff time.Duration
	Async        bool
}

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	prefix string
	log    *slog.Logger
}

func NewKafkaPublisher(cfg KafkaConfig, log *slog.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            cfg.MaxAttempts,
		WriteBackoffMin:        cfg.RetryBackoff,
		WriteBackoffMax:        cfg.RetryBackoff * 10,
		Async:                  cfg.Async,
	}
	log.Info("kafka publisher created", slog.Any("brokers", cfg.Brokers))
	return newKafkaPublisher(writer, cfg.TopicPrefix, log)
}

func newKafkaPublisher(writer messageWriter, prefix string, log *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, prefix: prefix, log: log}
}

var _ port.EventPublisher = (*KafkaPublisher)(nil)

// Publish writes event as JSON. Messages are keyed by cart id so every event of
// one cart lands on the same partition.
func (p *KafkaPublisher) Publish(ctx context.Context, topic string, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Topic: p.prefix + topic,
		Key:   []byte(key),
		Value: data,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s: %w", msg.Topic, err)
	}

	p.log.Debug("event published", slog.String("topic", msg.Topic), slog.String("key", key))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher drops every event. It stands in when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, topic string, key string, event any) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }
