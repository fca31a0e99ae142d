package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/finmate/finmate/internal/config"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher emits domain events
type Publisher interface {
	Publish(ctx context.Context, key string, message interface{}) error
	Close() error
}

// NewPublisher returns a Kafka publisher when the message queue is enabled
// and brokers are configured, otherwise a publisher that only logs.
func NewPublisher(cfg config.KafkaConfig, logger *zap.Logger) Publisher {
	if !cfg.EnableMessageQueue || len(cfg.Brokers) == 0 {
		return &NopPublisher{logger: logger}
	}
	return NewKafkaProducer(cfg.Brokers, cfg.Topic, logger)
}

// KafkaProducer writes JSON messages to a single topic
type KafkaProducer struct {
	writer *kafka.Writer
	logger *zap.Logger
	mu     sync.Mutex
	closed bool
}

// NewKafkaProducer creates a new Kafka producer
func NewKafkaProducer(brokers []string, topic string, logger *zap.Logger) *KafkaProducer {
	return &KafkaProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.CRC32Balancer{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 5 * time.Second,
			RequiredAcks: kafka.RequireOne,
			MaxAttempts:  3,
			Compression:  kafka.Snappy,
		},
		logger: logger,
	}
}

// Publish publishes a single message
func (p *KafkaProducer) Publish(ctx context.Context, key string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return fmt.Errorf("producer is closed")
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Close flushes and closes the writer
func (p *KafkaProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.writer.Close(); err != nil {
		p.logger.Error("Failed to close writer", zap.Error(err))
		return err
	}
	return nil
}

// NopPublisher logs events at debug level instead of sending them
type NopPublisher struct {
	logger *zap.Logger
}

// NewNopPublisher creates a NopPublisher
func NewNopPublisher(logger *zap.Logger) *NopPublisher {
	return &NopPublisher{logger: logger}
}

// Publish logs the event
func (p *NopPublisher) Publish(ctx context.Context, key string, message interface{}) error {
	p.logger.Debug("Event not published, message queue disabled", zap.String("key", key), zap.Any("message", message))
	return nil
}

// Close is a no-op
func (p *NopPublisher) Close() error {
	return nil
}
