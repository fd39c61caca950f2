package kafka

import (
	"context"
	"fmt"
	"math"
	"time"

	"go-callback/internal/observability"

	kafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Record is one message to publish.
type Record struct {
	Key     string
	Value   []byte
	Headers map[string]string
}

// ProducerClient defines the interface for Kafka producer operations
type ProducerClient interface {
	Publish(ctx context.Context, topic, key string, value []byte, headers map[string]string) error
	PublishBatch(ctx context.Context, topic string, records []Record) error
	Close() error
}

// MessageWriter is the part of *kafka.Writer the producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes synchronously and retries whole writes with exponential
// backoff capped at five seconds.
type Producer struct {
	writer      MessageWriter
	logger      *zap.Logger
	metrics     observability.MetricsCollector
	maxRetries  int
	baseBackoff time.Duration
}

type ProducerConfig struct {
	Brokers     []string
	Acks        int // -1 for all, 0 for none, 1 for leader
	Retries     int
	Idempotent  bool
	MaxRetries  int
	BaseBackoff time.Duration
	Metrics     observability.MetricsCollector
	Logger      *zap.Logger

	// Writer replaces the broker writer, mainly for tests.
	Writer MessageWriter
}

func NewProducer(cfg ProducerConfig) *Producer {
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewInMemoryMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.BaseBackoff == 0 {
		cfg.BaseBackoff = 100 * time.Millisecond
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	writer := cfg.Writer
	if writer == nil {
		w := &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequiredAcks(cfg.Acks),
			MaxAttempts:            cfg.Retries,
			WriteTimeout:           10 * time.Second,
			ReadTimeout:            10 * time.Second,
			AllowAutoTopicCreation: false,
			Async:                  false,
		}
		if cfg.Idempotent {
			w.RequiredAcks = kafka.RequireAll
			w.MaxAttempts = 10
		}
		writer = w
	}

	return &Producer{
		writer:      writer,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		maxRetries:  cfg.MaxRetries,
		baseBackoff: cfg.BaseBackoff,
	}
}

// Publish sends a single message.
func (p *Producer) Publish(ctx context.Context, topic, key string, value []byte, headers map[string]string) error {
	return p.PublishBatch(ctx, topic, []Record{{Key: key, Value: value, Headers: headers}})
}

// PublishBatch writes records in one request. Keys hash to partitions, so
// records sharing a key keep their relative order.
func (p *Producer) PublishBatch(ctx context.Context, topic string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	now := time.Now()
	msgs := make([]kafka.Message, 0, len(records))
	for _, r := range records {
		msgs = append(msgs, kafka.Message{
			Topic:   topic,
			Key:     []byte(r.Key),
			Value:   r.Value,
			Headers: toKafkaHeaders(r.Headers),
			Time:    now,
		})
	}

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Min(
				float64(p.baseBackoff)*math.Pow(2, float64(attempt-1)),
				float64(5*time.Second),
			))

			p.logger.Info("Retrying publish",
				zap.Int("attempt", attempt),
				zap.String("topic", topic),
				zap.Int("records", len(msgs)),
				zap.Duration("backoff", backoff),
			)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		err := p.writer.WriteMessages(ctx, msgs...)
		if err == nil {
			for range msgs {
				p.metrics.IncPublished()
			}
			p.logger.Debug("Published records",
				zap.String("topic", topic),
				zap.Int("records", len(msgs)),
				zap.Int("attempt", attempt+1),
			)
			return nil
		}

		lastErr = err
		p.logger.Warn("Failed to publish records",
			zap.String("topic", topic),
			zap.Int("records", len(msgs)),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}

	for range msgs {
		p.metrics.IncPublishFailed()
	}
	return fmt.Errorf("failed to publish to %s after %d attempts: %w", topic, p.maxRetries+1, lastErr)
}

// Close gracefully shuts down the producer
func (p *Producer) Close() error {
	p.logger.Info("Closing producer")
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close producer: %w", err)
	}
	return nil
}

func toKafkaHeaders(headers map[string]string) []kafka.Header {
	if len(headers) == 0 {
		return nil
	}
	out := make([]kafka.Header, 0, len(headers))
	for k, v := range headers {
		out = append(out, kafka.Header{Key: k, Value: []byte(v)})
	}
	return out
}
