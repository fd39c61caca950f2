package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go-callback/internal/dispatch"
	"go-callback/internal/observability"
	"go-callback/pkg/models"

	kafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerClient defines the interface for Kafka consumer operations
type ConsumerClient interface {
	Start(ctx context.Context, handler dispatch.BatchHandlerFunc) error
	Close() error
}

// Consumer groups fetched messages into batches and hands each batch to
// the dispatcher. Messages a batch did not handle are moved to a retry topic
// or the DLQ before the batch offsets are committed.
type Consumer struct {
	reader           MessageReader
	producer         ProducerClient
	logger           *zap.Logger
	metrics          observability.MetricsCollector
	workers          int
	batchSize        int
	batchWait        time.Duration
	errorBackoff     time.Duration
	retryMax         int
	retryTopicPrefix string
	dlqTopic         string
}

type ConsumerConfig struct {
	Brokers          []string
	Topic            string
	GroupID          string
	Workers          int
	BatchSize        int
	BatchWait        time.Duration
	ErrorBackoff     time.Duration
	RetryMax         int
	FetchMinBytes    int
	FetchMaxBytes    int
	RetryTopicPrefix string
	DLQTopic         string
	Metrics          observability.MetricsCollector
	Logger           *zap.Logger

	// Reader replaces the group reader, mainly for tests.
	Reader MessageReader
}

func NewConsumer(cfg ConsumerConfig, producer ProducerClient) *Consumer {
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewInMemoryMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.BatchWait <= 0 {
		cfg.BatchWait = time.Second
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Second
	}

	reader := cfg.Reader
	if reader == nil {
		rc := kafka.ReaderConfig{
			Brokers:        cfg.Brokers,
			GroupID:        cfg.GroupID,
			MinBytes:       cfg.FetchMinBytes,
			MaxBytes:       cfg.FetchMaxBytes,
			CommitInterval: 0, // synchronous commits
			StartOffset:    kafka.FirstOffset,
		}
		if cfg.GroupID != "" {
			rc.GroupTopics = consumedTopics(cfg.Topic, cfg.RetryTopicPrefix, cfg.RetryMax)
		} else {
			rc.Topic = cfg.Topic
		}
		reader = kafka.NewReader(rc)
	}

	return &Consumer{
		reader:           reader,
		producer:         producer,
		logger:           cfg.Logger,
		metrics:          cfg.Metrics,
		workers:          cfg.Workers,
		batchSize:        cfg.BatchSize,
		batchWait:        cfg.BatchWait,
		errorBackoff:     cfg.ErrorBackoff,
		retryMax:         cfg.RetryMax,
		retryTopicPrefix: cfg.RetryTopicPrefix,
		dlqTopic:         cfg.DLQTopic,
	}
}

// consumedTopics is the main topic followed by every retry topic.
func consumedTopics(topic, retryPrefix string, retryMax int) []string {
	topics := []string{topic}
	if retryPrefix == "" {
		return topics
	}
	for i := 1; i <= retryMax; i++ {
		topics = append(topics, retryTopic(retryPrefix, i))
	}
	return topics
}

func retryTopic(prefix string, attempt int) string {
	return fmt.Sprintf("%s-%d", prefix, attempt)
}

// Start consumes until ctx is cancelled. One fetcher builds batches and
// Workers goroutines dispatch them.
func (c *Consumer) Start(ctx context.Context, handler dispatch.BatchHandlerFunc) error {
	c.logger.Info("Starting consumer",
		zap.Int("workers", c.workers),
		zap.Int("batch_size", c.batchSize),
		zap.Duration("batch_wait", c.batchWait),
	)

	batches := make(chan []kafka.Message, c.workers)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(batches)
		return c.fetcher(gctx, batches)
	})

	for i := 0; i < c.workers; i++ {
		id := i
		g.Go(func() error {
			c.worker(gctx, id, batches, handler)
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (c *Consumer) fetcher(ctx context.Context, out chan<- []kafka.Message) error {
	for {
		batch, err := c.nextBatch(ctx)
		if len(batch) > 0 {
			select {
			case out <- batch:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Fetcher stopping due to context cancellation")
				return ctx.Err()
			}
			c.logger.Error("Failed to fetch message, backing off",
				zap.Error(err),
				zap.Duration("backoff", c.errorBackoff),
			)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.errorBackoff):
			}
		}
	}
}

// nextBatch blocks for the first message, then collects more until the
// batch is full or BatchWait has passed.
func (c *Consumer) nextBatch(ctx context.Context) ([]kafka.Message, error) {
	first, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	batch := []kafka.Message{first}

	waitCtx, cancel := context.WithTimeout(ctx, c.batchWait)
	defer cancel()

	for len(batch) < c.batchSize {
		msg, err := c.reader.FetchMessage(waitCtx)
		if err != nil {
			if ctx.Err() != nil {
				// Uncommitted, so the group redelivers them.
				return nil, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				break
			}
			return batch, err
		}
		batch = append(batch, msg)
	}
	return batch, nil
}

func (c *Consumer) worker(ctx context.Context, id int, batches <-chan []kafka.Message, handler dispatch.BatchHandlerFunc) {
	c.logger.Info("Worker started", zap.Int("worker_id", id))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Worker stopping due to context cancellation", zap.Int("worker_id", id))
			return
		case batch, ok := <-batches:
			if !ok {
				c.logger.Info("Worker stopping - channel closed", zap.Int("worker_id", id))
				return
			}
			c.processBatch(ctx, batch, handler, id)
		}
	}
}

// processBatch dispatches one batch. On abort every unhandled message is
// routed to a retry topic or the DLQ, after which the whole batch is
// committed. A batch interrupted by shutdown is left uncommitted.
func (c *Consumer) processBatch(ctx context.Context, msgs []kafka.Message, handler dispatch.BatchHandlerFunc, workerID int) {
	logger := c.logger.With(
		zap.String("topic", msgs[0].Topic),
		zap.Int("partition", msgs[0].Partition),
		zap.Int64("first_offset", msgs[0].Offset),
		zap.Int("batch_size", len(msgs)),
		zap.Int("worker_id", workerID),
	)

	batch := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		batch = append(batch, toMessage(m))
	}

	report, err := handler(ctx, batch)
	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("Batch interrupted by shutdown, leaving it uncommitted", zap.Error(err))
			return
		}

		handled, runID := 0, ""
		if report != nil {
			handled, runID = report.Handled, report.RunID
		}
		logger.Error("Batch aborted",
			zap.String("batch_run_id", runID),
			zap.Int("handled", handled),
			zap.Error(err),
		)

		for i := handled; i < len(msgs); i++ {
			c.route(ctx, msgs[i], runID, err)
		}
	}

	c.commit(logger, msgs)
}

// commit is detached from the run context so a finished batch is still
// committed during shutdown.
func (c *Consumer) commit(logger *zap.Logger, msgs []kafka.Message) {
	if err := c.reader.CommitMessages(context.Background(), msgs...); err != nil {
		logger.Error("Failed to commit batch", zap.Error(err))
	}
}

// route sends an unhandled message to the next retry topic, or to the DLQ
// once RetryMax attempts are used up.
func (c *Consumer) route(ctx context.Context, msg kafka.Message, runID string, failureErr error) {
	headers := headerMap(msg.Headers)
	if _, ok := headers[models.HeaderOriginalTopic]; !ok {
		headers[models.HeaderOriginalTopic] = msg.Topic
	}
	if runID != "" {
		headers[models.HeaderBatchRunID] = runID
	}
	headers[models.HeaderFailureReason] = failureErr.Error()

	retryCount := getRetryCount(headers)
	if retryCount < c.retryMax && c.retryTopicPrefix != "" {
		c.sendToRetry(ctx, msg, headers, retryCount+1)
		return
	}
	c.sendToDLQ(ctx, msg, headers)
}

func (c *Consumer) sendToRetry(ctx context.Context, msg kafka.Message, headers map[string]string, retryCount int) {
	c.metrics.IncRetried()

	topic := retryTopic(c.retryTopicPrefix, retryCount)
	headers[models.HeaderRetryCount] = strconv.Itoa(retryCount)
	headers[models.HeaderRetryAttempt] = strconv.Itoa(retryCount)

	if err := c.producer.Publish(ctx, topic, string(msg.Key), msg.Value, headers); err != nil {
		c.logger.Error("Failed to send message to retry topic",
			zap.String("topic", topic),
			zap.Int("retry_count", retryCount),
			zap.Error(err),
		)
		return
	}
	c.logger.Warn("Message sent to retry topic",
		zap.String("topic", topic),
		zap.Int("retry_count", retryCount),
	)
}

func (c *Consumer) sendToDLQ(ctx context.Context, msg kafka.Message, headers map[string]string) {
	c.metrics.IncSentToDLQ()

	headers[models.HeaderProcessedAt] = time.Now().Format(time.RFC3339)

	if err := c.producer.Publish(ctx, c.dlqTopic, string(msg.Key), msg.Value, headers); err != nil {
		c.logger.Error("Failed to send message to DLQ",
			zap.String("topic", c.dlqTopic),
			zap.Error(err),
		)
		return
	}
	c.logger.Warn("Message sent to DLQ", zap.String("topic", c.dlqTopic))
}

// toMessage maps headers to attributes. The message-id header wins as ID,
// otherwise the record position is used.
func toMessage(m kafka.Message) models.Message {
	attrs := headerMap(m.Headers)

	id, ok := attrs[models.HeaderMessageID]
	if !ok {
		id = fmt.Sprintf("%s/%d/%d", m.Topic, m.Partition, m.Offset)
	}

	return models.Message{
		ID:         id,
		Body:       string(m.Value),
		Attributes: attrs,
		Timestamp:  m.Time,
	}
}

func headerMap(headers []kafka.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for _, h := range headers {
		out[h.Key] = string(h.Value)
	}
	return out
}

// getRetryCount extracts retry count from message headers
func getRetryCount(headers map[string]string) int {
	if countStr, ok := headers[models.HeaderRetryCount]; ok {
		if count, err := strconv.Atoi(countStr); err == nil {
			return count
		}
	}
	return 0
}

// Close gracefully shuts down the consumer
func (c *Consumer) Close() error {
	c.logger.Info("Closing consumer")
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("failed to close consumer: %w", err)
	}
	return nil
}
