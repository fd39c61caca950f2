package kafka

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go-callback/internal/observability"

	kafka "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// BrokerConn is the part of *kafka.Conn used for health checks.
type BrokerConn interface {
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	Close() error
}

// DialFunc opens a connection to one broker.
type DialFunc func(ctx context.Context, address string) (BrokerConn, error)

func dialBroker(ctx context.Context, address string) (BrokerConn, error) {
	conn, err := kafka.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// KafkaClient checks broker reachability and drives reconnection.
type KafkaClient struct {
	brokers     []string
	topics      []string
	dial        DialFunc
	logger      *logrus.Logger
	maxRetries  int
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// NewKafkaClient returns a client that reads partition metadata for topics
// (all topics when empty) as its health probe.
func NewKafkaClient(brokers []string, maxRetries int, topics ...string) *KafkaClient {
	return &KafkaClient{
		brokers:     brokers,
		topics:      topics,
		dial:        dialBroker,
		logger:      observability.GetLogger(),
		maxRetries:  maxRetries,
		baseBackoff: 1 * time.Second,
		maxBackoff:  30 * time.Second,
	}
}

// HealthCheck succeeds as soon as one broker answers a metadata request.
func (c *KafkaClient) HealthCheck(ctx context.Context) error {
	if len(c.brokers) == 0 {
		return errors.New("no brokers configured")
	}

	var errs []error
	for _, broker := range c.brokers {
		err := c.probe(ctx, broker)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return errors.Join(errs...)
}

func (c *KafkaClient) probe(ctx context.Context, broker string) error {
	conn, err := c.dial(ctx, broker)
	if err != nil {
		return fmt.Errorf("failed to connect to broker %s: %w", broker, err)
	}
	defer conn.Close()

	if _, err := conn.ReadPartitions(c.topics...); err != nil {
		return fmt.Errorf("failed to read partitions from %s: %w", broker, err)
	}
	return nil
}

// HealthCheckLoop runs health checks periodically with reconnection logic.
// The consumer's reader and the producer's writer redial on their own, so
// onReconnect may be nil, in which case the loop only reports broker state.
func (c *KafkaClient) HealthCheckLoop(ctx context.Context, interval time.Duration, onReconnect func() error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Health check loop stopped")
			return
		case <-ticker.C:
			if err := c.HealthCheck(ctx); err != nil {
				c.logger.WithError(err).Warn("Health check failed, attempting reconnection")
				if err := c.reconnectWithBackoff(ctx, onReconnect); err != nil {
					c.logger.WithError(err).Error("Reconnection failed")
				}
			}
		}
	}
}

func (c *KafkaClient) reconnectWithBackoff(ctx context.Context, onReconnect func() error) error {
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		backoff := time.Duration(math.Min(
			float64(c.baseBackoff)*math.Pow(2, float64(attempt)),
			float64(c.maxBackoff),
		))

		c.logger.WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"backoff": backoff,
		}).Info("Attempting reconnection")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		if err := c.HealthCheck(ctx); err != nil {
			c.logger.WithError(err).Warn("Reconnection attempt failed")
			continue
		}

		if onReconnect != nil {
			if err := onReconnect(); err != nil {
				c.logger.WithError(err).Warn("Reconnect callback failed")
				continue
			}
		}

		c.logger.Info("Reconnection successful")
		return nil
	}

	return fmt.Errorf("failed to reconnect after %d attempts", c.maxRetries)
}
