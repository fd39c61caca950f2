package config

import (
	"errors"
	"fmt"
)

// Validate checks the settings the selected transport needs. Dispatcher
// values are not checked; zero values there are valid.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportSQS:
		return c.SQS.Validate()
	case TransportKafka:
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("brokers cannot be empty")
		}
		return c.Consumer.Validate()
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
}

func (c *SQSConfig) Validate() error {
	if c.QueueURL == "" {
		return errors.New("queueURL cannot be empty")
	}
	if c.MaxMessages < 1 || c.MaxMessages > 10 {
		return errors.New("maxMessages must be between 1 and 10")
	}
	if c.WaitTimeSeconds < 0 || c.WaitTimeSeconds > 20 {
		return errors.New("waitTimeSeconds must be between 0 and 20")
	}
	if c.VisibilityTimeout < 0 {
		return errors.New("visibilityTimeout cannot be negative")
	}
	if c.Pollers < 1 {
		return errors.New("pollers must be at least 1")
	}
	return nil
}

func (c *ConsumerConfig) Validate() error {
	if c.Topic == "" {
		return errors.New("topic cannot be empty")
	}
	if c.GroupID == "" {
		return errors.New("groupID cannot be empty")
	}
	if c.Workers < 1 {
		return errors.New("workers must be at least 1")
	}
	if c.BatchSize < 1 {
		return errors.New("batchSize must be at least 1")
	}
	if c.BatchWait <= 0 {
		return errors.New("batchWait must be greater than zero")
	}
	if c.RetryMax < 0 {
		return errors.New("retryMax cannot be negative")
	}
	if c.DLQTopic == "" {
		return errors.New("dlqTopic cannot be empty")
	}
	return nil
}
