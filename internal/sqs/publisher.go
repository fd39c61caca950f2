package sqs

import (
	"context"
	"fmt"

	"go-callback/internal/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/sirupsen/logrus"
)

// Entry is one message to send. ID must be unique within a PublishBatch call.
type Entry struct {
	ID         string
	Body       string
	Attributes map[string]string
}

type SentEntry struct {
	ID        string
	MessageID string
}

type FailedEntry struct {
	ID      string
	Code    string
	Message string
}

type PublishResult struct {
	Sent   []SentEntry
	Failed []FailedEntry
}

type Publisher struct {
	client   API
	queueURL string
	metrics  observability.MetricsCollector
	logger   *logrus.Logger
}

func NewPublisher(client API, queueURL string, metrics observability.MetricsCollector, logger *logrus.Logger) *Publisher {
	if metrics == nil {
		metrics = observability.NewInMemoryMetrics()
	}
	if logger == nil {
		logger = observability.GetLogger()
	}
	return &Publisher{
		client:   client,
		queueURL: queueURL,
		metrics:  metrics,
		logger:   logger,
	}
}

// PublishBatch sends entries in chunks of ten. Entries rejected by SQS are
// reported in the result; an error means a whole request failed.
func (p *Publisher) PublishBatch(ctx context.Context, entries []Entry) (*PublishResult, error) {
	result := &PublishResult{}

	for start := 0; start < len(entries); start += maxBatchEntries {
		end := min(start+maxBatchEntries, len(entries))
		chunk := entries[start:end]

		out, err := p.client.SendMessageBatch(ctx, &sqs.SendMessageBatchInput{
			QueueUrl: aws.String(p.queueURL),
			Entries:  toRequestEntries(chunk),
		})
		if err != nil {
			for range chunk {
				p.metrics.IncPublishFailed()
			}
			return result, fmt.Errorf("failed to send message batch to SQS: %w", err)
		}

		for _, s := range out.Successful {
			p.metrics.IncPublished()
			result.Sent = append(result.Sent, SentEntry{
				ID:        aws.ToString(s.Id),
				MessageID: aws.ToString(s.MessageId),
			})
		}
		for _, f := range out.Failed {
			p.metrics.IncPublishFailed()
			result.Failed = append(result.Failed, FailedEntry{
				ID:      aws.ToString(f.Id),
				Code:    aws.ToString(f.Code),
				Message: aws.ToString(f.Message),
			})
		}
	}

	p.logger.WithFields(logrus.Fields{
		"queue_url": p.queueURL,
		"sent":      len(result.Sent),
		"failed":    len(result.Failed),
	}).Info("Published message batch")

	return result, nil
}

func toRequestEntries(entries []Entry) []types.SendMessageBatchRequestEntry {
	out := make([]types.SendMessageBatchRequestEntry, 0, len(entries))
	for _, e := range entries {
		var attrs map[string]types.MessageAttributeValue
		if len(e.Attributes) > 0 {
			attrs = make(map[string]types.MessageAttributeValue, len(e.Attributes))
			for k, v := range e.Attributes {
				attrs[k] = types.MessageAttributeValue{
					DataType:    aws.String("String"),
					StringValue: aws.String(v),
				}
			}
		}
		out = append(out, types.SendMessageBatchRequestEntry{
			Id:                aws.String(e.ID),
			MessageBody:       aws.String(e.Body),
			MessageAttributes: attrs,
		})
	}
	return out
}
