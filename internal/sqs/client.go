package sqs

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go-callback/pkg/models"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// maxBatchEntries is the SQS limit for receive, send and delete batches.
const maxBatchEntries = 10

// API is the subset of *sqs.Client used by the poller and publisher
type API interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessageBatch(ctx context.Context, params *sqs.DeleteMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error)
	SendMessageBatch(ctx context.Context, params *sqs.SendMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// NewClient builds an SQS client from the default AWS credential chain.
func NewClient(ctx context.Context) (*sqs.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return sqs.NewFromConfig(cfg), nil
}

// HealthCheck verifies the queue is reachable
func HealthCheck(ctx context.Context, client API, queueURL string) error {
	_, err := client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(queueURL),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameApproximateNumberOfMessages},
	})
	if err != nil {
		return fmt.Errorf("failed to read queue attributes: %w", err)
	}
	return nil
}

// FromSQSMessages converts received SQS messages, keeping their order.
func FromSQSMessages(msgs []types.Message) []models.Message {
	batch := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		var attrs map[string]string
		if len(m.MessageAttributes) > 0 {
			attrs = make(map[string]string, len(m.MessageAttributes))
			for k, v := range m.MessageAttributes {
				if v.StringValue != nil {
					attrs[k] = *v.StringValue
				}
			}
		}
		batch = append(batch, models.Message{
			ID:         aws.ToString(m.MessageId),
			Body:       aws.ToString(m.Body),
			Attributes: attrs,
			Timestamp:  time.Now(),
		})
	}
	return batch
}

// FromLambdaEvent converts the records of a Lambda SQS event.
func FromLambdaEvent(event events.SQSEvent) []models.Message {
	batch := make([]models.Message, 0, len(event.Records))
	for _, r := range event.Records {
		var attrs map[string]string
		if len(r.MessageAttributes) > 0 {
			attrs = make(map[string]string, len(r.MessageAttributes))
			for k, v := range r.MessageAttributes {
				if v.StringValue != nil {
					attrs[k] = *v.StringValue
				}
			}
		}
		batch = append(batch, models.Message{
			ID:         r.MessageId,
			Body:       r.Body,
			Attributes: attrs,
			Timestamp:  sentTimestamp(r.Attributes),
		})
	}
	return batch
}

func sentTimestamp(system map[string]string) time.Time {
	ms, err := strconv.ParseInt(system["SentTimestamp"], 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
