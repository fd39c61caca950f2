package sqs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go-callback/internal/dispatch"
	"go-callback/internal/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type PollerConfig struct {
	QueueURL          string
	MaxMessages       int
	WaitTimeSeconds   int
	VisibilityTimeout int
	Pollers           int
	ErrorBackoff      time.Duration
	Logger            *logrus.Logger
}

// Poller long-polls a queue and hands every received batch to the
// dispatcher. Each poller goroutine processes its batches one at a time;
// several pollers give parallel batches.
type Poller struct {
	client       API
	handler      dispatch.BatchHandlerFunc
	queueURL     string
	maxMessages  int
	waitTime     int
	visibility   int
	pollers      int
	errorBackoff time.Duration
	logger       *logrus.Logger
}

func NewPoller(client API, handler dispatch.BatchHandlerFunc, cfg PollerConfig) *Poller {
	if cfg.MaxMessages <= 0 || cfg.MaxMessages > maxBatchEntries {
		cfg.MaxMessages = maxBatchEntries
	}
	if cfg.Pollers <= 0 {
		cfg.Pollers = 1
	}
	if cfg.ErrorBackoff == 0 {
		cfg.ErrorBackoff = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.GetLogger()
	}

	return &Poller{
		client:       client,
		handler:      handler,
		queueURL:     cfg.QueueURL,
		maxMessages:  cfg.MaxMessages,
		waitTime:     cfg.WaitTimeSeconds,
		visibility:   cfg.VisibilityTimeout,
		pollers:      cfg.Pollers,
		errorBackoff: cfg.ErrorBackoff,
		logger:       cfg.Logger,
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.WithFields(logrus.Fields{
		"queue_url": p.queueURL,
		"pollers":   p.pollers,
	}).Info("Starting SQS poller")

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.pollers; i++ {
		id := i
		g.Go(func() error {
			return p.poll(ctx, id)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (p *Poller) poll(ctx context.Context, id int) error {
	logger := p.logger.WithField("poller_id", id)
	defer logger.Info("Poller stopped")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := p.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.WithError(err).Warn("Poll failed, backing off")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.errorBackoff):
			}
		}
	}
}

// PollOnce receives one batch, dispatches it and deletes the messages the
// dispatcher handled. An aborted batch leaves the faulted message and every
// later one on the queue for redelivery.
func (p *Poller) PollOnce(ctx context.Context) error {
	out, err := p.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(p.queueURL),
		MaxNumberOfMessages:   int32(p.maxMessages),
		WaitTimeSeconds:       int32(p.waitTime),
		VisibilityTimeout:     int32(p.visibility),
		MessageAttributeNames: []string{"All"},
	})
	if err != nil {
		return fmt.Errorf("failed to receive messages: %w", err)
	}
	if len(out.Messages) == 0 {
		return nil
	}

	report, dispatchErr := p.handler(ctx, FromSQSMessages(out.Messages))

	handled := len(out.Messages)
	if dispatchErr != nil {
		handled = 0
		if report != nil {
			handled = report.Handled
		}
	}

	if err := p.deleteMessages(ctx, out.Messages[:handled]); err != nil {
		return err
	}

	if dispatchErr != nil {
		return fmt.Errorf("%d of %d messages left for redelivery: %w",
			len(out.Messages)-handled, len(out.Messages), dispatchErr)
	}
	return nil
}

func (p *Poller) deleteMessages(ctx context.Context, msgs []types.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	entries := make([]types.DeleteMessageBatchRequestEntry, 0, len(msgs))
	for i, m := range msgs {
		entries = append(entries, types.DeleteMessageBatchRequestEntry{
			Id:            aws.String(strconv.Itoa(i)),
			ReceiptHandle: m.ReceiptHandle,
		})
	}

	out, err := p.client.DeleteMessageBatch(ctx, &sqs.DeleteMessageBatchInput{
		QueueUrl: aws.String(p.queueURL),
		Entries:  entries,
	})
	if err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	if len(out.Failed) > 0 {
		for _, f := range out.Failed {
			p.logger.WithFields(logrus.Fields{
				"entry_id": aws.ToString(f.Id),
				"code":     aws.ToString(f.Code),
			}).Error(aws.ToString(f.Message))
		}
		return fmt.Errorf("failed to delete %d of %d messages", len(out.Failed), len(entries))
	}
	return nil
}

// HealthCheck verifies the polled queue is reachable
func (p *Poller) HealthCheck(ctx context.Context) error {
	return HealthCheck(ctx, p.client, p.queueURL)
}
