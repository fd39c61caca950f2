package sqs

import (
	"context"

	"go-callback/internal/dispatch"
	"go-callback/pkg/models"

	"github.com/aws/aws-lambda-go/events"
)

// BatchDispatcher is satisfied by *dispatch.Dispatcher.
type BatchDispatcher interface {
	Dispatch(ctx context.Context, settings dispatch.Settings, batch []models.Message) (*dispatch.BatchReport, error)
}

type LambdaConfig struct {
	Dispatcher BatchDispatcher

	// Settings is called once per invocation so environment changes between
	// warm invocations are picked up.
	Settings func() dispatch.Settings

	// PartialBatchResponse reports the faulted message and everything after
	// it as batch item failures instead of failing the invocation.
	PartialBatchResponse bool
}

type LambdaHandler struct {
	dispatcher BatchDispatcher
	settings   func() dispatch.Settings
	partial    bool
}

func NewLambdaHandler(cfg LambdaConfig) *LambdaHandler {
	return &LambdaHandler{
		dispatcher: cfg.Dispatcher,
		settings:   cfg.Settings,
		partial:    cfg.PartialBatchResponse,
	}
}

// Handle processes one SQS event. Without partial batch responses a fault
// fails the whole invocation and the platform redelivers the batch.
func (h *LambdaHandler) Handle(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	report, err := h.dispatcher.Dispatch(ctx, h.settings(), FromLambdaEvent(event))
	if err == nil {
		return events.SQSEventResponse{}, nil
	}
	if !h.partial {
		return events.SQSEventResponse{}, err
	}

	handled := 0
	if report != nil {
		handled = report.Handled
	}

	var resp events.SQSEventResponse
	for _, r := range event.Records[handled:] {
		resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{
			ItemIdentifier: r.MessageId,
		})
	}
	return resp, nil
}
