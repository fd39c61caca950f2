package sqs

import (
	"context"
	"errors"
	"testing"

	"go-callback/internal/dispatch"
	"go-callback/pkg/models"

	"github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDispatcher struct {
	settings dispatch.Settings
	batch    []models.Message
	report   *dispatch.BatchReport
	err      error
}

func (s *stubDispatcher) Dispatch(ctx context.Context, settings dispatch.Settings, batch []models.Message) (*dispatch.BatchReport, error) {
	s.settings = settings
	s.batch = batch
	return s.report, s.err
}

func lambdaEvent(ids ...string) events.SQSEvent {
	var event events.SQSEvent
	for _, id := range ids {
		event.Records = append(event.Records, events.SQSMessage{
			MessageId: id,
			Body:      "body " + id,
		})
	}
	return event
}

func TestFromLambdaEvent(t *testing.T) {
	name := "Test"
	event := events.SQSEvent{Records: []events.SQSMessage{{
		MessageId:  "m1",
		Body:       "Hello",
		Attributes: map[string]string{"SentTimestamp": "1700000000000"},
		MessageAttributes: map[string]events.SQSMessageAttribute{
			"name":   {StringValue: &name, DataType: "String"},
			"binary": {BinaryValue: []byte{1}, DataType: "Binary"},
		},
	}}}

	batch := FromLambdaEvent(event)

	require.Len(t, batch, 1)
	assert.Equal(t, "m1", batch[0].ID)
	assert.Equal(t, "Hello", batch[0].Body)
	assert.Equal(t, map[string]string{"name": "Test"}, batch[0].Attributes)
	assert.Equal(t, int64(1700000000000), batch[0].Timestamp.UnixMilli())
}

func TestLambdaHandler_Success(t *testing.T) {
	stub := &stubDispatcher{report: &dispatch.BatchReport{Size: 2, Handled: 2}}
	settings := dispatch.Settings{EndpointURL: "http://localhost", EndpointDelaySeconds: 1}

	h := NewLambdaHandler(LambdaConfig{
		Dispatcher: stub,
		Settings:   func() dispatch.Settings { return settings },
	})

	resp, err := h.Handle(context.Background(), lambdaEvent("a", "b"))

	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)
	assert.Equal(t, settings, stub.settings)
	assert.Len(t, stub.batch, 2)
}

func TestLambdaHandler_FaultFailsInvocation(t *testing.T) {
	aborted := &dispatch.BatchAbortedError{Index: 1, Err: errors.New("boom")}
	stub := &stubDispatcher{report: &dispatch.BatchReport{Size: 3, Handled: 1}, err: aborted}

	h := NewLambdaHandler(LambdaConfig{
		Dispatcher: stub,
		Settings:   func() dispatch.Settings { return dispatch.Settings{} },
	})

	_, err := h.Handle(context.Background(), lambdaEvent("a", "b", "c"))

	require.Error(t, err)
	assert.ErrorIs(t, err, aborted)
}

func TestLambdaHandler_PartialBatchResponse(t *testing.T) {
	stub := &stubDispatcher{
		report: &dispatch.BatchReport{Size: 3, Handled: 1},
		err:    &dispatch.BatchAbortedError{Index: 1, Err: errors.New("boom")},
	}

	h := NewLambdaHandler(LambdaConfig{
		Dispatcher:           stub,
		Settings:             func() dispatch.Settings { return dispatch.Settings{} },
		PartialBatchResponse: true,
	})

	resp, err := h.Handle(context.Background(), lambdaEvent("a", "b", "c"))

	require.NoError(t, err)
	assert.Equal(t, []events.SQSBatchItemFailure{
		{ItemIdentifier: "b"},
		{ItemIdentifier: "c"},
	}, resp.BatchItemFailures)
}

func TestLambdaHandler_WithRealDispatcher(t *testing.T) {
	logger, hook := test.NewNullLogger()
	invoker := dispatch.NewMockInvoker()
	d := dispatch.New(dispatch.Config{Invoker: invoker, Logger: logger})

	h := NewLambdaHandler(LambdaConfig{
		Dispatcher: d,
		Settings:   func() dispatch.Settings { return dispatch.Settings{EndpointURL: "http://localhost"} },
	})

	event := lambdaEvent("a")
	event.Records = append(event.Records, events.SQSMessage{MessageId: "p", Body: "Error: Poison Message"})

	_, err := h.Handle(context.Background(), event)

	require.NoError(t, err)
	assert.Len(t, invoker.GetCalls(), 1)
	assert.NotEmpty(t, hook.AllEntries())
}
