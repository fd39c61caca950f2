// Package dispatch runs batches of queue messages through the callback
// pipeline: classify each message, wait, then call the delayed-response
// endpoint under a timeout.
//
// Messages of one batch are processed strictly in order. A poison message
// (body containing "Error:") is skipped; any other failure stops the batch and
// is returned to the transport, which owns redelivery.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-callback/internal/observability"
	"go-callback/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// BatchHandlerFunc is what transports deliver batches to.
type BatchHandlerFunc func(ctx context.Context, batch []models.Message) (*BatchReport, error)

type Config struct {
	Invoker  Invoker
	Metrics  observability.MetricsCollector
	Logger   *logrus.Logger
	NewRunID func() string
}

// Dispatcher holds no per-batch state; concurrent Dispatch calls are safe.
type Dispatcher struct {
	invoker  Invoker
	metrics  observability.MetricsCollector
	logger   *logrus.Logger
	newRunID func() string
}

func New(cfg Config) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = observability.GetLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewInMemoryMetrics()
	}
	if cfg.Invoker == nil {
		cfg.Invoker = NewCallbackInvoker(InvokerConfig{Logger: cfg.Logger})
	}
	if cfg.NewRunID == nil {
		cfg.NewRunID = uuid.NewString
	}

	return &Dispatcher{
		invoker:  cfg.Invoker,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		newRunID: cfg.NewRunID,
	}
}

// Dispatch processes one delivered batch with the given settings.
func (d *Dispatcher) Dispatch(ctx context.Context, settings Settings, batch []models.Message) (*BatchReport, error) {
	process := func(ctx context.Context, msg models.Message) Result {
		return d.Process(ctx, settings, msg)
	}

	report, err := RunBatch(ctx, d.newRunID(), batch, process, logrus.NewEntry(d.logger))
	if err != nil {
		d.metrics.IncBatchAborted()
	}
	return report, err
}

// Bind fixes settings for transports that only know about batches.
func (d *Dispatcher) Bind(settings Settings) BatchHandlerFunc {
	return func(ctx context.Context, batch []models.Message) (*BatchReport, error) {
		return d.Dispatch(ctx, settings, batch)
	}
}

// Process handles a single message. Poison messages return before the
// artificial wait.
func (d *Dispatcher) Process(ctx context.Context, settings Settings, msg models.Message) Result {
	logger := observability.LoggerFromContext(ctx, d.logger)
	d.metrics.IncReceived()

	decision := Classify(msg)
	if decision.IsPoison {
		d.metrics.IncPoisoned()
		return Poison(fmt.Sprintf("body contains poison marker %q", PoisonMarker))
	}

	logger.WithField("wait_ms", decision.WaitMilliseconds).
		Infof("Waiting time: %dms", decision.WaitMilliseconds)
	logger.Infof("Endpoint Delay %d", settings.EndpointDelaySeconds)
	logger.Infof("Callback Timeout %s", settings.CallbackTimeout)
	if attrs := FormatAttributes(msg); attrs != "" {
		logger.Infof("Message attributes: %s", attrs)
	}

	outcome := d.invoker.Invoke(ctx, Call{
		Message: msg,
		Wait:    time.Duration(decision.WaitMilliseconds) * time.Millisecond,
		Timeout: settings.CallbackTimeout,
		URL:     settings.CallbackURL(),
	})

	switch outcome.Kind {
	case OutcomeCompleted:
		d.metrics.IncCompleted()
	case OutcomeCancelled:
		d.metrics.IncCancelled()
	default:
		d.metrics.IncFaulted()
		err := outcome.Err
		if err == nil {
			err = errors.New("callback faulted")
		}
		return Fault(err)
	}

	d.metrics.IncProcessed()
	return OK(outcome)
}
