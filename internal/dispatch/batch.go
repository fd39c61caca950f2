package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"go-callback/internal/observability"
	"go-callback/pkg/models"

	"github.com/sirupsen/logrus"
)

// ProcessFunc handles one message of a batch.
type ProcessFunc func(ctx context.Context, msg models.Message) Result

// BatchReport summarises a batch run. Handled counts the leading messages
// whose processing finished, poison skips included.
type BatchReport struct {
	RunID     string
	Size      int
	Handled   int
	Poisoned  []int
	Completed int
	Cancelled int
}

// RunBatch walks batch in order. Poison results are logged and skipped, the
// first fault stops the run and is returned as a *BatchAbortedError.
func RunBatch(ctx context.Context, runID string, batch []models.Message, process ProcessFunc, logger *logrus.Entry) (*BatchReport, error) {
	if logger == nil {
		logger = logrus.NewEntry(observability.GetLogger())
	}
	logger = logger.WithField("batch_run_id", runID)
	ctx = observability.ContextWithLogger(ctx, logger)

	report := &BatchReport{RunID: runID, Size: len(batch)}

	for i, msg := range batch {
		remaining := len(batch) - i
		logger.WithField("remaining", remaining).Infof("#%d.  Id %s", remaining, runID)

		res := safeProcess(ctx, process, msg, logger)
		switch res.Kind {
		case ResultOK:
			report.record(res.Outcome)
		case ResultPoison:
			logger.WithField("reason", res.Reason).Warnf("Skipping poison message %s", msg.Body)
			report.Poisoned = append(report.Poisoned, i)
		default:
			err := res.Err
			if err == nil {
				err = errors.New("message processing failed")
			}
			logger.WithError(err).WithField("index", i).Error("Aborting batch")
			return report, &BatchAbortedError{RunID: runID, Index: i, Err: err}
		}
		report.Handled = i + 1
	}

	logger.WithField("count", len(batch)).Infof("Processed %d messages", len(batch))
	return report, nil
}

func (r *BatchReport) record(outcome *Outcome) {
	if outcome == nil {
		return
	}
	switch outcome.Kind {
	case OutcomeCompleted:
		r.Completed++
	case OutcomeCancelled:
		r.Cancelled++
	}
}

func safeProcess(ctx context.Context, process ProcessFunc, msg models.Message, logger *logrus.Entry) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(logrus.Fields{
				"panic": r,
				"stack": string(debug.Stack()),
			}).Error("panic in message handler")
			res = Fault(fmt.Errorf("handler panicked: %v", r))
		}
	}()
	return process(ctx, msg)
}
