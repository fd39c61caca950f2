package dispatch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go-callback/internal/observability"
	"go-callback/pkg/models"

	"github.com/sirupsen/logrus"
)

// Call is one outbound callback: wait, then POST the message body to URL
// under a hard timeout.
type Call struct {
	Message models.Message
	Wait    time.Duration
	Timeout time.Duration
	URL     string
}

// Invoker performs the callback for a single message.
type Invoker interface {
	Invoke(ctx context.Context, call Call) Outcome
}

type InvokerConfig struct {
	// Transport is shared by the per-call clients, nil means http.DefaultTransport.
	Transport http.RoundTripper
	Logger    *logrus.Logger
}

// CallbackInvoker implements Invoker over HTTP. Every call builds its own
// client and timer, so a timeout can only ever cancel its own request.
type CallbackInvoker struct {
	newClient func() *http.Client
	sleep     func(ctx context.Context, d time.Duration) error
	logger    *logrus.Logger
}

func NewCallbackInvoker(cfg InvokerConfig) *CallbackInvoker {
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &CallbackInvoker{
		newClient: func() *http.Client {
			return &http.Client{Transport: transport}
		},
		sleep:  sleepContext,
		logger: cfg.Logger,
	}
}

// Invoke waits out call.Wait, then races the POST against call.Timeout.
func (inv *CallbackInvoker) Invoke(ctx context.Context, call Call) Outcome {
	logger := observability.LoggerFromContext(ctx, inv.logger)

	if err := inv.sleep(ctx, call.Wait); err != nil {
		return Faulted(err)
	}
	logger.Infof("Processed message %s", call.Message.Body)

	callCtx, cancel := context.WithTimeout(ctx, call.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, call.URL, strings.NewReader(call.Message.Body))
	if err != nil {
		return Faulted(&CallbackFaultError{URL: call.URL, Err: err})
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := inv.newClient().Do(req)
	if err != nil {
		return inv.failed(ctx, callCtx, logger, call, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return inv.failed(ctx, callCtx, logger, call, err)
	}

	logger.WithField("status_code", resp.StatusCode).
		Infof("Endpoint responded with %s", statusText(resp.StatusCode))
	logger.Infof("Endpoint body %s", body)
	return Completed(resp.StatusCode, string(body))
}

// failed separates our own timeout, which is expected and suppressed, from
// every other transport error.
func (inv *CallbackInvoker) failed(ctx, callCtx context.Context, logger *logrus.Entry, call Call, err error) Outcome {
	if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		logger.WithField("timeout", call.Timeout.String()).
			Warnf("Cancelling request after %s", call.Timeout)
		return Cancelled(call.Timeout)
	}
	logger.WithError(err).WithField("url", call.URL).Error("Callback request failed")
	return Faulted(&CallbackFaultError{URL: call.URL, Err: err})
}

func statusText(code int) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return strconv.Itoa(code)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
