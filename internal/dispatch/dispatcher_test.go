package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go-callback/internal/observability"
	"go-callback/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(invoker Invoker) (*Dispatcher, *observability.InMemoryMetrics) {
	logger, _ := newTestLogger()
	metrics := observability.NewInMemoryMetrics()
	return New(Config{
		Invoker:  invoker,
		Metrics:  metrics,
		Logger:   logger,
		NewRunID: func() string { return "run-id" },
	}), metrics
}

func TestDispatcher_PoisonNeverReachesInvoker(t *testing.T) {
	invoker := NewMockInvoker()
	d, metrics := newTestDispatcher(invoker)

	report, err := d.Dispatch(context.Background(), Settings{}, []models.Message{
		{Body: "Error: bad"},
		{Body: "ok"},
	})
	require.NoError(t, err)

	calls := invoker.GetCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "ok", calls[0].Message.Body)
	assert.Equal(t, []int{0}, report.Poisoned)
	assert.Equal(t, int64(1), metrics.GetPoisoned())
	assert.Equal(t, int64(1), metrics.GetProcessed())
}

func TestDispatcher_WaitFollowsDelayAttribute(t *testing.T) {
	tests := []struct {
		name       string
		attributes map[string]string
		expected   time.Duration
	}{
		{name: "delay attribute", attributes: map[string]string{"delay": "10"}, expected: 10 * time.Millisecond},
		{name: "missing", attributes: nil, expected: 500 * time.Millisecond},
		{name: "invalid", attributes: map[string]string{"delay": "x"}, expected: 500 * time.Millisecond},
		{name: "zero", attributes: map[string]string{"Delay": "0"}, expected: 500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			invoker := NewMockInvoker()
			d, _ := newTestDispatcher(invoker)

			_, err := d.Dispatch(context.Background(), Settings{}, []models.Message{
				{Body: "foobar", Attributes: tt.attributes},
			})
			require.NoError(t, err)

			calls := invoker.GetCalls()
			require.Len(t, calls, 1)
			assert.Equal(t, tt.expected, calls[0].Wait)
		})
	}
}

func TestDispatcher_PassesSettingsToInvoker(t *testing.T) {
	invoker := NewMockInvoker()
	d, _ := newTestDispatcher(invoker)

	settings := Settings{
		EndpointURL:          "http://echo.local",
		EndpointDelaySeconds: 7,
		CallbackTimeout:      3 * time.Second,
	}
	_, err := d.Dispatch(context.Background(), settings, []models.Message{{Body: "foobar"}})
	require.NoError(t, err)

	calls := invoker.GetCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "http://echo.local/delay/7", calls[0].URL)
	assert.Equal(t, 3*time.Second, calls[0].Timeout)
}

func TestDispatcher_FaultAbortsBatch(t *testing.T) {
	invoker := NewMockInvoker()
	invoker.InvokeFunc = func(ctx context.Context, call Call) Outcome {
		if call.Message.Body == "second" {
			return Faulted(&CallbackFaultError{URL: call.URL, Err: errors.New("no such host")})
		}
		return Completed(http.StatusOK, "")
	}
	d, metrics := newTestDispatcher(invoker)

	report, err := d.Dispatch(context.Background(), Settings{}, []models.Message{
		{Body: "first"},
		{Body: "second"},
		{Body: "third"},
	})

	require.Error(t, err)
	var faultErr *CallbackFaultError
	assert.ErrorAs(t, err, &faultErr)
	assert.Len(t, invoker.GetCalls(), 2)
	assert.Equal(t, 1, report.Handled)
	assert.Equal(t, int64(1), metrics.GetFaulted())
	assert.Equal(t, int64(1), metrics.GetBatchAborted())
}

func TestDispatcher_CancelledCountsAsHandled(t *testing.T) {
	invoker := NewMockInvoker()
	invoker.InvokeFunc = func(ctx context.Context, call Call) Outcome {
		return Cancelled(call.Timeout)
	}
	d, metrics := newTestDispatcher(invoker)

	report, err := d.Bind(Settings{CallbackTimeout: time.Second})(context.Background(), []models.Message{{Body: "a"}, {Body: "b"}})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Cancelled)
	assert.Equal(t, int64(2), metrics.GetCancelled())
}

func TestDispatcher_LogsAttributes(t *testing.T) {
	logger, hook := newTestLogger()
	d := New(Config{Invoker: NewMockInvoker(), Logger: logger})

	_, err := d.Dispatch(context.Background(), Settings{}, []models.Message{
		{Body: "foobar", Attributes: map[string]string{"attr": "Test"}},
		{Body: "plain"},
	})
	require.NoError(t, err)

	logs := logText(hook)
	assert.Contains(t, logs, "Message attributes: attr: Test")
	assert.Equal(t, 1, countContaining(hook.AllEntries(), "Message attributes:"))
}

// Scenarios against a real delayed-response endpoint.

func TestDispatcher_ScenarioRespondsBeforeTimeout(t *testing.T) {
	srv := newDelayServer(t)
	logger, hook := newTestLogger()
	d := New(Config{Logger: logger})

	_, err := d.Dispatch(context.Background(), Settings{
		EndpointURL:          srv.URL,
		EndpointDelaySeconds: 1,
		CallbackTimeout:      300 * time.Second,
	}, []models.Message{{Body: "foobar"}})
	require.NoError(t, err)

	logs := logText(hook)
	assert.Contains(t, logs, "Processed message foobar")
	assert.Contains(t, logs, "Endpoint responded with OK")
	assert.NotContains(t, logs, "Cancelling request after")
}

func TestDispatcher_ScenarioDoesNotRespondBeforeTimeout(t *testing.T) {
	srv := newDelayServer(t)
	logger, hook := newTestLogger()
	d := New(Config{Logger: logger})

	_, err := d.Dispatch(context.Background(), Settings{
		EndpointURL:          srv.URL,
		EndpointDelaySeconds: 10,
		CallbackTimeout:      time.Second,
	}, []models.Message{{Body: "foobar"}})
	require.NoError(t, err)

	logs := logText(hook)
	assert.Contains(t, logs, "Processed message foobar")
	assert.Contains(t, logs, "Cancelling request after 1s")
	assert.NotContains(t, logs, "Endpoint responded with OK")
}

func TestDispatcher_ScenarioDelayAttribute(t *testing.T) {
	srv := newDelayServer(t)
	logger, hook := newTestLogger()
	d := New(Config{Logger: logger})

	_, err := d.Dispatch(context.Background(), Settings{
		EndpointURL:     srv.URL,
		CallbackTimeout: 5 * time.Second,
	}, []models.Message{{Body: "foobar", Attributes: map[string]string{"delay": "10"}}})
	require.NoError(t, err)

	assert.Contains(t, logText(hook), "Waiting time: 10ms")
}

func TestDispatcher_ScenarioPoisonThenGood(t *testing.T) {
	srv := newDelayServer(t)
	logger, hook := newTestLogger()
	d := New(Config{Logger: logger})

	report, err := d.Dispatch(context.Background(), Settings{
		EndpointURL:     srv.URL,
		CallbackTimeout: 5 * time.Second,
	}, []models.Message{
		{Body: "Error: bad", Attributes: map[string]string{"delay": "1"}},
		{Body: "ok", Attributes: map[string]string{"delay": "1"}},
	})
	require.NoError(t, err)

	logs := logText(hook)
	assert.Contains(t, logs, "Skipping poison message Error: bad")
	assert.NotContains(t, logs, "Processed message Error: bad")
	assert.Contains(t, logs, "Processed message ok")
	assert.Equal(t, 2, report.Handled)
	assert.Equal(t, 1, report.Completed)
}

func TestDispatcher_ScenarioTransportFaultStopsBatch(t *testing.T) {
	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()

	logger, hook := newTestLogger()
	d := New(Config{Logger: logger})

	_, err := d.Dispatch(context.Background(), Settings{
		EndpointURL:     closed.URL,
		CallbackTimeout: 5 * time.Second,
	}, []models.Message{
		{Body: "first", Attributes: map[string]string{"delay": "1"}},
		{Body: "second", Attributes: map[string]string{"delay": "1"}},
	})

	require.Error(t, err)
	assert.True(t, IsBatchAborted(err))

	logs := logText(hook)
	assert.Contains(t, logs, "Processed message first")
	assert.NotContains(t, logs, "Processed message second")
}

// newBodyDelayServer answers after the number of milliseconds in the body
// ("sleep:150"), so messages of one batch can take different times.
func newBodyDelayServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		ms, _ := strconv.Atoi(strings.TrimPrefix(string(body), "sleep:"))

		select {
		case <-time.After(time.Duration(ms) * time.Millisecond):
		case <-r.Context().Done():
			return
		}
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDispatcher_TimeoutOnlyCancelsItsOwnRequest(t *testing.T) {
	srv := newBodyDelayServer(t)
	logger, hook := newTestLogger()
	d := New(Config{Logger: logger})

	report, err := d.Dispatch(context.Background(), Settings{
		EndpointURL:     srv.URL,
		CallbackTimeout: 300 * time.Millisecond,
	}, []models.Message{
		{Body: "sleep:5000", Attributes: map[string]string{"delay": "1"}},
		{Body: "sleep:0", Attributes: map[string]string{"delay": "1"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Cancelled)
	assert.Equal(t, 1, report.Completed)
	assert.Equal(t, 1, countContaining(hook.AllEntries(), "Cancelling request after"))
	assert.Contains(t, logText(hook), "Endpoint body sleep:0")
}

func TestDispatcher_EarlierTimerDoesNotOutliveItsMessage(t *testing.T) {
	srv := newBodyDelayServer(t)
	logger, hook := newTestLogger()
	d := New(Config{Logger: logger})

	// The second request is still in flight when the first message's
	// timeout would have fired.
	report, err := d.Dispatch(context.Background(), Settings{
		EndpointURL:     srv.URL,
		CallbackTimeout: 500 * time.Millisecond,
	}, []models.Message{
		{Body: "sleep:200", Attributes: map[string]string{"delay": "1"}},
		{Body: "sleep:400", Attributes: map[string]string{"delay": "1"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Completed)
	assert.Equal(t, 0, report.Cancelled)
	assert.Zero(t, countContaining(hook.AllEntries(), "Cancelling request after"))
}

func TestDispatcher_ConcurrentBatchesKeepTheirRunIDs(t *testing.T) {
	logger, hook := newTestLogger()
	invoker := NewMockInvoker()
	invoker.InvokeFunc = func(ctx context.Context, call Call) Outcome {
		time.Sleep(10 * time.Millisecond)
		return Completed(http.StatusOK, call.Message.Body)
	}

	var seq atomic.Int64
	d := New(Config{
		Invoker:  invoker,
		Logger:   logger,
		NewRunID: func() string { return fmt.Sprintf("run-%d", seq.Add(1)) },
	})

	const batches = 4
	reports := make([]*BatchReport, batches)

	var wg sync.WaitGroup
	for i := 0; i < batches; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			batch := []models.Message{
				{Body: fmt.Sprintf("batch-%d-a", i)},
				{Body: fmt.Sprintf("batch-%d-b", i)},
			}
			report, err := d.Dispatch(context.Background(), Settings{CallbackTimeout: time.Second}, batch)
			assert.NoError(t, err)
			reports[i] = report
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, r := range reports {
		require.NotNil(t, r)
		assert.Equal(t, 2, r.Completed)
		assert.False(t, seen[r.RunID], "run id %s reused", r.RunID)
		seen[r.RunID] = true
	}
	assert.Len(t, invoker.GetCalls(), 2*batches)

	perRun := map[string]int{}
	for _, entry := range hook.AllEntries() {
		if !strings.HasPrefix(entry.Message, "#") {
			continue
		}
		runID, ok := entry.Data["batch_run_id"].(string)
		require.True(t, ok)
		assert.True(t, strings.HasSuffix(entry.Message, "Id "+runID))
		perRun[runID]++
	}
	assert.Len(t, perRun, batches)
	for runID, n := range perRun {
		assert.Equal(t, 2, n, runID)
	}
}
