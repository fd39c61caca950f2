package dispatch

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// newDelayServer mimics the echo endpoint: POST /delay/{seconds} answers with
// the request body after the given number of seconds.
func newDelayServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/delay/", func(w http.ResponseWriter, r *http.Request) {
		seconds, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/delay/"))
		if err != nil {
			http.Error(w, "bad delay", http.StatusBadRequest)
			return
		}
		body, _ := io.ReadAll(r.Body)

		select {
		case <-time.After(time.Duration(seconds) * time.Second):
		case <-r.Context().Done():
			return
		}

		w.Header().Set("Content-Type", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestLogger() (*logrus.Logger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

func logText(hook *test.Hook) string {
	var b strings.Builder
	for _, entry := range hook.AllEntries() {
		b.WriteString(entry.Message)
		b.WriteString("\n")
	}
	return b.String()
}

func countContaining(entries []*logrus.Entry, substr string) int {
	n := 0
	for _, entry := range entries {
		if strings.Contains(entry.Message, substr) {
			n++
		}
	}
	return n
}
