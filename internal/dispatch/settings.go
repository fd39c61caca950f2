package dispatch

import (
	"fmt"
	"strings"
	"time"
)

// DefaultEndpointURL is the echo service the callback is posted to when no
// endpoint is configured.
const DefaultEndpointURL = "http://mockbin.org"

// Settings is the read-only configuration of one Dispatch call. A zero
// CallbackTimeout is valid and cancels every callback immediately.
type Settings struct {
	EndpointURL          string
	EndpointDelaySeconds int
	CallbackTimeout      time.Duration
}

// CallbackURL returns the delayed-response endpoint for these settings.
func (s Settings) CallbackURL() string {
	base := s.EndpointURL
	if base == "" {
		base = DefaultEndpointURL
	}
	delay := s.EndpointDelaySeconds
	if delay < 0 {
		delay = 0
	}
	return fmt.Sprintf("%s/delay/%d", strings.TrimRight(base, "/"), delay)
}
