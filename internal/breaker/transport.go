// Package breaker wraps the Target HTTP client with a circuit breaker so a
// sustained Target outage fails fast instead of every worker burning its
// retry budget against a dead backend.
package breaker

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// Transport is an http.RoundTripper that trips open after a run of failed
// requests and half-opens periodically to probe recovery.
type Transport struct {
	next    http.RoundTripper
	breaker *gobreaker.CircuitBreaker
}

// NewTransport wraps next (or http.DefaultTransport if nil) with a breaker
// named for the Target host it protects.
func NewTransport(name string, next http.RoundTripper) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &Transport{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// RoundTrip executes req through the breaker. A 5xx response does not count
// as a breaker failure, since RoundTrip itself returns no Go error for it;
// the Target client's retry layer classifies status codes, so this only
// trips on transport-level failures (timeouts, connection refused).
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	result, err := t.breaker.Execute(func() (interface{}, error) {
		return t.next.RoundTrip(req)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("breaker: %s: %w", t.breaker.Name(), err)
		}
		return nil, err
	}
	return result.(*http.Response), nil
}

// State reports the breaker's current state for the circuit_breaker_state
// gauge.
func (t *Transport) State() gobreaker.State {
	return t.breaker.State()
}
