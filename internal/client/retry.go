// Package client provides retry logic with exponential backoff for API clients.
//
// Purpose:
//
//	Handle transient failures (network timeouts, 5xx errors, 429s) with
//	exponential backoff. The engine's Target calls (§4.4) use 500ms*2^(attempt-1)
//	delays up to 3 attempts, honoring a server Retry-After header when present;
//	other callers may configure their own cadence.
//
// Dependencies:
//   - context: Timeout and cancellation
//   - time: Exponential backoff delays
//
package client

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

// RetryConfig holds retry configuration.
type RetryConfig struct {
	MaxAttempts  int           // Max retry attempts (default: 3)
	InitialDelay time.Duration // Delay before the first retry (default: 500ms)
	MaxDelay     time.Duration // Ceiling on computed backoff delay
	Timeout      time.Duration // Not read by DoWithRetry; ctx bounds the whole operation
}

// DefaultRetryConfig returns the engine's Target-call retry cadence: 3
// attempts, waiting 500ms and then 1s between them (§4.4).
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     4 * time.Second,
		Timeout:      30 * time.Second,
	}
}

// DoWithRetry executes an HTTP request with retry logic, honoring a
// Retry-After header on 429/503 responses in place of the computed delay.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, config RetryConfig) (*http.Response, error) {
	if config.MaxAttempts == 0 {
		config = DefaultRetryConfig()
	}

	var lastErr error

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		// Check context cancellation
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		// Execute request
		resp, err := client.Do(req)
		if err == nil && isSuccess(resp.StatusCode) {
			return resp, nil
		}

		// Check if error is retriable
		if err != nil && !isRetriableError(err) {
			return nil, err
		}

		if resp != nil && !isRetriableStatus(resp.StatusCode) {
			return resp, nil
		}

		delay := backoffDelay(config, attempt, resp)

		lastErr = err
		if resp != nil {
			lastErr = fmt.Errorf("status %d: %v", resp.StatusCode, err)
			resp.Body.Close()
		}

		// Don't wait after last attempt
		if attempt < config.MaxAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return nil, fmt.Errorf("max retry attempts (%d) exceeded: %w", config.MaxAttempts, lastErr)
}

// backoffDelay computes 500ms*2^attempt, capped at MaxDelay, unless the
// response carries a Retry-After header, which always wins.
func backoffDelay(config RetryConfig, attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil {
				return time.Duration(secs) * time.Second
			}
		}
	}

	delay := config.InitialDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	if config.MaxDelay > 0 && delay > config.MaxDelay {
		delay = config.MaxDelay
	}
	return delay
}

// isRetriableError checks if an error is retriable.
func isRetriableError(err error) bool {
	if err == nil {
		return false
	}

	// Network errors are retriable
	if netErr, ok := err.(net.Error); ok {
		return netErr.Timeout() || netErr.Temporary()
	}

	return false
}

// isRetriableStatus checks if an HTTP status code is retriable.
func isRetriableStatus(statusCode int) bool {
	// 5xx errors and 429 (Too Many Requests) are retriable
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}

// isSuccess checks if an HTTP status code indicates success.
func isSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

