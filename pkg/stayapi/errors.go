package stayapi

import (
	"fmt"
	"time"
)

// RateLimitError reports the platform throttling or shedding requests (429 or
// 5xx). Callers retry with backoff.
type RateLimitError struct {
	StatusCode int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.StatusCode != 0 && e.StatusCode != 429 {
		return fmt.Sprintf("stayapi: server unavailable (status %d)", e.StatusCode)
	}
	if e.RetryAfter > 0 {
		return fmt.Sprintf("stayapi: rate limited, retry after %s", e.RetryAfter)
	}
	return "stayapi: rate limited"
}

// Retryable marks rate limits safe to retry.
func (e *RateLimitError) Retryable() bool { return true }

// TimeoutError reports a platform call exceeding its per-call deadline.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("stayapi: timeout on %s: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// Retryable marks timeouts safe to retry.
func (e *TimeoutError) Retryable() bool { return true }

// MalformedError reports an undecodable platform response.
type MalformedError struct {
	Op  string
	Err error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("stayapi: malformed %s response: %v", e.Op, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// Retryable marks malformed responses safe to retry; the platform
// intermittently serves truncated payloads under load.
func (e *MalformedError) Retryable() bool { return true }
