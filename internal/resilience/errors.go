package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

// retryable is implemented by typed failures from the source platform and LLM
// clients to opt into retries (rate limits, timeouts).
type retryable interface {
	Retryable() bool
}

// IsRetryable reports whether the error (or anything in its chain) is safe to
// retry: an explicitly retryable typed failure, a network timeout, a dropped
// connection, or a per-call deadline.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var r retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// Wrapped HTTP client errors lose their type; fall back on message text.
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsRetryableHTTPStatus reports whether an HTTP status code indicates a
// transient server-side condition.
func IsRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
