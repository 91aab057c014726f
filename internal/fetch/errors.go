package fetch

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrPolicyDenied is returned when robots.txt disallows a URL.
// This is a routing decision, not a fault: the crawl engine turns it into
// a skip, and it is never retried.
var ErrPolicyDenied = errors.New("denied by robots policy")

// FailureKind classifies a fetch failure for retry policy and reporting.
type FailureKind string

const (
	// FailureNetwork covers connection errors and resets. Retryable.
	FailureNetwork FailureKind = "network"

	// FailureTimeout covers connect and read timeouts. Retryable.
	FailureTimeout FailureKind = "timeout"

	// FailureHTTP covers non-2xx responses. Retryable only for the
	// 5xx/429 class; other 4xx are terminal for the URL.
	FailureHTTP FailureKind = "http"
)

// Error is a typed fetch failure.
// It wraps the underlying cause so callers can use errors.Is/As, and
// carries enough context (URL, kind, status) to report the failure once
// without replaying the run.
type Error struct {
	// URL is the request URL.
	URL string

	// Kind is the failure class.
	Kind FailureKind

	// StatusCode is set for FailureHTTP, zero otherwise.
	StatusCode int

	// Err is the underlying cause. Nil for plain HTTP status failures.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch e.Kind {
	case FailureHTTP:
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.StatusCode)
	default:
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is worth retrying.
// Network errors and timeouts are transient. For HTTP failures only the
// 5xx class and 429 (rate limited) qualify; other 4xx statuses will not
// change on retry.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case FailureNetwork, FailureTimeout:
		return true
	case FailureHTTP:
		return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
	default:
		return false
	}
}
