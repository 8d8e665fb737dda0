// Package resilience provides the error taxonomy, retry, and circuit breaker
// patterns used by collectors when talking to external services.
package resilience

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// TransientError marks failures worth retrying: timeouts, connection resets,
// 5xx responses, and 429 throttling. RetryAfter carries the server-requested
// delay from a 429, zero otherwise.
type TransientError struct {
	Err        error
	StatusCode int
	RetryAfter time.Duration
}

func (e *TransientError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transient (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps err as transient with an optional HTTP status.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// FatalError marks failures that retrying cannot fix: auth rejections,
// malformed requests, unparseable required structure.
type FatalError struct {
	Err        error
	StatusCode int
}

func (e *FatalError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fatal (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fatal: %v", e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// NewFatalError wraps err as fatal with an optional HTTP status.
func NewFatalError(err error, statusCode int) *FatalError {
	return &FatalError{Err: err, StatusCode: statusCode}
}

// NotFoundError marks an absent resource or empty upstream dataset. Not
// retried, and usually reported as a warning rather than a task failure.
type NotFoundError struct {
	Err error
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("not found: %v", e.Err) }
func (e *NotFoundError) Unwrap() error { return e.Err }

// NewNotFoundError wraps err as not-found.
func NewNotFoundError(err error) *NotFoundError {
	return &NotFoundError{Err: err}
}

// IsTransient reports whether err is worth retrying. Explicitly classified
// errors are checked first; otherwise common network failure patterns count
// as transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var fe *FatalError
	if errors.As(err, &fe) {
		return false
	}
	var nfe *NotFoundError
	if errors.As(err, &nfe) {
		return false
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

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}

	return false
}

// IsFatal reports whether err is marked fatal.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// IsNotFound reports whether err is marked not-found.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

// RetryAfterHint returns the server-requested retry delay from a transient
// error, or zero.
func RetryAfterHint(err error) time.Duration {
	var te *TransientError
	if errors.As(err, &te) {
		return te.RetryAfter
	}
	return 0
}

// ClassifyStatus converts a non-2xx HTTP status into the matching error
// kind. retryAfter is the raw Retry-After header value, honored on 429 as
// either delta-seconds or an HTTP date.
func ClassifyStatus(statusCode int, url, retryAfter string) error {
	base := fmt.Errorf("unexpected status %d for %s", statusCode, url)
	switch {
	case statusCode == http.StatusNotFound:
		return NewNotFoundError(base)
	case statusCode == http.StatusTooManyRequests:
		return &TransientError{Err: base, StatusCode: statusCode, RetryAfter: parseRetryAfter(retryAfter)}
	case statusCode == http.StatusRequestTimeout || statusCode >= 500:
		return NewTransientError(base, statusCode)
	case statusCode >= 400:
		return NewFatalError(base, statusCode)
	default:
		return base
	}
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// ClassifyError categorizes an error for task records: "transient", "fatal",
// or "not_found".
func ClassifyError(err error) string {
	switch {
	case IsNotFound(err):
		return "not_found"
	case IsTransient(err):
		return "transient"
	default:
		return "fatal"
	}
}
