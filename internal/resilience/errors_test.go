package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"
)

func TestIsTransient_ExplicitTransientError(t *testing.T) {
	err := NewTransientError(errors.New("server overloaded"), 503)
	if !IsTransient(err) {
		t.Error("expected TransientError to be transient")
	}
}

func TestIsTransient_WrappedTransientError(t *testing.T) {
	inner := NewTransientError(errors.New("rate limited"), 429)
	wrapped := fmt.Errorf("api call failed: %w", inner)
	if !IsTransient(wrapped) {
		t.Error("expected wrapped TransientError to be transient")
	}
}

func TestIsTransient_NilError(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil error should not be transient")
	}
}

func TestIsTransient_RegularError(t *testing.T) {
	err := errors.New("invalid input: missing field")
	if IsTransient(err) {
		t.Error("regular error should not be transient")
	}
}

func TestIsTransient_FatalNeverTransient(t *testing.T) {
	// A fatal wrapping a transient-looking message stays fatal.
	err := NewFatalError(errors.New("i/o timeout while validating credentials"), 401)
	if IsTransient(err) {
		t.Error("FatalError should never be transient")
	}
}

func TestIsTransient_NotFoundNeverTransient(t *testing.T) {
	err := NewNotFoundError(errors.New("no filings for CIK"))
	if IsTransient(err) {
		t.Error("NotFoundError should never be transient")
	}
}

func TestIsTransient_ConnectionReset(t *testing.T) {
	err := fmt.Errorf("write tcp: %w", syscall.ECONNRESET)
	if !IsTransient(err) {
		t.Error("ECONNRESET should be transient")
	}
}

func TestIsTransient_ConnectionRefused(t *testing.T) {
	err := fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED)
	if !IsTransient(err) {
		t.Error("ECONNREFUSED should be transient")
	}
}

func TestIsTransient_NetworkTimeout(t *testing.T) {
	err := &net.DNSError{IsTimeout: true, Err: "timeout"}
	if !IsTransient(err) {
		t.Error("network timeout should be transient")
	}
}

func TestIsTransient_StringPatterns(t *testing.T) {
	patterns := []string{
		"connection reset by peer",
		"broken pipe",
		"TLS handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	}
	for _, p := range patterns {
		err := errors.New(p)
		if !IsTransient(err) {
			t.Errorf("expected %q to be transient", p)
		}
	}
}

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		code     int
		wantKind string
	}{
		{404, "not_found"},
		{429, "transient"},
		{408, "transient"},
		{500, "transient"},
		{502, "transient"},
		{503, "transient"},
		{400, "fatal"},
		{401, "fatal"},
		{403, "fatal"},
		{422, "fatal"},
	}
	for _, tc := range cases {
		err := ClassifyStatus(tc.code, "https://example.com", "")
		if got := ClassifyError(err); got != tc.wantKind {
			t.Errorf("status %d: expected %s, got %s", tc.code, tc.wantKind, got)
		}
	}
}

func TestClassifyStatus_RetryAfterSeconds(t *testing.T) {
	err := ClassifyStatus(429, "https://efts.sec.gov/x", "30")
	if got := RetryAfterHint(err); got != 30*time.Second {
		t.Errorf("expected 30s retry-after, got %s", got)
	}
}

func TestClassifyStatus_RetryAfterHTTPDate(t *testing.T) {
	future := time.Now().Add(45 * time.Second).UTC().Format(time.RFC1123)
	err := ClassifyStatus(429, "https://efts.sec.gov/x", future)
	got := RetryAfterHint(err)
	if got < 30*time.Second || got > 60*time.Second {
		t.Errorf("expected ~45s retry-after, got %s", got)
	}
}

func TestClassifyStatus_RetryAfterGarbage(t *testing.T) {
	err := ClassifyStatus(429, "https://efts.sec.gov/x", "soon")
	if got := RetryAfterHint(err); got != 0 {
		t.Errorf("expected zero retry-after for garbage header, got %s", got)
	}
}

func TestRetryAfterHint_NonTransient(t *testing.T) {
	if got := RetryAfterHint(errors.New("plain")); got != 0 {
		t.Errorf("expected zero, got %s", got)
	}
}

func TestClassifyError(t *testing.T) {
	if got := ClassifyError(NewNotFoundError(errors.New("x"))); got != "not_found" {
		t.Errorf("expected not_found, got %s", got)
	}
	if got := ClassifyError(NewTransientError(errors.New("x"), 503)); got != "transient" {
		t.Errorf("expected transient, got %s", got)
	}
	if got := ClassifyError(errors.New("bad cusip")); got != "fatal" {
		t.Errorf("expected fatal, got %s", got)
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("root cause")
	te := NewTransientError(inner, 500)

	if !errors.Is(te, inner) {
		t.Error("TransientError.Unwrap should return the inner error")
	}

	if te.StatusCode != 500 {
		t.Errorf("expected StatusCode 500, got %d", te.StatusCode)
	}
}

func TestFatalError_Unwrap(t *testing.T) {
	inner := errors.New("bad credentials")
	fe := NewFatalError(inner, 401)

	if !errors.Is(fe, inner) {
		t.Error("FatalError.Unwrap should return the inner error")
	}
	if !IsFatal(fmt.Errorf("wrapped: %w", fe)) {
		t.Error("IsFatal should see through wrapping")
	}
}

func TestNotFoundError_Unwrap(t *testing.T) {
	inner := errors.New("cik has no submissions")
	nfe := NewNotFoundError(inner)

	if !errors.Is(nfe, inner) {
		t.Error("NotFoundError.Unwrap should return the inner error")
	}
	if !IsNotFound(fmt.Errorf("wrapped: %w", nfe)) {
		t.Error("IsNotFound should see through wrapping")
	}
}
