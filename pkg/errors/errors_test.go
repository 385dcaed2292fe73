package errors

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestSupportError_HTTPStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      *SupportError
		wantCode int
	}{
		{"oracle unavailable", NewOracleUnavailableError("classify", context.DeadlineExceeded), http.StatusServiceUnavailable},
		{"malformed output", NewMalformedOracleOutputError("classify", "no json"), http.StatusBadRequest},
		{"unknown session", NewUnknownSessionError("abc"), http.StatusNotFound},
		{"invalid input", NewInvalidInputError("message is required"), http.StatusBadRequest},
		{"rate limited", NewRateLimitedError("slow down"), http.StatusTooManyRequests},
		{"store unavailable", NewStoreUnavailableError("update", fmt.Errorf("dial tcp")), http.StatusServiceUnavailable},
		{"internal", NewInternalError("turn", nil), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.HTTPStatusCode(); got != tt.wantCode {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.wantCode)
			}
		})
	}
}

func TestSupportError_Message(t *testing.T) {
	err := NewOracleUnavailableError("classify", context.DeadlineExceeded)
	msg := err.Error()

	for _, s := range []string{"oracle_unavailable", "op=classify", "deadline exceeded"} {
		if !strings.Contains(msg, s) {
			t.Errorf("error message should contain %q, got %q", s, msg)
		}
	}
}

func TestIsType_WrappedChain(t *testing.T) {
	base := NewUnknownSessionError("s-1")
	wrapped := fmt.Errorf("load session: %w", base)

	if !IsType(wrapped, TypeUnknownSession) {
		t.Fatalf("IsType should see through %%w wrapping")
	}
	if IsType(wrapped, TypeInvalidInput) {
		t.Fatalf("IsType matched the wrong type")
	}
	if IsType(fmt.Errorf("plain"), TypeUnknownSession) {
		t.Fatalf("plain errors are never SupportErrors")
	}
	if got := StatusCode(wrapped); got != http.StatusNotFound {
		t.Fatalf("StatusCode() = %d, want 404", got)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"oracle unavailable", NewOracleUnavailableError("generate", nil), true},
		{"store unavailable", NewStoreUnavailableError("get", nil), true},
		{"malformed output", NewMalformedOracleOutputError("extract", "bad"), false},
		{"invalid input", NewInvalidInputError("bad"), false},
		{"plain error", fmt.Errorf("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	cause := context.DeadlineExceeded
	err := NewOracleUnavailableError("classify", cause)
	if err.Unwrap() != cause {
		t.Fatalf("Unwrap() did not return the cause")
	}
}
