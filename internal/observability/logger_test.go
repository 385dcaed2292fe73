package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newTestLogger(buf *bytes.Buffer, redactor *Redactor) *Logger {
	return NewLogger(LoggerConfig{
		Level:      slog.LevelDebug,
		Output:     buf,
		JSONFormat: true,
	}, redactor)
}

func TestLogger_WithRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, nil)
	ctx := ContextWithRequestID(context.Background(), "test-req-123")

	logger.WithRequestID(ctx).Info("turn processed")

	if !strings.Contains(buf.String(), "test-req-123") {
		t.Errorf("expected request ID in output, got %s", buf.String())
	}
}

func TestLogger_WithRequestID_Empty(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, nil)

	if logger.WithRequestID(context.Background()) != logger {
		t.Error("expected the same logger when no request ID is present")
	}
}

func TestLogger_WithSession(t *testing.T) {
	var buf bytes.Buffer
	newTestLogger(&buf, nil).WithSession("s-42").Info("hello")

	if !strings.Contains(buf.String(), `"session_id":"s-42"`) {
		t.Errorf("expected session id in output, got %s", buf.String())
	}
}

func TestLogger_RedactsUserText(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, NewRedactor())

	logger.RedactedInfo("turn received",
		"text", "I'm John, john@example.com",
		"error", errors.New("failed for 555-123-4567"),
		"entities", map[string]string{"name": "John"},
	)

	out := buf.String()
	for _, leaked := range []string{"john@example.com", "555-123-4567", `"name":"John"`} {
		if strings.Contains(out, leaked) {
			t.Errorf("expected %q to be redacted, got %s", leaked, out)
		}
	}
	if !strings.Contains(out, "[REDACTED_EMAIL]") {
		t.Errorf("expected redaction marker, got %s", out)
	}
}

func TestLogger_RedactedLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, NewRedactor())

	logger.RedactedDebug("d")
	logger.RedactedWarn("w")
	logger.RedactedError("e")

	out := buf.String()
	for _, level := range []string{"DEBUG", "WARN", "ERROR"} {
		if !strings.Contains(out, level) {
			t.Errorf("expected %s entry, got %s", level, out)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"WARNING", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
