package log

import (
	"bytes"
	"context"
	"log/slog"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
)

func TestLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Component: ComponentWorker, Output: &buf})

	logger.InfoContext(context.Background(), "sweep done", FieldUserID, "u1")

	out := buf.String()
	if !strings.Contains(out, "component=worker") {
		t.Errorf("output missing component tag: %s", out)
	}
	if !strings.Contains(out, "user_id=u1") {
		t.Errorf("output missing user field: %s", out)
	}
}

func TestLoggerDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf})

	logger.InfoContext(context.Background(), "hello")
	if !strings.Contains(buf.String(), "component="+ComponentApp) {
		t.Errorf("expected default component, got %s", buf.String())
	}

	buf.Reset()
	logger.DebugContext(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Errorf("debug should be below the default level, got %s", buf.String())
	}
}

func TestWithComponentRebrands(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf}).WithComponent(ComponentStorage)

	logger.WarnContext(context.Background(), "slow query")
	if !strings.Contains(buf.String(), "component=storage") {
		t.Errorf("output = %s", buf.String())
	}
}

func TestLogTransactionCreated(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Component: ComponentHTTP, Output: &buf}))

	sl.LogTransactionCreated(context.Background(), "tx-1", "Courses", 4550, "expense", "Alimentation")

	out := buf.String()
	for _, want := range []string{
		FieldTransactionID + "=tx-1",
		FieldAmountCents + "=4550",
		FieldCategory + "=Alimentation",
		FieldOperation + "=" + OpCreate,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestLogHTTPEndLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, "INFO"},
		{404, "WARN"},
		{500, "ERROR"},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		sl := NewStructuredLogger(New(Config{Output: &buf}))
		req := httptest.NewRequest("GET", "/api/transactions", nil)

		sl.LogHTTPEnd(context.Background(), req, tt.status, 12, "192.0.2.1")

		out := buf.String()
		if !strings.Contains(out, "level="+tt.level) {
			t.Errorf("status %d: expected level %s, got %s", tt.status, tt.level, out)
		}
		if !strings.Contains(out, FieldStatusCode+"="+strconv.Itoa(tt.status)) {
			t.Errorf("status %d: output missing status code: %s", tt.status, out)
		}
	}
}
