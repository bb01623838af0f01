// Package log holds the logging conventions shared by the tracker's
// binaries: a component-tagged slog wrapper, the canonical field names
// for transactions, budgets and alerts, and the HTTP middleware that
// threads a request-scoped logger through the context.
package log

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
)

// Logger stamps every entry with the component that emitted it, so log
// lines from the API, the workers and the storage layer stay tellable
// apart in one stream.
type Logger struct {
	*slog.Logger
	component string
}

// Config for New. A zero Output writes text to stdout, a zero Component
// falls back to the generic app component.
type Config struct {
	Level     slog.Level
	Component string
	Output    io.Writer
}

func New(config Config) *Logger {
	out := config.Output
	if out == nil {
		out = os.Stdout
	}
	if config.Component == "" {
		config.Component = ComponentApp
	}
	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: config.Level})
	return &Logger{
		Logger:    slog.New(handler),
		component: config.Component,
	}
}

// With returns a logger carrying the given attributes on every entry.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger:    l.Logger.With(args...),
		component: l.component,
	}
}

// WithComponent rebrands the logger for another component.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger:    l.Logger,
		component: component,
	}
}

func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.Logger.InfoContext(ctx, msg, append([]any{FieldComponent, l.component}, args...)...)
}

func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.Logger.WarnContext(ctx, msg, append([]any{FieldComponent, l.component}, args...)...)
}

func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.Logger.ErrorContext(ctx, msg, append([]any{FieldComponent, l.component}, args...)...)
}

func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.Logger.DebugContext(ctx, msg, append([]any{FieldComponent, l.component}, args...)...)
}

// StructuredLogger layers the domain-specific log entries over a Logger:
// HTTP request completion and transaction creation, each emitted with
// the canonical field set.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogHTTPEnd records a finished request, leveled by its status code.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	if statusCode >= 500 {
		level = slog.LevelError
	} else if statusCode >= 400 {
		level = slog.LevelWarn
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "").
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP)

	sl.logger.Logger.Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

// LogTransactionCreated records one saved transaction with its money,
// kind and category fields.
func (sl *StructuredLogger) LogTransactionCreated(ctx context.Context, id, desc string, amountCents int64, kind, category string) {
	fields := NewFields().
		WithTransaction(id, desc, amountCents, kind, category).
		WithOperation(OpCreate).
		WithComponent(ComponentTransaction)

	sl.logger.InfoContext(ctx, "Transaction created", fields.ToSlice()...)
}
