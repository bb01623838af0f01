package alerts

import (
	"context"
	"log/slog"
)

// LogNotifier writes notifications to the structured log. It is the
// delivery channel of last resort when no broker is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, event Event) error {
	level := slog.LevelWarn
	if SeverityFor(event.Kind) == SeverityError {
		level = slog.LevelError
	}
	slog.Log(ctx, level, "Budget alert",
		"month", event.Month.String(),
		"category", event.Category,
		"message", event.Message(),
		"duration_ms", event.DurationHint().Milliseconds(),
	)
	return nil
}

// Ensure interface conformance
var _ Notifier = LogNotifier{}
