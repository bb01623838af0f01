package alerts

import "context"

// Severity mirrors the notification channel's info/warning/error levels.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Ports for outbound adapters.
type (
	// RecordStore persists the delivered-alert record for one user.
	RecordStore interface {
		Load(ctx context.Context, userID string) (Record, error)
		Save(ctx context.Context, userID string, record Record) error
	}

	// Notifier delivers a budget event to the user. Implementations may
	// log, push over AMQP, or buffer for the next API response; they get
	// the full event so channels can carry the month and category along
	// with the rendered message.
	Notifier interface {
		Notify(ctx context.Context, event Event) error
	}
)

// SeverityFor maps an event kind to its notification severity: warnings
// are warnings, blown budgets are errors.
func SeverityFor(kind EventKind) Severity {
	if kind == KindOverBudget {
		return SeverityError
	}
	return SeverityWarning
}
