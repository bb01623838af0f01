package amqp

import (
	"context"
	"time"

	"tresor/internal/alerts"
)

// AlertNotifier delivers budget alerts for one user over AMQP. The
// broker fans them out to whatever delivery channels are bound to the
// exchange.
type AlertNotifier struct {
	client *Client
	userID string
}

func NewAlertNotifier(client *Client, userID string) *AlertNotifier {
	return &AlertNotifier{client: client, userID: userID}
}

// Notify implements alerts.Notifier.
func (n *AlertNotifier) Notify(ctx context.Context, event alerts.Event) error {
	return n.client.PublishBudgetAlert(ctx, newBudgetAlertMessage(n.userID, event))
}

// newBudgetAlertMessage renders an alert event into its wire form.
// Month and category ride along so consumers can route or group alerts
// without parsing the localized message text.
func newBudgetAlertMessage(userID string, event alerts.Event) *BudgetAlertMessage {
	return &BudgetAlertMessage{
		UserID:     userID,
		Severity:   string(alerts.SeverityFor(event.Kind)),
		Message:    event.Message(),
		DurationMS: event.DurationHint().Milliseconds(),
		Month:      event.Month.String(),
		Category:   event.Category,
		Timestamp:  time.Now(),
	}
}

// Ensure interface conformance
var _ alerts.Notifier = (*AlertNotifier)(nil)
