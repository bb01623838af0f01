package worker

import (
	"context"
	"log/slog"
	"time"

	"tresor/internal/alerts"
	"tresor/internal/finance"
	"tresor/internal/services"
)

// NotifierFactory builds the delivery channel for one user's alerts.
type NotifierFactory func(userID string) alerts.Notifier

// AlertWorker periodically evaluates every user's budgets and delivers
// the alerts that have not fired yet this month.
type AlertWorker struct {
	store    finance.Store
	notifier NotifierFactory
	interval time.Duration
}

func NewAlertWorker(store finance.Store, notifier NotifierFactory, interval time.Duration) *AlertWorker {
	if notifier == nil {
		notifier = func(string) alerts.Notifier { return alerts.LogNotifier{} }
	}
	return &AlertWorker{store: store, notifier: notifier, interval: interval}
}

// Run evaluates all users on each tick until the context is cancelled.
func (w *AlertWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// First pass immediately so restarts do not delay pending alerts.
	w.evaluateAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.evaluateAll(ctx)
		}
	}
}

func (w *AlertWorker) evaluateAll(ctx context.Context) {
	userIDs, err := w.store.ListUserIDs(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list users for alert evaluation", "error", err)
		return
	}

	fired := 0
	for _, userID := range userIDs {
		svc := services.NewAlertService(w.store, w.store, w.store, w.notifier(userID))
		_, events, err := svc.Evaluate(ctx, userID)
		if err != nil {
			slog.ErrorContext(ctx, "Alert evaluation failed", "user_id", userID, "error", err)
			continue
		}
		fired += len(events)
	}

	if fired > 0 {
		slog.InfoContext(ctx, "Alert sweep completed", "users", len(userIDs), "alerts_fired", fired)
	}
}
