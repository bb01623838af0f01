package services

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"tresor/internal/alerts"
	"tresor/internal/core"
	"tresor/internal/finance"
)

// AlertService evaluates a user's budgets against the month's spending
// and delivers the notifications that have not fired yet.
type AlertService struct {
	transactions finance.TransactionStore
	budgets      finance.BudgetStore
	records      alerts.RecordStore
	notifier     alerts.Notifier
	now          func() time.Time
}

func NewAlertService(
	transactions finance.TransactionStore,
	budgets finance.BudgetStore,
	records alerts.RecordStore,
	notifier alerts.Notifier,
) *AlertService {
	return &AlertService{
		transactions: transactions,
		budgets:      budgets,
		records:      records,
		notifier:     notifier,
		now:          time.Now,
	}
}

// Evaluate computes the current budget statuses and fires the pending
// alerts. The updated delivered-alert record is persisted before
// returning; a notification that fails to deliver is still marked, so
// alerts are at-most-once.
func (s *AlertService) Evaluate(ctx context.Context, userID string) ([]core.BudgetStatus, []alerts.Event, error) {
	now := s.now()
	month := core.MonthKeyOf(now)

	var (
		transactions []core.Transaction
		budgets      []core.Budget
		record       alerts.Record
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		transactions, err = s.transactions.ListTransactions(ctx, userID, month)
		return err
	})
	g.Go(func() error {
		var err error
		budgets, err = s.budgets.ListBudgets(ctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		record, err = s.records.Load(ctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	statuses := core.EvaluateBudgets(transactions, budgets, month)
	events, updated := alerts.Reconcile(statuses, record, now)

	for _, event := range events {
		if s.notifier == nil {
			continue
		}
		if err := s.notifier.Notify(ctx, event); err != nil {
			slog.ErrorContext(ctx, "Failed to deliver budget alert",
				"user_id", userID,
				"category", event.Category,
				"kind", event.Kind,
				"error", err)
		}
	}

	if err := s.records.Save(ctx, userID, updated); err != nil {
		return statuses, events, err
	}
	return statuses, events, nil
}
