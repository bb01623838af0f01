package services

import (
	"context"

	"golang.org/x/sync/errgroup"

	"tresor/internal/core"
	"tresor/internal/finance"
)

// Snapshot is everything the dashboard needs for one month.
type Snapshot struct {
	Month        core.MonthKey
	Transactions []core.Transaction
	Budgets      []core.Budget
	Statuses     []core.BudgetStatus
	Summary      core.MonthSummary
	Breakdown    []core.CategoryBreakdown
}

// LoadSnapshot fetches transactions and budgets in parallel and derives
// the month's statuses, summary and category breakdown.
func LoadSnapshot(ctx context.Context, store finance.Store, userID string, month core.MonthKey) (Snapshot, error) {
	snap := Snapshot{Month: month}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap.Transactions, err = store.ListTransactions(ctx, userID, month)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Budgets, err = store.ListBudgets(ctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	snap.Statuses = core.EvaluateBudgets(snap.Transactions, snap.Budgets, month)
	snap.Summary = core.SummarizeMonth(snap.Transactions, month)
	snap.Breakdown = core.AnalyzeCategories(snap.Transactions, month)
	return snap, nil
}
