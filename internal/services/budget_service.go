package services

import (
	"context"
	"log/slog"
	"time"

	"tresor/internal/alerts"
	"tresor/internal/core"
	"tresor/internal/finance"
)

// BudgetService manages budget definitions. Deleting a budget also
// re-arms its alert for the current month.
type BudgetService struct {
	budgets finance.BudgetStore
	records alerts.RecordStore
	now     func() time.Time
}

func NewBudgetService(budgets finance.BudgetStore, records alerts.RecordStore) *BudgetService {
	return &BudgetService{budgets: budgets, records: records, now: time.Now}
}

func (s *BudgetService) Create(ctx context.Context, userID string, b core.Budget) (core.Budget, error) {
	return s.budgets.CreateBudget(ctx, userID, b)
}

func (s *BudgetService) Update(ctx context.Context, userID string, b core.Budget) error {
	return s.budgets.UpdateBudget(ctx, userID, b)
}

func (s *BudgetService) List(ctx context.Context, userID string) ([]core.Budget, error) {
	return s.budgets.ListBudgets(ctx, userID)
}

// Delete removes the budget and forgets its delivered-alert key, so a
// budget recreated for the same category this month can alert again.
func (s *BudgetService) Delete(ctx context.Context, userID, id string) error {
	list, err := s.budgets.ListBudgets(ctx, userID)
	if err != nil {
		return err
	}
	var category string
	for _, b := range list {
		if b.ID == id {
			category = b.Category
			break
		}
	}

	if err := s.budgets.DeleteBudget(ctx, userID, id); err != nil {
		return err
	}

	if category != "" && s.records != nil {
		record, err := s.records.Load(ctx, userID)
		if err != nil {
			slog.WarnContext(ctx, "Failed to load alert record after budget delete", "error", err)
			return nil
		}
		key := alerts.Key{Month: core.MonthKeyOf(s.now()), Category: category}
		if record.Has(key) {
			record.Forget(key)
			if err := s.records.Save(ctx, userID, record); err != nil {
				slog.WarnContext(ctx, "Failed to save alert record after budget delete", "error", err)
			}
		}
	}
	return nil
}
