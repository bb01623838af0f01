package core

import "math"

// BudgetStatus is the derived monthly standing of one budget. It is
// recomputed on demand and never persisted.
type BudgetStatus struct {
	BudgetID     string
	Category     string
	BudgetLimit  Money
	Spent        Money
	Remaining    Money
	Percentage   float64 // spent/limit*100; +Inf when the limit is not positive
	Threshold    float64
	IsWarning    bool
	IsOverBudget bool
}

// EvaluateBudgets computes one BudgetStatus per budget for the given month.
//
// Spending for a budget is the sum of expense transactions whose category
// matches the budget and whose date falls inside the month, inclusive on
// both ends. Transactions with a zero date never count. The function is
// pure: results depend only on the inputs, and statuses are returned in
// budget input order.
//
// A budget with a non-positive monthly limit has no meaningful percentage;
// such budgets report Percentage = +Inf and are always over budget. This
// sentinel keeps the division total without special-casing callers.
func EvaluateBudgets(transactions []Transaction, budgets []Budget, month MonthKey) []BudgetStatus {
	statuses := make([]BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		var spent int64
		for _, t := range transactions {
			if t.Kind != Expense || t.Category != b.Category {
				continue
			}
			if !month.Contains(t.Date) {
				continue
			}
			spent += t.Amount.Cents
		}

		percentage := math.Inf(1)
		if b.MonthlyLimit.Cents > 0 {
			percentage = float64(spent) / float64(b.MonthlyLimit.Cents) * 100
		}

		statuses = append(statuses, BudgetStatus{
			BudgetID:     b.ID,
			Category:     b.Category,
			BudgetLimit:  b.MonthlyLimit,
			Spent:        Money{Cents: spent},
			Remaining:    Money{Cents: b.MonthlyLimit.Cents - spent},
			Percentage:   percentage,
			Threshold:    b.NotificationThreshold,
			IsWarning:    percentage >= b.NotificationThreshold && percentage < 100,
			IsOverBudget: percentage >= 100,
		})
	}
	return statuses
}
