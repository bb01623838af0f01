package core

import "sort"

// MonthSummary aggregates a month of transactions for the dashboard.
type MonthSummary struct {
	Month            MonthKey
	TotalIncome      Money
	TotalExpenses    Money
	Balance          Money
	TransactionCount int
}

// CategoryBreakdown is the share of one expense category within a month.
type CategoryBreakdown struct {
	Category         string
	Total            Money
	TransactionCount int
	PercentOfExpense float64
}

// SummarizeMonth totals the given transactions for one month.
func SummarizeMonth(transactions []Transaction, month MonthKey) MonthSummary {
	s := MonthSummary{Month: month}
	for _, t := range transactions {
		if !month.Contains(t.Date) {
			continue
		}
		s.TransactionCount++
		switch t.Kind {
		case Income:
			s.TotalIncome.Cents += t.Amount.Cents
		case Expense:
			s.TotalExpenses.Cents += t.Amount.Cents
		}
	}
	s.Balance = Money{Cents: s.TotalIncome.Cents - s.TotalExpenses.Cents}
	return s
}

// AnalyzeCategories breaks monthly expenses down by category. Categories
// appear in ExpenseCategories order; uncategorized spending is reported
// under an empty category name at the end. Categories with no spending
// are omitted.
func AnalyzeCategories(transactions []Transaction, month MonthKey) []CategoryBreakdown {
	totals := make(map[string]*CategoryBreakdown)
	var totalExpense int64
	for _, t := range transactions {
		if t.Kind != Expense || !month.Contains(t.Date) {
			continue
		}
		cb, ok := totals[t.Category]
		if !ok {
			cb = &CategoryBreakdown{Category: t.Category}
			totals[t.Category] = cb
		}
		cb.Total.Cents += t.Amount.Cents
		cb.TransactionCount++
		totalExpense += t.Amount.Cents
	}

	order := append(append([]string{}, ExpenseCategories...), "")
	out := make([]CategoryBreakdown, 0, len(totals))
	for _, name := range order {
		cb, ok := totals[name]
		if !ok {
			continue
		}
		if totalExpense > 0 {
			cb.PercentOfExpense = float64(cb.Total.Cents) / float64(totalExpense) * 100
		}
		out = append(out, *cb)
		delete(totals, name)
	}
	// Anything left used a category outside the known taxonomy.
	rest := make([]string, 0, len(totals))
	for name := range totals {
		rest = append(rest, name)
	}
	sort.Strings(rest)
	for _, name := range rest {
		cb := totals[name]
		if totalExpense > 0 {
			cb.PercentOfExpense = float64(cb.Total.Cents) / float64(totalExpense) * 100
		}
		out = append(out, *cb)
	}
	return out
}
