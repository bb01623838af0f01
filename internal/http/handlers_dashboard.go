package http

import (
	"math"
	"net/http"

	"tresor/internal/alerts"
	"tresor/internal/core"
)

type budgetStatusResponse struct {
	BudgetID     string   `json:"budget_id"`
	Category     string   `json:"category"`
	BudgetLimit  float64  `json:"budget_limit"`
	Spent        float64  `json:"spent"`
	Remaining    float64  `json:"remaining"`
	Percentage   *float64 `json:"percentage"` // null when the limit is not positive
	Threshold    float64  `json:"threshold"`
	IsWarning    bool     `json:"is_warning"`
	IsOverBudget bool     `json:"is_over_budget"`
}

func toStatusResponse(st core.BudgetStatus) budgetStatusResponse {
	resp := budgetStatusResponse{
		BudgetID:     st.BudgetID,
		Category:     st.Category,
		BudgetLimit:  st.BudgetLimit.Euros(),
		Spent:        st.Spent.Euros(),
		Remaining:    st.Remaining.Euros(),
		Threshold:    st.Threshold,
		IsWarning:    st.IsWarning,
		IsOverBudget: st.IsOverBudget,
	}
	if !math.IsInf(st.Percentage, 0) {
		pct := st.Percentage
		resp.Percentage = &pct
	}
	return resp
}

type alertEventResponse struct {
	Kind       string `json:"kind"`
	Month      string `json:"month"`
	Category   string `json:"category"`
	Message    string `json:"message"`
	Severity   string `json:"severity"`
	DurationMS int64  `json:"duration_ms"`
}

func toAlertResponse(ev alerts.Event) alertEventResponse {
	return alertEventResponse{
		Kind:       string(ev.Kind),
		Month:      ev.Month.String(),
		Category:   ev.Category,
		Message:    ev.Message(),
		Severity:   string(alerts.SeverityFor(ev.Kind)),
		DurationMS: ev.DurationHint().Milliseconds(),
	}
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"expense": core.ExpenseCategories,
		"income":  core.IncomeCategories,
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	month, err := monthParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid month, expected YYYY-MM")
		return
	}

	snap, err := s.loadSnapshot(r.Context(), userID, month.String())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	transactions := make([]transactionResponse, 0, len(snap.Transactions))
	for _, t := range snap.Transactions {
		transactions = append(transactions, toTransactionResponse(t))
	}
	budgets := make([]budgetResponse, 0, len(snap.Budgets))
	for _, b := range snap.Budgets {
		budgets = append(budgets, toBudgetResponse(b))
	}
	statuses := make([]budgetStatusResponse, 0, len(snap.Statuses))
	for _, st := range snap.Statuses {
		statuses = append(statuses, toStatusResponse(st))
	}
	breakdown := make([]map[string]any, 0, len(snap.Breakdown))
	for _, cb := range snap.Breakdown {
		breakdown = append(breakdown, map[string]any{
			"category":           cb.Category,
			"total":              cb.Total.Euros(),
			"transaction_count":  cb.TransactionCount,
			"percent_of_expense": cb.PercentOfExpense,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"month":        snap.Month.String(),
		"transactions": transactions,
		"budgets":      budgets,
		"statuses":     statuses,
		"summary": map[string]any{
			"total_income":      snap.Summary.TotalIncome.Euros(),
			"total_expenses":    snap.Summary.TotalExpenses.Euros(),
			"balance":           snap.Summary.Balance.Euros(),
			"transaction_count": snap.Summary.TransactionCount,
		},
		"breakdown": breakdown,
	})
}

func (s *Server) handleEvaluateAlerts(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	statuses, events, err := s.alerts.Evaluate(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	statusOut := make([]budgetStatusResponse, 0, len(statuses))
	for _, st := range statuses {
		statusOut = append(statusOut, toStatusResponse(st))
	}
	eventOut := make([]alertEventResponse, 0, len(events))
	for _, ev := range events {
		eventOut = append(eventOut, toAlertResponse(ev))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"statuses": statusOut,
		"alerts":   eventOut,
	})
}
