package http

import (
	"net/http"

	"tresor/internal/core"
)

type budgetRequest struct {
	Category              string  `json:"category"`
	MonthlyLimit          string  `json:"monthly_limit"`
	NotificationThreshold float64 `json:"notification_threshold"`
}

type budgetResponse struct {
	ID                    string  `json:"id"`
	Category              string  `json:"category"`
	MonthlyLimitCents     int64   `json:"monthly_limit_cents"`
	MonthlyLimit          float64 `json:"monthly_limit"`
	NotificationThreshold float64 `json:"notification_threshold"`
}

func toBudgetResponse(b core.Budget) budgetResponse {
	return budgetResponse{
		ID:                    b.ID,
		Category:              b.Category,
		MonthlyLimitCents:     b.MonthlyLimit.Cents,
		MonthlyLimit:          b.MonthlyLimit.Euros(),
		NotificationThreshold: b.NotificationThreshold,
	}
}

func budgetFromRequest(req budgetRequest) (core.Budget, error) {
	cents, err := core.ParseDecimalToCents(req.MonthlyLimit)
	if err != nil {
		return core.Budget{}, core.ErrInvalidAmount
	}

	b := core.Budget{
		Category:              sanitizeInput(req.Category),
		MonthlyLimit:          core.Money{Cents: cents},
		NotificationThreshold: req.NotificationThreshold,
	}
	return b, b.Validate()
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	var req budgetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	b, err := budgetFromRequest(req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	created, err := s.budgets.Create(r.Context(), userID, b)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.invalidateSnapshots(r.Context(), userID)
	writeJSON(w, http.StatusCreated, toBudgetResponse(created))
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	var req budgetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	b, err := budgetFromRequest(req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	b.ID = r.PathValue("id")

	if err := s.budgets.Update(r.Context(), userID, b); err != nil {
		writeDomainError(w, err)
		return
	}

	s.invalidateSnapshots(r.Context(), userID)
	writeJSON(w, http.StatusOK, toBudgetResponse(b))
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	id := r.PathValue("id")

	if err := s.budgets.Delete(r.Context(), userID, id); err != nil {
		writeDomainError(w, err)
		return
	}

	s.invalidateSnapshots(r.Context(), userID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	list, err := s.budgets.List(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]budgetResponse, 0, len(list))
	for _, b := range list {
		out = append(out, toBudgetResponse(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"budgets": out})
}
