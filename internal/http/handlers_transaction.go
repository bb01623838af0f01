package http

import (
	"net/http"
	"time"

	"tresor/internal/core"
)

type transactionRequest struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Kind        string `json:"kind"`
	Category    string `json:"category"`
	Date        string `json:"date"` // YYYY-MM-DD
	TicketID    string `json:"ticket_id,omitempty"`
}

type transactionResponse struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	AmountCents int64   `json:"amount_cents"`
	Amount      float64 `json:"amount"`
	Kind        string  `json:"kind"`
	Category    string  `json:"category,omitempty"`
	Date        string  `json:"date"`
	TicketID    string  `json:"ticket_id,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		Description: t.Description,
		AmountCents: t.Amount.Cents,
		Amount:      t.Amount.Euros(),
		Kind:        string(t.Kind),
		Category:    t.Category,
		Date:        t.Date.String(),
		TicketID:    t.TicketID,
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
	}
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}

	date := core.Today()
	if req.Date != "" {
		date, err = core.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid date, expected YYYY-MM-DD")
			return
		}
	}

	tx := core.Transaction{
		Description: sanitizeInput(req.Description),
		Amount:      core.Money{Cents: cents},
		Kind:        core.TransactionKind(req.Kind),
		Category:    sanitizeInput(req.Category),
		Date:        date,
		TicketID:    req.TicketID,
	}
	if err := tx.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}

	created, err := s.transactions.Create(r.Context(), userID, tx)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.logger.LogTransactionCreated(r.Context(), created.ID, created.Description,
		created.Amount.Cents, string(created.Kind), created.Category)
	s.invalidateSnapshots(r.Context(), userID)
	writeJSON(w, http.StatusCreated, toTransactionResponse(created))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	id := r.PathValue("id")

	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}

	date, err := core.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid date, expected YYYY-MM-DD")
		return
	}

	tx := core.Transaction{
		ID:          id,
		Description: sanitizeInput(req.Description),
		Amount:      core.Money{Cents: cents},
		Kind:        core.TransactionKind(req.Kind),
		Category:    sanitizeInput(req.Category),
		Date:        date,
	}
	if err := tx.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}

	updated, err := s.transactions.Update(r.Context(), userID, tx)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.invalidateSnapshots(r.Context(), userID)
	writeJSON(w, http.StatusOK, toTransactionResponse(updated))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	month, err := monthParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid month, expected YYYY-MM")
		return
	}

	list, err := s.transactions.List(r.Context(), userID, month)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	kind := r.URL.Query().Get("kind")
	category := r.URL.Query().Get("category")

	out := make([]transactionResponse, 0, len(list))
	for _, t := range list {
		if kind != "" && string(t.Kind) != kind {
			continue
		}
		if category != "" && t.Category != category {
			continue
		}
		out = append(out, toTransactionResponse(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"month":        month.String(),
		"transactions": out,
	})
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	id := r.PathValue("id")

	if err := s.transactions.Delete(r.Context(), userID, id); err != nil {
		writeDomainError(w, err)
		return
	}

	s.invalidateSnapshots(r.Context(), userID)
	w.WriteHeader(http.StatusNoContent)
}
