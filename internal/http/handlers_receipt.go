package http

import (
	"net/http"

	"tresor/internal/core"
	"tresor/internal/receipt"
	"tresor/internal/services"
)

type draftResponse struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Valid       bool   `json:"valid"`
}

type sessionViewResponse struct {
	State    string          `json:"state"`
	Drafts   []draftResponse `json:"drafts"`
	Form     map[string]any  `json:"form,omitempty"`
	Warning  string          `json:"warning,omitempty"`
	TicketID string          `json:"ticket_id,omitempty"`
}

func toSessionResponse(view services.SessionView) sessionViewResponse {
	resp := sessionViewResponse{
		State:    string(view.State),
		Drafts:   make([]draftResponse, 0, len(view.Drafts)),
		Warning:  view.Warning,
		TicketID: view.TicketID,
	}
	for _, d := range view.Drafts {
		resp.Drafts = append(resp.Drafts, draftResponse{
			ID:          d.ID,
			Description: d.Description,
			Amount:      d.Amount,
			Category:    d.Category,
			Valid:       d.Valid,
		})
	}
	if view.Form != (receipt.SingleForm{}) {
		resp.Form = map[string]any{
			"description": view.Form.Description,
			"amount":      view.Form.Amount,
			"category":    view.Form.Category,
		}
	}
	return resp
}

func (s *Server) handleReceiptSession(w http.ResponseWriter, r *http.Request) {
	view := s.receipts.View(UserID(r.Context()))
	writeJSON(w, http.StatusOK, toSessionResponse(view))
}

// handleReceiptUpload accepts a multipart form with an "image" file and
// an optional "kind" field, runs extraction and returns the resulting
// session state.
func (s *Server) handleReceiptUpload(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart form with an image file")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing image file")
		return
	}
	defer file.Close()

	kind := core.Expense
	if v := r.FormValue("kind"); v != "" {
		kind = core.TransactionKind(v)
		if err := kind.Validate(); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid kind")
			return
		}
	}

	view, err := s.receipts.Upload(r.Context(), userID, header.Filename, header.Header.Get("Content-Type"), file, kind)
	if err != nil {
		if view.State != receipt.StateFailed {
			writeDomainError(w, err)
			return
		}
		// Extraction failures still carry a session view the client
		// can render, so include it alongside the error status.
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":   err.Error(),
			"session": toSessionResponse(view),
		})
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(view))
}

type draftUpdateRequest struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
}

func (s *Server) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	var req draftUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.receipts.UpdateDraft(userID, r.PathValue("id"), sanitizeInput(req.Description), req.Amount, sanitizeInput(req.Category)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(s.receipts.View(userID)))
}

func (s *Server) handleRemoveDraft(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	if err := s.receipts.RemoveDraft(userID, r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(s.receipts.View(userID)))
}

func (s *Server) handleUseManualForm(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	if err := s.receipts.UseManualForm(userID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(s.receipts.View(userID)))
}

func (s *Server) handleSetForm(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	var req draftUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.receipts.SetForm(userID, sanitizeInput(req.Description), req.Amount, sanitizeInput(req.Category)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(s.receipts.View(userID)))
}

type submitRequest struct {
	Kind string `json:"kind"`
	Date string `json:"date"` // YYYY-MM-DD, defaults to today
}

func (s *Server) handleReceiptSubmit(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	kind := core.Expense
	if req.Kind != "" {
		kind = core.TransactionKind(req.Kind)
		if err := kind.Validate(); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid kind")
			return
		}
	}

	date := core.Today()
	if req.Date != "" {
		var err error
		date, err = core.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid date, expected YYYY-MM-DD")
			return
		}
	}

	outcome, err := s.receipts.Submit(r.Context(), userID, receipt.SharedFields{Kind: kind, Date: date})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.invalidateSnapshots(r.Context(), userID)

	status := http.StatusOK
	if !outcome.Success() {
		// Partial failure keeps the failed drafts in the session for
		// another attempt.
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, map[string]any{
		"attempted": outcome.Attempted,
		"failed":    outcome.Failed,
		"session":   toSessionResponse(s.receipts.View(userID)),
	})
}

func (s *Server) handleReceiptCancel(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	s.receipts.Cancel(userID)
	writeJSON(w, http.StatusOK, toSessionResponse(s.receipts.View(userID)))
}
