package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"tresor/internal/auth"
	"tresor/internal/core"
	"tresor/internal/finance"
	"tresor/internal/receipt"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeDomainError maps known domain errors onto HTTP statuses. Unknown
// errors become a 500 with a generic message.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, finance.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, finance.ErrBudgetExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, finance.ErrUsernameInUse):
		writeError(w, http.StatusConflict, "username already taken")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrEmptyUsername):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, receipt.ErrNotImage):
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, receipt.ErrDraftNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, receipt.ErrInvalidState),
		errors.Is(err, receipt.ErrInvalidDrafts),
		errors.Is(err, receipt.ErrNoDrafts):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrInvalidKind),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, core.ErrInvalidThreshold):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
