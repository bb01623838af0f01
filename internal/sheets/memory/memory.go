// Package memory buffers exported rows in process. Used by tests and
// the memory backend.
package memory

import (
	"context"
	"fmt"
	"sync"

	"tresor/internal/core"
)

type Row struct {
	UserID      string
	Transaction core.Transaction
}

type Writer struct {
	mu   sync.Mutex
	rows []Row
}

func New() *Writer {
	return &Writer{}
}

// Append stores the row and returns a synthetic reference.
func (w *Writer) Append(_ context.Context, userID string, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows = append(w.rows, Row{UserID: userID, Transaction: tx})
	return fmt.Sprintf("mem:%d", len(w.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (w *Writer) Rows() []Row {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Row(nil), w.rows...)
}
