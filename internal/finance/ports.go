// Package finance defines the persistence ports of the tracker and the
// records they exchange. Adapters live in internal/storage and
// internal/finance/memory.
package finance

import (
	"context"
	"errors"
	"time"

	"tresor/internal/alerts"
	"tresor/internal/core"
)

var (
	ErrNotFound       = errors.New("finance: not found")
	ErrBudgetExists   = errors.New("finance: a budget for this category already exists")
	ErrUsernameInUse  = errors.New("finance: username already taken")
	ErrUnknownBackend = errors.New("finance: unknown backend")
)

// User is an account holder. PasswordHash is a bcrypt digest.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Ticket is a stored OCR extraction, kept so committed transactions can
// point back at the receipt they came from.
type Ticket struct {
	ID        string
	UserID    string
	RawText   string
	CreatedAt time.Time
}

// Ports for outbound adapters.
type (
	TransactionStore interface {
		CreateTransaction(ctx context.Context, userID string, tx core.Transaction) (core.Transaction, error)
		// UpdateTransaction rewrites the mutable fields of tx.ID and
		// returns the stored row. CreatedAt and the ticket link are
		// preserved. Returns ErrNotFound when the row does not exist or
		// belongs to another user.
		UpdateTransaction(ctx context.Context, userID string, tx core.Transaction) (core.Transaction, error)
		ListTransactions(ctx context.Context, userID string, month core.MonthKey) ([]core.Transaction, error)
		DeleteTransaction(ctx context.Context, userID, id string) error
	}

	BudgetStore interface {
		// CreateBudget rejects a second budget for the same category
		// with ErrBudgetExists.
		CreateBudget(ctx context.Context, userID string, b core.Budget) (core.Budget, error)
		UpdateBudget(ctx context.Context, userID string, b core.Budget) error
		DeleteBudget(ctx context.Context, userID, id string) error
		ListBudgets(ctx context.Context, userID string) ([]core.Budget, error)
	}

	UserStore interface {
		CreateUser(ctx context.Context, u User) (User, error)
		UserByUsername(ctx context.Context, username string) (User, error)
		// ListUserIDs feeds background jobs that fan out per user.
		ListUserIDs(ctx context.Context) ([]string, error)
	}

	TicketStore interface {
		SaveTicket(ctx context.Context, t Ticket) (Ticket, error)
		TicketByID(ctx context.Context, userID, id string) (Ticket, error)
	}
)

// Store is the unified persistence surface a backend provides.
type Store interface {
	TransactionStore
	BudgetStore
	UserStore
	TicketStore
	alerts.RecordStore
}
